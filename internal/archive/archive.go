// Package archive keeps collected raw batches in blob storage so that
// collection and loading can run in separate processes.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"artifactcore/internal/blob"
	"artifactcore/pkg/domain"
)

const (
	rootPrefix  = "raw/"
	contentType = "application/json"
	// timestamps sort lexicographically in key order
	stampLayout = "20060102T150405.000000000Z"
)

// ErrEmpty is returned by Latest when no batch was archived for a category.
var ErrEmpty = errors.New("archive: no batch for category")

// Entry describes one archived batch.
type Entry struct {
	Key      string    `json:"key"`
	Category string    `json:"category"`
	Count    int       `json:"count"`
	SavedAt  time.Time `json:"saved_at"`
}

// Archive stores raw batches under raw/<category>/<timestamp>-<uuid>.json.
type Archive struct {
	store blob.Store
	now   func() time.Time
	newID func() string
}

// Option customises an Archive.
type Option func(*Archive)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		if now != nil {
			a.now = now
		}
	}
}

// New wraps store.
func New(store blob.Store, opts ...Option) *Archive {
	a := &Archive{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store returns the underlying blob store.
func (a *Archive) Store() blob.Store { return a.store }

// Save writes records as one JSON array and returns the new key.
func (a *Archive) Save(ctx context.Context, category string, records []domain.RawRecord) (Entry, error) {
	dir, err := categoryDir(category)
	if err != nil {
		return Entry{}, err
	}
	if records == nil {
		records = []domain.RawRecord{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		return Entry{}, fmt.Errorf("encode batch: %w", err)
	}
	savedAt := a.now().UTC()
	key := dir + savedAt.Format(stampLayout) + "-" + a.newID() + ".json"
	_, err = a.store.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"category": category,
			"count":    strconv.Itoa(len(records)),
		},
	})
	if err != nil {
		return Entry{}, fmt.Errorf("archive batch: %w", err)
	}
	return Entry{Key: key, Category: category, Count: len(records), SavedAt: savedAt}, nil
}

// Get reads the batch stored at key.
func (a *Archive) Get(ctx context.Context, key string) ([]domain.RawRecord, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	dec := json.NewDecoder(rc)
	dec.UseNumber()
	var records []domain.RawRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", key, err)
	}
	return records, nil
}

// List returns the archived batches of category, oldest first.
func (a *Archive) List(ctx context.Context, category string) ([]Entry, error) {
	dir, err := categoryDir(category)
	if err != nil {
		return nil, err
	}
	infos, err := a.store.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, ".json") {
			continue
		}
		entry := Entry{Key: info.Key, Category: category, Count: -1, SavedAt: info.LastModified}
		if n, err := strconv.Atoi(info.Metadata["count"]); err == nil {
			entry.Count = n
		}
		if ts, err := time.Parse(stampLayout, strings.SplitN(strings.TrimPrefix(info.Key, dir), "-", 2)[0]); err == nil {
			entry.SavedAt = ts
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Latest returns the most recently saved batch of category.
func (a *Archive) Latest(ctx context.Context, category string) ([]domain.RawRecord, Entry, error) {
	entries, err := a.List(ctx, category)
	if err != nil {
		return nil, Entry{}, err
	}
	if len(entries) == 0 {
		return nil, Entry{}, fmt.Errorf("%w %q", ErrEmpty, category)
	}
	entry := entries[len(entries)-1]
	records, err := a.Get(ctx, entry.Key)
	if err != nil {
		return nil, Entry{}, err
	}
	entry.Count = len(records)
	return records, entry, nil
}

func categoryDir(category string) (string, error) {
	c := strings.TrimSpace(category)
	if c == "" {
		return "", fmt.Errorf("archive: category required")
	}
	if strings.ContainsAny(c, "/\\") || c == "." || c == ".." {
		return "", fmt.Errorf("archive: invalid category %q", category)
	}
	return rootPrefix + c + "/", nil
}
