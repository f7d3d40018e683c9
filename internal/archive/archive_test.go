package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"artifactcore/internal/blob"
	"artifactcore/pkg/domain"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestSaveAndLatestRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	a := New(blob.NewMemory(), WithClock(clock.now))

	first, err := a.Save(ctx, "Coins", []domain.RawRecord{{"id": 1}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := a.Save(ctx, "Coins", []domain.RawRecord{{"id": 2, "title": "Vase"}, {"id": 3}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(first.Key, "raw/Coins/20240301T120001") || !strings.HasSuffix(first.Key, ".json") {
		t.Fatalf("unexpected key %s", first.Key)
	}
	if second.Count != 2 {
		t.Fatalf("expected count 2, got %d", second.Count)
	}

	records, entry, err := a.Latest(ctx, "Coins")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if entry.Key != second.Key || len(records) != 2 {
		t.Fatalf("expected latest batch %s, got %s with %d records", second.Key, entry.Key, len(records))
	}
	if id, ok := records[0]["id"].(json.Number); !ok || id.String() != "2" {
		t.Fatalf("expected json.Number id, got %#v", records[0]["id"])
	}
}

func TestListReportsEntriesOldestFirst(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	a := New(blob.NewMemory(), WithClock(clock.now))
	for i := 0; i < 3; i++ {
		if _, err := a.Save(ctx, "Drawings", make([]domain.RawRecord, i)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if _, err := a.Save(ctx, "Coins", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := a.List(ctx, "Drawings")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Count != i {
			t.Fatalf("entry %d count %d", i, e.Count)
		}
		if i > 0 && !e.SavedAt.After(entries[i-1].SavedAt) {
			t.Fatalf("entries not ordered: %v", entries)
		}
	}
}

func TestLatestWithoutBatchIsErrEmpty(t *testing.T) {
	a := New(blob.NewMemory())
	if _, _, err := a.Latest(context.Background(), "Jewelry"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestInvalidCategory(t *testing.T) {
	a := New(blob.NewMemory())
	for _, c := range []string{"", "  ", "a/b", ".."} {
		if _, err := a.Save(context.Background(), c, nil); err == nil {
			t.Fatalf("expected error for category %q", c)
		}
	}
}

func TestSaveEmptyBatchStoresArray(t *testing.T) {
	ctx := context.Background()
	a := New(blob.NewMemory())
	entry, err := a.Save(ctx, "Sculpture", nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	records, err := a.Get(ctx, entry.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", records)
	}
}

func TestGetMissingKey(t *testing.T) {
	if _, err := New(blob.NewMemory()).Get(context.Background(), "raw/Coins/none.json"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
