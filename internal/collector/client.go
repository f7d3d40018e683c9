// Package collector pages through the Harvard Art Museums object API for one
// classification until a target record count is reached or the source runs dry.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"artifactcore/pkg/domain"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.harvardartmuseums.org"
	// PageSize is the number of records requested per page (the API maximum).
	PageSize = 100
	// DefaultPageDelay is the courtesy pause between page requests.
	DefaultPageDelay = 100 * time.Millisecond
)

var (
	// ErrStatus is returned when the API answers with a non-2xx status.
	ErrStatus = errors.New("collector: unexpected status")
	// ErrDecode is returned when the API body is not the expected JSON document.
	ErrDecode = errors.New("collector: malformed response")
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("collector: api key required")
)

// ProgressFunc receives the fraction of the target collected so far, in [0, 1].
type ProgressFunc func(fraction float64)

// FetchFunc observes every page request once it has finished, successful or not.
type FetchFunc func(category string, page int, err error)

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	PageDelay time.Duration
	// Timeout bounds each request when HTTPClient is nil (default 30s).
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
	OnFetch    FetchFunc
}

// Client fetches artifact pages. Concurrent Collect calls each keep their own
// page pacing.
type Client struct {
	baseURL   string
	apiKey    string
	delay     time.Duration
	http      *http.Client
	userAgent string
	onFetch   FetchFunc
	sleep     func(context.Context, time.Duration) error
}

// New constructs a Client, filling defaults for empty fields.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	delay := cfg.PageDelay
	if delay < 0 {
		delay = 0
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "artifactcore-collector/1"
	}
	return &Client{baseURL: base, apiKey: cfg.APIKey, delay: delay, http: hc, userAgent: ua, onFetch: cfg.OnFetch, sleep: sleepContext}
}

// Page is one decoded API response.
type Page struct {
	Records []domain.RawRecord
	HasNext bool
}

type pageDoc struct {
	Info    map[string]json.RawMessage `json:"info"`
	Records []domain.RawRecord         `json:"records"`
}

// Collect requests pages of PageSize records for category, starting at page 1,
// until target records are gathered, a page comes back empty, or the API stops
// advertising a next page. The result never exceeds target. On error the records
// gathered so far are returned along with the error.
func (c *Client) Collect(ctx context.Context, category string, target int, progress ProgressFunc) ([]domain.RawRecord, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if progress == nil {
		progress = func(float64) {}
	}
	artifacts := make([]domain.RawRecord, 0, capHint(target))
	for page := 1; len(artifacts) < target; page++ {
		p, err := c.FetchPage(ctx, category, page)
		if err != nil {
			return artifacts, err
		}
		if len(p.Records) == 0 {
			break
		}
		need := target - len(artifacts)
		records := p.Records
		if len(records) > need {
			records = records[:need]
		}
		artifacts = append(artifacts, records...)

		if !p.HasNext {
			progress(1.0)
			break
		}
		if len(artifacts) >= target {
			progress(fraction(len(artifacts), target))
			break
		}
		if err := c.sleep(ctx, c.delay); err != nil {
			return artifacts, err
		}
		progress(fraction(len(artifacts), target))
	}
	return artifacts, nil
}

// FetchPage requests a single page for category.
func (c *Client) FetchPage(ctx context.Context, category string, page int) (_ Page, err error) {
	if c.onFetch != nil {
		defer func() { c.onFetch(category, page, err) }()
	}
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("classification", category)
	q.Set("size", strconv.Itoa(PageSize))
	q.Set("page", strconv.Itoa(page))
	endpoint := c.baseURL + "/object?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch page %d: %w", page, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Page{}, fmt.Errorf("%w: page %d: %s", ErrStatus, page, resp.Status)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var doc pageDoc
	if err := dec.Decode(&doc); err != nil {
		return Page{}, fmt.Errorf("%w: page %d: %v", ErrDecode, page, err)
	}
	_, hasNext := doc.Info["next"]
	return Page{Records: doc.Records, HasNext: hasNext}, nil
}

func fraction(collected, target int) float64 {
	if target <= 0 {
		return 1.0
	}
	return min(1.0, float64(collected)/float64(target))
}

func capHint(target int) int {
	if target <= 0 {
		return 0
	}
	return min(target, 10*PageSize)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
