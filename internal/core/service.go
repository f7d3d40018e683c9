// Package core wires the collector, transformer, loader, and query catalog
// into one Service shared by the CLI, the HTTP API, and the terminal UI.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"artifactcore/internal/archive"
	"artifactcore/internal/catalog"
	"artifactcore/internal/collector"
	"artifactcore/internal/transform"
	"artifactcore/pkg/domain"
)

var (
	// ErrUnknownQuery is returned for a query id outside the catalog.
	ErrUnknownQuery = catalog.ErrUnknownQuery
	// ErrNothingCollected is returned by Insert before any collection.
	ErrNothingCollected = errors.New("core: no collected records to insert")
	// ErrNoArchive is returned by archive-backed operations when none is configured.
	ErrNoArchive = errors.New("core: no archive configured")
	// ErrCategoryRequired is returned by Collect for a blank classification.
	ErrCategoryRequired = errors.New("core: category required")
)

// PreviewRows is the number of raw records shown by Preview by default.
const PreviewRows = 10

// Collector fetches raw records for one classification.
type Collector interface {
	Collect(ctx context.Context, category string, target int, progress collector.ProgressFunc) ([]domain.RawRecord, error)
}

// CollectorFactory builds a Collector for the supplied API key. Interactive
// surfaces pass the key the user typed; the CLI passes the configured one.
type CollectorFactory func(apiKey string) Collector

// CollectRequest describes one collection run.
type CollectRequest struct {
	APIKey   string
	Category string
	Target   int
	Progress collector.ProgressFunc
}

// CollectResult summarizes a collection run.
type CollectResult struct {
	Category string         `json:"category"`
	Count    int            `json:"count"`
	Archive  *archive.Entry `json:"archive,omitempty"`
}

// QueryResult is a catalog query together with its materialized rows.
type QueryResult struct {
	Query catalog.Query `json:"query"`
	Table domain.Table  `json:"table"`
}

// Stats is the quick summary of the current session.
type Stats struct {
	Category    string             `json:"category"`
	Collected   int                `json:"collected"`
	CollectedAt time.Time          `json:"collected_at,omitempty"`
	LastLoad    *domain.LoadResult `json:"last_load,omitempty"`
	LastQueryID string             `json:"last_query_id,omitempty"`
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the span source.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithArchive keeps every collected batch in a and enables InsertLatest.
func WithArchive(a *archive.Archive) Option {
	return func(s *Service) { s.archive = a }
}

type session struct {
	category    string
	records     []domain.RawRecord
	collectedAt time.Time
	lastLoad    *domain.LoadResult
	lastQuery   *QueryResult
}

// Service runs the pipeline and keeps the state of one interactive session.
type Service struct {
	store        ArtifactStore
	catalog      *catalog.Catalog
	newCollector CollectorFactory
	archive      *archive.Archive

	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock

	mu    sync.RWMutex
	state session
}

// NewService constructs a Service. store and newCollector may be nil; the
// operations that need them then fail with ErrNoConnection or an explicit error.
func NewService(store ArtifactStore, cat *catalog.Catalog, newCollector CollectorFactory, opts ...Option) *Service {
	s := &Service{
		store:        store,
		catalog:      cat,
		newCollector: newCollector,
		logger:       noopLogger{},
		metrics:      noopMetrics{},
		tracer:       noopTracer{},
		clock:        ClockFunc(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the relational store.
func (s *Service) Store() ArtifactStore { return s.store }

// Archive returns the configured archive, or nil.
func (s *Service) Archive() *archive.Archive { return s.archive }

func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	span.End(err)
	if err != nil {
		s.logger.Error("operation failed", "op", op, "error", err, "duration", elapsed)
		return err
	}
	s.logger.Debug("operation complete", "op", op, "duration", elapsed)
	return nil
}

func (s *Service) pipeline() PipelineMetrics {
	if pm, ok := s.metrics.(PipelineMetrics); ok {
		return pm
	}
	return nil
}

// Collect fetches records for req.Category and makes them the session's
// current batch. When an archive is configured the batch is saved there too.
// When the collector fails after some records arrived, that partial batch
// becomes current and is returned with the error. A failure before any record
// leaves the previous batch in place.
func (s *Service) Collect(ctx context.Context, req CollectRequest) (CollectResult, error) {
	var res CollectResult
	err := s.run(ctx, "collect", func(ctx context.Context) error {
		category := strings.TrimSpace(req.Category)
		if category == "" {
			return ErrCategoryRequired
		}
		if s.newCollector == nil {
			return fmt.Errorf("no collector configured")
		}
		target := req.Target
		if target <= 0 {
			target = domain.DefaultTargetRecords
		}
		progress := req.Progress
		if progress == nil {
			progress = func(float64) {}
		}
		s.logger.Info("collecting", "category", category, "target", target)
		records, collectErr := s.newCollector(req.APIKey).Collect(ctx, category, target, progress)
		if collectErr != nil {
			collectErr = fmt.Errorf("collect %s after %d records: %w", category, len(records), collectErr)
			if len(records) == 0 {
				return collectErr
			}
		}
		if pm := s.pipeline(); pm != nil {
			pm.RecordsCollected(category, len(records))
		}
		res = CollectResult{Category: category, Count: len(records)}
		s.mu.Lock()
		s.state.category = category
		s.state.records = records
		s.state.collectedAt = s.clock.Now()
		s.mu.Unlock()
		if s.archive != nil {
			entry, err := s.archive.Save(ctx, category, records)
			if err != nil {
				return errors.Join(collectErr, err)
			}
			res.Archive = &entry
		}
		if collectErr != nil {
			s.logger.Warn("collection stopped early", "category", category, "count", len(records), "target", target)
			return collectErr
		}
		s.logger.Info("collected", "category", category, "count", len(records))
		return nil
	})
	return res, err
}

// Records returns the session's current batch and its classification.
func (s *Service) Records() (string, []domain.RawRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RawRecord, len(s.state.records))
	copy(out, s.state.records)
	return s.state.category, out
}

// Preview tabulates the first n collected records (PreviewRows when n <= 0).
// Columns are the union of record keys with id first and the rest sorted.
// Nested values are rendered as compact JSON.
func (s *Service) Preview(n int) domain.Table {
	if n <= 0 {
		n = PreviewRows
	}
	_, records := s.Records()
	if len(records) > n {
		records = records[:n]
	}
	return tabulate(records)
}

// PreviewLatest tabulates the first n records of the latest archived batch of
// category without touching the session.
func (s *Service) PreviewLatest(ctx context.Context, category string, n int) (domain.Table, archive.Entry, error) {
	if s.archive == nil {
		return domain.Table{}, archive.Entry{}, ErrNoArchive
	}
	records, entry, err := s.archive.Latest(ctx, category)
	if err != nil {
		return domain.Table{}, archive.Entry{}, err
	}
	if n <= 0 {
		n = PreviewRows
	}
	if len(records) > n {
		records = records[:n]
	}
	return tabulate(records), entry, nil
}

func tabulate(records []domain.RawRecord) domain.Table {
	seen := make(map[string]struct{})
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				cols = append(cols, k)
			}
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i] == "id" || cols[j] == "id" {
			return cols[i] == "id"
		}
		return cols[i] < cols[j]
	})
	table := domain.Table{Columns: cols, Rows: make([]domain.Row, 0, len(records))}
	if table.Columns == nil {
		table.Columns = []string{}
	}
	for _, rec := range records {
		row := make(domain.Row, len(cols))
		for _, c := range cols {
			row[c] = displayValue(rec[c])
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func displayValue(v any) any {
	switch v.(type) {
	case map[string]any, []any, domain.RawRecord:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
	return v
}

// EnsureSchema creates the artifact tables if needed.
func (s *Service) EnsureSchema(ctx context.Context) error {
	return s.run(ctx, "ensure_schema", func(ctx context.Context) error {
		if s.store == nil {
			return ErrNoConnection
		}
		return s.store.EnsureSchema(ctx)
	})
}

// Insert transforms the session's current batch and loads it.
func (s *Service) Insert(ctx context.Context) (domain.LoadResult, error) {
	category, records := s.Records()
	if len(records) == 0 {
		return domain.LoadResult{}, ErrNothingCollected
	}
	return s.load(ctx, "insert", category, records)
}

// InsertLatest loads the most recently archived batch of category.
func (s *Service) InsertLatest(ctx context.Context, category string) (domain.LoadResult, archive.Entry, error) {
	if s.archive == nil {
		return domain.LoadResult{}, archive.Entry{}, ErrNoArchive
	}
	records, entry, err := s.archive.Latest(ctx, category)
	if err != nil {
		return domain.LoadResult{}, archive.Entry{}, err
	}
	res, err := s.load(ctx, "insert_latest", category, records)
	return res, entry, err
}

// InsertArchived loads the archived batch stored at key.
func (s *Service) InsertArchived(ctx context.Context, key string) (domain.LoadResult, error) {
	if s.archive == nil {
		return domain.LoadResult{}, ErrNoArchive
	}
	records, err := s.archive.Get(ctx, key)
	if err != nil {
		return domain.LoadResult{}, err
	}
	return s.load(ctx, "insert_archived", key, records)
}

func (s *Service) load(ctx context.Context, op, label string, records []domain.RawRecord) (domain.LoadResult, error) {
	var res domain.LoadResult
	err := s.run(ctx, op, func(ctx context.Context) error {
		if s.store == nil {
			return ErrNoConnection
		}
		if err := s.store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		batch := transform.Transform(records)
		var err error
		res, err = s.store.Load(ctx, batch)
		if err != nil {
			return fmt.Errorf("load %s: %w", label, err)
		}
		if res.Dropped > 0 {
			s.logger.Warn("dropped rows without key", "source", label, "dropped", res.Dropped)
		}
		if pm := s.pipeline(); pm != nil {
			pm.RowsInserted(domain.TableMetadata, res.Metadata)
			pm.RowsInserted(domain.TableMedia, res.Media)
			pm.RowsInserted(domain.TableColors, res.Colors)
		}
		s.mu.Lock()
		loaded := res
		s.state.lastLoad = &loaded
		s.mu.Unlock()
		s.logger.Info("loaded", "source", label, "metadata", res.Metadata, "media", res.Media, "colors", res.Colors)
		return nil
	})
	return res, err
}

// Queries lists the catalog in display order.
func (s *Service) Queries() []catalog.Query {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.List()
}

// RunQuery executes catalog query id. Unknown ids fail with ErrUnknownQuery
// before any statement runs. A failing query yields an empty table and the
// error; a successful one becomes the session's last result.
func (s *Service) RunQuery(ctx context.Context, id string) (QueryResult, error) {
	res := QueryResult{Table: domain.Table{Columns: []string{}, Rows: []domain.Row{}}}
	err := s.run(ctx, "run_query", func(ctx context.Context) error {
		if s.catalog == nil {
			return fmt.Errorf("%w: %s", ErrUnknownQuery, id)
		}
		q, err := s.catalog.Lookup(id)
		if err != nil {
			return err
		}
		res.Query = q
		if s.store == nil {
			return ErrNoConnection
		}
		table, err := s.store.Query(ctx, q.SQL)
		if err != nil {
			return fmt.Errorf("query %s: %w", id, err)
		}
		res.Table = table
		s.mu.Lock()
		last := res
		s.state.lastQuery = &last
		s.mu.Unlock()
		return nil
	})
	return res, err
}

// LastResult returns the most recent successful query result.
func (s *Service) LastResult() (QueryResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.lastQuery == nil {
		return QueryResult{}, false
	}
	return *s.state.lastQuery, true
}

// Stats summarizes the session.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Category:    s.state.category,
		Collected:   len(s.state.records),
		CollectedAt: s.state.collectedAt,
	}
	if s.state.lastLoad != nil {
		load := *s.state.lastLoad
		st.LastLoad = &load
	}
	if s.state.lastQuery != nil {
		st.LastQueryID = s.state.lastQuery.Query.ID
	}
	return st
}

// Close releases the store.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
