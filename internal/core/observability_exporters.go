package core

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// PrometheusMetricsRecorder exports service metrics through a dedicated
// Prometheus registry. It implements MetricsRecorder and PipelineMetrics.
type PrometheusMetricsRecorder struct {
	registry  *prometheus.Registry
	durations *prometheus.HistogramVec
	pages     *prometheus.CounterVec
	records   *prometheus.CounterVec
	rows      *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder builds a recorder on a fresh registry that
// also carries the Go runtime and process collectors.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	reg := prometheus.NewRegistry()
	r := &PrometheusMetricsRecorder{
		registry: reg,
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "artifacts_operation_duration_seconds",
			Help:    "Latency of service operations by outcome.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"operation", "status"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artifacts_pages_fetched_total",
			Help: "Remote API page requests by outcome.",
		}, []string{"category", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artifacts_records_collected_total",
			Help: "Raw records collected per classification.",
		}, []string{"category"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artifacts_rows_inserted_total",
			Help: "Rows accepted by the relational store per table.",
		}, []string{"table"}),
	}
	reg.MustRegister(
		r.durations, r.pages, r.records, r.rows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry to expose, e.g. through promhttp.
func (r *PrometheusMetricsRecorder) Registry() *prometheus.Registry { return r.registry }

// Observe records a service operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// PageFetched counts one remote page request; err is the request outcome.
func (r *PrometheusMetricsRecorder) PageFetched(category string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.pages.WithLabelValues(category, status).Inc()
}

// RecordsCollected adds n collected records for category.
func (r *PrometheusMetricsRecorder) RecordsCollected(category string, n int) {
	if n > 0 {
		r.records.WithLabelValues(category).Add(float64(n))
	}
}

// RowsInserted adds n inserted rows for table.
func (r *PrometheusMetricsRecorder) RowsInserted(table string, n int64) {
	if n > 0 {
		r.rows.WithLabelValues(table).Add(float64(n))
	}
}

// JSONTraceEntry represents a serialized trace span emitted by JSONTraceTracer.
type JSONTraceEntry struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer serializes spans to a writer as JSON lines and retains
// them for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	seq     uint64
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer constructs a tracer that writes spans to w. A nil writer
// only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &JSONTraceTracer{enc: enc}
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	t.mu.Lock()
	t.seq++
	id := strconv.FormatUint(t.seq, 10)
	t.mu.Unlock()
	return ctx, &jsonTraceSpan{tracer: t, id: id, operation: operation, started: time.Now().UTC()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	id        string
	operation string
	started   time.Time
	once      sync.Once
}

func (s *jsonTraceSpan) End(err error) {
	s.once.Do(func() {
		status := "success"
		var errMsg string
		if err != nil {
			status = "error"
			errMsg = err.Error()
		}
		ended := time.Now().UTC()
		entry := JSONTraceEntry{
			ID:         s.id,
			Operation:  s.operation,
			Status:     status,
			DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
			Error:      errMsg,
			StartedAt:  s.started,
			EndedAt:    ended,
		}
		s.tracer.mu.Lock()
		s.tracer.entries = append(s.tracer.entries, entry)
		if s.tracer.enc != nil {
			_ = s.tracer.enc.Encode(entry)
		}
		s.tracer.mu.Unlock()
	})
}
