package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"artifactcore/internal/archive"
	"artifactcore/internal/catalog"
	"artifactcore/internal/collector"
	"artifactcore/internal/core"
	"artifactcore/pkg/domain"
)

func init() { gin.SetMode(gin.TestMode) }

type fakePipeline struct {
	collectReq  core.CollectRequest
	collectErr  error
	partial     int
	latestCat   string
	latestErr   error
	archivedKey string
	queryErr    error
	table       domain.Table
}

func (f *fakePipeline) Collect(_ context.Context, req core.CollectRequest) (core.CollectResult, error) {
	f.collectReq = req
	if f.collectErr != nil {
		if f.partial > 0 {
			return core.CollectResult{Category: req.Category, Count: f.partial, Archive: &archive.Entry{Key: "raw/Coins/p.json"}}, f.collectErr
		}
		return core.CollectResult{}, f.collectErr
	}
	return core.CollectResult{Category: req.Category, Count: 250, Archive: &archive.Entry{Key: "raw/Coins/x.json"}}, nil
}

func (f *fakePipeline) InsertLatest(_ context.Context, category string) (domain.LoadResult, archive.Entry, error) {
	f.latestCat = category
	if f.latestErr != nil {
		return domain.LoadResult{}, archive.Entry{}, f.latestErr
	}
	return domain.LoadResult{Metadata: 250, Media: 250, Colors: 900}, archive.Entry{Key: "raw/" + category + "/latest.json"}, nil
}

func (f *fakePipeline) InsertArchived(_ context.Context, key string) (domain.LoadResult, error) {
	f.archivedKey = key
	return domain.LoadResult{Metadata: 1}, nil
}

func (f *fakePipeline) Queries() []catalog.Query {
	return []catalog.Query{{ID: "1", Title: "Byzantine artifacts", SQL: "SELECT 1"}}
}

func (f *fakePipeline) RunQuery(_ context.Context, id string) (core.QueryResult, error) {
	if id != "1" {
		return core.QueryResult{}, catalog.ErrUnknownQuery
	}
	if f.queryErr != nil {
		return core.QueryResult{}, f.queryErr
	}
	return core.QueryResult{Query: catalog.Query{ID: "1", Title: "Byzantine artifacts"}, Table: f.table}, nil
}

func (f *fakePipeline) Stats() core.Stats {
	return core.Stats{Category: "Coins", Collected: 250}
}

func do(t *testing.T, router http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func sampleTable() domain.Table {
	return domain.Table{
		Columns: []string{"culture", "n"},
		Rows: []domain.Row{
			{"culture": "Byzantine", "n": int64(4)},
			{"culture": nil, "n": int64(2)},
		},
	}
}

func TestHealthAndClassifications(t *testing.T) {
	router := NewRouter(&fakePipeline{}, Options{})
	if rec := do(t, router, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	rec := do(t, router, http.MethodGet, "/classifications", "")
	var body struct {
		Classifications []string `json:"classifications"`
		DefaultTarget   int      `json:"default_target"`
	}
	decode(t, rec, &body)
	if len(body.Classifications) != 5 || body.DefaultTarget != 2500 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRunQueryJSONIncludesChart(t *testing.T) {
	router := NewRouter(&fakePipeline{table: sampleTable()}, Options{})
	rec := do(t, router, http.MethodGet, "/queries/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		ID      string   `json:"id"`
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
		Chart   *struct {
			XAxis  string `json:"x_axis"`
			Points []struct {
				Label string  `json:"label"`
				Value float64 `json:"value"`
			} `json:"points"`
		} `json:"chart"`
	}
	decode(t, rec, &body)
	if body.ID != "1" || len(body.Rows) != 2 || body.Rows[1][0] != nil {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Chart == nil || body.Chart.XAxis != "culture" || len(body.Chart.Points) != 2 || body.Chart.Points[0].Value != 4 {
		t.Fatalf("unexpected chart %+v", body.Chart)
	}
}

func TestRunQueryWithoutChartableResult(t *testing.T) {
	table := domain.Table{Columns: []string{"n"}, Rows: []domain.Row{{"n": int64(2)}}}
	rec := do(t, NewRouter(&fakePipeline{table: table}, Options{}), http.MethodGet, "/queries/1", "")
	if !strings.Contains(rec.Body.String(), `"chart":null`) {
		t.Fatalf("expected null chart, got %s", rec.Body.String())
	}
}

func TestRunQueryCSV(t *testing.T) {
	router := NewRouter(&fakePipeline{table: sampleTable()}, Options{})
	for _, rec := range []*httptest.ResponseRecorder{
		do(t, router, http.MethodGet, "/queries/1?format=csv", ""),
		do(t, router, http.MethodGet, "/queries/1", "", "Accept", "text/csv"),
	} {
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/csv" {
			t.Fatalf("unexpected response %d %s", rec.Code, rec.Header().Get("Content-Type"))
		}
		if got := rec.Body.String(); got != "culture,n\nByzantine,4\n,2\n" {
			t.Fatalf("unexpected csv %q", got)
		}
	}
	if rec := do(t, router, http.MethodGet, "/queries/1?format=xml", ""); rec.Code != http.StatusNotAcceptable {
		t.Fatalf("expected 406, got %d", rec.Code)
	}
}

func TestRunQueryErrors(t *testing.T) {
	router := NewRouter(&fakePipeline{queryErr: errors.New("no such table: artifactmedia")}, Options{})
	rec := do(t, router, http.MethodGet, "/queries/42", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = do(t, router, http.MethodGet, "/queries/1", "")
	var body map[string]string
	decode(t, rec, &body)
	if rec.Code != http.StatusInternalServerError || !strings.Contains(body["error"], "no such table") {
		t.Fatalf("expected 500 with message, got %d %v", rec.Code, body)
	}
}

func TestListQueries(t *testing.T) {
	rec := do(t, NewRouter(&fakePipeline{}, Options{}), http.MethodGet, "/queries", "")
	var body []catalog.Query
	decode(t, rec, &body)
	if len(body) != 1 || body[0].SQL != "SELECT 1" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestCollect(t *testing.T) {
	fp := &fakePipeline{}
	router := NewRouter(fp, Options{})
	rec := do(t, router, http.MethodPost, "/collections", `{"category":"Coins","target":250,"api_key":"k"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body collectResponse
	decode(t, rec, &body)
	if body.Count != 250 || body.ArchiveKey != "raw/Coins/x.json" {
		t.Fatalf("unexpected body %+v", body)
	}
	if fp.collectReq.Target != 250 || fp.collectReq.APIKey != "k" {
		t.Fatalf("unexpected request %+v", fp.collectReq)
	}
	if rec := do(t, router, http.MethodPost, "/collections", `{"target":5}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing category, got %d", rec.Code)
	}
	fp.collectErr = errors.New("disk full")
	if rec := do(t, router, http.MethodPost, "/collections", `{"category":"Coins"}`); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestCollectErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{core.ErrCategoryRequired, http.StatusBadRequest},
		{collector.ErrMissingAPIKey, http.StatusBadRequest},
		{fmt.Errorf("collect Coins after 0 records: %w: page 1: 401 Unauthorized", collector.ErrStatus), http.StatusBadGateway},
		{fmt.Errorf("collect Coins after 0 records: %w", collector.ErrDecode), http.StatusBadGateway},
	}
	for _, tc := range cases {
		fp := &fakePipeline{collectErr: tc.err}
		rec := do(t, NewRouter(fp, Options{}), http.MethodPost, "/collections", `{"category":"  "}`)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestCollectReportsPartialBatch(t *testing.T) {
	fp := &fakePipeline{partial: 2, collectErr: fmt.Errorf("collect Coins after 2 records: %w: page 3: 502 Bad Gateway", collector.ErrStatus)}
	rec := do(t, NewRouter(fp, Options{}), http.MethodPost, "/collections", `{"category":"Coins","target":250}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var body collectResponse
	decode(t, rec, &body)
	if body.Count != 2 || body.ArchiveKey != "raw/Coins/p.json" || !strings.Contains(body.Error, "after 2 records") {
		t.Fatalf("expected partial batch in body, got %+v", body)
	}
}

func TestLoad(t *testing.T) {
	fp := &fakePipeline{}
	router := NewRouter(fp, Options{})
	rec := do(t, router, http.MethodPost, "/loads", `{"category":"Coins"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Metadata   int64  `json:"metadata"`
		Colors     int64  `json:"colors"`
		ArchiveKey string `json:"archive_key"`
	}
	decode(t, rec, &body)
	if body.Metadata != 250 || body.Colors != 900 || body.ArchiveKey != "raw/Coins/latest.json" {
		t.Fatalf("unexpected body %+v", body)
	}
	if rec := do(t, router, http.MethodPost, "/loads", `{"key":"raw/Coins/a.json"}`); rec.Code != http.StatusCreated || fp.archivedKey != "raw/Coins/a.json" {
		t.Fatalf("expected load by key, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/loads", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	fp.latestErr = archive.ErrEmpty
	if rec := do(t, router, http.MethodPost, "/loads", `{"category":"Drawings"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	fp.latestErr = core.ErrNoConnection
	if rec := do(t, router, http.MethodPost, "/loads", `{"category":"Drawings"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStatsRequestIDAndUnknownRoute(t *testing.T) {
	var logs bytes.Buffer
	router := NewRouter(&fakePipeline{}, Options{Logger: slog.New(slog.NewJSONHandler(&logs, nil))})
	rec := do(t, router, http.MethodGet, "/stats", "", "X-Request-ID", "req-1")
	var st core.Stats
	decode(t, rec, &st)
	if st.Collected != 250 || rec.Header().Get("X-Request-ID") != "req-1" {
		t.Fatalf("unexpected stats %+v / %s", st, rec.Header().Get("X-Request-ID"))
	}
	if !strings.Contains(logs.String(), `"request_id":"req-1"`) {
		t.Fatalf("expected access log with request id, got %s", logs.String())
	}
	rec = do(t, router, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound || rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected 404 with generated request id, got %d", rec.Code)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	rec := do(t, NewRouter(&fakePipeline{}, Options{}), http.MethodGet, "/openapi.yaml", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/yaml" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "/queries/{id}:") {
		t.Fatalf("expected route documentation")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := core.NewPrometheusMetricsRecorder()
	rec.PageFetched("Coins", nil)
	router := NewRouter(&fakePipeline{}, Options{Metrics: rec.Registry()})
	resp := do(t, router, http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `artifacts_pages_fetched_total{category="Coins",status="ok"} 1`) {
		t.Fatalf("unexpected metrics response %d", resp.Code)
	}
	if resp := do(t, NewRouter(&fakePipeline{}, Options{}), http.MethodGet, "/metrics", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected no metrics route without registry, got %d", resp.Code)
	}
}
