// Package httpapi exposes the artifact pipeline and query catalog over HTTP.
package httpapi

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"artifactcore/internal/archive"
	"artifactcore/internal/catalog"
	"artifactcore/internal/chart"
	"artifactcore/internal/collector"
	"artifactcore/internal/core"
	"artifactcore/pkg/domain"
)

// Pipeline is the service surface the handlers use.
type Pipeline interface {
	Collect(ctx context.Context, req core.CollectRequest) (core.CollectResult, error)
	InsertLatest(ctx context.Context, category string) (domain.LoadResult, archive.Entry, error)
	InsertArchived(ctx context.Context, key string) (domain.LoadResult, error)
	Queries() []catalog.Query
	RunQuery(ctx context.Context, id string) (core.QueryResult, error)
	Stats() core.Stats
}

// Handler serves the JSON endpoints.
type Handler struct {
	svc Pipeline
}

// NewHandler constructs a Handler over svc.
func NewHandler(svc Pipeline) *Handler {
	return &Handler{svc: svc}
}

type collectRequest struct {
	Category string `json:"category" binding:"required"`
	Target   int    `json:"target" binding:"gte=0"`
	APIKey   string `json:"api_key"`
}

// collectResponse carries Error when the collection stopped early with a
// partial batch.
type collectResponse struct {
	Category   string `json:"category"`
	Count      int    `json:"count"`
	ArchiveKey string `json:"archive_key,omitempty"`
	Error      string `json:"error,omitempty"`
}

type loadRequest struct {
	Category string `json:"category"`
	Key      string `json:"key"`
}

type loadResponse struct {
	domain.LoadResult
	ArchiveKey string `json:"archive_key"`
}

type queryResponse struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]any    `json:"rows"`
	Chart   *chart.Bar `json:"chart"`
}

// Health answers liveness probes.
func (h *Handler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Classifications lists the categories offered for collection.
func (h *Handler) Classifications(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"classifications": domain.Classifications, "default_target": domain.DefaultTargetRecords})
}

// ListQueries returns the catalog in display order.
func (h *Handler) ListQueries(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.svc.Queries())
}

// RunQuery executes one catalog query. The result is JSON unless CSV is
// requested through ?format=csv or the Accept header.
func (h *Handler) RunQuery(ctx *gin.Context) {
	id := ctx.Param("id")
	format := negotiateFormat(ctx.Request)
	if format == "" {
		writeError(ctx, http.StatusNotAcceptable, "unsupported format")
		return
	}
	res, err := h.svc.RunQuery(ctx.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrUnknownQuery) {
			status = http.StatusNotFound
		}
		writeError(ctx, status, err.Error())
		return
	}
	if format == formatCSV {
		streamCSV(ctx, res)
		return
	}
	ctx.JSON(http.StatusOK, queryResponse{
		ID:      res.Query.ID,
		Title:   res.Query.Title,
		Columns: res.Table.Columns,
		Rows:    res.Table.Records(),
		Chart:   chart.BuildBar(res.Table),
	})
}

// Collect runs a collection and archives the batch.
func (h *Handler) Collect(ctx *gin.Context) {
	var req collectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Collect(ctx.Request.Context(), core.CollectRequest{
		APIKey:   req.APIKey,
		Category: req.Category,
		Target:   req.Target,
	})
	out := collectResponse{Category: res.Category, Count: res.Count}
	if res.Archive != nil {
		out.ArchiveKey = res.Archive.Key
	}
	switch {
	case err != nil && res.Count > 0:
		out.Error = err.Error()
		ctx.AbortWithStatusJSON(statusFor(err), out)
	case err != nil:
		writeError(ctx, statusFor(err), err.Error())
	default:
		ctx.JSON(http.StatusCreated, out)
	}
}

// Load inserts an archived batch: the one at key when given, otherwise the
// latest of category.
func (h *Handler) Load(ctx *gin.Context) {
	var req loadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	var (
		res domain.LoadResult
		key = req.Key
		err error
	)
	switch {
	case key != "":
		res, err = h.svc.InsertArchived(ctx.Request.Context(), key)
	case strings.TrimSpace(req.Category) != "":
		var entry archive.Entry
		res, entry, err = h.svc.InsertLatest(ctx.Request.Context(), req.Category)
		key = entry.Key
	default:
		writeError(ctx, http.StatusBadRequest, "category or key required")
		return
	}
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	ctx.JSON(http.StatusCreated, loadResponse{LoadResult: res, ArchiveKey: key})
}

// Stats returns the session summary.
func (h *Handler) Stats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.svc.Stats())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrCategoryRequired), errors.Is(err, collector.ErrMissingAPIKey):
		return http.StatusBadRequest
	case errors.Is(err, collector.ErrStatus), errors.Is(err, collector.ErrDecode):
		return http.StatusBadGateway
	case errors.Is(err, archive.ErrEmpty), errors.Is(err, core.ErrUnknownQuery):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNoArchive), errors.Is(err, core.ErrNoConnection):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

func negotiateFormat(r *http.Request) string {
	wanted := strings.ToLower(r.URL.Query().Get("format"))
	if wanted == "" {
		if strings.Contains(r.Header.Get("Accept"), "text/csv") {
			return formatCSV
		}
		return formatJSON
	}
	switch wanted {
	case formatCSV, formatJSON:
		return wanted
	}
	return ""
}

func streamCSV(ctx *gin.Context, res core.QueryResult) {
	filename := fmt.Sprintf("query-%s-%s.csv", res.Query.ID, time.Now().UTC().Format("20060102T150405Z"))
	ctx.Header("Content-Type", "text/csv")
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Status(http.StatusOK)
	writer := csv.NewWriter(ctx.Writer)
	defer writer.Flush()
	if err := writer.Write(res.Table.Columns); err != nil {
		return
	}
	for _, row := range res.Table.Records() {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = domain.FormatValue(v)
		}
		if err := writer.Write(record); err != nil {
			return
		}
	}
}

func writeError(ctx *gin.Context, status int, message string) {
	ctx.AbortWithStatusJSON(status, gin.H{"error": message})
}
