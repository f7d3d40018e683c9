package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"artifactcore/docs/schema/openapi"
)

const requestIDHeader = "X-Request-ID"

// Options tunes the router.
type Options struct {
	// Logger receives one line per request; nil disables request logging.
	Logger *slog.Logger
	// Metrics is exposed on /metrics when set.
	Metrics prometheus.Gatherer
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Pipeline, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID())
	if opts.Logger != nil {
		router.Use(accessLog(opts.Logger))
	}
	SetupRoutes(router, NewHandler(svc))
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{})))
	}
	router.NoRoute(func(ctx *gin.Context) {
		writeError(ctx, http.StatusNotFound, "route not found")
	})
	return router
}

// SetupRoutes registers the pipeline and catalog endpoints.
func SetupRoutes(router *gin.Engine, h *Handler) {
	router.GET("/healthz", h.Health)
	router.GET("/openapi.yaml", serveSpec)
	router.GET("/classifications", h.Classifications)
	router.GET("/stats", h.Stats)

	queries := router.Group("/queries")
	{
		queries.GET("", h.ListQueries)
		queries.GET("/:id", h.RunQuery)
	}

	router.POST("/collections", h.Collect)
	router.POST("/loads", h.Load)
}

func requestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set("request_id", id)
		ctx.Header(requestIDHeader, id)
		ctx.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		logger.Info("http request",
			"method", ctx.Request.Method,
			"path", ctx.FullPath(),
			"status", ctx.Writer.Status(),
			"duration", time.Since(start),
			"request_id", ctx.GetString("request_id"),
		)
	}
}

func serveSpec(ctx *gin.Context) {
	ctx.Data(http.StatusOK, "application/yaml", openapi.Spec())
}
