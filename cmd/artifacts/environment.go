package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"artifactcore/internal/archive"
	"artifactcore/internal/blob"
	"artifactcore/internal/catalog"
	"artifactcore/internal/collector"
	"artifactcore/internal/config"
	"artifactcore/internal/core"
)

// environment is the wired process: configuration, logger, and service.
type environment struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *core.PrometheusMetricsRecorder
	svc     *core.Service
	stdout  io.Writer
	stderr  io.Writer
}

func newEnvironment(ctx context.Context, g globalFlags, stdout, stderr io.Writer) (*environment, error) {
	cfg, err := config.Load(g.envFile)
	if err != nil {
		return nil, err
	}
	logger := newLogger(stderr, cfg.LogLevel, g.logJSON)

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	cat, err := catalog.Default()
	if err != nil {
		return nil, err
	}
	metrics := core.NewPrometheusMetricsRecorder()
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithArchive(archive.New(blobs)),
	}
	if g.trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(stderr)))
	}
	newCollector := func(apiKey string) core.Collector {
		cc := cfg.Collector(apiKey)
		cc.OnFetch = func(category string, page int, err error) {
			metrics.PageFetched(category, err)
			if err != nil {
				logger.Debug("page request failed", "category", category, "page", page, "error", err)
			}
		}
		return collector.New(cc)
	}
	logger.Debug("environment ready",
		"storage", cfg.Storage.Driver,
		"blob", blobs.Driver(),
		"queries", len(cat.List()),
	)
	return &environment{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		svc:     core.NewService(core.LazyStore(cfg.Storage), cat, newCollector, opts...),
		stdout:  stdout,
		stderr:  stderr,
	}, nil
}

func newLogger(w io.Writer, level slog.Level, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (e *environment) Close() {
	if err := e.svc.Close(); err != nil {
		e.logger.Warn("close store", "error", err)
	}
}
