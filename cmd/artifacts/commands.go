package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"artifactcore/internal/adapters/httpapi"
	"artifactcore/internal/core"
	"artifactcore/internal/tui"
	"artifactcore/pkg/domain"
)

const shutdownTimeout = 10 * time.Second

func runCollect(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet("collect", env)
	category := fs.String("category", domain.Classifications[0], "classification to collect")
	target := fs.Int("target", env.cfg.API.TargetRecords, "number of records to collect")
	apiKey := fs.String("api-key", "", "API key (default $ARTIFACTS_API_KEY)")
	quiet := fs.Bool("quiet", false, "suppress the progress line")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	req := core.CollectRequest{APIKey: *apiKey, Category: *category, Target: *target}
	if !*quiet {
		req.Progress = func(f float64) {
			fmt.Fprintf(env.stderr, "\rcollecting %s %3.0f%%", *category, f*100)
		}
	}
	res, err := env.svc.Collect(ctx, req)
	if !*quiet {
		fmt.Fprintln(env.stderr)
	}
	if err != nil && res.Count == 0 {
		return err
	}
	fmt.Fprintf(env.stdout, "collected %d %s records\n", res.Count, res.Category)
	if res.Archive != nil {
		fmt.Fprintf(env.stdout, "archive: %s\n", res.Archive.Key)
	}
	return err
}

func runShow(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet("show", env)
	category := fs.String("category", "", "classification whose latest batch is shown")
	n := fs.Int("n", core.PreviewRows, "number of records")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireFlag(fs, "category", *category); err != nil {
		return err
	}
	table, entry, err := env.svc.PreviewLatest(ctx, *category, *n)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "%s: %d records collected %s\n\n", entry.Category, entry.Count, entry.SavedAt.Format(time.RFC3339))
	return writeTable(env.stdout, table)
}

func runLoad(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet("load", env)
	category := fs.String("category", "", "load the latest archived batch of this classification")
	key := fs.String("key", "", "load the archived batch stored at this key")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	var (
		res domain.LoadResult
		err error
	)
	switch {
	case *key != "":
		res, err = env.svc.InsertArchived(ctx, *key)
	case *category != "":
		res, _, err = env.svc.InsertLatest(ctx, *category)
	default:
		fmt.Fprintln(env.stderr, "-category or -key is required")
		fs.Usage()
		return errUsage
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "inserted %d metadata, %d media, %d color rows\n", res.Metadata, res.Media, res.Colors)
	if res.Dropped > 0 {
		fmt.Fprintf(env.stdout, "skipped %d rows without key\n", res.Dropped)
	}
	return nil
}

func runQueries(_ context.Context, env *environment, args []string) error {
	fs := newFlagSet("queries", env)
	showSQL := fs.Bool("sql", false, "print each statement")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return writeCatalog(env.stdout, env.svc.Queries(), *showSQL)
}

func runQuery(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet("query", env)
	id := fs.String("id", "", "catalog query id")
	withChart := fs.Bool("chart", false, "draw a bar chart of the first rows")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireFlag(fs, "id", *id); err != nil {
		return err
	}
	res, err := env.svc.RunQuery(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "%s. %s\n\n", res.Query.ID, res.Query.Title)
	if err := writeTable(env.stdout, res.Table); err != nil {
		return err
	}
	if *withChart {
		return writeChart(env.stdout, res.Table, chartWidth)
	}
	return nil
}

func runServe(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet("serve", env)
	addr := fs.String("addr", env.cfg.HTTPAddr, "listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	router := httpapi.NewRouter(env.svc, httpapi.Options{Logger: env.logger, Metrics: env.metrics.Registry()})
	srv := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		env.logger.Info("listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	env.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func runTUI(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet("tui", env)
	apiKey := fs.String("api-key", env.cfg.API.Key, "API key")
	target := fs.Int("target", env.cfg.API.TargetRecords, "records per collection")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return tui.Start(ctx, env.svc, tui.Options{APIKey: *apiKey, Target: *target})
}
