package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"artifactcore/internal/config"
	"artifactcore/internal/infra/persistence/postgres"
	"artifactcore/internal/infra/persistence/postgres/testutil"
	"artifactcore/pkg/domain"
)

func TestOpenStoreSQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, config.Storage{SQLitePath: filepath.Join(t.TempDir(), "artifacts.db")})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	svc := NewService(store, mustCatalog(t), factory(fakeCollector{records: []domain.RawRecord{
		vase(),
		{"id": json.Number("43"), "title": "Bowl", "colors": []any{}},
	}}))
	defer func() { _ = svc.Close() }()

	if _, err := svc.Collect(ctx, CollectRequest{Category: "Coins", Target: 10}); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	first, err := svc.Insert(ctx)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first.Metadata != 2 || first.Media != 2 || first.Colors != 2 {
		t.Fatalf("unexpected first load %+v", first)
	}
	again, err := svc.Insert(ctx)
	if err != nil {
		t.Fatalf("second Insert: %v", err)
	}
	if again.Total() != 0 {
		t.Fatalf("expected re-run to be a no-op, got %+v", again)
	}

	res, err := svc.RunQuery(ctx, "10")
	if err != nil {
		t.Fatalf("RunQuery: %v", err)
	}
	if res.Table.Len() != 1 {
		t.Fatalf("expected one row, got %+v", res.Table)
	}
	col := res.Table.Columns[0]
	if got := res.Table.Value(0, col); got != int64(2) {
		t.Fatalf("expected 2 artifacts without media, got %#v", got)
	}
}

func TestOpenStorePostgresUsesDSN(t *testing.T) {
	db, _ := testutil.NewStubDB()
	var gotDSN string
	restore := postgres.OverrideSQLOpen(func(_, dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return db, nil
	})
	defer restore()
	store, err := OpenStore(context.Background(), config.Storage{Driver: config.StoragePostgres, PostgresDSN: "postgres://db/artifacts"})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	if gotDSN != "postgres://db/artifacts" {
		t.Fatalf("expected configured dsn, got %q", gotDSN)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	store, err := OpenStore(context.Background(), config.Storage{Driver: "mysql"})
	if err == nil || store != nil {
		t.Fatalf("expected unknown driver error, got %v %v", store, err)
	}
}

func TestLazyStoreOpensOnFirstUse(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	conn.Columns = []string{"n"}
	opens := 0
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		opens++
		return db, nil
	})
	defer restore()

	store := LazyStore(config.Storage{Driver: config.StoragePostgres, PostgresDSN: "postgres://db/artifacts"})
	if opens != 0 {
		t.Fatalf("expected no connection before the first operation")
	}
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if _, err := store.Query(ctx, "SELECT 1"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if opens != 1 {
		t.Fatalf("expected one open, got %d", opens)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLazyStoreReportsNoConnectionAndRetries(t *testing.T) {
	ctx := context.Background()
	db, _ := testutil.NewStubDB()
	fail := true
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return db, nil
	})
	defer restore()

	store := LazyStore(config.Storage{Driver: config.StoragePostgres})
	if err := store.Close(); err != nil {
		t.Fatalf("closing an unopened store: %v", err)
	}
	table, err := store.Query(ctx, "SELECT 1")
	if !errors.Is(err, ErrNoConnection) || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected ErrNoConnection with cause, got %v", err)
	}
	if table.Columns == nil || table.Rows == nil {
		t.Fatalf("expected a non-nil empty table")
	}
	if _, err := store.Load(ctx, domain.Batch{}); !errors.Is(err, ErrNoConnection) {
		t.Fatalf("expected ErrNoConnection from Load, got %v", err)
	}

	fail = false
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("expected the next operation to reconnect, got %v", err)
	}
	_ = store.Close()
}
