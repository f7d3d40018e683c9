package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"artifactcore/internal/config"
	"artifactcore/internal/infra/persistence/postgres"
	"artifactcore/internal/infra/persistence/sqlite"
	"artifactcore/internal/infra/persistence/sqlstore"
	"artifactcore/pkg/domain"
)

type (
	ArtifactStore = domain.ArtifactStore
	LoadResult    = domain.LoadResult
	Table         = domain.Table
)

var (
	// ErrNoConnection is returned when no database connection can be acquired.
	ErrNoConnection = sqlstore.ErrNoConnection
)

// OpenStore selects the relational backend named by cfg.Driver (default
// sqlite) and opens it.
func OpenStore(ctx context.Context, cfg config.Storage) (ArtifactStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.StorageSQLite
	}
	var (
		store *sqlstore.Store
		err   error
	)
	switch driver {
	case config.StorageSQLite:
		store, err = sqlite.NewStore(cfg.SQLitePath)
	case config.StoragePostgres:
		store, err = postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// LazyStore defers OpenStore until the first store operation so that callers
// which never touch the database keep working without one. A failed open is
// reported as ErrNoConnection by that operation and retried on the next.
func LazyStore(cfg config.Storage) ArtifactStore {
	return &lazyStore{open: func(ctx context.Context) (ArtifactStore, error) {
		return OpenStore(ctx, cfg)
	}}
}

type lazyStore struct {
	open func(context.Context) (ArtifactStore, error)

	mu    sync.Mutex
	store ArtifactStore
}

func (l *lazyStore) get(ctx context.Context) (ArtifactStore, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}
	store, err := l.open(ctx)
	if err != nil {
		if errors.Is(err, ErrNoConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	l.store = store
	return store, nil
}

func (l *lazyStore) EnsureSchema(ctx context.Context) error {
	store, err := l.get(ctx)
	if err != nil {
		return err
	}
	return store.EnsureSchema(ctx)
}

func (l *lazyStore) Load(ctx context.Context, batch domain.Batch) (LoadResult, error) {
	store, err := l.get(ctx)
	if err != nil {
		return LoadResult{}, err
	}
	return store.Load(ctx, batch)
}

func (l *lazyStore) Query(ctx context.Context, query string) (Table, error) {
	store, err := l.get(ctx)
	if err != nil {
		return Table{Columns: []string{}, Rows: []domain.Row{}}, err
	}
	return store.Query(ctx, query)
}

func (l *lazyStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}
