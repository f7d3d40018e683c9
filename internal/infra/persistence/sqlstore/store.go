// Package sqlstore implements the artifact store on top of database/sql. The
// engine-specific packages (sqlite, postgres) open the handle and pick a Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"artifactcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.ArtifactStore = (*Store)(nil)

// ErrNoConnection is returned when the store has no usable database handle.
var ErrNoConnection = errors.New("sqlstore: no database connection")

// Store persists artifact rows. Each operation acquires a dedicated connection
// from the pool and releases it before returning.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open handle.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the engine dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) acquire(ctx context.Context) (*sql.Conn, error) {
	if s == nil || s.db == nil {
		return nil, ErrNoConnection
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	return conn, nil
}

// EnsureSchema creates the artifact tables and their indexes when absent. It
// is safe to call repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	for _, stmt := range SplitStatements(s.dialect.DDL()) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// Load inserts the batch inside one transaction: metadata, then media, then
// colors. Rows whose key already exists are skipped. Rows with a null key
// are dropped before insertion and counted in LoadResult.Dropped. Any store
// error rolls back the whole batch.
func (s *Store) Load(ctx context.Context, batch domain.Batch) (res domain.LoadResult, retErr error) {
	metadata, media, colors, dropped := rowsFor(batch)
	res.Dropped = dropped
	if len(metadata) == 0 && len(media) == 0 && len(colors) == 0 {
		return res, nil
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return res, err
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if res.Metadata, err = s.insert(ctx, tx, domain.TableMetadata, domain.MetadataColumns, metadata); err != nil {
		return domain.LoadResult{Dropped: dropped}, err
	}
	if res.Media, err = s.insert(ctx, tx, domain.TableMedia, domain.MediaColumns, media); err != nil {
		return domain.LoadResult{Dropped: dropped}, err
	}
	if res.Colors, err = s.insert(ctx, tx, domain.TableColors, domain.ColorColumns, colors); err != nil {
		return domain.LoadResult{Dropped: dropped}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.LoadResult{Dropped: dropped}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return res, nil
}

func (s *Store) insert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	per := s.dialect.RowsPerStatement(len(columns))
	var inserted int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		chunk := rows[start:end]
		args := make([]any, 0, len(chunk)*len(columns))
		for _, row := range chunk {
			args = append(args, row...)
		}
		result, err := tx.ExecContext(ctx, s.dialect.InsertIgnore(table, columns, len(chunk)), args...)
		if err != nil {
			return inserted, fmt.Errorf("insert %s: %w", table, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += n
		}
	}
	return inserted, nil
}

// Query runs a read-only statement on its own connection and materializes
// every row. The connection is released even when the query fails.
func (s *Store) Query(ctx context.Context, query string) (domain.Table, error) {
	empty := domain.Table{Columns: []string{}, Rows: []domain.Row{}}
	conn, err := s.acquire(ctx)
	if err != nil {
		return empty, err
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, s.dialect.Rewrite(query))
	if err != nil {
		return empty, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return empty, fmt.Errorf("columns: %w", err)
	}
	table := domain.Table{Columns: columns, Rows: []domain.Row{}}
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return empty, fmt.Errorf("scan: %w", err)
		}
		row := make(domain.Row, len(columns))
		for i, col := range columns {
			row[col] = normalize(vals[i])
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("iterate rows: %w", err)
	}
	return table, nil
}

// Sanitize maps values that strict column types cannot hold (NaN, ±Inf, nil
// pointers) to NULL and passes everything else through.
func Sanitize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
	case *float64:
		if x == nil {
			return nil
		}
		return Sanitize(*x)
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}

func sanitizeRow(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = Sanitize(v)
	}
	return out
}

// rowsFor sanitizes every row and drops rows whose key column is null, since
// a null key can neither be deduplicated nor referenced.
func rowsFor(batch domain.Batch) (metadata, media, colors [][]any, dropped int) {
	for _, m := range batch.Metadata {
		row := sanitizeRow(m.Values())
		if row[0] == nil {
			dropped++
			continue
		}
		metadata = append(metadata, row)
	}
	for _, m := range batch.Media {
		row := sanitizeRow(m.Values())
		if row[0] == nil {
			dropped++
			continue
		}
		media = append(media, row)
	}
	for _, c := range batch.Colors {
		row := sanitizeRow(c.Values())
		if row[0] == nil {
			dropped++
			continue
		}
		colors = append(colors, row)
	}
	return metadata, media, colors, dropped
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
