package domain

import "context"

// LoadResult reports how many rows each table actually accepted. Rows skipped
// as duplicates are not counted.
type LoadResult struct {
	Metadata int64 `json:"metadata"`
	Media    int64 `json:"media"`
	Colors   int64 `json:"colors"`
	// Dropped counts rows discarded before insertion because their key was null.
	Dropped int `json:"dropped"`
}

// Total returns the number of inserted rows across all tables.
func (r LoadResult) Total() int64 { return r.Metadata + r.Media + r.Colors }

// ArtifactStore is the relational backend used by the pipeline and the query
// catalog. Every method acquires its own connection and releases it before
// returning.
type ArtifactStore interface {
	// EnsureSchema creates the artifact tables if they are missing.
	EnsureSchema(ctx context.Context) error
	// Load inserts the batch, skipping rows whose key already exists.
	Load(ctx context.Context, batch Batch) (LoadResult, error)
	// Query executes a read-only statement and materializes every row.
	Query(ctx context.Context, query string) (Table, error)
	// Close releases the underlying handle.
	Close() error
}
