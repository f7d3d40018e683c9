// Package blob selects and wraps the blob storage backends. It is the only
// package allowed to import internal/infra/blob.
package blob

import (
	"context"
	"fmt"

	"artifactcore/internal/blob/core"
	"artifactcore/internal/infra/blob/fs"
	"artifactcore/internal/infra/blob/memory"
	"artifactcore/internal/infra/blob/s3"
)

type (
	Store      = core.Store
	Driver     = core.Driver
	Info       = core.Info
	PutOptions = core.PutOptions
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrNotFound = core.ErrNotFound
	ErrExists   = core.ErrExists
)

// Config carries the backend selection and its parameters.
type Config struct {
	Driver Driver
	// FSRoot is the directory root when Driver is fs.
	FSRoot string
	S3     S3Config
}

// S3Config mirrors the s3 backend settings.
type S3Config = s3.Config

// Open returns the Store selected by cfg.Driver (default fs).
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewMemory returns an in-memory store for tests and ephemeral runs.
func NewMemory() Store { return memory.New() }
