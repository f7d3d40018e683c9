// Package config reads process settings from the environment, optionally
// seeded from a .env file.
//
//	ARTIFACTS_API_KEY            key for the remote catalog (required to collect)
//	ARTIFACTS_API_BASE_URL       default https://api.harvardartmuseums.org
//	ARTIFACTS_PAGE_DELAY         pause between pages (default 100ms)
//	ARTIFACTS_TARGET_RECORDS     records per collection (default 2500)
//	ARTIFACTS_HTTP_TIMEOUT       remote request timeout (default 30s)
//	ARTIFACTS_STORAGE_DRIVER     sqlite|postgres (default sqlite)
//	ARTIFACTS_SQLITE_PATH        sqlite file (default ./artifacts.db)
//	ARTIFACTS_POSTGRES_DSN       DSN when driver=postgres
//	ARTIFACTS_BLOB_DRIVER        fs|s3|memory (default fs)
//	ARTIFACTS_BLOB_FS_ROOT       directory when blob driver=fs (default ./blobdata)
//	ARTIFACTS_BLOB_S3_BUCKET     bucket when blob driver=s3
//	ARTIFACTS_BLOB_S3_REGION     default us-east-1
//	ARTIFACTS_BLOB_S3_ENDPOINT   custom endpoint, e.g. MinIO
//	ARTIFACTS_BLOB_S3_PATH_STYLE true|false
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN
//	ARTIFACTS_HTTP_ADDR          listen address for serve (default :8080)
//	ARTIFACTS_LOG_LEVEL          debug|info|warn|error (default info)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"artifactcore/internal/blob"
	"artifactcore/internal/collector"
	"artifactcore/pkg/domain"
)

// StorageDriver identifies a relational backend.
type StorageDriver string

const (
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
)

const (
	defaultSQLitePath  = "./artifacts.db"
	defaultHTTPTimeout = 30 * time.Second
	defaultHTTPAddr    = ":8080"
)

// Storage selects the relational store.
type Storage struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// API configures the remote catalog client.
type API struct {
	Key           string
	BaseURL       string
	PageDelay     time.Duration
	Timeout       time.Duration
	TargetRecords int
}

// Config is the full process configuration.
type Config struct {
	API      API
	Storage  Storage
	Blob     blob.Config
	HTTPAddr string
	LogLevel slog.Level
}

// Load reads the given .env files (".env" when none are named) into the
// process environment without overriding variables already set, then
// parses the environment. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv parses configuration through getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	var errs []error
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	duration := func(key string, def time.Duration) time.Duration {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
			return def
		}
		return d
	}

	cfg := Config{
		API: API{
			Key:       getenv("ARTIFACTS_API_KEY"),
			BaseURL:   get("ARTIFACTS_API_BASE_URL", collector.DefaultBaseURL),
			PageDelay: duration("ARTIFACTS_PAGE_DELAY", collector.DefaultPageDelay),
			Timeout:   duration("ARTIFACTS_HTTP_TIMEOUT", defaultHTTPTimeout),
		},
		Storage: Storage{
			Driver:      StorageDriver(strings.ToLower(get("ARTIFACTS_STORAGE_DRIVER", string(StorageSQLite)))),
			SQLitePath:  get("ARTIFACTS_SQLITE_PATH", defaultSQLitePath),
			PostgresDSN: getenv("ARTIFACTS_POSTGRES_DSN"),
		},
		Blob: blob.Config{
			Driver: blob.Driver(strings.ToLower(get("ARTIFACTS_BLOB_DRIVER", string(blob.DriverFilesystem)))),
			FSRoot: getenv("ARTIFACTS_BLOB_FS_ROOT"),
			S3: blob.S3Config{
				Bucket:          getenv("ARTIFACTS_BLOB_S3_BUCKET"),
				Region:          getenv("ARTIFACTS_BLOB_S3_REGION"),
				Endpoint:        getenv("ARTIFACTS_BLOB_S3_ENDPOINT"),
				PathStyle:       strings.EqualFold(getenv("ARTIFACTS_BLOB_S3_PATH_STYLE"), "true"),
				AccessKeyID:     getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    getenv("AWS_SESSION_TOKEN"),
			},
		},
		HTTPAddr: get("ARTIFACTS_HTTP_ADDR", defaultHTTPAddr),
	}

	cfg.API.TargetRecords = domain.DefaultTargetRecords
	if raw := get("ARTIFACTS_TARGET_RECORDS", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("ARTIFACTS_TARGET_RECORDS: invalid count %q", raw))
		} else {
			cfg.API.TargetRecords = n
		}
	}

	switch cfg.Storage.Driver {
	case StorageSQLite, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("ARTIFACTS_STORAGE_DRIVER: unknown driver %q", cfg.Storage.Driver))
	}
	switch cfg.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if cfg.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("ARTIFACTS_BLOB_S3_BUCKET required for s3 blob driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("ARTIFACTS_BLOB_DRIVER: unknown driver %q", cfg.Blob.Driver))
	}

	level, err := ParseLevel(get("ARTIFACTS_LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.LogLevel = level

	return cfg, errors.Join(errs...)
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("ARTIFACTS_LOG_LEVEL: %w", err)
	}
	return level, nil
}

// Collector returns the collector client settings. The key is passed
// separately so interactive surfaces can supply their own.
func (c Config) Collector(apiKey string) collector.Config {
	if apiKey == "" {
		apiKey = c.API.Key
	}
	return collector.Config{
		BaseURL:   c.API.BaseURL,
		APIKey:    apiKey,
		PageDelay: c.API.PageDelay,
		Timeout:   c.API.Timeout,
	}
}
