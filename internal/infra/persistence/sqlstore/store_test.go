package sqlstore

import (
	"context"
	"errors"
	"math"
	"testing"

	"artifactcore/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

func TestSanitize(t *testing.T) {
	var nilFloat *float64
	var nilInt *int64
	var nilString *string
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"nan", math.NaN(), nil},
		{"+inf", math.Inf(1), nil},
		{"-inf", math.Inf(-1), nil},
		{"float32 nan", float32(math.NaN()), nil},
		{"finite", 0.25, 0.25},
		{"int", int64(3), int64(3)},
		{"string", "Red", "Red"},
		{"nil float ptr", nilFloat, nil},
		{"nil int ptr", nilInt, nil},
		{"nil string ptr", nilString, nil},
		{"nan ptr", ptr(math.NaN()), nil},
		{"int ptr", ptr(int64(4)), int64(4)},
		{"string ptr", ptr("x"), "x"},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Fatalf("%s: want %#v, got %#v", tc.name, tc.want, got)
		}
	}
}

func TestRowsForDropsNullKeysAndSanitizes(t *testing.T) {
	batch := domain.Batch{
		Metadata: []domain.ArtifactMetadata{{ID: ptr(int64(1))}, {}},
		Media:    []domain.ArtifactMedia{{ObjectID: ptr(int64(1))}},
		Colors:   []domain.ArtifactColor{{ObjectID: ptr(int64(1)), Percent: ptr(math.NaN())}, {}},
	}
	metadata, media, colors, dropped := rowsFor(batch)
	if len(metadata) != 1 || len(media) != 1 || len(colors) != 1 || dropped != 2 {
		t.Fatalf("unexpected split %d/%d/%d dropped=%d", len(metadata), len(media), len(colors), dropped)
	}
	if colors[0][4] != nil {
		t.Fatalf("NaN percent should be sanitized to nil, got %#v", colors[0][4])
	}
}

func TestNilStoreReportsNoConnection(t *testing.T) {
	var s *Store
	ctx := context.Background()
	if err := s.EnsureSchema(ctx); !errors.Is(err, ErrNoConnection) {
		t.Fatalf("EnsureSchema: expected ErrNoConnection, got %v", err)
	}
	if _, err := s.Load(ctx, domain.Batch{Metadata: []domain.ArtifactMetadata{{ID: ptr(int64(1))}}}); !errors.Is(err, ErrNoConnection) {
		t.Fatalf("Load: expected ErrNoConnection, got %v", err)
	}
	table, err := s.Query(ctx, "SELECT 1")
	if !errors.Is(err, ErrNoConnection) || table.Len() != 0 {
		t.Fatalf("Query: expected ErrNoConnection and empty table, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close on nil store: %v", err)
	}
	if err := New(nil, SQLite).EnsureSchema(ctx); !errors.Is(err, ErrNoConnection) {
		t.Fatalf("store without handle: expected ErrNoConnection, got %v", err)
	}
}

func TestLoadEmptyBatchSkipsDatabase(t *testing.T) {
	var s *Store
	res, err := s.Load(context.Background(), domain.Batch{})
	if err != nil || res.Total() != 0 {
		t.Fatalf("empty batch should be a no-op, got %+v %v", res, err)
	}
}

func TestNormalizeBytes(t *testing.T) {
	if normalize([]byte("abc")) != "abc" || normalize(int64(1)) != int64(1) {
		t.Fatalf("unexpected normalization")
	}
}
