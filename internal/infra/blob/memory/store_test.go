package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"artifactcore/internal/blob/core"
)

func TestPutGetList(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"category": "Coins"}
	info, err := s.Put(ctx, "raw/Coins/b.json", bytes.NewBufferString("[1]"), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	meta["category"] = "mutated"
	if info.Size != 3 || info.Metadata["category"] != "Coins" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "raw/Coins/a.json", bytes.NewBufferString("[]"), core.PutOptions{}); err != nil {
		t.Fatalf("Put second: %v", err)
	}
	if _, err := s.Put(ctx, "raw/Paintings/a.json", bytes.NewBufferString("[]"), core.PutOptions{}); err != nil {
		t.Fatalf("Put third: %v", err)
	}

	list, err := s.List(ctx, "raw/Coins/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Key != "raw/Coins/a.json" || list[1].Key != "raw/Coins/b.json" {
		t.Fatalf("unexpected list %+v", list)
	}

	got, rc, err := s.Get(ctx, "raw/Coins/b.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "[1]" || got.Metadata["category"] != "Coins" {
		t.Fatalf("unexpected get %+v %q", got, body)
	}
}

func TestPutRejectsDuplicatesAndEmptyKeys(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Put(ctx, " ", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, err := s.Put(ctx, "k", bytes.NewReader(nil), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Put(ctx, "k", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
