package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/evolve/pkg/evolve/internalerr"
	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

func TestLoadMissingFileReturnsEmptyDocument(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "schema.json"), "2.0")
	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Len() != 0 || doc.Version != "2.0" {
		t.Errorf("unexpected document %+v", doc)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "schema.json")
	s := New(path, "2.0")

	doc := taxonomy.NewDocument("2.0")
	doc.LastUpdated = "2026-10-14T00:00:00Z"
	for _, id := range []string{"SCT-002", "SCT-001"} {
		_ = doc.Add(&taxonomy.Entry{
			ID:       id,
			Name:     "Émotion <fear> & co",
			Keywords: []string{"fear"},
			Evidence: []taxonomy.Evidence{{Source: "paper", Description: "d", Date: "2026-10-14"}},
			Status:   taxonomy.StatusCandidate,
			Created:  "2026-10-14",
			LastSeen: "2026-10-14",
		})
	}

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "Émotion") {
		t.Error("non-ASCII text should be written verbatim")
	}
	if !strings.HasSuffix(string(raw), "\n") {
		t.Error("file should end with a newline")
	}

	back, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ids := back.IDs()
	if len(ids) != 2 || ids[0] != "SCT-002" || ids[1] != "SCT-001" {
		t.Errorf("order not preserved: %v", ids)
	}
	e, _ := back.Get("SCT-001")
	if e.Name != "Émotion <fear> & co" {
		t.Errorf("Name = %q", e.Name)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New(path, "2.0").Load(context.Background())
	if !errors.Is(err, internalerr.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestLoadHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(filepath.Join(t.TempDir(), "schema.json"), "2.0")
	if _, err := s.Load(ctx); err == nil {
		t.Error("expected context error")
	}
	if err := s.Save(ctx, taxonomy.NewDocument("")); err == nil {
		t.Error("expected context error")
	}
}
