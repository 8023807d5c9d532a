package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNilStoreNotConfigured(t *testing.T) {
	var s *Store
	ctx := context.Background()
	if err := s.SaveScan(ctx, ScanRecord{}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := s.ListRecentOpportunities(ctx, 5); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := s.ListOpportunitiesBetween(ctx, time.Now(), time.Now(), 5); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, _, err := s.TryAdvisoryLock(ctx, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	s.Close()
}

func TestMigrationFilesOrdered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	files, err := MigrationFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "001_a.sql" {
		t.Fatalf("unexpected migration order %v", files)
	}
}

func TestMigrationsShipped(t *testing.T) {
	files, err := MigrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil || len(files) == 0 {
		t.Fatalf("expected bundled migrations, got %v %v", files, err)
	}
}

func TestOpportunityUpsertMatchesShippedIndex(t *testing.T) {
	files, err := MigrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var schema strings.Builder
	for _, f := range files {
		body, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		schema.Write(body)
	}
	if !strings.Contains(schema.String(), "ON opportunities (opportunity_key, detected_at)") {
		t.Fatal("migrations must ship the unique index backing the opportunity upsert")
	}
	if !strings.Contains(insertOpportunitySQL, "ON CONFLICT (opportunity_key, detected_at) WHERE opportunity_key <> ''") {
		t.Fatal("opportunity insert must upsert on key and detection time")
	}
	if !strings.Contains(insertScanSQL, "ON CONFLICT (id) DO UPDATE") {
		t.Fatal("scan insert must be idempotent on id")
	}
}
