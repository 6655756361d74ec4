package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewSQLiteCreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")

	db, err := NewSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var mode string
	if err := db.Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("query journal mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected WAL journal mode, got %q", mode)
	}
	if db.DriverName() != "sqlite" {
		t.Fatalf("expected sqlite driver, got %q", db.DriverName())
	}
}

func TestNewSQLiteRequiresPath(t *testing.T) {
	if _, err := NewSQLite(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNewPostgresRequiresURL(t *testing.T) {
	if _, err := NewPostgres(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}
