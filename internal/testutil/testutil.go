// Package testutil provides shared test helpers for setting up corpora,
// media directories and databases.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/bharathvani/internal/corpus"
	"github.com/starford/bharathvani/internal/database"
	"github.com/starford/bharathvani/internal/media"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bharathvani-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCorpus creates an entry log inside a temporary directory.
func TestCorpus(t *testing.T) *corpus.JSONL {
	t.Helper()
	store, err := corpus.NewJSONL(filepath.Join(t.TempDir(), "entries.jsonl"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestMedia creates a temporary media directory served under /media.
func TestMedia(t *testing.T) (string, *media.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := media.NewFS(dir, "/media")
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}
