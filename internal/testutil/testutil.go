// Package testutil provides shared test helpers for seeded stores, databases
// and drop folders.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/threadbox/internal/seed"
	"github.com/starford/threadbox/internal/storage"
	"github.com/starford/threadbox/internal/store"
)

// SQLiteDSN returns the path of a fresh SQLite database file removed after the test.
func SQLiteDSN(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "threadbox-test.db")
}

// SeededStore creates a store loaded with the seed dataset. Extra options are
// applied after the snapshot.
func SeededStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	snap, err := seed.Load()
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.New(append([]store.Option{store.WithSnapshot(snap)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

// Folder creates a temporary directory wrapped in a storage.FS.
func Folder(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}
