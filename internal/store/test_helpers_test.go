package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry creates an entry with minimal required fields.
func createTestEntry(kind Kind, tick int64, connectionID string) Entry {
	return Entry{
		Tick:         tick,
		Kind:         kind,
		ConnectionID: connectionID,
		CreatedAt:    time.UnixMilli(1700000000000 + tick),
	}
}
