// Package testutil provides shared test helpers for setting up ledger
// stores and fixed clocks.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/thkim0515/gagyebu/internal/store"
)

// TestStore creates a temporary SQLite ledger that is automatically cleaned up.
func TestStore(t *testing.T) *store.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "gagyebu-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	s, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// FixedClock returns a clock function pinned to the given instant.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
