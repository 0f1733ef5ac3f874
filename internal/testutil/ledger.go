package testutil

import (
	"testing"

	"github.com/aa-dank/slug-sweep-deduper/internal/ledger"
	"github.com/aa-dank/slug-sweep-deduper/internal/remote"
)

// TestLedger bundles a real SQLite ledger with its in-memory remote store.
type TestLedger struct {
	*ledger.SQLiteLedger
	Store      *remote.MemoryStore
	StagingDir string
}

// NewTestLedger opens a ledger backed by a new MemoryStore and a temporary
// staging directory. It is closed when the test completes.
func NewTestLedger(t *testing.T) *TestLedger {
	t.Helper()
	return OpenTestLedger(t, remote.NewMemoryStore())
}

// OpenTestLedger opens the ledger held in store with a fresh staging directory,
// as a new session on another machine would.
func OpenTestLedger(t *testing.T, store *remote.MemoryStore) *TestLedger {
	t.Helper()
	staging := t.TempDir()
	l, err := ledger.Open(store, staging, ledger.DefaultFilename, ledger.WithClock(FixedClock()))
	if err != nil {
		t.Fatalf("failed to open test ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return &TestLedger{SQLiteLedger: l, Store: store, StagingDir: staging}
}
