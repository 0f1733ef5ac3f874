package sweep

import (
	"io"

	"github.com/aa-dank/slug-sweep-deduper/internal/model"
)

// Ledger records what has been reviewed, deleted, or errored during sweeps.
// Every write is committed to the local staging copy before it returns; the
// remote copy only changes on SyncToStorage.
type Ledger interface {
	// IsFileProcessed reports whether a decision was ever recorded for fileID.
	IsFileProcessed(fileID int64) (bool, error)

	// RecordProcessedLocation creates the row for a sweep run and returns its ID.
	// The row starts with completed = false.
	RecordProcessedLocation(locationPath string, duplicateGroups int, sessionID string) (int64, error)

	// FinishProcessedLocation stamps how the run ended. completed is true only
	// when every group in the run received a recorded decision.
	FinishProcessedLocation(id int64, outcome model.Outcome, completed bool) error

	// RecordProcessedFile records the decision for a file. A second decision for
	// the same fileID fails.
	RecordProcessedFile(fileID, processedLocationID int64, decision model.Decision) (int64, error)

	// RecordDeletedFile records a deletion the edit API accepted.
	RecordDeletedFile(processedFileID int64, path string, size int64) (int64, error)

	// LogError appends an error row.
	LogError(operation, message, context string) (int64, error)

	// SyncToStorage replaces the remote copy with the current staging contents.
	// Remote readers see either the previous copy or the new one, never a mix.
	SyncToStorage() error

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// RemoteStore is the long-lived home of the ledger file.
type RemoteStore interface {
	// Exists reports whether name is present in the store.
	Exists(name string) (bool, error)

	// Get writes the stored bytes of name to w.
	Get(name string, w io.Writer) error

	// Put replaces name with exactly size bytes read from r. The replace is
	// atomic: on any failure the previous contents stay in place.
	Put(name string, r io.Reader, size int64) error

	// Describe returns a human-readable location for name, for messages.
	Describe(name string) string
}
