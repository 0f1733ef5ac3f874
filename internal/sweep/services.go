package sweep

import (
	"context"

	"github.com/aa-dank/slug-sweep-deduper/internal/model"
)

// DuplicateFinder answers duplication questions from the file catalog.
type DuplicateFinder interface {
	// FindDuplicates returns one record per (file, location) pair for files that
	// have more than one location in the whole catalog and at least one
	// location equal to canonicalLocation.
	FindDuplicates(ctx context.Context, canonicalLocation string) ([]model.FileRecord, error)

	// GetAllLocations returns every current location of fileID.
	GetAllLocations(ctx context.Context, fileID int64) ([]model.Location, error)

	// Close releases the catalog connection.
	Close() error
}

// DeletionService enqueues deletion edits with the records system. A nil
// error means the remote system accepted the request; it does not mean the
// file is gone yet.
type DeletionService interface {
	EnqueueDelete(ctx context.Context, localPath string) error
	Close() error
}

// Scratch holds temporary copies of files the operator asked to open.
type Scratch interface {
	// Open copies localPath into the scratch area and launches a viewer on the copy.
	Open(localPath string) error

	// Cleanup removes everything the scratch area created.
	Cleanup() error
}
