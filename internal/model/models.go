package model

import "time"

// FileRecord is one catalog row returned by duplicate discovery: a logical
// file at one of its locations.
type FileRecord struct {
	FileID         int64
	Directory      string // canonical, forward-slash separated
	Filename       string
	Size           int64
	DuplicateCount int
}

// Location is one place a logical file lives on the file server.
type Location struct {
	Directory string
	Filename  string
	Size      int64
}

// Decision is the terminal outcome recorded for a reviewed file.
type Decision string

const (
	DecisionKeptAll     Decision = "kept_all"
	DecisionDeletedSome Decision = "deleted_some"
	DecisionDeletedAll  Decision = "deleted_all"
)

// Outcome describes how a sweep's review loop ended.
type Outcome string

const (
	OutcomeExhausted Outcome = "exhausted"
	OutcomeQuit      Outcome = "quit"
	OutcomeError     Outcome = "error"
)

// ProcessedLocation is the ledger row created once per sweep run.
type ProcessedLocation struct {
	ID              int64
	LocationPath    string
	SessionID       string
	CreatedAt       time.Time
	DuplicateGroups int
	Completed       bool
	Outcome         Outcome // empty until the run finishes
	FinishedAt      *time.Time
}

// ProcessedFile records the decision made for one logical file.
type ProcessedFile struct {
	ID                  int64
	FileID              int64
	ProcessedLocationID int64
	Decision            Decision
	ProcessedAt         time.Time
}

// DeletedFile records a deletion request accepted by the edit API.
type DeletedFile struct {
	ID              int64
	ProcessedFileID int64
	Path            string
	Size            int64
	DeletedAt       time.Time
}

// ErrorRecord is an append-only error row.
type ErrorRecord struct {
	ID        int64
	Operation string
	Message   string
	Context   string
	Timestamp time.Time
}

// LocationSummary aggregates the ledger rows written under one processed location.
type LocationSummary struct {
	Location     ProcessedLocation
	FilesDecided int
	FilesDeleted int
	BytesDeleted int64
}
