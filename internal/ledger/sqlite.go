package ledger

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/natefinch/atomic"
	"lukechampine.com/blake3"

	"github.com/aa-dank/slug-sweep-deduper/internal/ledger/migrations"
	"github.com/aa-dank/slug-sweep-deduper/internal/model"
	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// DefaultFilename is the ledger's name in remote storage and in staging.
const DefaultFilename = "sweep_db.sqlite"

// timestampLayout is ISO-8601 in UTC with microseconds.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

var (
	// ErrFileAlreadyProcessed is returned when a second decision is recorded
	// for the same catalog file.
	ErrFileAlreadyProcessed = errors.New("file already has a recorded decision")

	// ErrUnsyncedStagingCopy is returned when the staging copy holds writes
	// that never reached remote storage.
	ErrUnsyncedStagingCopy = errors.New("staging copy has writes that were never synced to storage")

	// ErrNoStagingCopy is returned by OpenStaged when there is nothing to open.
	ErrNoStagingCopy = errors.New("no staging copy found")
)

// SQLiteLedger implements sweep.Ledger on a local SQLite staging copy of a
// ledger kept in a sweep.RemoteStore.
type SQLiteLedger struct {
	db          *sql.DB
	store       sweep.RemoteStore
	name        string
	stagingPath string
	clock       sweep.Clock
	logger      sweep.Logger
	dirty       bool
	closed      bool
}

// Option configures a SQLiteLedger.
type Option func(*SQLiteLedger)

// WithClock sets the clock used for row timestamps.
func WithClock(c sweep.Clock) Option {
	return func(l *SQLiteLedger) { l.clock = c }
}

// WithLogger sets the logger used for sync reporting.
func WithLogger(lg sweep.Logger) Option {
	return func(l *SQLiteLedger) { l.logger = lg }
}

// Open copies the remote ledger named name byte for byte into stagingDir and
// opens it. When the store has no copy, a new ledger is created. Open refuses
// to replace a staging copy that holds unsynced writes.
func Open(store sweep.RemoteStore, stagingDir, name string, opts ...Option) (*SQLiteLedger, error) {
	stagingPath, err := prepareStaging(stagingDir, name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(pendingMarker(stagingPath)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsyncedStagingCopy, stagingPath)
	}

	exists, err := store.Exists(name)
	if err != nil {
		return nil, fmt.Errorf("checking remote ledger %s: %w", store.Describe(name), err)
	}
	if exists {
		if err := fetch(store, name, stagingPath); err != nil {
			return nil, err
		}
	} else if err := removeStaging(stagingPath); err != nil {
		return nil, err
	}

	return openStaging(store, name, stagingPath, opts)
}

// Create starts an empty ledger in stagingDir, discarding any staging copy.
// Nothing is written remotely until SyncToStorage.
func Create(store sweep.RemoteStore, stagingDir, name string, opts ...Option) (*SQLiteLedger, error) {
	stagingPath, err := prepareStaging(stagingDir, name)
	if err != nil {
		return nil, err
	}
	if err := removeStaging(stagingPath); err != nil {
		return nil, err
	}
	if err := os.Remove(pendingMarker(stagingPath)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing pending marker: %w", err)
	}

	l, err := openStaging(store, name, stagingPath, opts)
	if err != nil {
		return nil, err
	}
	// A new ledger differs from whatever the store holds.
	if err := l.markDirty(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// OpenStaged opens the existing staging copy without touching the remote
// copy. It is used to push a staging copy whose final sync failed.
func OpenStaged(store sweep.RemoteStore, stagingDir, name string, opts ...Option) (*SQLiteLedger, error) {
	stagingPath := filepath.Join(stagingDir, name)
	if _, err := os.Stat(stagingPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoStagingCopy, stagingPath)
		}
		return nil, fmt.Errorf("checking staging copy: %w", err)
	}

	l, err := openStaging(store, name, stagingPath, opts)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(pendingMarker(stagingPath)); err == nil {
		l.dirty = true
	}
	return l, nil
}

func openStaging(store sweep.RemoteStore, name, stagingPath string, opts []Option) (*SQLiteLedger, error) {
	db, err := OpenConnection(stagingPath)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger: %w", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger schema out of date: %w", err)
	}

	l := &SQLiteLedger{
		db:          db,
		store:       store,
		name:        name,
		stagingPath: stagingPath,
		clock:       sweep.RealClock{},
		logger:      sweep.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// OpenConnection opens a SQLite database with foreign keys enforced on every
// pooled connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return db, nil
}

func prepareStaging(stagingDir, name string) (string, error) {
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return filepath.Join(stagingDir, name), nil
}

func removeStaging(stagingPath string) error {
	for _, p := range []string{stagingPath, stagingPath + "-journal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale staging copy: %w", err)
		}
	}
	return nil
}

func pendingMarker(stagingPath string) string {
	return stagingPath + ".pending"
}

// fetch streams the remote copy into stagingPath through a temp file and rename.
func fetch(store sweep.RemoteStore, name, stagingPath string) error {
	if err := removeStaging(stagingPath); err != nil {
		return err
	}
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(store.Get(name, pw))
	}()
	if err := atomic.WriteFile(stagingPath, pr); err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("copying remote ledger %s to staging: %w", store.Describe(name), err)
	}
	return nil
}

// markDirty drops the pending marker before the first write after a sync, so
// a crash between the write and the next sync is detected on the next Open.
func (l *SQLiteLedger) markDirty() error {
	if l.dirty {
		return nil
	}
	if err := os.WriteFile(pendingMarker(l.stagingPath), []byte(l.now()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing pending marker: %w", err)
	}
	l.dirty = true
	return nil
}

func (l *SQLiteLedger) now() string {
	return l.clock.Now().UTC().Format(timestampLayout)
}

func (l *SQLiteLedger) insert(query string, args ...any) (int64, error) {
	if err := l.markDirty(); err != nil {
		return 0, err
	}
	res, err := l.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// IsFileProcessed reports whether a decision exists for fileID.
func (l *SQLiteLedger) IsFileProcessed(fileID int64) (bool, error) {
	var one int
	err := l.db.QueryRow("SELECT 1 FROM processed_files WHERE archives_app_file_id = ?", fileID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking processed file %d: %w", fileID, err)
	}
	return true, nil
}

func (l *SQLiteLedger) RecordProcessedLocation(locationPath string, duplicateGroups int, sessionID string) (int64, error) {
	id, err := l.insert(
		"INSERT INTO processed_locations (location_path, datetime, duplicates_count, completed, session_id) VALUES (?, ?, ?, 0, ?)",
		locationPath, l.now(), duplicateGroups, sessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("recording processed location: %w", err)
	}
	return id, nil
}

func (l *SQLiteLedger) FinishProcessedLocation(id int64, outcome model.Outcome, completed bool) error {
	if err := l.markDirty(); err != nil {
		return err
	}
	res, err := l.db.Exec(
		"UPDATE processed_locations SET completed = ?, outcome = ?, finished_at = ? WHERE id = ?",
		completed, string(outcome), l.now(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing processed location: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing processed location: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing processed location: no location with id %d", id)
	}
	return nil
}

func (l *SQLiteLedger) RecordProcessedFile(fileID, processedLocationID int64, decision model.Decision) (int64, error) {
	id, err := l.insert(
		"INSERT INTO processed_files (archives_app_file_id, processed_location_id, decision, processed_at) VALUES (?, ?, ?, ?)",
		fileID, processedLocationID, string(decision), l.now(),
	)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("%w: file %d", ErrFileAlreadyProcessed, fileID)
		}
		return 0, fmt.Errorf("recording processed file %d: %w", fileID, err)
	}
	return id, nil
}

func (l *SQLiteLedger) RecordDeletedFile(processedFileID int64, path string, size int64) (int64, error) {
	id, err := l.insert(
		"INSERT INTO deleted_files (processed_file_id, path, file_size, deleted_at) VALUES (?, ?, ?, ?)",
		processedFileID, path, size, l.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording deleted file %s: %w", path, err)
	}
	return id, nil
}

func (l *SQLiteLedger) LogError(operation, message, context string) (int64, error) {
	id, err := l.insert(
		"INSERT INTO errors (operation, message, timestamp, context) VALUES (?, ?, ?, ?)",
		operation, message, l.now(), context,
	)
	if err != nil {
		return 0, fmt.Errorf("logging error: %w", err)
	}
	return id, nil
}

// SyncToStorage snapshots the staging copy and replaces the remote copy with
// it. After Close the staging file itself is uploaded.
func (l *SQLiteLedger) SyncToStorage() error {
	if l.closed {
		return l.upload(l.stagingPath)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.stagingPath), l.name+".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := l.BackupTo(tmpPath); err != nil {
		return err
	}
	return l.upload(tmpPath)
}

func (l *SQLiteLedger) upload(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening ledger snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger snapshot: %w", err)
	}

	h := blake3.New(32, nil)
	if err := l.store.Put(l.name, io.TeeReader(f, h), info.Size()); err != nil {
		return fmt.Errorf("syncing ledger to %s: %w", l.store.Describe(l.name), err)
	}

	if err := os.Remove(pendingMarker(l.stagingPath)); err != nil && !os.IsNotExist(err) {
		l.logger.Warn("removing pending marker failed", "error", err)
	}
	l.dirty = false

	l.logger.Info("ledger synced",
		"destination", l.store.Describe(l.name),
		"size", info.Size(),
		"blake3", hex.EncodeToString(h.Sum(nil)))
	return nil
}

// BackupTo writes a consistent copy of the ledger to destPath using VACUUM INTO.
func (l *SQLiteLedger) BackupTo(destPath string) error {
	if _, err := l.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("snapshotting ledger: %w", err)
	}
	return nil
}

// Path returns the staging copy's path.
func (l *SQLiteLedger) Path() string {
	return l.stagingPath
}

// Dirty reports whether the staging copy holds writes not yet synced.
func (l *SQLiteLedger) Dirty() bool {
	return l.dirty
}

// Close closes the connection. Later calls are no-ops.
func (l *SQLiteLedger) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

var _ sweep.Ledger = (*SQLiteLedger)(nil)
