package ledger

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aa-dank/slug-sweep-deduper/internal/model"
	"github.com/aa-dank/slug-sweep-deduper/internal/remote"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC)

func newTestLedger(t *testing.T) (*SQLiteLedger, *remote.MemoryStore, string) {
	t.Helper()
	store := remote.NewMemoryStore()
	staging := t.TempDir()
	l, err := Open(store, staging, DefaultFilename, WithClock(fixedClock{testTime}))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, store, staging
}

func TestOpen_CreatesLedgerWhenRemoteMissing(t *testing.T) {
	l, store, staging := newTestLedger(t)

	if l.Path() != filepath.Join(staging, DefaultFilename) {
		t.Errorf("Path() = %q", l.Path())
	}
	if l.Dirty() {
		t.Error("Dirty() = true before any write")
	}
	if ok, _ := store.Exists(DefaultFilename); ok {
		t.Error("Open() wrote to the remote store")
	}

	processed, err := l.IsFileProcessed(7)
	if err != nil {
		t.Fatalf("IsFileProcessed() error = %v", err)
	}
	if processed {
		t.Error("IsFileProcessed(7) = true on empty ledger")
	}
}

func TestRecordDecisionAndDeletion(t *testing.T) {
	l, _, _ := newTestLedger(t)

	locID, err := l.RecordProcessedLocation(`N:\PPDO\Records\42xx`, 3, "session-1")
	if err != nil {
		t.Fatalf("RecordProcessedLocation() error = %v", err)
	}
	pfID, err := l.RecordProcessedFile(7, locID, model.DecisionDeletedSome)
	if err != nil {
		t.Fatalf("RecordProcessedFile() error = %v", err)
	}
	if _, err := l.RecordDeletedFile(pfID, `N:\PPDO\Records\42xx\a.pdf`, 2048); err != nil {
		t.Fatalf("RecordDeletedFile() error = %v", err)
	}

	processed, err := l.IsFileProcessed(7)
	if err != nil || !processed {
		t.Errorf("IsFileProcessed(7) = %v, %v; want true, nil", processed, err)
	}

	files, err := l.ProcessedFiles(locID)
	if err != nil {
		t.Fatalf("ProcessedFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].FileID != 7 || files[0].Decision != model.DecisionDeletedSome {
		t.Fatalf("ProcessedFiles() = %+v", files)
	}
	if !files[0].ProcessedAt.Equal(testTime) {
		t.Errorf("ProcessedAt = %v, want %v", files[0].ProcessedAt, testTime)
	}

	deleted, err := l.DeletedFiles(pfID)
	if err != nil {
		t.Fatalf("DeletedFiles() error = %v", err)
	}
	if len(deleted) != 1 || deleted[0].Size != 2048 {
		t.Errorf("DeletedFiles() = %+v", deleted)
	}
}

func TestRecordProcessedFile_SecondDecisionFails(t *testing.T) {
	l, _, _ := newTestLedger(t)

	locID, err := l.RecordProcessedLocation("/loc", 1, "s")
	if err != nil {
		t.Fatalf("RecordProcessedLocation() error = %v", err)
	}
	if _, err := l.RecordProcessedFile(42, locID, model.DecisionKeptAll); err != nil {
		t.Fatalf("first RecordProcessedFile() error = %v", err)
	}
	_, err = l.RecordProcessedFile(42, locID, model.DecisionDeletedAll)
	if !errors.Is(err, ErrFileAlreadyProcessed) {
		t.Errorf("second RecordProcessedFile() error = %v, want ErrFileAlreadyProcessed", err)
	}
}

func TestRecordDeletedFile_UnknownDecisionFails(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if _, err := l.RecordDeletedFile(999, "/x", 1); err == nil {
		t.Error("RecordDeletedFile() with unknown processed file succeeded")
	}
}

func TestFinishProcessedLocation(t *testing.T) {
	l, _, _ := newTestLedger(t)

	locID, err := l.RecordProcessedLocation("/loc", 2, "session-9")
	if err != nil {
		t.Fatalf("RecordProcessedLocation() error = %v", err)
	}

	loc, err := l.ProcessedLocation(locID)
	if err != nil {
		t.Fatalf("ProcessedLocation() error = %v", err)
	}
	if loc.Completed || loc.Outcome != "" || loc.FinishedAt != nil {
		t.Errorf("new location = %+v, want not completed and unfinished", loc)
	}
	if loc.SessionID != "session-9" || loc.DuplicateGroups != 2 {
		t.Errorf("new location = %+v", loc)
	}

	if err := l.FinishProcessedLocation(locID, model.OutcomeExhausted, true); err != nil {
		t.Fatalf("FinishProcessedLocation() error = %v", err)
	}
	loc, err = l.ProcessedLocation(locID)
	if err != nil {
		t.Fatalf("ProcessedLocation() error = %v", err)
	}
	if !loc.Completed || loc.Outcome != model.OutcomeExhausted || loc.FinishedAt == nil {
		t.Errorf("finished location = %+v", loc)
	}

	if err := l.FinishProcessedLocation(12345, model.OutcomeQuit, false); err == nil {
		t.Error("FinishProcessedLocation() on missing row succeeded")
	}
	if missing, err := l.ProcessedLocation(12345); err != nil || missing != nil {
		t.Errorf("ProcessedLocation(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestLogErrorAndListErrors(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if _, err := l.LogError("delete", "HTTP 500", `N:\a.pdf`); err != nil {
		t.Fatalf("LogError() error = %v", err)
	}
	if _, err := l.LogError("checkpoint", "share offline", ""); err != nil {
		t.Fatalf("LogError() error = %v", err)
	}

	all, err := l.ListErrors(0)
	if err != nil {
		t.Fatalf("ListErrors() error = %v", err)
	}
	if len(all) != 2 || all[0].Operation != "checkpoint" {
		t.Errorf("ListErrors(0) = %+v, want newest first", all)
	}

	one, err := l.ListErrors(1)
	if err != nil {
		t.Fatalf("ListErrors(1) error = %v", err)
	}
	if len(one) != 1 {
		t.Errorf("len(ListErrors(1)) = %d, want 1", len(one))
	}
}

func TestListProcessedLocations_Totals(t *testing.T) {
	l, _, _ := newTestLedger(t)

	first, _ := l.RecordProcessedLocation("/a", 1, "s1")
	second, _ := l.RecordProcessedLocation("/b", 2, "s2")
	pf1, _ := l.RecordProcessedFile(1, second, model.DecisionDeletedAll)
	l.RecordDeletedFile(pf1, "/b/x", 100)
	l.RecordDeletedFile(pf1, "/c/x", 100)
	l.RecordProcessedFile(2, second, model.DecisionKeptAll)

	summaries, err := l.ListProcessedLocations(0)
	if err != nil {
		t.Fatalf("ListProcessedLocations() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len = %d, want 2", len(summaries))
	}
	if summaries[0].Location.ID != second || summaries[1].Location.ID != first {
		t.Errorf("order = %d, %d; want newest first", summaries[0].Location.ID, summaries[1].Location.ID)
	}
	s := summaries[0]
	if s.FilesDecided != 2 || s.FilesDeleted != 2 || s.BytesDeleted != 200 {
		t.Errorf("summary = %+v, want 2 decided, 2 deleted, 200 bytes", s)
	}
}

func TestSyncToStorage_RoundTrip(t *testing.T) {
	l, store, _ := newTestLedger(t)

	locID, _ := l.RecordProcessedLocation("/loc", 1, "s")
	if _, err := l.RecordProcessedFile(7, locID, model.DecisionKeptAll); err != nil {
		t.Fatalf("RecordProcessedFile() error = %v", err)
	}
	if !l.Dirty() {
		t.Error("Dirty() = false after write")
	}
	if _, err := os.Stat(l.Path() + ".pending"); err != nil {
		t.Errorf("pending marker missing after write: %v", err)
	}

	if err := l.SyncToStorage(); err != nil {
		t.Fatalf("SyncToStorage() error = %v", err)
	}
	if l.Dirty() {
		t.Error("Dirty() = true after sync")
	}
	if _, err := os.Stat(l.Path() + ".pending"); !os.IsNotExist(err) {
		t.Errorf("pending marker still present after sync: %v", err)
	}
	if store.Puts() != 1 {
		t.Errorf("store.Puts() = %d, want 1", store.Puts())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// A fresh staging directory must see the synced decision.
	reopened, err := Open(store, t.TempDir(), DefaultFilename)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reopened.Close()

	processed, err := reopened.IsFileProcessed(7)
	if err != nil || !processed {
		t.Errorf("IsFileProcessed(7) after reopen = %v, %v; want true, nil", processed, err)
	}
}

func TestSyncToStorage_FailureKeepsStagingDirty(t *testing.T) {
	l, store, staging := newTestLedger(t)

	if _, err := l.LogError("sweep", "boom", ""); err != nil {
		t.Fatalf("LogError() error = %v", err)
	}
	store.SetPutError(errors.New("share offline"))

	if err := l.SyncToStorage(); err == nil {
		t.Fatal("SyncToStorage() succeeded with failing store")
	}
	if !l.Dirty() {
		t.Error("Dirty() = false after failed sync")
	}
	l.Close()

	// The unsynced staging copy must not be silently replaced.
	if _, err := Open(store, staging, DefaultFilename); !errors.Is(err, ErrUnsyncedStagingCopy) {
		t.Errorf("Open() error = %v, want ErrUnsyncedStagingCopy", err)
	}

	// It can be pushed later without reopening the remote copy.
	store.SetPutError(nil)
	staged, err := OpenStaged(store, staging, DefaultFilename)
	if err != nil {
		t.Fatalf("OpenStaged() error = %v", err)
	}
	defer staged.Close()
	if !staged.Dirty() {
		t.Error("OpenStaged().Dirty() = false with pending marker present")
	}
	if err := staged.SyncToStorage(); err != nil {
		t.Fatalf("SyncToStorage() after recovery error = %v", err)
	}
	if ok, _ := store.Exists(DefaultFilename); !ok {
		t.Error("remote ledger missing after recovery sync")
	}
}

func TestSyncToStorage_AfterClose(t *testing.T) {
	l, store, _ := newTestLedger(t)

	if _, err := l.LogError("sweep", "boom", ""); err != nil {
		t.Fatalf("LogError() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := l.SyncToStorage(); err != nil {
		t.Fatalf("SyncToStorage() after Close error = %v", err)
	}
	if store.Puts() != 1 {
		t.Errorf("store.Puts() = %d, want 1", store.Puts())
	}
}

func TestOpen_AdoptsLegacyLedger(t *testing.T) {
	legacyDir := t.TempDir()
	legacyPath := filepath.Join(legacyDir, DefaultFilename)

	db, err := sql.Open("sqlite3", legacyPath)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE processed_locations (id INTEGER PRIMARY KEY AUTOINCREMENT, location_path TEXT NOT NULL, datetime TEXT NOT NULL, duplicates_count INTEGER NOT NULL, completed INTEGER NOT NULL DEFAULT 0)`,
		`CREATE TABLE processed_files (id INTEGER PRIMARY KEY AUTOINCREMENT, archives_app_file_id INTEGER UNIQUE NOT NULL, processed_location_id INTEGER NOT NULL, decision TEXT NOT NULL, processed_at TEXT NOT NULL, FOREIGN KEY (processed_location_id) REFERENCES processed_locations(id))`,
		`CREATE TABLE deleted_files (id INTEGER PRIMARY KEY AUTOINCREMENT, processed_file_id INTEGER NOT NULL, path TEXT NOT NULL, file_size INTEGER NOT NULL, deleted_at TEXT NOT NULL, FOREIGN KEY (processed_file_id) REFERENCES processed_files(id))`,
		`CREATE TABLE errors (id INTEGER PRIMARY KEY AUTOINCREMENT, operation TEXT NOT NULL, message TEXT NOT NULL, timestamp TEXT NOT NULL, context TEXT)`,
		`INSERT INTO processed_locations (location_path, datetime, duplicates_count, completed) VALUES ('/old', '2023-06-01T09:00:00.000001', 1, 1)`,
		`INSERT INTO processed_files (archives_app_file_id, processed_location_id, decision, processed_at) VALUES (11, 1, 'kept_all', '2023-06-01T09:01:00.5')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("building legacy ledger: %v", err)
		}
	}
	db.Close()

	store, err := remote.NewFileSystemStore(legacyDir)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	l, err := Open(store, t.TempDir(), DefaultFilename)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer l.Close()

	if ok, err := l.IsFileProcessed(11); err != nil || !ok {
		t.Errorf("IsFileProcessed(11) = %v, %v; want true, nil", ok, err)
	}
	summaries, err := l.ListProcessedLocations(0)
	if err != nil {
		t.Fatalf("ListProcessedLocations() error = %v", err)
	}
	if len(summaries) != 1 || !summaries[0].Location.Completed {
		t.Errorf("legacy summaries = %+v", summaries)
	}
}

func TestCreate_DiscardsStagingCopy(t *testing.T) {
	l, store, staging := newTestLedger(t)
	l.LogError("sweep", "boom", "")
	l.Close()

	fresh, err := Create(store, staging, DefaultFilename)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer fresh.Close()

	errs, err := fresh.ListErrors(0)
	if err != nil {
		t.Fatalf("ListErrors() error = %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("Create() kept %d error rows", len(errs))
	}
	if !fresh.Dirty() {
		t.Error("Create().Dirty() = false, want true until first sync")
	}
}

func TestOpenStaged_Missing(t *testing.T) {
	_, err := OpenStaged(remote.NewMemoryStore(), t.TempDir(), DefaultFilename)
	if !errors.Is(err, ErrNoStagingCopy) {
		t.Errorf("OpenStaged() error = %v, want ErrNoStagingCopy", err)
	}
}
