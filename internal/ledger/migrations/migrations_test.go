package migrations

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"processed_locations", "processed_files", "deleted_files", "errors", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}

	for _, col := range []string{"session_id", "outcome", "finished_at"} {
		if !hasColumn(t, db, "processed_locations", col) {
			t.Errorf("processed_locations.%s missing after migration", col)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}
	if !strings.Contains(err.Error(), "needs migration") {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

// Ledgers created before versioning have the four tables but no
// schema_migrations table; migrating must keep their rows.
func TestMigrateUp_AdoptsUnversionedLedger(t *testing.T) {
	db := openTestDB(t)

	legacy := []string{
		`CREATE TABLE processed_locations (id INTEGER PRIMARY KEY AUTOINCREMENT, location_path TEXT NOT NULL, datetime TEXT NOT NULL, duplicates_count INTEGER NOT NULL, completed INTEGER NOT NULL DEFAULT 0)`,
		`CREATE TABLE processed_files (id INTEGER PRIMARY KEY AUTOINCREMENT, archives_app_file_id INTEGER UNIQUE NOT NULL, processed_location_id INTEGER NOT NULL, decision TEXT NOT NULL, processed_at TEXT NOT NULL, FOREIGN KEY (processed_location_id) REFERENCES processed_locations(id))`,
		`CREATE TABLE deleted_files (id INTEGER PRIMARY KEY AUTOINCREMENT, processed_file_id INTEGER NOT NULL, path TEXT NOT NULL, file_size INTEGER NOT NULL, deleted_at TEXT NOT NULL, FOREIGN KEY (processed_file_id) REFERENCES processed_files(id))`,
		`CREATE TABLE errors (id INTEGER PRIMARY KEY AUTOINCREMENT, operation TEXT NOT NULL, message TEXT NOT NULL, timestamp TEXT NOT NULL, context TEXT)`,
		`INSERT INTO processed_locations (location_path, datetime, duplicates_count, completed) VALUES ('N:\PPDO\Records\42xx', '2024-01-15T10:30:00.000000', 3, 1)`,
		`INSERT INTO processed_files (archives_app_file_id, processed_location_id, decision, processed_at) VALUES (7, 1, 'kept_all', '2024-01-15T10:31:00.000000')`,
	}
	for _, stmt := range legacy {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("setting up legacy ledger: %v", err)
		}
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() error = %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM processed_files WHERE archives_app_file_id = 7").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Errorf("legacy processed_files rows = %d, want 1", count)
	}
	if !hasColumn(t, db, "processed_locations", "outcome") {
		t.Error("processed_locations.outcome missing after adopting legacy ledger")
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO processed_files (archives_app_file_id, processed_location_id, decision, processed_at)
		VALUES (1, 999, 'kept_all', '2024-01-15T10:30:00Z')
	`)
	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_FileIDUnique(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO processed_locations (location_path, datetime, duplicates_count) VALUES ('x', '2024-01-15T10:30:00Z', 1)"); err != nil {
		t.Fatalf("Failed to insert location: %v", err)
	}
	insert := "INSERT INTO processed_files (archives_app_file_id, processed_location_id, decision, processed_at) VALUES (42, 1, 'kept_all', '2024-01-15T10:30:00Z')"
	if _, err := db.Exec(insert); err != nil {
		t.Fatalf("Failed to insert first decision: %v", err)
	}
	if _, err := db.Exec(insert); err == nil {
		t.Error("Expected unique constraint violation for second decision, but insert succeeded")
	}
}

func TestLatestVersion(t *testing.T) {
	v, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if v != 2 {
		t.Errorf("LatestVersion() = %d, want 2", v)
	}
}

func hasColumn(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("reading table info: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scanning table info: %v", err)
		}
		if name == column {
			return true
		}
	}
	return false
}

// openTestDB opens a file-backed SQLite database with foreign keys enforced
// on every pooled connection.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
