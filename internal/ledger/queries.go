package ledger

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/aa-dank/slug-sweep-deduper/internal/model"
)

const locationColumns = `pl.id, pl.location_path, pl.datetime, pl.duplicates_count, pl.completed,
	COALESCE(pl.session_id, ''), COALESCE(pl.outcome, ''), pl.finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner, extra ...any) (*model.ProcessedLocation, error) {
	var (
		loc        model.ProcessedLocation
		created    string
		outcome    string
		finishedAt sql.NullString
	)
	dest := []any{&loc.ID, &loc.LocationPath, &created, &loc.DuplicateGroups, &loc.Completed,
		&loc.SessionID, &outcome, &finishedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	t, err := parseTimestamp(created)
	if err != nil {
		return nil, err
	}
	loc.CreatedAt = t
	loc.Outcome = model.Outcome(outcome)
	if finishedAt.Valid {
		ft, err := parseTimestamp(finishedAt.String)
		if err != nil {
			return nil, err
		}
		loc.FinishedAt = &ft
	}
	return &loc, nil
}

// ProcessedLocation returns the location row with the given id, or nil if
// there is none.
func (l *SQLiteLedger) ProcessedLocation(id int64) (*model.ProcessedLocation, error) {
	row := l.db.QueryRow("SELECT "+locationColumns+" FROM processed_locations pl WHERE pl.id = ?", id)
	loc, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading processed location %d: %w", id, err)
	}
	return loc, nil
}

// ListProcessedLocations returns the most recent location rows first, with
// decision and deletion totals. limit <= 0 returns every row.
func (l *SQLiteLedger) ListProcessedLocations(limit int) ([]*model.LocationSummary, error) {
	query := `SELECT ` + locationColumns + `,
		(SELECT COUNT(*) FROM processed_files pf WHERE pf.processed_location_id = pl.id),
		(SELECT COUNT(*) FROM deleted_files df JOIN processed_files pf ON pf.id = df.processed_file_id
			WHERE pf.processed_location_id = pl.id),
		(SELECT COALESCE(SUM(df.file_size), 0) FROM deleted_files df JOIN processed_files pf ON pf.id = df.processed_file_id
			WHERE pf.processed_location_id = pl.id)
		FROM processed_locations pl
		ORDER BY pl.id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing processed locations: %w", err)
	}
	defer rows.Close()

	var out []*model.LocationSummary
	for rows.Next() {
		var s model.LocationSummary
		loc, err := scanLocation(rows, &s.FilesDecided, &s.FilesDeleted, &s.BytesDeleted)
		if err != nil {
			return nil, fmt.Errorf("scanning processed location: %w", err)
		}
		s.Location = *loc
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ProcessedFiles returns the decisions recorded under a location row.
func (l *SQLiteLedger) ProcessedFiles(processedLocationID int64) ([]*model.ProcessedFile, error) {
	rows, err := l.db.Query(
		`SELECT id, archives_app_file_id, processed_location_id, decision, processed_at
		FROM processed_files WHERE processed_location_id = ? ORDER BY id`, processedLocationID)
	if err != nil {
		return nil, fmt.Errorf("listing processed files: %w", err)
	}
	defer rows.Close()

	var out []*model.ProcessedFile
	for rows.Next() {
		var (
			pf       model.ProcessedFile
			decision string
			at       string
		)
		if err := rows.Scan(&pf.ID, &pf.FileID, &pf.ProcessedLocationID, &decision, &at); err != nil {
			return nil, fmt.Errorf("scanning processed file: %w", err)
		}
		pf.Decision = model.Decision(decision)
		if pf.ProcessedAt, err = parseTimestamp(at); err != nil {
			return nil, err
		}
		out = append(out, &pf)
	}
	return out, rows.Err()
}

// DeletedFiles returns the deletions recorded under a decision.
func (l *SQLiteLedger) DeletedFiles(processedFileID int64) ([]*model.DeletedFile, error) {
	rows, err := l.db.Query(
		`SELECT id, processed_file_id, path, file_size, deleted_at
		FROM deleted_files WHERE processed_file_id = ? ORDER BY id`, processedFileID)
	if err != nil {
		return nil, fmt.Errorf("listing deleted files: %w", err)
	}
	defer rows.Close()

	var out []*model.DeletedFile
	for rows.Next() {
		var (
			df model.DeletedFile
			at string
		)
		if err := rows.Scan(&df.ID, &df.ProcessedFileID, &df.Path, &df.Size, &at); err != nil {
			return nil, fmt.Errorf("scanning deleted file: %w", err)
		}
		if df.DeletedAt, err = parseTimestamp(at); err != nil {
			return nil, err
		}
		out = append(out, &df)
	}
	return out, rows.Err()
}

// ListErrors returns the most recent error rows first. limit <= 0 returns
// every row.
func (l *SQLiteLedger) ListErrors(limit int) ([]*model.ErrorRecord, error) {
	query := "SELECT id, operation, message, timestamp, COALESCE(context, '') FROM errors ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing errors: %w", err)
	}
	defer rows.Close()

	var out []*model.ErrorRecord
	for rows.Next() {
		var (
			e  model.ErrorRecord
			at string
		)
		if err := rows.Scan(&e.ID, &e.Operation, &e.Message, &at, &e.Context); err != nil {
			return nil, fmt.Errorf("scanning error row: %w", err)
		}
		if e.Timestamp, err = parseTimestamp(at); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
