// Package catalog queries the records catalog for files stored in more than
// one place on the file server.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/aa-dank/slug-sweep-deduper/internal/model"
	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// ErrInvalidRecord is returned when the catalog yields a row that is missing
// a required column.
var ErrInvalidRecord = errors.New("invalid catalog record")

var validate = validator.New()

// duplicatesQuery counts locations across the whole catalog, then keeps the
// rows at the swept location. Files whose other copies live elsewhere still
// count as duplicated.
const duplicatesQuery = `
WITH counts AS (
	SELECT file_id, COUNT(*) AS loc_count
	FROM file_locations
	GROUP BY file_id
	HAVING COUNT(*) > 1
)
SELECT fl.file_id, fl.file_server_directories, fl.filename, f.size, c.loc_count
FROM file_locations fl
JOIN files f ON f.id = fl.file_id
JOIN counts c ON c.file_id = fl.file_id
WHERE fl.file_server_directories = ?
ORDER BY fl.filename, fl.file_id`

const locationsQuery = `
SELECT fl.file_server_directories, fl.filename, f.size
FROM file_locations fl
JOIN files f ON f.id = fl.file_id
WHERE fl.file_id = ?
ORDER BY fl.id`

type duplicateRow struct {
	FileID    int64  `gorm:"column:file_id" validate:"gt=0"`
	Directory string `gorm:"column:file_server_directories"`
	Filename  string `gorm:"column:filename" validate:"required"`
	Size      int64  `gorm:"column:size" validate:"gte=0"`
	LocCount  int    `gorm:"column:loc_count" validate:"gt=1"`
}

type locationRow struct {
	Directory string `gorm:"column:file_server_directories"`
	Filename  string `gorm:"column:filename" validate:"required"`
	Size      int64  `gorm:"column:size" validate:"gte=0"`
}

// GormFinder implements sweep.DuplicateFinder over a gorm connection.
type GormFinder struct {
	db *gorm.DB
}

var _ sweep.DuplicateFinder = (*GormFinder)(nil)

// NewGormFinder wraps an open gorm connection.
func NewGormFinder(db *gorm.DB) *GormFinder {
	return &GormFinder{db: db}
}

func (f *GormFinder) FindDuplicates(ctx context.Context, canonicalLocation string) ([]model.FileRecord, error) {
	var rows []duplicateRow
	if err := f.db.WithContext(ctx).Raw(duplicatesQuery, canonicalLocation).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying duplicates at %q: %w", canonicalLocation, err)
	}

	records := make([]model.FileRecord, 0, len(rows))
	for _, r := range rows {
		if err := checkRow(r); err != nil {
			return nil, err
		}
		records = append(records, model.FileRecord{
			FileID:         r.FileID,
			Directory:      r.Directory,
			Filename:       r.Filename,
			Size:           r.Size,
			DuplicateCount: r.LocCount,
		})
	}
	return records, nil
}

func (f *GormFinder) GetAllLocations(ctx context.Context, fileID int64) ([]model.Location, error) {
	var rows []locationRow
	if err := f.db.WithContext(ctx).Raw(locationsQuery, fileID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying locations of file %d: %w", fileID, err)
	}

	locations := make([]model.Location, 0, len(rows))
	for _, r := range rows {
		if err := checkRow(r); err != nil {
			return nil, err
		}
		locations = append(locations, model.Location{
			Directory: r.Directory,
			Filename:  r.Filename,
			Size:      r.Size,
		})
	}
	return locations, nil
}

func (f *GormFinder) Close() error {
	sqlDB, err := f.db.DB()
	if err != nil {
		return fmt.Errorf("getting catalog connection: %w", err)
	}
	return sqlDB.Close()
}

func checkRow(row any) error {
	if err := validate.Struct(row); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrInvalidRecord, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}
