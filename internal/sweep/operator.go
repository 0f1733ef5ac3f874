package sweep

import (
	"context"

	"github.com/aa-dank/slug-sweep-deduper/internal/model"
)

// Operator is the human on the other end of a sweep.
type Operator interface {
	// Present shows the locations of the file under review.
	Present(review *Review)

	// ReadCommand blocks for the next command line. io.EOF means the operator
	// closed input and is treated as quit.
	ReadCommand(ctx context.Context) (string, error)

	// Confirm asks a yes/no question; anything but an explicit yes is false.
	Confirm(ctx context.Context, prompt string) (bool, error)

	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Review is everything the operator needs to decide on one logical file.
type Review struct {
	Index    int // 1-based position in this sweep
	Total    int
	FileID   int64
	Filename string
	Target   string // canonical location being swept
	Entries  []ReviewEntry
}

// ReviewEntry is one numbered location in a Review.
type ReviewEntry struct {
	Number    int
	LocalPath string
	Location  model.Location
	Current   bool // the location is the one being swept
}
