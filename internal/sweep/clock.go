package sweep

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so checkpoint timing is deterministic in tests.
// Checkpoint intervals are measured with Sub on values returned by Now, so a
// real clock must return times carrying a monotonic reading.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts session ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
