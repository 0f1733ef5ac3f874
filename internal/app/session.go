package app

import (
	"time"

	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// Session identifies one CLI invocation. Its ID names the logger and is
// stamped on the processed location row of a sweep.
type Session struct {
	ID        string
	Command   string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewSession starts a session for command.
func NewSession(command string, ids sweep.IDGenerator, clock sweep.Clock) *Session {
	return &Session{
		ID:        ids.New(),
		Command:   command,
		StartedAt: clock.Now().UTC(),
		Status:    "success",
	}
}

// Fail marks the session as failed when err is non-nil and returns err.
func (s *Session) Fail(err error) error {
	if err != nil {
		s.Status = "error"
	}
	return err
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed(clock sweep.Clock) time.Duration {
	return clock.Now().Sub(s.StartedAt)
}
