package sweep

import (
	"testing"
	"time"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func TestCheckpointTimer(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
	timer := newCheckpointTimer(clock, 10*time.Minute)

	if timer.due() {
		t.Error("due() = true immediately after creation")
	}

	clock.now = clock.now.Add(9*time.Minute + 59*time.Second)
	if timer.due() {
		t.Error("due() = true before the interval elapsed")
	}

	clock.now = clock.now.Add(time.Second)
	if !timer.due() {
		t.Error("due() = false once the interval elapsed")
	}

	timer.reset()
	if timer.due() {
		t.Error("due() = true right after reset")
	}
}
