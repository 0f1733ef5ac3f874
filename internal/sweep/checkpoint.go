package sweep

import "time"

// DefaultCheckpointInterval is how often the ledger is synced mid-sweep.
const DefaultCheckpointInterval = 10 * time.Minute

// checkpointTimer tracks time since the last checkpoint. It is only consulted
// between reviews, never while waiting on the operator.
type checkpointTimer struct {
	clock    Clock
	interval time.Duration
	last     time.Time
}

func newCheckpointTimer(clock Clock, interval time.Duration) *checkpointTimer {
	return &checkpointTimer{clock: clock, interval: interval, last: clock.Now()}
}

func (c *checkpointTimer) due() bool {
	return c.clock.Now().Sub(c.last) >= c.interval
}

func (c *checkpointTimer) reset() {
	c.last = c.clock.Now()
}
