package kernel

import "sync/atomic"

// Ticker hands out strictly increasing transaction sequence numbers.
// Implemented by Clock and by testutil.DeterministicClock.
type Ticker interface {
	Next() int64
	Current() int64
}

// Clock is the monotonic logical clock that numbers transactions.
//
// Transaction ids are never derived from wall-clock time, so replaying the
// same transactions yields the same ids.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The kernel's single-writer lock means only one goroutine calls Next at
// a time in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
