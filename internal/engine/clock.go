package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps instructions and
// lifecycle calls.
//
// Seq values give the trace store a deterministic total order that does not
// depend on wall-clock time, so a replayed log sorts exactly like the
// original.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
