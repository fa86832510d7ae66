package testutil

import (
	"slices"
	"sync"
	"time"
)

// ManualTimers is a timer source driven by Advance instead of wall time.
//
// It satisfies engine.Timers, so delayed passes run exactly when a test
// advances past their deadline and in deadline order.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks run on
// the goroutine calling Advance, outside the lock.
type ManualTimers struct {
	mu      sync.Mutex
	now     time.Duration
	nextID  int
	pending []*manualTimer
}

type manualTimer struct {
	id  int
	at  time.Duration
	fn  func()
	off bool
}

// NewManualTimers creates timers at virtual time zero.
func NewManualTimers() *ManualTimers {
	return &ManualTimers{}
}

// AfterFunc schedules fn to run once the virtual time reaches now+d.
func (m *ManualTimers) AfterFunc(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &manualTimer{id: m.nextID, at: m.now + d, fn: fn}
	m.pending = append(m.pending, t)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		t.off = true
	}
}

// Advance moves the virtual time forward by d and runs every callback that
// came due, earliest first. Callbacks scheduled by callbacks run too if
// they fall inside the window.
func (m *ManualTimers) Advance(d time.Duration) int {
	m.mu.Lock()
	until := m.now + d
	m.mu.Unlock()

	fired := 0
	for {
		m.mu.Lock()
		t := m.popDue(until)
		if t == nil {
			m.now = until
			m.mu.Unlock()
			return fired
		}
		m.now = t.at
		m.mu.Unlock()

		t.fn()
		fired++
	}
}

// popDue removes and returns the earliest live timer due by until.
func (m *ManualTimers) popDue(until time.Duration) *manualTimer {
	m.pending = slices.DeleteFunc(m.pending, func(t *manualTimer) bool { return t.off })
	best := -1
	for i, t := range m.pending {
		if t.at > until {
			continue
		}
		if best < 0 || t.at < m.pending[best].at || (t.at == m.pending[best].at && t.id < m.pending[best].id) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	t := m.pending[best]
	m.pending = slices.Delete(m.pending, best, best+1)
	return t
}

// Pending returns the number of scheduled, uncancelled callbacks.
func (m *ManualTimers) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.pending {
		if !t.off {
			n++
		}
	}
	return n
}

// Now returns the virtual time.
func (m *ManualTimers) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
