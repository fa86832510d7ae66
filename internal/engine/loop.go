package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Loop is the single goroutine that runs timer-driven passes.
//
// Tasks are queued FIFO and executed one at a time by Run, so passes started
// by timers never overlap with each other or with tasks posted by callers.
// Post is safe from any goroutine; everything else happens on the Run
// goroutine.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // buffered, size 1
	log    *slog.Logger
}

// NewLoop creates an idle loop.
func NewLoop(log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		tasks:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
		log:    log,
	}
}

// Post queues fn. Returns false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.tasks = append(l.tasks, fn)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

// tryNext pops the front task without blocking.
func (l *Loop) tryNext() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}
	fn := l.tasks[0]
	l.tasks[0] = nil
	if len(l.tasks) == 1 {
		l.tasks = l.tasks[:0]
	} else {
		l.tasks = l.tasks[1:]
	}
	return fn, true
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Run executes tasks until ctx is cancelled or Close is called.
// Must be called from exactly one goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("loop starting")
	for {
		if fn, ok := l.tryNext(); ok {
			fn()
			continue
		}

		select {
		case <-ctx.Done():
			l.log.Info("loop stopping: context cancelled")
			l.Close()
			return ctx.Err()
		case <-l.signal:
			// The signal channel is closed by Close, which makes this case
			// fire immediately with nothing left to run.
			if l.Len() == 0 && l.isClosed() {
				l.log.Info("loop stopping: closed")
				return nil
			}
		}
	}
}

// Close stops accepting tasks and wakes Run.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Timers schedules delayed callbacks for the scheduler. The returned func
// cancels the callback if it has not run yet.
type Timers interface {
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// loopTimers runs callbacks on a Loop after a wall-clock delay.
type loopTimers struct {
	loop *Loop
}

func (t loopTimers) AfterFunc(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, func() { t.loop.Post(fn) })
	return func() { timer.Stop() }
}
