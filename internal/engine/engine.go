package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Engine owns hosts, streams and the scheduler that drives them.
//
// An Engine is not safe for concurrent use. Without delays every pass runs
// on the goroutine that requested it. With delays, passes run from Timers
// callbacks; the default Timers post them to the engine's Loop, so Run must
// be active and other goroutines must reach the engine through Post.
type Engine struct {
	updateDelay       *time.Duration
	renderDelay       *time.Duration
	maxRerenders      int
	propsDepth        int
	stateDepth        int
	preCompare        PreCompare
	wideKeys          bool
	wideKeysInArrays  bool
	immediateCalls    bool
	skipNonRenderable bool
	duplication       Duplication
	hostFactory       HostFactory
	timers            Timers
	ids               PassIDGenerator
	clock             *Clock
	log               *slog.Logger
	hooks             []Hooks

	sched    *Scheduler
	loop     *Loop
	hosts    map[string]*Host
	hostList []*Host
	streams  map[string]*Stream

	nextBoundary uint64
	nextSource   int
}

// New creates an engine. Defaults: synchronous passes, wide keys on outside
// lists, non-renderable text skipped, one rerender, compare depth 1.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxRerenders:      DefaultMaxRerenders,
		propsDepth:        DefaultPropsDepth,
		stateDepth:        DefaultStateDepth,
		preCompare:        PreCompareAlways,
		wideKeys:          true,
		skipNonRenderable: true,
		duplication:       DuplicateAuto,
		hosts:             make(map[string]*Host),
		streams:           make(map[string]*Stream),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.clock == nil {
		e.clock = NewClock()
	}
	if e.ids == nil {
		e.ids = UUIDv7Generator{}
	}
	e.loop = NewLoop(e.log)
	if e.timers == nil {
		e.timers = loopTimers{loop: e.loop}
	}
	e.sched = newScheduler(e)
	return e
}

// NewHost registers a host rendering into r.
func (e *Engine) NewHost(name string, r Renderer) (*Host, error) {
	if name == "" {
		return nil, fmt.Errorf("host name is empty")
	}
	if _, ok := e.hosts[name]; ok {
		return nil, fmt.Errorf("host %q already exists", name)
	}
	if r == nil {
		return nil, fmt.Errorf("host %q: renderer is nil", name)
	}
	return e.newHost(name, r), nil
}

// Host returns the named host, or nil.
func (e *Engine) Host(name string) *Host { return e.hosts[name] }

// Hosts returns every live host in creation order.
func (e *Engine) Hosts() []*Host {
	out := make([]*Host, 0, len(e.hostList))
	for _, h := range e.hostList {
		if e.hosts[h.name] == h {
			out = append(out, h)
		}
	}
	return out
}

// Stream returns the named stream, creating it on first use.
func (e *Engine) Stream(name string) *Stream {
	s, ok := e.streams[name]
	if !ok {
		s = newStream(e, name)
		e.streams[name] = s
	}
	return s
}

// Scheduler returns the engine's scheduler.
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// Clock returns the clock stamping instructions and calls.
func (e *Engine) Clock() *Clock { return e.clock }

// Flush runs every pending pass now, ignoring delays.
func (e *Engine) Flush() error { return e.sched.Flush() }

// Run executes timer-driven passes until ctx is cancelled or Stop is
// called.
func (e *Engine) Run(ctx context.Context) error { return e.loop.Run(ctx) }

// Post runs fn on the loop goroutine. Returns false after Stop.
func (e *Engine) Post(fn func()) bool { return e.loop.Post(fn) }

// Stop ends Run.
func (e *Engine) Stop() { e.loop.Close() }
