package engine

import (
	"log/slog"
	"time"

	"github.com/roach88/splice/internal/ir"
)

// PreCompare selects when element props are diffed before emitting updates.
type PreCompare int

const (
	// PreCompareAlways diffs the props of every matched element and emits
	// an update only when the diff is non-empty.
	PreCompareAlways PreCompare = iota
	// PreCompareOnTouch diffs only elements already touched by a move. Other
	// elements whose props were rebuilt get an update carrying the complete
	// prop set, leaving the comparison to the renderer.
	PreCompareOnTouch
)

// Duplication selects what happens when a host is placed a second time
// while already placed elsewhere.
type Duplication int

const (
	// DuplicateAuto clones the host onto a fresh renderer from Cloner.
	DuplicateAuto Duplication = iota
	// DuplicateFactory asks the configured HostFactory for a renderer.
	DuplicateFactory
	// DuplicateRefuse leaves the second placement empty.
	DuplicateRefuse
)

// HostFactory supplies a renderer for the n-th duplicate of a host.
type HostFactory func(orig *Host, n int) (Renderer, error)

// Defaults for the compare depths.
const (
	DefaultPropsDepth = 1
	DefaultStateDepth = 1
)

// Option configures an Engine.
type Option func(*Engine)

// WithUpdateDelay defers update passes by d. Without it, a requested update
// runs synchronously inside the call that requested it.
func WithUpdateDelay(d time.Duration) Option {
	return func(e *Engine) { e.updateDelay = &d }
}

// WithRenderDelay defers the commit of accumulated instructions by d.
func WithRenderDelay(d time.Duration) Option {
	return func(e *Engine) { e.renderDelay = &d }
}

// WithMaxRerenders caps the extra renders a boundary may trigger by changing
// its own state while rendering. Default: DefaultMaxRerenders.
func WithMaxRerenders(n int) Option {
	return func(e *Engine) { e.maxRerenders = n }
}

// WithPropsDepth sets the structural compare depth for props. 0 compares by
// reference; ir.CompareNever and ir.CompareAlways short-circuit.
func WithPropsDepth(n int) Option {
	return func(e *Engine) { e.propsDepth = n }
}

// WithStateDepth sets the structural compare depth for state.
func WithStateDepth(n int) Option {
	return func(e *Engine) { e.stateDepth = n }
}

// WithPreCompare selects the element props compare policy.
func WithPreCompare(p PreCompare) Option {
	return func(e *Engine) { e.preCompare = p }
}

// WithWideKeys enables or disables matching keyed defs across the whole
// render scope. Enabled by default.
func WithWideKeys(on bool) Option {
	return func(e *Engine) { e.wideKeys = on }
}

// WithWideKeysInArrays lets list items match keyed defs outside their list.
func WithWideKeysInArrays(on bool) Option {
	return func(e *Engine) { e.wideKeysInArrays = on }
}

// WithImmediateCalls fires lifecycle calls right after the update pass
// instead of after the render pass.
func WithImmediateCalls(on bool) Option {
	return func(e *Engine) { e.immediateCalls = on }
}

// WithSkipNonRenderable controls whether null and boolean text values are
// left out of the output. Enabled by default.
func WithSkipNonRenderable(on bool) Option {
	return func(e *Engine) { e.skipNonRenderable = on }
}

// WithDuplication selects the host duplication policy.
func WithDuplication(d Duplication) Option {
	return func(e *Engine) { e.duplication = d }
}

// WithHostFactory sets the factory used by DuplicateFactory.
func WithHostFactory(f HostFactory) Option {
	return func(e *Engine) { e.hostFactory = f }
}

// WithTimers replaces the loop-backed timers used for delayed passes.
func WithTimers(t Timers) Option {
	return func(e *Engine) { e.timers = t }
}

// WithPassIDs sets the pass id generator. Default: UUIDv7Generator.
func WithPassIDs(g PassIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithClock sets the logical clock, e.g. to resume numbering.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithHooks registers observation hooks. May be given several times.
func WithHooks(h Hooks) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, h) }
}

// Hooks observe engine activity. Every field is optional.
type Hooks struct {
	// OnBoundaryUpdate fires after each update decision.
	OnBoundaryUpdate func(b *Boundary, rendered bool)
	// OnRerenderCap fires when a render loop hits the cap.
	OnRerenderCap func(b *Boundary, diag *RerenderCapExceeded)
	// OnPassCommitted fires after a host's log has been committed.
	OnPassCommitted func(rec PassRecord)
	// OnPassError fires when a pass aborts.
	OnPassError func(passID string, err error)
}

// PassRecord describes one committed instruction log.
type PassRecord struct {
	ID           string
	Host         string
	Instructions []Instruction
	Calls        []CallRecord
	// Snapshot is the serialized output after the commit. HasSnapshot is
	// false when the renderer cannot serialize itself.
	Snapshot    string
	HasSnapshot bool
	Duration    time.Duration
}

// CallRecord is the storable form of a fired Call.
type CallRecord struct {
	Seq       int64
	Kind      CallKind
	Boundary  uint64
	Component string
}

// Record returns the canonical form of the call.
func (c CallRecord) Record() ir.Object {
	return ir.Object{
		"kind":      ir.String(c.Kind),
		"boundary":  ir.Int(c.Boundary),
		"component": ir.String(c.Component),
	}
}
