package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/logging"
	"github.com/roach88/splice/internal/render"
	"github.com/roach88/splice/internal/testutil"
	"github.com/roach88/splice/internal/tree"
)

// fixture is an engine with one "main" host on a recorded memory renderer.
type fixture struct {
	e      *engine.Engine
	host   *engine.Host
	mem    *render.Memory
	rec    *render.Recording
	passes []engine.PassRecord
	errs   []error
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()
	f := &fixture{mem: render.NewMemory()}
	f.rec = render.NewRecording(f.mem)
	base := []engine.Option{
		engine.WithLogger(logging.NewNop()),
		engine.WithPassIDs(engine.NewSequenceGenerator("pass")),
		engine.WithHooks(engine.Hooks{
			OnPassCommitted: func(rec engine.PassRecord) { f.passes = append(f.passes, rec) },
			OnPassError:     func(_ string, err error) { f.errs = append(f.errs, err) },
		}),
	}
	f.e = engine.New(append(base, opts...)...)
	h, err := f.e.NewHost("main", f.rec)
	require.NoError(t, err)
	f.host = h
	return f
}

// render renders d at the root and returns the instructions committed by
// that call.
func (f *fixture) render(t *testing.T, d *def.Def) []engine.Instruction {
	t.Helper()
	f.rec.Reset()
	require.NoError(t, f.host.Render(d))
	return f.committed()
}

func (f *fixture) committed() []engine.Instruction {
	var out []engine.Instruction
	for _, l := range f.rec.Logs() {
		out = append(out, l...)
	}
	return out
}

func (f *fixture) snapshot() string { return f.mem.Snapshot() }

// rootApplied returns the applied defs directly below the host root.
func (f *fixture) rootApplied() []*engine.Applied {
	arena := f.host.Arena()
	var out []*engine.Applied
	for _, h := range arena.Get(arena.Root()).Children {
		out = append(out, arena.Get(h).Def)
	}
	return out
}

func (f *fixture) childApplied(a *engine.Applied) []*engine.Applied {
	arena := f.host.Arena()
	var out []*engine.Applied
	for _, h := range arena.Get(a.Node).Children {
		out = append(out, arena.Get(h).Def)
	}
	return out
}

func count(ins []engine.Instruction, op engine.Op) int {
	n := 0
	for _, in := range ins {
		if in.Op == op {
			n++
		}
	}
	return n
}

func props(kv ...any) ir.Object {
	out := ir.Object{}
	for i := 0; i+1 < len(kv); i += 2 {
		v, err := ir.FromAny(kv[i+1])
		if err != nil {
			panic(err)
		}
		out[kv[i].(string)] = v
	}
	return out
}

// probe is a component that records its lifecycle.
type probe struct {
	name   string
	rec    *testutil.Recorder
	render func(s def.Scope) (any, error)
}

func (p *probe) Render(s def.Scope) (any, error) {
	p.rec.Add("render %s", p.name)
	if p.render == nil {
		return nil, nil
	}
	return p.render(s)
}

func (p *probe) DidMount(def.Scope) error {
	p.rec.Add("didMount %s", p.name)
	return nil
}

func (p *probe) DidUpdate(def.Scope, def.Snapshot) error {
	p.rec.Add("didUpdate %s", p.name)
	return nil
}

func (p *probe) DidMove(def.Scope) error {
	p.rec.Add("didMove %s", p.name)
	return nil
}

func (p *probe) WillUnmount(def.Scope) error {
	p.rec.Add("willUnmount %s", p.name)
	return nil
}

func probeType(name string, rec *testutil.Recorder, render func(s def.Scope) (any, error)) *def.Type {
	return &def.Type{
		Name: name,
		New:  func() def.Component { return &probe{name: name, rec: rec, render: render} },
	}
}

// gated refuses every update after the first render.
type gated struct{ probe }

func (g *gated) ShouldUpdate(prev, next def.Snapshot) def.Decision { return def.No }

// refLog records ref events with their node.
type refLog struct {
	events []def.RefEvent
	nodes  []tree.Handle
}

func (r *refLog) Attach(ev def.RefEvent, node tree.Handle) {
	r.events = append(r.events, ev)
	r.nodes = append(r.nodes, node)
}
