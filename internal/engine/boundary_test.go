package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/logging"
	"github.com/roach88/splice/internal/render"
	"github.com/roach88/splice/internal/testutil"
)

func TestBoundary_LifecycleOrder(t *testing.T) {
	f := newFixture(t)
	rec := testutil.NewRecorder()
	item := probeType("Item", rec, func(s def.Scope) (any, error) {
		return def.El("li", nil), nil
	})
	app := probeType("App", rec, func(s def.Scope) (any, error) {
		return def.El("ul", s.Props(), def.C(item, nil)), nil
	})

	f.render(t, def.C(app, props("v", 1)))
	assert.Equal(t, []string{"render App", "render Item", "didMount Item", "didMount App"}, rec.Events())
	assert.Equal(t, `<ul v="1"><li/></ul>`, f.snapshot())

	rec.Reset()
	f.render(t, def.C(app, props("v", 2)))
	assert.Equal(t, []string{"render App", "didUpdate App"}, rec.Events(), "Item props are unchanged")

	rec.Reset()
	f.render(t, nil)
	assert.Equal(t, []string{"willUnmount App", "willUnmount Item"}, rec.Events())
	assert.Equal(t, "", f.snapshot())
}

func TestBoundary_Tree(t *testing.T) {
	f := newFixture(t)
	rec := testutil.NewRecorder()
	leaf := probeType("Leaf", rec, nil)
	mid := probeType("Mid", rec, func(s def.Scope) (any, error) { return def.C(leaf, nil), nil })
	f.render(t, def.C(mid, nil))

	m := f.host.Find("Mid")
	require.NotNil(t, m)
	l := f.host.Find("Leaf")
	require.NotNil(t, l)

	assert.Same(t, m, l.Parent())
	assert.Same(t, f.host.Root(), m.Parent())
	assert.Equal(t, "main/Mid/Leaf", l.Path())
	assert.Equal(t, engine.Mounted, l.Status())
	assert.Equal(t, engine.SourceBoundary, l.Kind())
	assert.Len(t, m.Children(), 1)

	f.render(t, nil)
	assert.Equal(t, engine.Destroyed, l.Status())
	assert.Equal(t, engine.Destroyed, m.Status())
	assert.Empty(t, f.host.Root().Children())
}

func TestBoundary_ShouldUpdateNo(t *testing.T) {
	f := newFixture(t)
	rec := testutil.NewRecorder()
	typ := &def.Type{
		Name: "Gate",
		New: func() def.Component {
			return &gated{probe{name: "Gate", rec: rec, render: func(s def.Scope) (any, error) {
				return def.El("p", s.Props()), nil
			}}}
		},
	}
	f.render(t, def.C(typ, props("v", 1)))
	rec.Reset()

	ins := f.render(t, def.C(typ, props("v", 2)))
	assert.Empty(t, ins)
	assert.Empty(t, rec.Events())
	assert.Equal(t, `<p v="1"/>`, f.snapshot())
	assert.Equal(t, props("v", 1), f.host.Find("Gate").Rendered().Props)
}

func TestBoundary_PropsDepth(t *testing.T) {
	rec := testutil.NewRecorder()
	typ := probeType("Deep", rec, nil)
	nested := func() ir.Object { return ir.Object{"o": ir.Object{"x": ir.Int(1)}} }

	f := newFixture(t)
	f.render(t, def.C(typ, nested()))
	f.render(t, def.C(typ, nested()))
	assert.Equal(t, 2, rec.Count("render"), "depth 1 compares nested objects by reference")

	rec.Reset()
	g := newFixture(t, engine.WithPropsDepth(2))
	g.render(t, def.C(typ, nested()))
	g.render(t, def.C(typ, nested()))
	assert.Equal(t, 1, rec.Count("render"))
}

func TestBoundary_RerenderCap(t *testing.T) {
	var diags []*engine.RerenderCapExceeded
	f := newFixture(t, engine.WithHooks(engine.Hooks{
		OnRerenderCap: func(_ *engine.Boundary, d *engine.RerenderCapExceeded) { diags = append(diags, d) },
	}))
	renders := 0
	typ := &def.Type{
		Name: "Runaway",
		New: func() def.Component {
			return def.RenderFunc(func(s def.Scope) (any, error) {
				renders++
				n, _ := s.State().Get("n").(ir.Int)
				s.SetState(ir.Object{"n": n + 1})
				return def.El("p", nil, def.Value(n)), nil
			})
		},
	}

	f.render(t, def.C(typ, nil))
	assert.Equal(t, 2, renders)
	assert.Equal(t, "<p>1</p>", f.snapshot(), "the latest output is kept")
	require.Len(t, diags, 1)
	assert.Equal(t, "main/Runaway", diags[0].Boundary)
	assert.Equal(t, 2, diags[0].Renders)
	assert.Equal(t, 1, diags[0].Limit)
	assert.Equal(t, 0, f.e.Scheduler().Pending())
}

func TestBoundary_SettlingRerender(t *testing.T) {
	f := newFixture(t, engine.WithHooks(engine.Hooks{
		OnRerenderCap: func(*engine.Boundary, *engine.RerenderCapExceeded) { t.Error("cap reached") },
	}))
	renders := 0
	typ := &def.Type{
		Name: "Settle",
		New: func() def.Component {
			return def.RenderFunc(func(s def.Scope) (any, error) {
				renders++
				if _, ok := s.State().Get("ready").(ir.Bool); !ok {
					s.SetState(ir.Object{"ready": ir.Bool(true)})
					return def.Text("loading"), nil
				}
				return def.Text("ready"), nil
			})
		},
	}
	f.render(t, def.C(typ, nil))
	assert.Equal(t, 2, renders)
	assert.Equal(t, "ready", f.snapshot())
}

func TestBoundary_RenderFuncResult(t *testing.T) {
	f := newFixture(t)
	setups := 0
	typ := &def.Type{
		Name: "Setup",
		New: func() def.Component {
			return def.RenderFunc(func(def.Scope) (any, error) {
				setups++
				return def.RenderFunc(func(s def.Scope) (any, error) {
					return def.El("p", s.Props()), nil
				}), nil
			})
		},
	}
	f.render(t, def.C(typ, props("v", 1)))
	f.render(t, def.C(typ, props("v", 2)))
	assert.Equal(t, 1, setups, "the returned function replaces the outer one")
	assert.Equal(t, `<p v="2"/>`, f.snapshot())
}

func TestBoundary_ExternalSetState(t *testing.T) {
	f := newFixture(t)
	typ := &def.Type{
		Name:         "Counter",
		InitialState: ir.Object{"n": ir.Int(0)},
		New: func() def.Component {
			return def.RenderFunc(func(s def.Scope) (any, error) {
				return def.El("span", nil, def.Value(s.State().Get("n"))), nil
			})
		},
	}
	f.render(t, def.C(typ, nil))
	assert.Equal(t, "<span>0</span>", f.snapshot())

	f.rec.Reset()
	f.host.Find("Counter").SetState(ir.Object{"n": ir.Int(5)})
	assert.Equal(t, "<span>5</span>", f.snapshot())
	assert.Equal(t, 1, count(f.committed(), engine.OpContent))
}

func TestBoundary_RenderError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	typ := &def.Type{
		Name: "Broken",
		New: func() def.Component {
			return def.RenderFunc(func(def.Scope) (any, error) { return nil, boom })
		},
	}

	err := f.host.Render(def.El("div", nil, def.C(typ, nil)))
	require.Error(t, err)
	assert.True(t, engine.IsRenderError(err))
	assert.ErrorIs(t, err, boom)

	var pe *engine.PassError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "main/Broken", pe.Boundary)
	require.Len(t, f.errs, 1)
}

func TestBoundary_NoConstructor(t *testing.T) {
	f := newFixture(t)
	err := f.host.Render(def.C(&def.Type{Name: "Empty"}, nil))
	assert.True(t, engine.IsRenderError(err))
}

type failingHook struct{ def.RenderFunc }

func (failingHook) DidMount(def.Scope) error { return errors.New("nope") }

func TestBoundary_HookError(t *testing.T) {
	f := newFixture(t)
	typ := &def.Type{
		Name: "Hooked",
		New: func() def.Component {
			return failingHook{def.RenderFunc(func(def.Scope) (any, error) { return def.Text("x"), nil })}
		},
	}
	err := f.host.Render(def.C(typ, nil))
	require.Error(t, err)
	assert.True(t, engine.IsHookError(err))
	assert.Equal(t, "x", f.snapshot(), "instructions were committed before the hook ran")
}

func TestBoundary_CommitError(t *testing.T) {
	e := engine.New(engine.WithLogger(logging.NewNop()))
	h, err := e.NewHost("main", render.NewFailing())
	require.NoError(t, err)

	err = h.Render(def.El("p", nil))
	require.Error(t, err)
	assert.True(t, engine.IsCommitError(err))
	assert.ErrorIs(t, err, render.ErrRejected)
}

func TestBoundary_UpdateBoundaryDoesNotCommit(t *testing.T) {
	f := newFixture(t)
	typ := &def.Type{
		Name: "Label",
		New: func() def.Component {
			return def.RenderFunc(func(s def.Scope) (any, error) {
				return def.El("b", nil, def.Value(s.State().Get("t"))), nil
			})
		},
	}
	f.render(t, def.C(typ, nil))
	b := f.host.Find("Label")
	f.rec.Reset()

	batch, err := f.e.UpdateBoundary(b, true)
	require.NoError(t, err)
	assert.Empty(t, batch.Ops, "nothing changed")
	assert.Len(t, batch.Calls, 1)
	assert.Equal(t, engine.CallUpdated, batch.Calls[0].Kind)
	assert.Empty(t, f.committed())
}
