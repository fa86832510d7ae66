package engine

import (
	"slices"
	"strings"

	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/tree"
)

// BoundaryKind distinguishes component boundaries from content groundings.
type BoundaryKind uint8

const (
	// SourceBoundary owns a component instance and the closure of its content.
	SourceBoundary BoundaryKind = iota + 1
	// ContentBoundary renders a closure's envelope at one grounding pass.
	ContentBoundary
)

// Status is the mount state of a boundary. Destroyed is terminal.
type Status uint8

const (
	Unmounted Status = iota
	Mounted
	Destroyed
)

func (s Status) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounted:
		return "mounted"
	case Destroyed:
		return "destroyed"
	}
	return "unknown"
}

// Boundary is the unit of rendering. Source boundaries run a component;
// content boundaries render forwarded content where a pass grounds it.
type Boundary struct {
	id       uint64
	kind     BoundaryKind
	engine   *Engine
	host     *Host
	parent   *Boundary
	children []*Boundary
	status   Status

	// node is the tree node the boundary renders below.
	node tree.Handle
	// outer is the applied def that placed the boundary; inner is the root
	// of what it rendered.
	outer *Applied
	inner *Applied

	order     int
	nextScope int

	// Source boundaries.
	typ       *def.Type
	comp      def.Component
	renderFn  def.Component
	props     ir.Object
	st        ir.Object
	rendered  def.Snapshot
	closure   *Closure
	rendering bool
	rerender  bool
	forceNext bool

	// Content boundaries.
	source *Closure
}

// ID returns the boundary's engine-unique id.
func (b *Boundary) ID() uint64 { return b.id }

// Kind returns the boundary kind.
func (b *Boundary) Kind() BoundaryKind { return b.kind }

// Status returns the mount state.
func (b *Boundary) Status() Status { return b.status }

// Host returns the host the boundary renders into.
func (b *Boundary) Host() *Host { return b.host }

// Parent returns the boundary that rendered this one.
func (b *Boundary) Parent() *Boundary { return b.parent }

// Children returns the first-generation child boundaries.
func (b *Boundary) Children() []*Boundary { return slices.Clone(b.children) }

// Node returns the boundary's tree node.
func (b *Boundary) Node() tree.Handle { return b.node }

// Closure returns the content closure of a source boundary, or the closure
// a content boundary grounds.
func (b *Boundary) Closure() *Closure {
	if b.kind == ContentBoundary {
		return b.source
	}
	return b.closure
}

// Rendered returns the props and state of the last render.
func (b *Boundary) Rendered() def.Snapshot { return b.rendered }

// Name returns the component type name, "#content" for content boundaries
// and the host name for host roots.
func (b *Boundary) Name() string {
	switch {
	case b.kind == ContentBoundary:
		return "#content"
	case b.typ != nil:
		return b.typ.Name
	case b.parent == nil && b.host != nil:
		return b.host.name
	}
	return "?"
}

// Path joins the names from the host root down to b, e.g. "main/App/Card".
func (b *Boundary) Path() string {
	var names []string
	for x := b; x != nil; x = x.parent {
		names = append(names, x.Name())
	}
	slices.Reverse(names)
	return strings.Join(names, "/")
}

// position returns the sort key used by the update pass: the host index
// followed by the declared position of every ancestor. Ancestors sort
// before descendants because their key is a prefix.
func (b *Boundary) position() []int {
	var p []int
	for x := b; x != nil; x = x.parent {
		p = append(p, x.order)
	}
	p = append(p, b.host.index)
	slices.Reverse(p)
	return p
}

func (b *Boundary) addChild(c *Boundary) {
	b.children = append(b.children, c)
}

func (b *Boundary) removeChild(c *Boundary) {
	if i := slices.Index(b.children, c); i >= 0 {
		b.children = slices.Delete(b.children, i, i+1)
	}
}

// setDef records the props of the def that placed a source boundary.
func (b *Boundary) setDef(d *def.Def) {
	b.props = d.Props
}

// Scope implementation.

func (b *Boundary) Props() ir.Object { return b.props }
func (b *Boundary) State() ir.Object { return b.st }

// SetState merges patch into the state. While rendering it asks the render
// loop for another round; otherwise it requests an update.
func (b *Boundary) SetState(patch ir.Object) {
	if b.status == Destroyed {
		return
	}
	b.st = b.st.Merge(patch)
	if b.rendering {
		b.rerender = true
		return
	}
	if err := b.engine.sched.RequestUpdate(b, false); err != nil {
		b.engine.log.Error("state update failed", "boundary", b.Path(), "error", err)
	}
}

func (b *Boundary) Content() *def.Def { return def.Pass(b.closure) }

func (b *Boundary) ContentCopy(dup string) *def.Def { return def.Copy(b.closure, dup) }

func (b *Boundary) ContentDefs() []*def.Def {
	b.closure.listen(b)
	return b.closure.envelope
}

func (b *Boundary) StreamDefs(name string) []*def.Def {
	s := b.engine.Stream(name)
	s.listen(b)
	if cl := s.activeClosure(); cl != nil {
		return cl.envelope
	}
	return nil
}

var _ def.Scope = (*Boundary)(nil)

func (e *Engine) newBoundary(kind BoundaryKind, parent *Boundary, h *Host, node tree.Handle) *Boundary {
	e.nextBoundary++
	b := &Boundary{
		id:     e.nextBoundary,
		kind:   kind,
		engine: e,
		host:   h,
		parent: parent,
		node:   node,
		inner:  newRoot(),
	}
	if parent != nil {
		parent.addChild(b)
	}
	if n := h.arena.Get(node); n != nil {
		n.Boundary = b.id
	}
	return b
}

// newSourceBoundary creates the boundary of a component def.
func (e *Engine) newSourceBoundary(parent *Boundary, a *Applied, t *def.Type) *Boundary {
	b := e.newBoundary(SourceBoundary, parent, parent.host, a.Node)
	b.outer = a
	b.typ = t
	b.closure = newClosure(e, b)
	return b
}

// newContentBoundary creates the boundary rendering a closure at pass a.
func (e *Engine) newContentBoundary(a *Applied, c *Closure) *Boundary {
	b := e.newBoundary(ContentBoundary, a.owner, a.owner.host, a.Node)
	b.outer = a
	b.source = c
	return b
}

func (e *Engine) propsDepthOf(t *def.Type) int {
	if t != nil && t.PropsDepth != nil {
		return *t.PropsDepth
	}
	return e.propsDepth
}

func (e *Engine) stateDepthOf(t *def.Type) int {
	if t != nil && t.StateDepth != nil {
		return *t.StateDepth
	}
	return e.stateDepth
}

// updateBoundary decides whether b renders and, if so, renders and commits
// it into batch. It reports whether a render happened.
func (e *Engine) updateBoundary(b *Boundary, force bool, batch *Batch) (bool, error) {
	if b.status == Destroyed {
		return false, nil
	}
	if b.kind == ContentBoundary {
		return true, e.refreshContent(b, batch)
	}

	delete(e.sched.pending, b)
	if b.forceNext {
		force = true
		b.forceNext = false
	}

	next := def.Snapshot{Props: b.props, State: b.st}
	first := b.status == Unmounted
	if b.comp == nil {
		if b.typ == nil || b.typ.New == nil {
			return false, newRenderError(b, errNoConstructor)
		}
		b.comp = b.typ.New()
		b.renderFn = b.comp
		b.st = b.typ.InitialState
		if pm, ok := b.comp.(def.PreMounter); ok {
			b.rendering = true
			err := pm.PreMount(b)
			b.rendering = false
			if err != nil {
				return false, newHookError(b, "PreMount", err)
			}
		}
	}
	if first {
		next.State = b.st
		force = true
	}

	if !force && !e.shouldUpdate(b, next) {
		e.fireBoundaryUpdate(b, false)
		return false, nil
	}

	if !first {
		if bu, ok := b.comp.(def.BeforeUpdater); ok {
			if err := bu.BeforeUpdate(b); err != nil {
				return false, newHookError(b, "BeforeUpdate", err)
			}
		}
	}

	out, err := e.renderLoop(b)
	if err != nil {
		return false, err
	}
	targets, err := def.Normalize(out)
	if err != nil {
		return false, newRenderError(b, err)
	}

	prev := b.rendered
	b.rendered = def.Snapshot{Props: b.props, State: b.st}
	if err := e.reconcile(b, b.inner, targets, batch); err != nil {
		return true, err
	}

	if !first {
		if pu, ok := b.comp.(def.PreUpdater); ok {
			if err := pu.PreUpdate(b); err != nil {
				return true, newHookError(b, "PreUpdate", err)
			}
		}
	}

	b.status = Mounted
	call := Call{Seq: e.clock.Next(), Kind: CallUpdated, Host: b.host, Boundary: b, Prev: prev}
	if first {
		call.Kind = CallMounted
	}
	batch.Calls = append(batch.Calls, call)
	e.fireBoundaryUpdate(b, true)
	return true, nil
}

// shouldUpdate applies the component's override, then the compare depths.
func (e *Engine) shouldUpdate(b *Boundary, next def.Snapshot) bool {
	if su, ok := b.comp.(def.ShouldUpdater); ok {
		switch su.ShouldUpdate(b.rendered, next) {
		case def.Yes:
			return true
		case def.No:
			return false
		}
	}
	if !ir.EqualDepth(b.rendered.Props, next.Props, e.propsDepthOf(b.typ)) {
		return true
	}
	return !ir.EqualDepth(b.rendered.State, next.State, e.stateDepthOf(b.typ))
}

// renderLoop calls the render function until the component stops changing
// its own state or the rerender budget is spent.
func (e *Engine) renderLoop(b *Boundary) (any, error) {
	budget := newRerenderBudget(e.maxRerenders)
	var out any
	for {
		b.rendering = true
		b.rerender = false
		budget.Render()
		res, err := b.renderFn.Render(b)
		if fn, ok := res.(def.RenderFunc); ok && err == nil {
			b.renderFn = fn
			res, err = fn.Render(b)
		}
		b.rendering = false
		if err != nil {
			return nil, newRenderError(b, err)
		}
		out = res

		if !b.rerender {
			return out, nil
		}
		if !budget.Allow() {
			diag := &RerenderCapExceeded{Boundary: b.Path(), Renders: budget.Renders(), Limit: e.maxRerenders}
			e.log.Warn("render loop capped", "boundary", diag.Boundary, "renders", diag.Renders, "limit", diag.Limit)
			for _, h := range e.hooks {
				if h.OnRerenderCap != nil {
					h.OnRerenderCap(b, diag)
				}
			}
			b.rerender = false
			return out, nil
		}
	}
}

func (e *Engine) fireBoundaryUpdate(b *Boundary, rendered bool) {
	for _, h := range e.hooks {
		if h.OnBoundaryUpdate != nil {
			h.OnBoundaryUpdate(b, rendered)
		}
	}
}

// refreshContent re-renders a closure's envelope at one grounding.
func (e *Engine) refreshContent(b *Boundary, batch *Batch) error {
	if b.status == Destroyed {
		return nil
	}
	delete(e.sched.pending, b)
	if b.source != nil {
		delete(b.source.pending, b.outer)
	}
	var env []*def.Def
	if b.source != nil {
		env = b.source.envelope
	}
	err := e.reconcile(b, b.inner, env, batch)
	if b.status == Unmounted {
		b.status = Mounted
	}
	e.fireBoundaryUpdate(b, true)
	return err
}

// destroyBoundary unmounts b and everything it rendered. The output nodes
// are expected to have been removed by the caller already.
func (e *Engine) destroyBoundary(b *Boundary, batch *Batch) error {
	if b.status == Destroyed {
		return nil
	}
	var err error
	if b.comp != nil {
		if wu, ok := b.comp.(def.WillUnmounter); ok {
			if herr := wu.WillUnmount(b); herr != nil {
				err = newHookError(b, "WillUnmount", herr)
			}
		}
	}
	b.status = Destroyed
	b.forceNext = false
	delete(e.sched.pending, b)

	walkApplied(b.inner, func(a *Applied) {
		if terr := e.teardown(a, batch); terr != nil && err == nil {
			err = terr
		}
	})
	b.inner.Children = nil
	if b.closure != nil {
		b.closure.dispose()
	}
	if b.parent != nil {
		b.parent.removeChild(b)
	}
	return err
}

// UpdateBoundary runs the update decision for b and returns the
// instructions it produced without committing them.
func (e *Engine) UpdateBoundary(b *Boundary, force bool) (Batch, error) {
	var batch Batch
	_, err := e.updateBoundary(b, force, &batch)
	return batch, err
}

// RunBoundaryUpdate updates b and hands the result to the scheduler. The
// batch is absorbed even on error: emitted instructions are not rolled back.
func (e *Engine) RunBoundaryUpdate(b *Boundary, force bool) error {
	batch, err := e.UpdateBoundary(b, force)
	e.sched.AbsorbInstructions(batch)
	return err
}

// RunContentPassUpdate refreshes a content boundary and hands the result to
// the scheduler.
func (e *Engine) RunContentPassUpdate(b *Boundary) error {
	var batch Batch
	err := e.refreshContent(b, &batch)
	e.sched.AbsorbInstructions(batch)
	return err
}
