package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/splice/internal/def"
)

// grounding is one place a closure's envelope is rendered.
type grounding struct {
	boundary *Boundary
	dup      string
	root     *Applied
	copy     bool
}

// Closure carries the content a source boundary received to wherever its
// passes ground it.
//
// The first pass without a duplication key becomes the true pass and
// renders into the closure's own applied root. Every other grounding is a
// copy with an applied root of its own.
type Closure struct {
	e     *Engine
	owner *Boundary

	envelope []*def.Def
	root     *Applied

	groundings map[*Applied]*grounding
	order      []*Applied
	truePass   *Applied
	pending    map[*Applied]bool

	listeners map[*Boundary]bool
	// chained holds closures whose envelope forwards this one.
	chained  map[*Closure]bool
	upstream []*Closure

	// source is set for closures feeding a stream.
	source *Source
}

func newClosure(e *Engine, owner *Boundary) *Closure {
	return &Closure{
		e:          e,
		owner:      owner,
		groundings: make(map[*Applied]*grounding),
		pending:    make(map[*Applied]bool),
		listeners:  make(map[*Boundary]bool),
		chained:    make(map[*Closure]bool),
	}
}

// Owner returns the boundary the content belongs to.
func (c *Closure) Owner() *Boundary { return c.owner }

// Envelope returns the current content defs.
func (c *Closure) Envelope() []*def.Def { return c.envelope }

// Groundings returns the passes currently grounding the closure, in
// grounding order.
func (c *Closure) Groundings() []*Applied { return slices.Clone(c.order) }

// TruePass returns the pass receiving the content by reference, if any.
func (c *Closure) TruePass() *Applied { return c.truePass }

func (c *Closure) listen(b *Boundary) { c.listeners[b] = true }

// PreRefresh stores env as the new envelope, marks every grounding pending
// and returns the boundaries interested in the change. Callers schedule
// those before calling ApplyRefresh.
func (c *Closure) PreRefresh(env []*def.Def) []*Boundary {
	c.envelope = env
	c.rechain()
	for _, a := range c.order {
		c.pending[a] = true
	}
	return c.interested()
}

// rechain registers c with every closure its envelope forwards.
func (c *Closure) rechain() {
	for _, up := range c.upstream {
		delete(up.chained, c)
	}
	c.upstream = c.upstream[:0]
	if o := c.owner; o != nil && o.closure == c && o.outer != nil && !o.outer.HasContentWithin {
		return
	}
	var scan func(ds []*def.Def)
	scan = func(ds []*def.Def) {
		for _, d := range ds {
			if d == nil || !d.HasPass() {
				continue
			}
			if up, ok := d.Source.(*Closure); ok && up != c && !up.chained[c] {
				up.chained[c] = true
				c.upstream = append(c.upstream, up)
			}
			scan(d.Children)
		}
	}
	scan(c.envelope)
}

// interested collects listeners of c, of every closure reachable through
// chains, and of the stream c feeds while it is the active source.
func (c *Closure) interested() []*Boundary {
	seen := make(map[*Closure]bool)
	set := make(map[*Boundary]bool)
	var out []*Boundary
	add := func(ls map[*Boundary]bool) {
		for b := range ls {
			if b.status == Destroyed {
				delete(ls, b)
				continue
			}
			if !set[b] {
				set[b] = true
				out = append(out, b)
			}
		}
	}
	var visit func(cl *Closure)
	visit = func(cl *Closure) {
		if seen[cl] {
			return
		}
		seen[cl] = true
		add(cl.listeners)
		if src := cl.source; src != nil && src.stream.active == src {
			add(src.stream.listeners)
		}
		for ch := range cl.chained {
			visit(ch)
		}
	}
	visit(c)
	slices.SortFunc(out, func(a, b *Boundary) int { return cmp.Compare(a.id, b.id) })
	return out
}

// ApplyRefresh re-renders the pending groundings, or all of them when
// force is set.
func (c *Closure) ApplyRefresh(force bool, batch *Batch) error {
	for _, a := range slices.Clone(c.order) {
		if !force && !c.pending[a] {
			continue
		}
		if err := c.refresh(a, batch); err != nil {
			return err
		}
	}
	return nil
}

func (c *Closure) refresh(a *Applied, batch *Batch) error {
	delete(c.pending, a)
	g, ok := c.groundings[a]
	if !ok {
		return nil
	}
	return c.e.refreshContent(g.boundary, batch)
}

// Ground renders the envelope at pass a. Grounding an already grounded
// pass only brings its output to the pass's current position.
func (c *Closure) Ground(a *Applied, batch *Batch) error {
	if _, ok := c.groundings[a]; ok {
		if a.Action == ActionMoved {
			a.owner.host.relocate(batch, a.Node)
		}
		return nil
	}

	cb := c.e.newContentBoundary(a, c)
	g := &grounding{boundary: cb, dup: a.Def.Dup}
	if a.Def.Dup == "" && c.truePass == nil {
		c.truePass = a
		if c.root == nil {
			c.root = newRoot()
		}
		g.root = c.root
	} else {
		g.root = newRoot()
		g.copy = true
	}
	cb.inner = g.root

	a.grounded = c
	a.Boundary = cb
	c.groundings[a] = g
	c.order = append(c.order, a)
	return c.e.refreshContent(cb, batch)
}

// Unground removes the content rendered at pass a. Passes that never
// grounded c are ignored.
func (c *Closure) Unground(a *Applied, batch *Batch) error {
	g, ok := c.groundings[a]
	if !ok {
		return nil
	}
	h := g.boundary.host
	h.removeNodes(batch, h.arena.Flatten(a.Node))
	err := c.e.destroyBoundary(g.boundary, batch)
	h.arena.SetChildren(a.Node, nil)

	delete(c.groundings, a)
	delete(c.pending, a)
	if i := slices.Index(c.order, a); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
	if c.truePass == a {
		c.truePass = nil
		c.root = nil
	}
	a.grounded = nil
	a.Boundary = nil
	return err
}

// dispose drops chain registrations once the owner is gone.
func (c *Closure) dispose() {
	for _, up := range c.upstream {
		delete(up.chained, c)
	}
	c.upstream = nil
	clear(c.listeners)
}
