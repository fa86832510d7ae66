package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/tree"
)

// Host is one output tree: an arena, the renderer mirroring it and the
// root boundary rendering whatever def was last given to Render.
//
// A host may itself be placed inside another host's tree with def.Host.
// Placing it twice duplicates it according to the engine's Duplication
// policy; duplicates share the root def but own their instances.
type Host struct {
	name     string
	index    int
	engine   *Engine
	arena    *tree.Arena[*Applied]
	renderer Renderer
	root     *Boundary
	rootDef  *def.Def
	flat     map[tree.Handle]*flatEntry

	placedAt *Applied
	clones   []*Host
	cloneSeq int
	origin   *Host
}

func (e *Engine) newHost(name string, r Renderer) *Host {
	h := &Host{
		name:     name,
		index:    len(e.hostList),
		engine:   e,
		arena:    tree.New[*Applied](),
		renderer: r,
		flat:     make(map[tree.Handle]*flatEntry),
	}
	b := e.newBoundary(SourceBoundary, nil, h, h.arena.Root())
	b.comp = def.RenderFunc(func(def.Scope) (any, error) { return h.rootDef, nil })
	b.renderFn = b.comp
	b.closure = newClosure(e, b)
	h.root = b

	e.hosts[name] = h
	e.hostList = append(e.hostList, h)
	return h
}

// Name returns the host name. Duplicates are named "<origin>#<n>".
func (h *Host) Name() string { return h.name }

// Root returns the host's root boundary.
func (h *Host) Root() *Boundary { return h.root }

// Arena exposes the host's node arena for inspection.
func (h *Host) Arena() *tree.Arena[*Applied] { return h.arena }

// Renderer returns the renderer the host commits to.
func (h *Host) Renderer() Renderer { return h.renderer }

// Origin returns the host a duplicate was cloned from, or nil.
func (h *Host) Origin() *Host { return h.origin }

// Clones returns the duplicates of h.
func (h *Host) Clones() []*Host { return slices.Clone(h.clones) }

// Render sets the def tree rendered at the root of h and its duplicates and
// requests a forced update. With no update delay the pass runs before
// Render returns.
func (h *Host) Render(d *def.Def) error {
	h.rootDef = d
	if err := h.engine.sched.RequestUpdate(h.root, true); err != nil {
		return err
	}
	for _, c := range h.clones {
		c.rootDef = d
		if err := h.engine.sched.RequestUpdate(c.root, true); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the first source boundary below the root whose component
// is named name, in render order.
func (h *Host) Find(name string) *Boundary {
	var walk func(b *Boundary) *Boundary
	walk = func(b *Boundary) *Boundary {
		for _, c := range b.children {
			if c.kind == SourceBoundary && c.Name() == name {
				return c
			}
			if f := walk(c); f != nil {
				return f
			}
		}
		return nil
	}
	return walk(h.root)
}

// ReadBack asks the renderer about an output node.
func (h *Host) ReadBack(node tree.Handle) (NodeInfo, bool) {
	return h.renderer.ReadBack(node)
}

// attachHost places the named host at placeholder a, duplicating it when it
// is already placed elsewhere.
func (e *Engine) attachHost(a *Applied, name string, batch *Batch) error {
	target := e.hosts[name]
	if target == nil {
		e.log.Warn("unknown host", "host", name)
		return nil
	}
	if target.origin != nil {
		target = target.origin
	}
	if target.placedAt == nil || target.placedAt == a {
		target.placedAt = a
		a.host = target
		return nil
	}

	target.cloneSeq++
	n := target.cloneSeq
	var r Renderer
	switch e.duplication {
	case DuplicateRefuse:
		e.log.Warn("host already placed", "host", name)
		return nil
	case DuplicateFactory:
		if e.hostFactory == nil {
			e.log.Warn("host already placed and no host factory configured", "host", name)
			return nil
		}
		var err error
		if r, err = e.hostFactory(target, n); err != nil {
			return fmt.Errorf("duplicate host %s: %w", name, err)
		}
	default:
		cl, ok := target.renderer.(Cloner)
		if !ok {
			e.log.Warn("host already placed and its renderer cannot be cloned", "host", name)
			return nil
		}
		r = cl.Clone()
	}

	clone := e.newHost(fmt.Sprintf("%s#%d", name, n), r)
	clone.origin = target
	clone.placedAt = a
	clone.rootDef = target.rootDef
	target.clones = append(target.clones, clone)
	a.host = clone
	if clone.rootDef == nil {
		return nil
	}
	_, err := e.updateBoundary(clone.root, true, batch)
	return err
}

// detachHost undoes attachHost. Duplicates are discarded with their
// renderer; the original host keeps its output for a later placement.
func (e *Engine) detachHost(a *Applied) {
	h := a.host
	if h == nil {
		return
	}
	a.host = nil
	if h.origin == nil {
		if h.placedAt == a {
			h.placedAt = nil
		}
		return
	}

	var discard Batch
	if err := e.destroyBoundary(h.root, &discard); err != nil {
		e.log.Warn("discarding host duplicate", "host", h.name, "error", err)
	}
	if i := slices.Index(h.origin.clones, h); i >= 0 {
		h.origin.clones = slices.Delete(h.origin.clones, i, i+1)
	}
	delete(e.hosts, h.name)
	e.sched.dropHost(h)
}
