package engine

import (
	"errors"

	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/tree"
)

// commitBuilder turns the pairs of one boundary render into instructions.
// It never touches a renderer; emitted instructions go to batch and the
// arena's output view is updated as they are emitted.
type commitBuilder struct {
	e     *Engine
	b     *Boundary
	h     *Host
	batch *Batch
	order int
}

// reconcile pairs targets against the children of root, commits the result
// and cleans up what was left unmatched. Cleanup runs even when a nested
// boundary fails so the arena never keeps nodes nothing refers to.
func (e *Engine) reconcile(b *Boundary, root *Applied, targets []*def.Def, batch *Batch) error {
	pc := newPairContext(e, b)
	nodes := pc.run(root, targets)
	b.host.arena.SetChildren(b.node, nodes)

	cb := &commitBuilder{e: e, b: b, h: b.host, batch: batch}
	var err error
	for _, p := range pc.pairs {
		if err = cb.apply(p); err != nil {
			break
		}
	}
	if cerr := cb.cleanup(pc.unused(), pc.orphans); err == nil {
		err = cerr
	}
	return err
}

func (cb *commitBuilder) apply(p pair) error {
	switch p.def.Tag.Kind() {
	case def.KindElement, def.KindText:
		cb.commitDOM(p)
		return nil
	case def.KindComponent:
		return cb.commitComponent(p)
	case def.KindPass:
		return cb.commitPass(p)
	case def.KindPortal:
		return cb.commitPortal(p)
	case def.KindHost:
		return cb.commitHost(p)
	}
	return nil
}

func (cb *commitBuilder) commitDOM(p pair) {
	a, d, prev := p.applied, p.def, p.prev
	n := cb.h.arena.Get(a.Node)
	if n.OutParent == 0 {
		cb.h.createNode(cb.batch, a.Node, d)
		cb.refs(a, def.RefMount)
		return
	}

	moved := cb.h.placeNode(cb.batch, a.Node)
	if moved {
		cb.refs(a, def.RefMove)
	}

	if d.Tag.Kind() == def.KindText {
		if prev == nil || ir.Text(prev.Value) != ir.Text(d.Value) {
			cb.h.emit(cb.batch, Instruction{Op: OpContent, Node: a.Node, Text: ir.Text(d.Value)})
			cb.refs(a, def.RefContent)
		}
		return
	}

	var prevProps ir.Object
	if prev != nil {
		prevProps = prev.Props
	}
	touched := moved || a.Action == ActionMoved
	if cb.e.preCompare == PreCompareOnTouch && !touched {
		// Untouched defs skip the diff; a fresh prop object is sent whole.
		if !ir.SameRef(prevProps, d.Props) {
			cb.h.emit(cb.batch, Instruction{Op: OpUpdate, Node: a.Node, Props: d.Props, Replace: true})
			cb.refs(a, def.RefUpdate)
		}
		return
	}
	if diff := ir.Diff(prevProps, d.Props); diff != nil {
		cb.h.emit(cb.batch, Instruction{Op: OpUpdate, Node: a.Node, Props: diff})
		cb.refs(a, def.RefUpdate)
	}
}

func (cb *commitBuilder) refs(a *Applied, ev def.RefEvent) {
	queueRefs(cb.e, cb.h, a, ev, cb.batch)
}

func queueRefs(e *Engine, h *Host, a *Applied, ev def.RefEvent, batch *Batch) {
	if a.Def == nil {
		return
	}
	for _, r := range a.Def.Refs {
		batch.Calls = append(batch.Calls, Call{
			Seq:   e.clock.Next(),
			Kind:  CallRef,
			Host:  h,
			Ref:   r,
			Event: ev,
			Node:  a.Node,
		})
	}
}

func (cb *commitBuilder) commitComponent(p pair) error {
	a, d := p.applied, p.def
	cb.order++

	child := a.Boundary
	if child == nil || child.status == Destroyed {
		child = cb.e.newSourceBoundary(cb.b, a, d.Tag.Type())
		a.Boundary = child
	}
	child.order = cb.order
	child.setDef(d)

	a.HasContentWithin = false
	for _, c := range d.Children {
		if c.HasPass() {
			a.HasContentWithin = true
			break
		}
	}

	if len(d.Children) > 0 || len(child.closure.envelope) > 0 {
		cb.e.sched.enqueue(child.closure.PreRefresh(d.Children), true)
	}

	if _, err := cb.e.updateBoundary(child, false, cb.batch); err != nil {
		return err
	}
	if err := child.closure.ApplyRefresh(false, cb.batch); err != nil {
		return err
	}

	if a.Action == ActionMoved {
		// A re-render only places the nodes it paired itself. Output left
		// by nested boundaries that skipped their render still has to move.
		cb.h.relocate(cb.batch, a.Node)
		cb.batch.Calls = append(cb.batch.Calls, Call{
			Seq:      cb.e.clock.Next(),
			Kind:     CallMoved,
			Host:     cb.h,
			Boundary: child,
		})
	}
	return nil
}

func (cb *commitBuilder) commitPass(p pair) error {
	a, d, prev := p.applied, p.def, p.prev
	cb.order++

	if prev != nil && prev.Stream != d.Stream && a.stream != nil {
		a.stream.removePass(a)
		a.stream = nil
	}

	var cl *Closure
	if d.Stream != "" {
		s := cb.e.Stream(d.Stream)
		if a.stream != s {
			s.addPass(a)
			a.stream = s
		}
		cl = s.activeClosure()
	} else {
		cl, _ = d.Source.(*Closure)
	}

	if a.grounded != cl {
		if a.grounded != nil {
			if err := a.grounded.Unground(a, cb.batch); err != nil {
				return err
			}
		}
		if cl == nil {
			return nil
		}
		if err := cl.Ground(a, cb.batch); err != nil {
			return err
		}
		a.Boundary.order = cb.order
		return nil
	}
	if cl == nil {
		return nil
	}
	if a.Boundary != nil {
		a.Boundary.order = cb.order
	}
	if cl.pending[a] {
		return cl.refresh(a, cb.batch)
	}
	if a.Action == ActionMoved {
		cb.h.relocate(cb.batch, a.Node)
	}
	return nil
}

func (cb *commitBuilder) commitPortal(p pair) error {
	a, d := p.applied, p.def
	s := cb.e.Stream(d.Stream)

	src := a.source
	if src != nil && src.stream != s {
		out, err := src.stream.Release(src)
		a.source = nil
		src = nil
		if err := errors.Join(err, cb.absorb(out)); err != nil {
			return err
		}
	}

	if src == nil {
		src = newSource(cb.e, cb.b, s, d.Importance)
		a.source = src
		src.closure.PreRefresh(d.Children)
		out, err := s.Claim(src)
		return errors.Join(err, cb.absorb(out))
	}

	cb.e.sched.enqueue(src.closure.PreRefresh(d.Children), true)
	if d.Importance != src.importance {
		src.importance = d.Importance
		out, err := s.Rerank()
		if err := errors.Join(err, cb.absorb(out)); err != nil {
			return err
		}
	}
	return src.closure.ApplyRefresh(false, cb.batch)
}

// absorb merges the output of a stream operation. Instructions addressed to
// other hosts are committed to those hosts straight away.
func (cb *commitBuilder) absorb(out Batch) error {
	return cb.e.absorbInto(cb.batch, cb.h, out)
}

func (e *Engine) absorbInto(batch *Batch, local *Host, out Batch) error {
	foreign := out.split(local)
	batch.Merge(out)
	return e.sched.commitForeign(foreign)
}

func (cb *commitBuilder) commitHost(p pair) error {
	a, d := p.applied, p.def
	n := cb.h.arena.Get(a.Node)
	if n.OutParent == 0 {
		cb.h.createNode(cb.batch, a.Node, d)
		return cb.e.attachHost(a, d.Tag.Name(), cb.batch)
	}
	cb.h.placeNode(cb.batch, a.Node)
	return nil
}

// cleanup removes the output of unused defs, then tears them down.
func (cb *commitBuilder) cleanup(unused []*Applied, orphans []tree.Handle) error {
	arena := cb.h.arena
	var out []tree.Handle
	for _, a := range unused {
		n := arena.Get(a.Node)
		if n == nil {
			continue
		}
		if n.Type.Output() {
			out = append(out, a.Node)
		} else {
			out = append(out, arena.Flatten(a.Node)...)
		}
	}
	out = append(out, orphans...)
	cb.h.removeNodes(cb.batch, out)
	for _, h := range orphans {
		arena.Free(h)
	}

	var first error
	for _, a := range unused {
		if err := cb.e.teardown(a, cb.batch); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// teardown releases everything an applied def holds: its boundary, closure
// grounding, stream source or host placement, and finally its node.
func (e *Engine) teardown(a *Applied, batch *Batch) error {
	var err error
	h := a.owner.host
	switch a.Tag.Kind() {
	case def.KindComponent:
		if a.Boundary != nil {
			err = e.destroyBoundary(a.Boundary, batch)
		}
	case def.KindPass:
		if a.grounded != nil {
			err = a.grounded.Unground(a, batch)
		}
		if a.stream != nil {
			a.stream.removePass(a)
			a.stream = nil
		}
	case def.KindPortal:
		if a.source != nil {
			out, rerr := a.source.stream.Release(a.source)
			a.source = nil
			err = errors.Join(rerr, e.absorbInto(batch, h, out))
		}
	case def.KindHost:
		e.detachHost(a)
	case def.KindElement, def.KindText:
		queueRefs(e, h, a, def.RefUnmount, batch)
	}
	if a.Node != 0 {
		h.arena.Free(a.Node)
		a.Node = 0
	}
	return err
}
