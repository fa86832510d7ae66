package engine

import (
	"slices"

	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/tree"
)

// flatEntry caches the desired output children of one output parent.
type flatEntry struct {
	version uint64
	list    []tree.Handle
	pos     map[tree.Handle]int
}

// prev returns the node that should directly precede h, or 0 for the front.
func (f *flatEntry) prev(h tree.Handle) tree.Handle {
	i, ok := f.pos[h]
	if !ok || i == 0 {
		return 0
	}
	return f.list[i-1]
}

func (f *flatEntry) has(h tree.Handle) bool {
	_, ok := f.pos[h]
	return ok
}

// flatOf returns the desired output children of p. Entries are rebuilt
// whenever the arena's desired structure changed.
func (h *Host) flatOf(p tree.Handle) *flatEntry {
	v := h.arena.Version()
	if f, ok := h.flat[p]; ok && f.version == v {
		return f
	}
	list := h.arena.Flatten(p)
	f := &flatEntry{version: v, list: list, pos: make(map[tree.Handle]int, len(list))}
	for i, n := range list {
		f.pos[n] = i
	}
	h.flat[p] = f
	return f
}

// outHandle maps the arena root to the zero parent of instructions.
func (h *Host) outHandle(p tree.Handle) tree.Handle {
	if p == h.arena.Root() {
		return 0
	}
	return p
}

func (h *Host) emit(batch *Batch, ins Instruction) {
	ins.Seq = h.engine.clock.Next()
	batch.Ops = append(batch.Ops, HostInstruction{Host: h, Instruction: ins})
}

// livePrev returns the nearest sibling before node in the output view that
// also belongs to the desired set. Siblings about to be removed are ignored.
func (h *Host) livePrev(p, node tree.Handle, f *flatEntry) tree.Handle {
	out := h.arena.Get(p).OutChildren
	i := slices.Index(out, node)
	for j := i - 1; j >= 0; j-- {
		if f.has(out[j]) {
			return out[j]
		}
	}
	return 0
}

// liveAfter returns the first desired sibling placed after the node after,
// or the first desired sibling when after is zero.
func (h *Host) liveAfter(p, after tree.Handle, f *flatEntry) tree.Handle {
	out := h.arena.Get(p).OutChildren
	start := 0
	if after != 0 {
		i := slices.Index(out, after)
		if i < 0 {
			return 0
		}
		start = i + 1
	}
	for _, c := range out[start:] {
		if f.has(c) {
			return c
		}
	}
	return 0
}

// createNode emits the creation of an output node at its desired position.
func (h *Host) createNode(batch *Batch, node tree.Handle, d *def.Def) {
	p := h.arena.OutputParent(node)
	if p == 0 {
		return
	}
	after := h.flatOf(p).prev(node)
	h.arena.Insert(p, node, after)

	ins := Instruction{Op: OpCreate, Node: node, Parent: h.outHandle(p), After: after}
	switch d.Tag.Kind() {
	case def.KindText:
		ins.Tag = TextTag
		ins.Text = ir.Text(d.Value)
	case def.KindHost:
		ins.Tag = "host:" + d.Tag.Name()
	default:
		ins.Tag = d.Tag.Name()
		if len(d.Props) > 0 {
			ins.Props = d.Props
		}
	}
	h.emit(batch, ins)
}

// placeNode brings an existing output node to its desired position. It
// prefers a single swap when that also settles the displaced sibling and
// falls back to a move. Returns true when an instruction was emitted.
func (h *Host) placeNode(batch *Batch, node tree.Handle) bool {
	p := h.arena.OutputParent(node)
	n := h.arena.Get(node)
	if p == 0 || n == nil {
		return false
	}
	f := h.flatOf(p)
	want := f.prev(node)
	if n.OutParent == p && h.livePrev(p, node, f) == want {
		return false
	}

	if n.OutParent == p {
		if y := h.liveAfter(p, want, f); y != 0 && y != node {
			h.arena.SwapOut(node, y)
			if h.livePrev(p, node, f) == want && h.livePrev(p, y, f) == f.prev(y) {
				h.emit(batch, Instruction{Op: OpSwap, Node: node, Other: y})
				return true
			}
			h.arena.SwapOut(node, y)
		}
	}

	h.arena.Insert(p, node, want)
	h.emit(batch, Instruction{Op: OpMove, Node: node, Parent: h.outHandle(p), After: want})
	return true
}

// relocate places every output node produced below node.
func (h *Host) relocate(batch *Batch, node tree.Handle) {
	n := h.arena.Get(node)
	if n == nil {
		return
	}
	if n.Type.Output() {
		h.placeNode(batch, node)
		return
	}
	for _, c := range h.arena.Flatten(node) {
		h.placeNode(batch, c)
	}
}

// removeNodes emits removals for nodes still attached to the output.
// Nodes below an already removed node need no instruction of their own.
func (h *Host) removeNodes(batch *Batch, nodes []tree.Handle) {
	for _, x := range nodes {
		if !h.arena.Alive(x) || !h.arena.Attached(x) {
			continue
		}
		h.arena.Detach(x)
		h.emit(batch, Instruction{Op: OpRemove, Node: x})
	}
}
