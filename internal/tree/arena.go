// Package tree holds the persistent node graph that mirrors committed output.
//
// Nodes live in an Arena and are addressed by Handle; nothing outside the
// arena owns a node. Every node carries two views of its position:
//
//   - Parent/Children: the desired structure produced by the latest pairing.
//     Boundary, pass and portal nodes are virtual here: their children are
//     spliced into the nearest output ancestor.
//   - OutParent/OutChildren: the structure the renderer will hold once every
//     instruction emitted so far has been applied. Only output nodes (DOM and
//     host placeholders) and the root appear in it.
//
// The commit builder reads the first view and mutates the second as it emits
// instructions, so later placement decisions see the effect of earlier ones.
package tree

import "slices"

// Handle addresses a node in an Arena. The zero Handle means "none".
// Handles are never reused, so a stale handle simply stops resolving.
type Handle uint64

// NodeType classifies tree nodes.
type NodeType uint8

const (
	// NodeRoot is the arena's container node. Exactly one per arena.
	NodeRoot NodeType = iota + 1
	// NodeDOM is an element or text node present in the output.
	NodeDOM
	// NodeBoundary marks a component boundary. Virtual.
	NodeBoundary
	// NodePass marks a content grounding slot. Virtual.
	NodePass
	// NodeHost is the placeholder of a nested host in the output.
	NodeHost
	// NodePortal marks a stream source. Virtual and childless.
	NodePortal
)

func (t NodeType) String() string {
	switch t {
	case NodeRoot:
		return "root"
	case NodeDOM:
		return "dom"
	case NodeBoundary:
		return "boundary"
	case NodePass:
		return "pass"
	case NodeHost:
		return "host"
	case NodePortal:
		return "portal"
	}
	return "unknown"
}

// Output reports whether nodes of this type exist in the renderer's tree.
func (t NodeType) Output() bool {
	return t == NodeDOM || t == NodeHost
}

// Node is a single tree node. Def links back to the paired def that owns it.
type Node[T any] struct {
	Type     NodeType
	Def      T
	Boundary uint64

	Parent   Handle
	Children []Handle

	OutParent   Handle
	OutChildren []Handle
}

// Arena owns every node of one output tree.
type Arena[T any] struct {
	nodes   map[Handle]*Node[T]
	next    Handle
	root    Handle
	version uint64
}

// New creates an arena holding only its root node.
func New[T any]() *Arena[T] {
	a := &Arena[T]{nodes: make(map[Handle]*Node[T])}
	a.root = a.Add(NodeRoot, *new(T))
	return a
}

// Root returns the root handle.
func (a *Arena[T]) Root() Handle { return a.root }

// Add allocates a detached node.
func (a *Arena[T]) Add(t NodeType, def T) Handle {
	a.next++
	a.nodes[a.next] = &Node[T]{Type: t, Def: def}
	return a.next
}

// Get resolves a handle, returning nil for freed or unknown handles.
func (a *Arena[T]) Get(h Handle) *Node[T] {
	if h == 0 {
		return nil
	}
	return a.nodes[h]
}

// Alive reports whether h still resolves.
func (a *Arena[T]) Alive(h Handle) bool {
	_, ok := a.nodes[h]
	return ok && h != 0
}

// Len returns the number of live nodes, root included.
func (a *Arena[T]) Len() int { return len(a.nodes) }

// Free releases a node. The root cannot be freed.
func (a *Arena[T]) Free(h Handle) {
	if h == a.root {
		return
	}
	if _, ok := a.nodes[h]; ok {
		delete(a.nodes, h)
		a.version++
	}
}

// Version changes whenever the desired structure changes.
func (a *Arena[T]) Version() uint64 { return a.version }

// SetChildren replaces the desired children of parent.
func (a *Arena[T]) SetChildren(parent Handle, children []Handle) {
	p := a.Get(parent)
	if p == nil {
		return
	}
	p.Children = children
	for _, c := range children {
		if n := a.Get(c); n != nil {
			n.Parent = parent
		}
	}
	a.version++
}

// OutputParent returns the nearest desired ancestor that exists in the
// output (a DOM node or the root).
func (a *Arena[T]) OutputParent(h Handle) Handle {
	n := a.Get(h)
	for n != nil {
		p := a.Get(n.Parent)
		if p == nil {
			return 0
		}
		if p.Type == NodeDOM || p.Type == NodeRoot {
			return n.Parent
		}
		n = p
	}
	return 0
}

// Flatten returns the output nodes found below h in desired order, looking
// through virtual nodes. Children whose Parent no longer points at their
// listed parent were claimed elsewhere and are skipped.
func (a *Arena[T]) Flatten(h Handle) []Handle {
	var out []Handle
	a.flatten(h, &out)
	return out
}

func (a *Arena[T]) flatten(h Handle, out *[]Handle) {
	n := a.Get(h)
	if n == nil {
		return
	}
	for _, c := range n.Children {
		cn := a.Get(c)
		if cn == nil || cn.Parent != h {
			continue
		}
		if cn.Type.Output() {
			*out = append(*out, c)
			continue
		}
		a.flatten(c, out)
	}
}

// Subtree returns h followed by every output node placed below it.
func (a *Arena[T]) Subtree(h Handle) []Handle {
	out := []Handle{h}
	for i := 0; i < len(out); i++ {
		if n := a.Get(out[i]); n != nil {
			out = append(out, n.OutChildren...)
		}
	}
	return out
}

// OutIndex returns h's position among its output siblings, or -1.
func (a *Arena[T]) OutIndex(h Handle) int {
	n := a.Get(h)
	if n == nil {
		return -1
	}
	p := a.Get(n.OutParent)
	if p == nil {
		return -1
	}
	return slices.Index(p.OutChildren, h)
}

// Placed reports whether h currently sits in the output tree.
func (a *Arena[T]) Placed(h Handle) bool {
	return a.OutIndex(h) >= 0
}

// Attached reports whether h hangs below the root in the output view.
// Nodes below a removed node are no longer attached.
func (a *Arena[T]) Attached(h Handle) bool {
	cur := h
	for cur != a.root {
		n := a.Get(cur)
		if n == nil || n.OutParent == 0 {
			return false
		}
		cur = n.OutParent
	}
	return true
}

// Insert places h in parent's output children right after the sibling after.
// A zero after inserts at the front; an after that is not a child of parent
// appends at the end.
func (a *Arena[T]) Insert(parent, h, after Handle) {
	a.Detach(h)
	p, n := a.Get(parent), a.Get(h)
	if p == nil || n == nil {
		return
	}
	idx := 0
	if after != 0 {
		idx = slices.Index(p.OutChildren, after) + 1
		if idx == 0 {
			idx = len(p.OutChildren)
		}
	}
	p.OutChildren = slices.Insert(p.OutChildren, idx, h)
	n.OutParent = parent
}

// Detach removes h from its output parent.
func (a *Arena[T]) Detach(h Handle) {
	n := a.Get(h)
	if n == nil || n.OutParent == 0 {
		return
	}
	if p := a.Get(n.OutParent); p != nil {
		if i := slices.Index(p.OutChildren, h); i >= 0 {
			p.OutChildren = slices.Delete(p.OutChildren, i, i+1)
		}
	}
	n.OutParent = 0
}

// SwapOut exchanges the output positions of two siblings.
func (a *Arena[T]) SwapOut(x, y Handle) bool {
	nx, ny := a.Get(x), a.Get(y)
	if nx == nil || ny == nil || nx.OutParent != ny.OutParent || nx.OutParent == 0 {
		return false
	}
	p := a.Get(nx.OutParent)
	i, j := slices.Index(p.OutChildren, x), slices.Index(p.OutChildren, y)
	if i < 0 || j < 0 {
		return false
	}
	p.OutChildren[i], p.OutChildren[j] = y, x
	return true
}
