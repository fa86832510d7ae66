package engine

import (
	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/tree"
)

// pair is one grounded slot produced by pairing, in tree pre-order.
type pair struct {
	def     *def.Def
	prev    *def.Def
	applied *Applied
}

type siblingKey struct {
	tag def.Tag
	key string
}

type wideKey struct {
	scope int
	tag   def.Tag
	key   string
}

// pairContext carries the state of one pairing walk. The scope-wide map
// is built from the previous applied tree of a single boundary, so nested
// boundaries never see each other's defs.
type pairContext struct {
	e     *Engine
	b     *Boundary
	arena *tree.Arena[*Applied]

	wide    map[wideKey][]*Applied
	used    map[*Applied]bool
	walked  []*Applied
	pairs   []pair
	orphans []tree.Handle
}

func newPairContext(e *Engine, b *Boundary) *pairContext {
	return &pairContext{
		e:     e,
		b:     b,
		arena: b.host.arena,
		wide:  make(map[wideKey][]*Applied),
		used:  make(map[*Applied]bool),
	}
}

// run pairs targets against the children of root and returns the tree
// nodes that now sit directly below the boundary.
func (c *pairContext) run(root *Applied, targets []*def.Def) []tree.Handle {
	c.collect(root.Children, 0, false)
	children, nodes := c.pairList(root.Children, targets, root, 0, false)
	root.Children = children
	return nodes
}

// collect indexes the previous tree for wide matching and remembers every
// def it passes so the unused ones can be cleaned up.
func (c *pairContext) collect(list []*Applied, scope int, inArray bool) {
	for _, a := range list {
		c.walked = append(c.walked, a)
		if a.Key != "" && (!inArray || c.e.wideKeysInArrays) {
			k := wideKey{scope: scope, tag: a.Tag, key: a.Key}
			c.wide[k] = append(c.wide[k], a)
		}
		switch a.Tag.Kind() {
		case def.KindElement:
			c.collect(a.Children, scope, false)
		case def.KindFragment:
			c.collect(a.Children, scope, inArray)
		case def.KindList:
			c.collect(a.Children, scope, true)
		case def.KindScope:
			c.collect(a.Children, a.ScopeID, false)
		}
	}
}

// unused returns the walked defs that found no match, in pre-order.
func (c *pairContext) unused() []*Applied {
	var out []*Applied
	for _, a := range c.walked {
		if !c.used[a] {
			out = append(out, a)
		}
	}
	return out
}

func (c *pairContext) pairList(prev []*Applied, targets []*def.Def, parent *Applied, scope int, inArray bool) ([]*Applied, []tree.Handle) {
	keyed := make(map[siblingKey][]*Applied)
	unkeyed := make(map[def.Tag][]*Applied)
	for _, a := range prev {
		if a.Key != "" {
			k := siblingKey{a.Tag, a.Key}
			keyed[k] = append(keyed[k], a)
		} else {
			unkeyed[a.Tag] = append(unkeyed[a.Tag], a)
		}
	}
	cursor := make(map[def.Tag]int)

	children := make([]*Applied, 0, len(targets))
	var nodes []tree.Handle
	index := 0
	for _, d := range targets {
		if d == nil {
			continue
		}
		disabled := d.Tag.Kind() == def.KindText && c.e.skipNonRenderable && !ir.Renderable(d.Value)

		a, wide := c.match(d, keyed, unkeyed, cursor, scope, inArray)
		if a == nil {
			a = &Applied{Tag: d.Tag, Key: d.Key, Action: ActionMounted, index: -1}
		} else {
			c.used[a] = true
			moved := wide || a.Parent == nil || a.Parent != parent || (!disabled && a.index != index)
			if moved {
				a.Action = ActionMoved
			} else {
				a.Action = ActionUpdated
			}
		}

		prevDef := a.Def
		a.Def = d
		a.Parent = parent
		a.ScopeID = scope
		a.owner = c.b
		children = append(children, a)

		if disabled {
			a.Disabled = true
			a.index = -1
			if a.Node != 0 {
				c.orphans = append(c.orphans, a.Node)
				a.Node = 0
			}
			continue
		}
		a.Disabled = false
		a.index = index
		index++
		nodes = append(nodes, c.ground(a, prevDef, scope, inArray)...)
	}
	return children, nodes
}

// match applies the matching precedence: sibling first, then the wide map.
// The bool result reports a wide match.
func (c *pairContext) match(d *def.Def, keyed map[siblingKey][]*Applied, unkeyed map[def.Tag][]*Applied,
	cursor map[def.Tag]int, scope int, inArray bool) (*Applied, bool) {
	if d.Key != "" {
		for _, a := range keyed[siblingKey{d.Tag, d.Key}] {
			if !c.used[a] && compatible(a, d) {
				return a, false
			}
		}
		if c.e.wideKeys && (!inArray || c.e.wideKeysInArrays) {
			for _, a := range c.wide[wideKey{scope: scope, tag: d.Tag, key: d.Key}] {
				if !c.used[a] && compatible(a, d) {
					return a, true
				}
			}
		}
		return nil, false
	}

	list := unkeyed[d.Tag]
	for i := cursor[d.Tag]; i < len(list); i++ {
		a := list[i]
		if c.used[a] {
			continue
		}
		if !compatible(a, d) {
			// Leave the candidate for a later sibling; this one remounts.
			return nil, false
		}
		cursor[d.Tag] = i + 1
		return a, false
	}
	return nil, false
}

// compatible rejects candidates whose constant props differ from the target.
func compatible(a *Applied, d *def.Def) bool {
	t := d.Tag.Type()
	if t == nil || len(t.ConstantProps) == 0 || a.Def == nil {
		return true
	}
	for _, name := range t.ConstantProps {
		if !ir.Equal(a.Def.Props.Get(name), d.Props.Get(name)) {
			return false
		}
	}
	return true
}

// ground assigns tree nodes and recurses. It returns the nodes the def
// contributes to its parent's child list: its own node, or for fragments
// the nodes of their children.
func (c *pairContext) ground(a *Applied, prevDef *def.Def, scope int, inArray bool) []tree.Handle {
	d := a.Def
	switch d.Tag.Kind() {
	case def.KindText:
		c.ensureNode(a, tree.NodeDOM)
		c.pairs = append(c.pairs, pair{def: d, prev: prevDef, applied: a})
		return []tree.Handle{a.Node}

	case def.KindElement:
		c.ensureNode(a, tree.NodeDOM)
		c.pairs = append(c.pairs, pair{def: d, prev: prevDef, applied: a})
		children, nodes := c.pairList(a.Children, d.Children, a, scope, false)
		a.Children = children
		c.arena.SetChildren(a.Node, nodes)
		return []tree.Handle{a.Node}

	case def.KindFragment, def.KindList:
		children, nodes := c.pairList(a.Children, d.Children, a, scope, inArray || d.Tag.Kind() == def.KindList)
		a.Children = children
		return nodes

	case def.KindScope:
		if a.ownScope == 0 {
			c.b.nextScope++
			a.ownScope = c.b.nextScope
		}
		inner := a.ownScope
		// A scope forwarding nothing but a pass stays in its parent scope.
		if len(d.Children) == 1 && d.Children[0] != nil && d.Children[0].Tag.Kind() == def.KindPass {
			inner = scope
		}
		a.ScopeID = inner
		children, nodes := c.pairList(a.Children, d.Children, a, inner, false)
		a.Children = children
		return nodes

	case def.KindComponent:
		c.ensureNode(a, tree.NodeBoundary)
	case def.KindPass:
		c.ensureNode(a, tree.NodePass)
	case def.KindPortal:
		c.ensureNode(a, tree.NodePortal)
	case def.KindHost:
		c.ensureNode(a, tree.NodeHost)
	default:
		return nil
	}
	c.pairs = append(c.pairs, pair{def: d, prev: prevDef, applied: a})
	return []tree.Handle{a.Node}
}

func (c *pairContext) ensureNode(a *Applied, t tree.NodeType) {
	if a.Node != 0 && c.arena.Alive(a.Node) {
		return
	}
	a.Node = c.arena.Add(t, a)
}
