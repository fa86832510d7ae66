package render

import (
	"fmt"
	"html"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/tree"
)

type node struct {
	tag      string
	text     string
	props    ir.Object
	parent   tree.Handle
	children []tree.Handle
}

// Memory is an in-process output tree. Handle 0 is its root container.
//
// Commit validates every instruction against the current tree and stops at
// the first one that does not apply, so engine bugs surface as errors
// instead of silently diverging output.
type Memory struct {
	mu      sync.Mutex
	nodes   map[tree.Handle]*node
	commits int
}

// NewMemory creates an empty tree.
func NewMemory() *Memory {
	return &Memory{nodes: map[tree.Handle]*node{0: {tag: "#root"}}}
}

// Commit applies ins in order.
func (m *Memory) Commit(ins []engine.Instruction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	for i, in := range ins {
		if err := m.apply(in); err != nil {
			return fmt.Errorf("instruction %d (%s node %d): %w", i, in.Op, in.Node, err)
		}
	}
	return nil
}

func (m *Memory) apply(in engine.Instruction) error {
	switch in.Op {
	case engine.OpCreate:
		if _, ok := m.nodes[in.Node]; ok {
			return fmt.Errorf("node already exists")
		}
		n := &node{tag: in.Tag, text: in.Text}
		if len(in.Props) > 0 {
			n.props = in.Props.Merge(nil)
		}
		m.nodes[in.Node] = n
		return m.insert(in.Parent, in.Node, in.After)

	case engine.OpUpdate:
		n, err := m.get(in.Node)
		if err != nil {
			return err
		}
		if in.Replace {
			n.props = nil
		}
		for k, v := range in.Props {
			if _, null := v.(ir.Null); null {
				delete(n.props, k)
				continue
			}
			if n.props == nil {
				n.props = ir.Object{}
			}
			n.props[k] = v
		}
		return nil

	case engine.OpContent:
		n, err := m.get(in.Node)
		if err != nil {
			return err
		}
		n.text = in.Text
		return nil

	case engine.OpMove:
		if _, err := m.get(in.Node); err != nil {
			return err
		}
		m.detach(in.Node)
		return m.insert(in.Parent, in.Node, in.After)

	case engine.OpSwap:
		x, err := m.get(in.Node)
		if err != nil {
			return err
		}
		y, err := m.get(in.Other)
		if err != nil {
			return err
		}
		if x.parent != y.parent {
			return fmt.Errorf("swap across parents %d and %d", x.parent, y.parent)
		}
		p := m.nodes[x.parent]
		i, j := slices.Index(p.children, in.Node), slices.Index(p.children, in.Other)
		p.children[i], p.children[j] = in.Other, in.Node
		return nil

	case engine.OpRemove:
		if _, err := m.get(in.Node); err != nil {
			return err
		}
		m.detach(in.Node)
		m.drop(in.Node)
		return nil
	}
	return fmt.Errorf("unknown op %q", in.Op)
}

func (m *Memory) get(h tree.Handle) (*node, error) {
	n, ok := m.nodes[h]
	if !ok || h == 0 {
		return nil, fmt.Errorf("unknown node")
	}
	return n, nil
}

// insert mirrors tree.Arena.Insert: an unknown after appends.
func (m *Memory) insert(parent, h, after tree.Handle) error {
	p, ok := m.nodes[parent]
	if !ok {
		return fmt.Errorf("unknown parent %d", parent)
	}
	idx := 0
	if after != 0 {
		idx = slices.Index(p.children, after) + 1
		if idx == 0 {
			idx = len(p.children)
		}
	}
	p.children = slices.Insert(p.children, idx, h)
	m.nodes[h].parent = parent
	return nil
}

func (m *Memory) detach(h tree.Handle) {
	n := m.nodes[h]
	if p, ok := m.nodes[n.parent]; ok {
		if i := slices.Index(p.children, h); i >= 0 {
			p.children = slices.Delete(p.children, i, i+1)
		}
	}
}

func (m *Memory) drop(h tree.Handle) {
	n := m.nodes[h]
	for _, c := range n.children {
		m.drop(c)
	}
	delete(m.nodes, h)
}

// ReadBack describes a node. Handle 0 describes the root container.
func (m *Memory) ReadBack(h tree.Handle) (engine.NodeInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[h]
	if !ok {
		return engine.NodeInfo{}, false
	}
	return engine.NodeInfo{
		Tag:      n.tag,
		Text:     n.text,
		Props:    n.props.Merge(nil),
		Children: slices.Clone(n.children),
	}, true
}

// Len returns the number of nodes, root excluded.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes) - 1
}

// Commits returns how many logs were committed.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Clone returns an empty tree, for host duplication.
func (m *Memory) Clone() engine.Renderer { return NewMemory() }

// Snapshot serializes the tree as markup: elements as <tag k="v">, text
// escaped, props in sorted order.
func (m *Memory) Snapshot() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sb strings.Builder
	for _, c := range m.nodes[0].children {
		m.write(&sb, c)
	}
	return sb.String()
}

func (m *Memory) write(sb *strings.Builder, h tree.Handle) {
	n := m.nodes[h]
	if n.tag == engine.TextTag {
		sb.WriteString(html.EscapeString(n.text))
		return
	}
	sb.WriteByte('<')
	sb.WriteString(n.tag)
	for _, k := range n.props.SortedKeys() {
		fmt.Fprintf(sb, " %s=\"%s\"", k, html.EscapeString(ir.Text(n.props[k])))
	}
	if len(n.children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteByte('>')
	for _, c := range n.children {
		m.write(sb, c)
	}
	sb.WriteString("</")
	sb.WriteString(n.tag)
	sb.WriteByte('>')
}

var (
	_ engine.Renderer    = (*Memory)(nil)
	_ engine.Cloner      = (*Memory)(nil)
	_ engine.Snapshotter = (*Memory)(nil)
)
