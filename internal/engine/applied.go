package engine

import (
	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/tree"
)

// Action records how an applied def was paired in its latest render.
type Action uint8

const (
	ActionMounted Action = iota + 1
	ActionMoved
	ActionUpdated
)

func (a Action) String() string {
	switch a {
	case ActionMounted:
		return "mounted"
	case ActionMoved:
		return "moved"
	case ActionUpdated:
		return "updated"
	}
	return "none"
}

// Applied is the persistent counterpart of a target def. It keeps its
// identity across renders for as long as pairing keeps matching it.
type Applied struct {
	Tag      def.Tag
	Key      string
	Def      *def.Def
	Action   Action
	Disabled bool
	Node     tree.Handle
	Children []*Applied
	Parent   *Applied

	// ScopeID is the key scope the def was matched in. For scope defs it is
	// the scope of their children.
	ScopeID int
	// HasContentWithin is set on component defs whose content holds a pass.
	// When it is clear the closure skips scanning its envelope for chains.
	HasContentWithin bool

	// Boundary is the source boundary of a component def or the content
	// boundary of a grounded pass.
	Boundary *Boundary

	owner    *Boundary
	index    int
	ownScope int

	grounded *Closure
	stream   *Stream
	source   *Source
	host     *Host
}

// Owner returns the boundary whose render produced the def.
func (a *Applied) Owner() *Boundary { return a.owner }

// Grounded returns the closure a pass currently grounds, if any.
func (a *Applied) Grounded() *Closure { return a.grounded }

func newRoot() *Applied {
	return &Applied{Tag: def.FragmentTag, Action: ActionMounted}
}

// walkApplied visits the defs below root in pre-order without entering the
// subtrees owned by other boundaries.
func walkApplied(root *Applied, fn func(a *Applied)) {
	for _, a := range root.Children {
		fn(a)
		switch a.Tag.Kind() {
		case def.KindElement, def.KindFragment, def.KindList, def.KindScope:
			walkApplied(a, fn)
		}
	}
}
