package def

import (
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/tree"
)

// Component is the user-side half of a boundary.
//
// Render may return a *Def, a []*Def, a string, an ir.Value, nil, or a
// RenderFunc. A returned RenderFunc replaces the component's render function
// and is invoked straight away.
type Component interface {
	Render(s Scope) (any, error)
}

// RenderFunc adapts a function to Component.
type RenderFunc func(s Scope) (any, error)

// Render implements Component.
func (f RenderFunc) Render(s Scope) (any, error) { return f(s) }

// Type describes a component constructor.
type Type struct {
	Name string
	New  func() Component

	// ConstantProps lists props whose change forces a remount instead of an
	// update: a previous instance whose value differs never matches.
	ConstantProps []string

	// InitialState seeds the state of each new instance.
	InitialState ir.Object

	// PropsDepth and StateDepth override the engine-wide compare depths.
	PropsDepth *int
	StateDepth *int
}

// Depth returns a pointer to n, for Type.PropsDepth and Type.StateDepth.
func Depth(n int) *int { return &n }

// Scope is what a component sees while rendering.
type Scope interface {
	// Name returns the component type name.
	Name() string
	Props() ir.Object
	State() ir.Object
	// SetState merges patch into the state. Called while the component
	// renders, it re-runs the render instead of scheduling an update.
	SetState(patch ir.Object)
	// Content returns a pass def grounding the content passed to this
	// component.
	Content() *Def
	// ContentCopy returns a pass def that always grounds a copy, keyed by dup.
	ContentCopy(dup string) *Def
	// ContentDefs returns the content defs themselves and subscribes the
	// component to content changes.
	ContentDefs() []*Def
	// StreamDefs returns the content of the named stream's active source and
	// subscribes the component to source and content changes.
	StreamDefs(stream string) []*Def
}

// Snapshot is the props and state a component rendered with.
type Snapshot struct {
	Props ir.Object
	State ir.Object
}

// Decision is the answer of a ShouldUpdater.
type Decision int

const (
	// Unset defers to the compare depths.
	Unset Decision = iota
	Yes
	No
)

// Optional lifecycle hooks. The engine checks each with a type assertion.
type (
	PreMounter interface {
		PreMount(s Scope) error
	}
	DidMounter interface {
		DidMount(s Scope) error
	}
	ShouldUpdater interface {
		ShouldUpdate(prev, next Snapshot) Decision
	}
	BeforeUpdater interface {
		BeforeUpdate(s Scope) error
	}
	PreUpdater interface {
		PreUpdate(s Scope) error
	}
	DidUpdater interface {
		DidUpdate(s Scope, prev Snapshot) error
	}
	DidMover interface {
		DidMove(s Scope) error
	}
	WillUnmounter interface {
		WillUnmount(s Scope) error
	}
)

// RefEvent names the moments a ref is notified.
type RefEvent string

const (
	RefMount   RefEvent = "mount"
	RefUpdate  RefEvent = "update"
	RefMove    RefEvent = "move"
	RefContent RefEvent = "content"
	RefUnmount RefEvent = "unmount"
)

// Ref is attached to a def and notified about the output node it produces.
type Ref interface {
	Attach(ev RefEvent, node tree.Handle)
}

// RefFunc adapts a function to Ref.
type RefFunc func(ev RefEvent, node tree.Handle)

// Attach implements Ref.
func (f RefFunc) Attach(ev RefEvent, node tree.Handle) { f(ev, node) }
