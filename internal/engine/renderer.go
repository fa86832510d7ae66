package engine

import (
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/tree"
)

// Renderer applies instruction logs to a live output backend.
//
// Commit receives instructions in exact emission order and is assumed to be
// synchronous and non-reentrant.
type Renderer interface {
	Commit(ins []Instruction) error
	// ReadBack describes an output node the renderer holds.
	ReadBack(node tree.Handle) (NodeInfo, bool)
}

// NodeInfo is what a renderer reports about one of its nodes.
type NodeInfo struct {
	Tag      string
	Text     string
	Props    ir.Object
	Children []tree.Handle
}

// Cloner is implemented by renderers that can produce an empty sibling
// renderer. Used to duplicate hosts under DuplicateAuto.
type Cloner interface {
	Clone() Renderer
}

// Snapshotter is implemented by renderers that can serialize their output.
// The snapshot is recorded with every committed pass.
type Snapshotter interface {
	Snapshot() string
}
