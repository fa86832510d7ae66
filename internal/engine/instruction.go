package engine

import (
	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/tree"
)

// Op is the kind of an output mutation.
type Op string

const (
	// OpCreate creates Node and inserts it into Parent right after After.
	OpCreate Op = "create"
	// OpUpdate applies Props to Node: a diff where Null deletes a key, or
	// the complete prop set when Replace is true.
	OpUpdate Op = "update"
	// OpContent replaces the text of a text node.
	OpContent Op = "content"
	// OpMove re-inserts Node into Parent right after After.
	OpMove Op = "move"
	// OpSwap exchanges the positions of sibling nodes Node and Other.
	OpSwap Op = "swap"
	// OpRemove removes Node and everything below it.
	OpRemove Op = "remove"
)

// TextTag is the Tag of created text nodes.
const TextTag = "#text"

// Instruction is one entry of an ordered mutation log. A zero Parent names
// the renderer's root container; a zero After means "first child".
type Instruction struct {
	Seq     int64       `json:"seq"`
	Op      Op          `json:"op"`
	Node    tree.Handle `json:"node"`
	Parent  tree.Handle `json:"parent,omitempty"`
	After   tree.Handle `json:"after,omitempty"`
	Other   tree.Handle `json:"other,omitempty"`
	Tag     string      `json:"tag,omitempty"`
	Text    string      `json:"text,omitempty"`
	Props   ir.Object   `json:"props,omitempty"`
	Replace bool        `json:"replace,omitempty"`
}

// Record returns the canonical form used for storage and digests. Seq is
// left out so equivalent logs produce equal records.
func (i Instruction) Record() ir.Object {
	rec := ir.Object{
		"op":   ir.String(i.Op),
		"node": ir.Int(i.Node),
	}
	if i.Parent != 0 {
		rec["parent"] = ir.Int(i.Parent)
	}
	if i.After != 0 {
		rec["after"] = ir.Int(i.After)
	}
	if i.Other != 0 {
		rec["other"] = ir.Int(i.Other)
	}
	if i.Tag != "" {
		rec["tag"] = ir.String(i.Tag)
	}
	if i.Op == OpContent || i.Tag == TextTag {
		rec["text"] = ir.String(i.Text)
	}
	if i.Props != nil {
		rec["props"] = i.Props
	}
	if i.Replace {
		rec["replace"] = ir.Bool(true)
	}
	return rec
}

// CallKind is the kind of a queued lifecycle call.
type CallKind string

const (
	CallMounted CallKind = "mounted"
	CallUpdated CallKind = "updated"
	CallMoved   CallKind = "moved"
	CallRef     CallKind = "ref"
)

// Call is a lifecycle or ref notification queued until its instructions
// have been committed.
type Call struct {
	Seq      int64
	Kind     CallKind
	Host     *Host
	Boundary *Boundary
	Prev     def.Snapshot

	Ref   def.Ref
	Event def.RefEvent
	Node  tree.Handle
}

// Name returns a short description used in traces.
func (c Call) Name() string {
	if c.Kind == CallRef {
		return string(c.Event)
	}
	if c.Boundary != nil {
		return c.Boundary.Name()
	}
	return ""
}

// HostInstruction is an instruction addressed to a host's renderer.
type HostInstruction struct {
	Host *Host
	Instruction
}

// Batch accumulates the output of an update: instructions for one or more
// hosts, in emission order, and the lifecycle calls they imply.
//
// Emitting an instruction already updates the arena's output view, so a
// Batch must always be handed to the scheduler, even after an error.
type Batch struct {
	Ops   []HostInstruction
	Calls []Call
}

// Merge appends o to b.
func (b *Batch) Merge(o Batch) {
	b.Ops = append(b.Ops, o.Ops...)
	b.Calls = append(b.Calls, o.Calls...)
}

// Empty reports whether the batch holds nothing.
func (b *Batch) Empty() bool {
	return len(b.Ops) == 0 && len(b.Calls) == 0
}

// For returns the instructions addressed to h.
func (b *Batch) For(h *Host) []Instruction {
	var out []Instruction
	for _, op := range b.Ops {
		if op.Host == h {
			out = append(out, op.Instruction)
		}
	}
	return out
}

// Count returns the number of instructions with the given op.
func (b *Batch) Count(op Op) int {
	n := 0
	for _, o := range b.Ops {
		if o.Op == op {
			n++
		}
	}
	return n
}

// split moves the ops addressed to hosts other than local into a new batch.
func (b *Batch) split(local *Host) Batch {
	var foreign Batch
	kept := b.Ops[:0]
	for _, op := range b.Ops {
		if op.Host == local {
			kept = append(kept, op)
		} else {
			foreign.Ops = append(foreign.Ops, op)
		}
	}
	b.Ops = kept
	return foreign
}
