// Package def defines target defs: the immutable per-render descriptions of
// desired output that the engine pairs against its persistent state.
//
// A def's Tag is a closed union decided when the def is built. The engine
// switches on Tag.Kind() and never inspects Go types to find out what a def
// is.
package def

import (
	"fmt"

	"github.com/roach88/splice/internal/ir"
)

// Kind is the closed set of def kinds.
type Kind uint8

const (
	KindElement Kind = iota + 1
	KindText
	KindComponent
	KindFragment
	KindList
	KindScope
	KindPass
	KindPortal
	KindHost
)

var kindNames = map[Kind]string{
	KindElement:   "element",
	KindText:      "text",
	KindComponent: "component",
	KindFragment:  "fragment",
	KindList:      "list",
	KindScope:     "scope",
	KindPass:      "pass",
	KindPortal:    "portal",
	KindHost:      "host",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Tag identifies what a def renders. Tags are comparable and are used as
// map keys when matching defs across renders.
type Tag struct {
	kind Kind
	name string
	typ  *Type
}

// Sentinel tags for the kinds that carry no name.
var (
	TextTag     = Tag{kind: KindText}
	FragmentTag = Tag{kind: KindFragment}
	ListTag     = Tag{kind: KindList}
	ScopeTag    = Tag{kind: KindScope}
	PassTag     = Tag{kind: KindPass}
	PortalTag   = Tag{kind: KindPortal}
)

// ElementTag returns the tag of an element named name.
func ElementTag(name string) Tag { return Tag{kind: KindElement, name: name} }

// ComponentTag returns the tag of a component type.
func ComponentTag(t *Type) Tag { return Tag{kind: KindComponent, typ: t} }

// HostTag returns the tag of a nested host named name.
func HostTag(name string) Tag { return Tag{kind: KindHost, name: name} }

func (t Tag) Kind() Kind   { return t.kind }
func (t Tag) Name() string { return t.name }
func (t Tag) Type() *Type  { return t.typ }

func (t Tag) String() string {
	switch t.kind {
	case KindElement, KindHost:
		return t.kind.String() + ":" + t.name
	case KindComponent:
		if t.typ != nil {
			return "component:" + t.typ.Name
		}
	}
	return t.kind.String()
}

// Def is a target def. Build defs with the constructors below and treat them
// as immutable once handed to the engine.
type Def struct {
	Tag      Tag
	Key      string
	Props    ir.Object
	Value    ir.Value
	Children []*Def
	Refs     []Ref

	// Stream names the stream a pass grounds or a portal feeds.
	Stream string
	// Importance ranks a portal among the sources of its stream.
	Importance int
	// Dup marks a pass as a copy and keys that copy.
	Dup string
	// Source is the content closure a pass forwards. Set by the engine
	// when a component asks its scope for its content.
	Source any
}

// El builds an element def.
func El(name string, props ir.Object, children ...*Def) *Def {
	return &Def{Tag: ElementTag(name), Props: props, Children: children}
}

// Text builds a text def holding s.
func Text(s string) *Def {
	return &Def{Tag: TextTag, Value: ir.String(s)}
}

// Value builds a text def holding an arbitrary value. Null and booleans are
// non-renderable and may be skipped by the engine.
func Value(v ir.Value) *Def {
	if v == nil {
		v = ir.Null{}
	}
	return &Def{Tag: TextTag, Value: v}
}

// Fragment groups children without producing output of its own.
func Fragment(children ...*Def) *Def {
	return &Def{Tag: FragmentTag, Children: children}
}

// List groups array items. Items of a list only match items of the list
// found at the same slot in the previous render.
func List(children ...*Def) *Def {
	return &Def{Tag: ListTag, Children: children}
}

// Isolate groups children in their own key scope: keyed defs inside are
// invisible to wide matching from outside and vice versa.
func Isolate(children ...*Def) *Def {
	return &Def{Tag: ScopeTag, Children: children}
}

// C builds a component def. Children become the component's content.
func C(t *Type, props ir.Object, children ...*Def) *Def {
	return &Def{Tag: ComponentTag(t), Props: props, Children: children}
}

// Pass builds a grounding slot for the content carried by source.
func Pass(source any) *Def {
	return &Def{Tag: PassTag, Source: source}
}

// Copy builds a grounding slot that always receives an independent copy of
// the content, keyed by dup.
func Copy(source any, dup string) *Def {
	return &Def{Tag: PassTag, Source: source, Dup: dup, Key: dup}
}

// StreamPass builds a grounding slot for whichever source currently holds
// the named stream.
func StreamPass(stream string) *Def {
	return &Def{Tag: PassTag, Stream: stream}
}

// Portal feeds children into the named stream with the given importance.
func Portal(stream string, importance int, children ...*Def) *Def {
	return &Def{Tag: PortalTag, Stream: stream, Importance: importance, Children: children}
}

// Host places the named nested host.
func Host(name string) *Def {
	return &Def{Tag: HostTag(name)}
}

// WithKey sets the key and returns d.
func (d *Def) WithKey(key string) *Def {
	d.Key = key
	return d
}

// WithRefs attaches refs and returns d.
func (d *Def) WithRefs(refs ...Ref) *Def {
	d.Refs = append(d.Refs, refs...)
	return d
}

// HasPass reports whether d or any def below it is a content pass.
func (d *Def) HasPass() bool {
	if d == nil {
		return false
	}
	if d.Tag.kind == KindPass {
		return true
	}
	for _, c := range d.Children {
		if c.HasPass() {
			return true
		}
	}
	return false
}

// Normalize turns a render result into a list of defs.
func Normalize(out any) ([]*Def, error) {
	switch v := out.(type) {
	case nil:
		return nil, nil
	case *Def:
		if v == nil {
			return nil, nil
		}
		return []*Def{v}, nil
	case []*Def:
		return v, nil
	case string:
		return []*Def{Text(v)}, nil
	case ir.Value:
		return []*Def{Value(v)}, nil
	case int:
		return []*Def{Value(ir.Int(v))}, nil
	case int64:
		return []*Def{Value(ir.Int(v))}, nil
	case bool:
		return []*Def{Value(ir.Bool(v))}, nil
	}
	return nil, fmt.Errorf("unsupported render output %T", out)
}
