package def

import (
	"fmt"
	"strings"

	"github.com/roach88/splice/internal/ir"
)

// Env resolves names while building defs from an ir.NodeSpec.
type Env struct {
	// Types maps component names to their types.
	Types map[string]*Type
	// Scope resolves placeholders and content passes. Nil outside a
	// component render.
	Scope Scope
}

// Placeholder prefixes substituted while building.
const (
	propsPrefix = "$props."
	statePrefix = "$state."
)

// Build converts a declarative node description into a def tree.
func Build(spec *ir.NodeSpec, env Env) (*Def, error) {
	return build(spec, env, "node")
}

func build(spec *ir.NodeSpec, env Env, path string) (*Def, error) {
	kind, err := spec.Kind()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	props, err := ir.ObjectFromAny(spec.Props)
	if err != nil {
		return nil, fmt.Errorf("%s.props: %w", path, err)
	}
	if len(props) > 0 {
		props = env.substituteObject(props)
	} else {
		props = nil
	}

	var d *Def
	switch kind {
	case ir.NodeElement:
		d = El(spec.Tag, props)
	case ir.NodeText:
		if spec.Nil {
			d = Value(ir.Null{})
			break
		}
		v, err := ir.FromAny(spec.Text)
		if err != nil {
			return nil, fmt.Errorf("%s.text: %w", path, err)
		}
		d = Value(env.substitute(v))
	case ir.NodeComponent:
		t, ok := env.Types[spec.Component]
		if !ok {
			return nil, fmt.Errorf("%s: unknown component %q", path, spec.Component)
		}
		d = C(t, props)
	case ir.NodeFragment:
		d = Fragment()
	case ir.NodeList:
		d = List()
	case ir.NodeScope:
		d = Isolate()
	case ir.NodePass:
		switch {
		case spec.Stream != "":
			d = StreamPass(spec.Stream)
		case env.Scope == nil:
			return nil, fmt.Errorf("%s: content pass outside a component", path)
		case spec.Dup != "":
			d = env.Scope.ContentCopy(spec.Dup)
		default:
			d = env.Scope.Content()
		}
	case ir.NodePortal:
		d = Portal(spec.Portal, spec.Rank)
	case ir.NodeHost:
		d = Host(spec.Host)
	default:
		return nil, fmt.Errorf("%s: unsupported kind %s", path, kind)
	}

	if spec.Key != "" {
		d.Key = env.substituteString(spec.Key)
	}
	for i := range spec.Children {
		child, err := build(&spec.Children[i], env, fmt.Sprintf("%s.children[%d]", path, i))
		if err != nil {
			return nil, err
		}
		d.Children = append(d.Children, child)
	}
	return d, nil
}

func (env Env) substitute(v ir.Value) ir.Value {
	s, ok := v.(ir.String)
	if !ok || env.Scope == nil {
		return v
	}
	str := string(s)
	switch {
	case strings.HasPrefix(str, propsPrefix):
		return env.Scope.Props().Get(strings.TrimPrefix(str, propsPrefix))
	case strings.HasPrefix(str, statePrefix):
		return env.Scope.State().Get(strings.TrimPrefix(str, statePrefix))
	}
	return v
}

func (env Env) substituteString(s string) string {
	return ir.Text(env.substitute(ir.String(s)))
}

func (env Env) substituteObject(obj ir.Object) ir.Object {
	if env.Scope == nil {
		return obj
	}
	out := make(ir.Object, len(obj))
	for k, v := range obj {
		out[k] = env.substitute(v)
	}
	return out
}
