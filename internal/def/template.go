package def

import (
	"fmt"

	"github.com/roach88/splice/internal/ir"
)

// Templates builds one component type per spec. Templates may reference each
// other by name; the returned map is the registry they resolve against.
func Templates(specs []ir.ComponentSpec) (map[string]*Type, error) {
	types := make(map[string]*Type, len(specs))
	for i := range specs {
		spec := specs[i]
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := types[spec.Name]; dup {
			return nil, fmt.Errorf("component %s declared twice", spec.Name)
		}
		state, _ := ir.ObjectFromAny(spec.State)
		t := &Type{
			Name:          spec.Name,
			ConstantProps: spec.ConstantProps,
			InitialState:  state,
			PropsDepth:    spec.PropsDepth,
			StateDepth:    spec.StateDepth,
		}
		t.New = func() Component {
			base := &template{spec: &spec, types: types}
			if spec.ShouldUpdate != nil {
				return &gatedTemplate{template: base, answer: *spec.ShouldUpdate}
			}
			return base
		}
		types[spec.Name] = t
	}
	return types, nil
}

type template struct {
	spec  *ir.ComponentSpec
	types map[string]*Type
}

func (t *template) Render(s Scope) (any, error) {
	return Build(&t.spec.Template, Env{Types: t.types, Scope: s})
}

// gatedTemplate answers ShouldUpdate with a fixed decision.
type gatedTemplate struct {
	*template
	answer bool
}

func (g *gatedTemplate) ShouldUpdate(prev, next Snapshot) Decision {
	if g.answer {
		return Yes
	}
	return No
}
