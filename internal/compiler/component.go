package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/splice/internal/ir"
)

// CompileComponent parses a CUE value into a template ComponentSpec.
//
// The CUE value should be the component struct itself, e.g.:
//
//	component: Card: {
//		template: { tag: "div", children: [{pass: true}] }
//		constant_props: ["kind"]
//		state: { open: false }
//	}
//
// The component name is taken from the struct label.
func CompileComponent(v cue.Value) (*ir.ComponentSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ComponentSpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}

	// Parse template (required)
	tmplVal := v.LookupPath(cue.ParsePath("template"))
	if !tmplVal.Exists() {
		return nil, &CompileError{
			Field:   "template",
			Message: "template is required",
			Pos:     v.Pos(),
		}
	}
	tmpl, err := parseNode(tmplVal, "template")
	if err != nil {
		return nil, err
	}
	spec.Template = *tmpl

	// Parse constant_props (optional)
	if cpVal := v.LookupPath(cue.ParsePath("constant_props")); cpVal.Exists() {
		list, err := cpVal.List()
		if err != nil {
			return nil, &CompileError{Field: "constant_props", Message: "must be a list of strings", Pos: cpVal.Pos()}
		}
		for list.Next() {
			name, err := stringField(list.Value(), "constant_props")
			if err != nil {
				return nil, err
			}
			spec.ConstantProps = append(spec.ConstantProps, name)
		}
	}

	// Parse state (optional)
	if stateVal := v.LookupPath(cue.ParsePath("state")); stateVal.Exists() {
		state, err := extractProps(stateVal, "state")
		if err != nil {
			return nil, err
		}
		spec.State = state
	}

	// Parse scenarios (optional)
	if scVal := v.LookupPath(cue.ParsePath("scenarios")); scVal.Exists() {
		list, err := scVal.List()
		if err != nil {
			return nil, &CompileError{Field: "scenarios", Message: "must be a list of strings", Pos: scVal.Pos()}
		}
		for list.Next() {
			path, err := stringField(list.Value(), "scenarios")
			if err != nil {
				return nil, err
			}
			spec.Scenarios = append(spec.Scenarios, path)
		}
	}

	// Parse should_update (optional)
	if suVal := v.LookupPath(cue.ParsePath("should_update")); suVal.Exists() {
		b, err := boolField(suVal, "should_update")
		if err != nil {
			return nil, err
		}
		spec.ShouldUpdate = &b
	}

	// Parse compare depths (optional)
	for _, d := range []struct {
		field string
		dst   **int
	}{
		{"props_depth", &spec.PropsDepth},
		{"state_depth", &spec.StateDepth},
	} {
		dv := v.LookupPath(cue.ParsePath(d.field))
		if !dv.Exists() {
			continue
		}
		n, err := dv.Int64()
		if err != nil {
			return nil, &CompileError{Field: d.field, Message: "must be an integer", Pos: dv.Pos()}
		}
		depth := int(n)
		*d.dst = &depth
	}

	return spec, nil
}
