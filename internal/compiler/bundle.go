package compiler

import (
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/splice/internal/ir"
)

// Bundle is everything compiled from one CUE value: named views and
// template components.
type Bundle struct {
	Views      map[string]ir.NodeSpec
	Components []ir.ComponentSpec
}

// NewBundle returns an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{Views: map[string]ir.NodeSpec{}}
}

// ViewNames returns the view names in sorted order.
func (b *Bundle) ViewNames() []string {
	names := make([]string, 0, len(b.Views))
	for name := range b.Views {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Merge adds the views and components of o. A view or component declared
// in both is an error.
func (b *Bundle) Merge(o *Bundle) error {
	for name, v := range o.Views {
		if _, dup := b.Views[name]; dup {
			return fmt.Errorf("view %s declared twice", name)
		}
		b.Views[name] = v
	}
	for _, c := range o.Components {
		if slices.ContainsFunc(b.Components, func(x ir.ComponentSpec) bool { return x.Name == c.Name }) {
			return fmt.Errorf("component %s declared twice", c.Name)
		}
		b.Components = append(b.Components, c)
	}
	return nil
}

// CompileValue compiles the top-level "view" and "component" structs of v.
// Every failing view or component is reported; the bundle holds the ones
// that compiled.
func CompileValue(v cue.Value) (*Bundle, []error) {
	b := NewBundle()
	if err := v.Err(); err != nil {
		return b, []error{formatCUEError(err)}
	}

	var errs []error
	if views := v.LookupPath(cue.ParsePath("view")); views.Exists() {
		iter, err := views.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err))
		} else {
			for iter.Next() {
				name := iter.Selector().Unquoted()
				spec, err := CompileView(iter.Value())
				if err != nil {
					errs = append(errs, fmt.Errorf("view.%s: %w", name, err))
					continue
				}
				b.Views[name] = *spec
			}
		}
	}

	if comps := v.LookupPath(cue.ParsePath("component")); comps.Exists() {
		iter, err := comps.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err))
		} else {
			for iter.Next() {
				spec, err := CompileComponent(iter.Value())
				if err != nil {
					errs = append(errs, fmt.Errorf("component.%s: %w", iter.Selector().Unquoted(), err))
					continue
				}
				b.Components = append(b.Components, *spec)
			}
		}
	}
	return b, errs
}

// CompileFile compiles a single CUE file on its own. Files are not unified
// with each other; use cue/load for multi-file packages.
func CompileFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	b, errs := CompileValue(v)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return b, nil
}
