package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/splice/internal/ir"
)

// CompileView parses a CUE value into a NodeSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the node struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`view: home: { tag: "main", children: [...] }`)
//	spec, err := CompileView(v.LookupPath(cue.ParsePath("view.home")))
func CompileView(v cue.Value) (*ir.NodeSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return parseNode(v, "")
}

// nodeFields lists the fields a node struct may carry.
var nodeFields = map[string]bool{
	"tag": true, "text": true, "nil": true, "component": true,
	"fragment": true, "list": true, "scope": true, "pass": true,
	"stream": true, "dup": true, "portal": true, "importance": true,
	"host": true, "key": true, "props": true, "children": true,
}

func parseNode(v cue.Value, path string) (*ir.NodeSpec, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   fieldPath(path, "node"),
			Message: fmt.Sprintf("node must be a struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.NodeSpec{}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		fv := iter.Value()
		field := fieldPath(path, name)
		if !nodeFields[name] {
			return nil, &CompileError{
				Field:   field,
				Message: "unknown node field",
				Pos:     fv.Pos(),
			}
		}

		switch name {
		case "tag":
			spec.Tag, err = stringField(fv, field)
		case "component":
			spec.Component, err = stringField(fv, field)
		case "stream":
			spec.Stream, err = stringField(fv, field)
		case "dup":
			spec.Dup, err = stringField(fv, field)
		case "portal":
			spec.Portal, err = stringField(fv, field)
		case "host":
			spec.Host, err = stringField(fv, field)
		case "key":
			spec.Key, err = stringField(fv, field)
		case "nil":
			spec.Nil, err = boolField(fv, field)
		case "fragment":
			spec.Fragment, err = boolField(fv, field)
		case "list":
			spec.List, err = boolField(fv, field)
		case "scope":
			spec.Scope, err = boolField(fv, field)
		case "pass":
			spec.Pass, err = boolField(fv, field)
		case "importance":
			var n int64
			n, err = fv.Int64()
			if err != nil {
				err = &CompileError{Field: field, Message: "importance must be an integer", Pos: fv.Pos()}
			}
			spec.Rank = int(n)
		case "text":
			spec.Text, err = extractValue(fv, field)
			if err == nil && spec.Text == nil {
				// text: null is the nil marker
				spec.Nil = true
			}
		case "props":
			spec.Props, err = extractProps(fv, field)
		case "children":
			spec.Children, err = parseChildren(fv, field)
		}
		if err != nil {
			return nil, err
		}
	}

	if _, err := spec.Kind(); err != nil {
		return nil, &CompileError{
			Field:   fieldPath(path, "node"),
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return spec, nil
}

func parseChildren(v cue.Value, path string) ([]ir.NodeSpec, error) {
	list, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: path, Message: "children must be a list", Pos: v.Pos()}
	}
	var children []ir.NodeSpec
	for i := 0; list.Next(); i++ {
		child, err := parseNode(list.Value(), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		children = append(children, *child)
	}
	return children, nil
}

func extractProps(v cue.Value, path string) (map[string]any, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: path, Message: "props must be a struct", Pos: v.Pos()}
	}
	raw, err := extractValue(v, path)
	if err != nil {
		return nil, err
	}
	props, _ := raw.(map[string]any)
	return props, nil
}

// extractValue converts a concrete CUE value into the plain Go form that
// ir.FromAny accepts. Floats are forbidden: prop values compare exactly.
func extractValue(v cue.Value, path string) (any, error) {
	if !v.IsConcrete() {
		return nil, &CompileError{Field: path, Message: "value must be concrete", Pos: v.Pos()}
	}
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: path, Message: err.Error(), Pos: v.Pos()}
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   path,
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	case cue.ListKind:
		list, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for i := 0; list.Next(); i++ {
			item, err := extractValue(list.Value(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			name := iter.Selector().Unquoted()
			item, err := extractValue(iter.Value(), fieldPath(path, name))
			if err != nil {
				return nil, err
			}
			out[name] = item
		}
		return out, nil
	}
	return nil, &CompileError{
		Field:   path,
		Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
		Pos:     v.Pos(),
	}
}

func stringField(v cue.Value, path string) (string, error) {
	s, err := v.String()
	if err != nil {
		return "", &CompileError{Field: path, Message: "must be a string", Pos: v.Pos()}
	}
	return s, nil
}

func boolField(v cue.Value, path string) (bool, error) {
	b, err := v.Bool()
	if err != nil {
		return false, &CompileError{Field: path, Message: "must be a boolean", Pos: v.Pos()}
	}
	return b, nil
}

func fieldPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
