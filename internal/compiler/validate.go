package compiler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/splice/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// ComponentSpec errors (E101-E109)
	ErrComponentNameEmpty  = "E101" // name is required
	ErrDuplicateName       = "E105" // duplicate component name
	ErrFloatTypeForbidden  = "E106" // float values not allowed
	ErrInvalidConstantProp = "E107" // empty or repeated constant prop
	ErrUndeclaredState     = "E108" // $state placeholder without initial state

	// NodeSpec errors (E110-E119)
	ErrInvalidNodeKind      = "E110" // no kind or several kinds selected
	ErrLeafChildren         = "E111" // text, pass or host node with children
	ErrInvalidDup           = "E112" // dup on a non-pass node
	ErrPassOutsideComponent = "E113" // content pass in a view
	ErrDuplicateKey         = "E114" // two siblings share a key
	ErrInvalidValue         = "E115" // prop or text value not representable
	ErrPlaceholderInView    = "E116" // $props/$state outside a template

	// Cross-reference errors (E120-E129)
	ErrUnknownComponent = "E120" // component reference without declaration
	ErrTemplateCycle    = "E121" // template instantiates itself
)

// placeholderPattern matches $props.name and $state.name
var placeholderPattern = regexp.MustCompile(`^\$(props|state)\.(.+)$`)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled view or component on its own.
// Returns all errors found (does not fail-fast).
// Supports NodeSpec (a view) and ComponentSpec types.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.NodeSpec:
		return validateNode(spec, "view", nodeContext{})
	case ir.NodeSpec:
		return validateNode(&spec, "view", nodeContext{})
	case *ir.ComponentSpec:
		return validateComponent(spec)
	case ir.ComponentSpec:
		return validateComponent(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// ValidateSet validates views and components together: each one on its
// own, then component references and template cycles across the set.
// Views are checked in name order.
func ValidateSet(views map[string]ir.NodeSpec, components []ir.ComponentSpec) []ValidationError {
	var errs []ValidationError

	known := make(map[string]bool, len(components))
	for i := range components {
		c := &components[i]
		if c.Name != "" && known[c.Name] {
			errs = append(errs, ValidationError{
				Field:   "component." + c.Name,
				Message: fmt.Sprintf("duplicate component name: %q", c.Name),
				Code:    ErrDuplicateName,
			})
		}
		known[c.Name] = true
		errs = append(errs, validateComponent(c)...)
		errs = append(errs, unknownRefs(&c.Template, "component."+c.Name+".template", components)...)
	}

	names := make([]string, 0, len(views))
	for name := range views {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		v := views[name]
		errs = append(errs, validateNode(&v, "view."+name, nodeContext{})...)
		errs = append(errs, unknownRefs(&v, "view."+name, components)...)
	}

	for _, c := range AnalyzeCycles(components) {
		errs = append(errs, ValidationError{
			Field:   "component." + c.Path[0],
			Message: c.Message,
			Code:    ErrTemplateCycle,
		})
	}
	return errs
}

// unknownRefs reports component references that resolve to nothing.
func unknownRefs(root *ir.NodeSpec, path string, components []ir.ComponentSpec) []ValidationError {
	var errs []ValidationError
	var walk func(n *ir.NodeSpec, p string)
	walk = func(n *ir.NodeSpec, p string) {
		if n.Component != "" && !declared(n.Component, components) {
			errs = append(errs, ValidationError{
				Field:   p,
				Message: fmt.Sprintf("unknown component %q", n.Component),
				Code:    ErrUnknownComponent,
			})
		}
		for i := range n.Children {
			walk(&n.Children[i], fmt.Sprintf("%s.children[%d]", p, i))
		}
	}
	walk(root, path)
	return errs
}

func declared(name string, components []ir.ComponentSpec) bool {
	return slices.ContainsFunc(components, func(c ir.ComponentSpec) bool { return c.Name == name })
}

// nodeContext carries what a node may refer to.
type nodeContext struct {
	inTemplate bool
	state      map[string]any
}

func validateComponent(spec *ir.ComponentSpec) []ValidationError {
	var errs []ValidationError
	prefix := "component." + spec.Name

	// E101: name is required
	if strings.TrimSpace(spec.Name) == "" {
		prefix = "component"
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "component name is required and must be non-empty",
			Code:    ErrComponentNameEmpty,
		})
	}

	seen := make(map[string]bool, len(spec.ConstantProps))
	for i, p := range spec.ConstantProps {
		field := fmt.Sprintf("%s.constant_props[%d]", prefix, i)
		switch {
		case strings.TrimSpace(p) == "":
			errs = append(errs, ValidationError{Field: field, Message: "constant prop name is empty", Code: ErrInvalidConstantProp})
		case seen[p]:
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("constant prop %q listed twice", p), Code: ErrInvalidConstantProp})
		}
		seen[p] = true
	}

	if _, err := ir.ObjectFromAny(spec.State); err != nil {
		errs = append(errs, valueError(prefix+".state", err))
	}

	errs = append(errs, validateNode(&spec.Template, prefix+".template", nodeContext{
		inTemplate: true,
		state:      spec.State,
	})...)
	return errs
}

func validateNode(n *ir.NodeSpec, path string, ctx nodeContext) []ValidationError {
	var errs []ValidationError

	kind, err := n.Kind()
	if err != nil {
		errs = append(errs, ValidationError{Field: path, Message: err.Error(), Code: ErrInvalidNodeKind})
	}
	switch kind {
	case ir.NodeText, ir.NodePass, ir.NodeHost:
		if len(n.Children) > 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".children",
				Message: fmt.Sprintf("%s nodes take no children", kind),
				Code:    ErrLeafChildren,
			})
		}
	}
	if kind == ir.NodePass && n.Stream == "" && !ctx.inTemplate {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: "content pass outside a component template",
			Code:    ErrPassOutsideComponent,
		})
	}
	if n.Dup != "" && kind != ir.NodePass {
		errs = append(errs, ValidationError{Field: path + ".dup", Message: "dup is only valid on pass nodes", Code: ErrInvalidDup})
	}

	if _, err := ir.ObjectFromAny(n.Props); err != nil {
		errs = append(errs, valueError(path+".props", err))
	}
	if n.Text != nil {
		if _, err := ir.FromAny(n.Text); err != nil {
			errs = append(errs, valueError(path+".text", err))
		}
	}
	errs = append(errs, checkPlaceholders(n, path, ctx)...)

	keys := make(map[string]int)
	for i := range n.Children {
		child := &n.Children[i]
		childPath := fmt.Sprintf("%s.children[%d]", path, i)
		if child.Key != "" && !placeholderPattern.MatchString(child.Key) {
			if first, dup := keys[child.Key]; dup {
				errs = append(errs, ValidationError{
					Field:   childPath + ".key",
					Message: fmt.Sprintf("key %q already used by children[%d]", child.Key, first),
					Code:    ErrDuplicateKey,
				})
			} else {
				keys[child.Key] = i
			}
		}
		errs = append(errs, validateNode(child, childPath, ctx)...)
	}
	return errs
}

// checkPlaceholders reports $props/$state strings that cannot resolve.
func checkPlaceholders(n *ir.NodeSpec, path string, ctx nodeContext) []ValidationError {
	var errs []ValidationError
	check := func(field string, v any) {
		s, ok := v.(string)
		if !ok {
			return
		}
		m := placeholderPattern.FindStringSubmatch(s)
		if m == nil {
			return
		}
		if !ctx.inTemplate {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("placeholder %q outside a component template", s),
				Code:    ErrPlaceholderInView,
			})
			return
		}
		if m[1] == "state" {
			if _, ok := ctx.state[m[2]]; !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("state %q has no initial value", m[2]),
					Code:    ErrUndeclaredState,
				})
			}
		}
	}

	check(path+".text", n.Text)
	check(path+".key", n.Key)
	propNames := make([]string, 0, len(n.Props))
	for k := range n.Props {
		propNames = append(propNames, k)
	}
	slices.Sort(propNames)
	for _, k := range propNames {
		check(path+".props."+k, n.Props[k])
	}
	return errs
}

func valueError(field string, err error) ValidationError {
	code := ErrInvalidValue
	if strings.Contains(err.Error(), "float") {
		code = ErrFloatTypeForbidden
	}
	return ValidationError{Field: field, Message: err.Error(), Code: code}
}
