package ir

import (
	"errors"
	"fmt"
)

// NodeKind names the kind of node a NodeSpec describes.
type NodeKind string

const (
	NodeElement   NodeKind = "element"
	NodeText      NodeKind = "text"
	NodeComponent NodeKind = "component"
	NodeFragment  NodeKind = "fragment"
	NodeList      NodeKind = "list"
	NodeScope     NodeKind = "scope"
	NodePass      NodeKind = "pass"
	NodePortal    NodeKind = "portal"
	NodeHost      NodeKind = "host"
)

// NodeSpec is a declarative description of a target-def tree.
// YAML scenarios and CUE views both decode into it; exactly one of the kind
// selecting fields (Tag, Text/Nil, Component, Fragment, List, Scope, Pass,
// Stream, Portal, Host) must be set.
type NodeSpec struct {
	Tag       string         `yaml:"tag,omitempty" json:"tag,omitempty"`
	Text      any            `yaml:"text,omitempty" json:"text,omitempty"`
	Nil       bool           `yaml:"nil,omitempty" json:"nil,omitempty"`
	Component string         `yaml:"component,omitempty" json:"component,omitempty"`
	Fragment  bool           `yaml:"fragment,omitempty" json:"fragment,omitempty"`
	List      bool           `yaml:"list,omitempty" json:"list,omitempty"`
	Scope     bool           `yaml:"scope,omitempty" json:"scope,omitempty"`
	Pass      bool           `yaml:"pass,omitempty" json:"pass,omitempty"`
	Stream    string         `yaml:"stream,omitempty" json:"stream,omitempty"`
	Dup       string         `yaml:"dup,omitempty" json:"dup,omitempty"`
	Portal    string         `yaml:"portal,omitempty" json:"portal,omitempty"`
	Rank      int            `yaml:"importance,omitempty" json:"importance,omitempty"`
	Host      string         `yaml:"host,omitempty" json:"host,omitempty"`
	Key       string         `yaml:"key,omitempty" json:"key,omitempty"`
	Props     map[string]any `yaml:"props,omitempty" json:"props,omitempty"`
	Children  []NodeSpec     `yaml:"children,omitempty" json:"children,omitempty"`
}

// ErrNoKind is returned when a NodeSpec selects no kind.
var ErrNoKind = errors.New("node selects no kind")

// Kind resolves which kind the spec describes.
func (n *NodeSpec) Kind() (NodeKind, error) {
	var kinds []NodeKind
	if n.Tag != "" {
		kinds = append(kinds, NodeElement)
	}
	if n.Text != nil || n.Nil {
		kinds = append(kinds, NodeText)
	}
	if n.Component != "" {
		kinds = append(kinds, NodeComponent)
	}
	if n.Fragment {
		kinds = append(kinds, NodeFragment)
	}
	if n.List {
		kinds = append(kinds, NodeList)
	}
	if n.Scope {
		kinds = append(kinds, NodeScope)
	}
	if n.Pass || n.Stream != "" {
		kinds = append(kinds, NodePass)
	}
	if n.Portal != "" {
		kinds = append(kinds, NodePortal)
	}
	if n.Host != "" {
		kinds = append(kinds, NodeHost)
	}
	switch len(kinds) {
	case 0:
		return "", ErrNoKind
	case 1:
		return kinds[0], nil
	}
	return "", fmt.Errorf("node selects several kinds: %v", kinds)
}

// Validate checks the spec tree and returns the first problem found, with a
// path such as "children[1].children[0]".
func (n *NodeSpec) Validate() error {
	return n.validate("node")
}

func (n *NodeSpec) validate(path string) error {
	kind, err := n.Kind()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	switch kind {
	case NodeText, NodePass, NodeHost:
		if len(n.Children) > 0 {
			return fmt.Errorf("%s: %s nodes take no children", path, kind)
		}
	}
	if n.Dup != "" && kind != NodePass {
		return fmt.Errorf("%s: dup is only valid on pass nodes", path)
	}
	if _, err := ObjectFromAny(n.Props); err != nil {
		return fmt.Errorf("%s.props: %w", path, err)
	}
	if n.Text != nil {
		if _, err := FromAny(n.Text); err != nil {
			return fmt.Errorf("%s.text: %w", path, err)
		}
	}
	for i := range n.Children {
		if err := n.Children[i].validate(fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits n and its descendants depth-first, stopping at the first error.
func (n *NodeSpec) Walk(fn func(*NodeSpec) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for i := range n.Children {
		if err := n.Children[i].Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// ComponentSpec declares a template component: a named NodeSpec rendered
// with "$props.<name>" and "$state.<name>" placeholders resolved per render.
type ComponentSpec struct {
	Name          string         `yaml:"name" json:"name"`
	Template      NodeSpec       `yaml:"template" json:"template"`
	ConstantProps []string       `yaml:"constant_props,omitempty" json:"constant_props,omitempty"`
	State         map[string]any `yaml:"state,omitempty" json:"state,omitempty"`
	ShouldUpdate  *bool          `yaml:"should_update,omitempty" json:"should_update,omitempty"`
	PropsDepth    *int           `yaml:"props_depth,omitempty" json:"props_depth,omitempty"`
	StateDepth    *int           `yaml:"state_depth,omitempty" json:"state_depth,omitempty"`
	// Scenarios lists harness scenario files exercising the component,
	// relative to the file that declares it.
	Scenarios []string `yaml:"scenarios,omitempty" json:"scenarios,omitempty"`
}

// Validate checks the template and the initial state.
func (c *ComponentSpec) Validate() error {
	if c.Name == "" {
		return errors.New("component: name is required")
	}
	if _, err := ObjectFromAny(c.State); err != nil {
		return fmt.Errorf("component %s: state: %w", c.Name, err)
	}
	if err := c.Template.validate("template"); err != nil {
		return fmt.Errorf("component %s: %w", c.Name, err)
	}
	return nil
}
