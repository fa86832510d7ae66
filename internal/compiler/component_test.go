package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileComponent(t *testing.T) {
	v := compileCUE(t, `
component: Card: {
	template: {
		tag: "div"
		props: {class: "$props.kind"}
		children: [{text: "$state.label"}, {pass: true}, {pass: true, dup: "copy"}]
	}
	constant_props: ["kind"]
	state: {label: "card", open: false}
	should_update: false
	props_depth: 2
	state_depth: 0
}
`)
	spec, err := CompileComponent(v.LookupPath(cue.ParsePath("component.Card")))
	require.NoError(t, err)

	assert.Equal(t, "Card", spec.Name)
	assert.Equal(t, "div", spec.Template.Tag)
	assert.Len(t, spec.Template.Children, 3)
	assert.Equal(t, "copy", spec.Template.Children[2].Dup)
	assert.Equal(t, []string{"kind"}, spec.ConstantProps)
	assert.Equal(t, map[string]any{"label": "card", "open": false}, spec.State)
	require.NotNil(t, spec.ShouldUpdate)
	assert.False(t, *spec.ShouldUpdate)
	require.NotNil(t, spec.PropsDepth)
	assert.Equal(t, 2, *spec.PropsDepth)
	require.NotNil(t, spec.StateDepth)
	assert.Equal(t, 0, *spec.StateDepth)

	assert.Empty(t, Validate(spec))
}

func TestCompileComponent_QuotedName(t *testing.T) {
	v := compileCUE(t, `component: "side-bar": template: {tag: "aside"}`)
	spec, err := CompileComponent(v.LookupPath(cue.MakePath(cue.Str("component"), cue.Str("side-bar"))))
	require.NoError(t, err)
	assert.Equal(t, "side-bar", spec.Name)
	assert.Nil(t, spec.ShouldUpdate)
	assert.Nil(t, spec.PropsDepth)
}

func TestCompileComponent_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing template", `component: C: {state: {}}`, "template"},
		{"bad template", `component: C: template: {bogus: true}`, "template.bogus"},
		{"constant_props not list", `component: C: {template: {tag: "p"}, constant_props: "kind"}`, "constant_props"},
		{"constant_props item", `component: C: {template: {tag: "p"}, constant_props: [1]}`, "constant_props"},
		{"float state", `component: C: {template: {tag: "p"}, state: {n: 0.5}}`, "state.n"},
		{"should_update not bool", `component: C: {template: {tag: "p"}, should_update: "no"}`, "should_update"},
		{"depth not int", `component: C: {template: {tag: "p"}, props_depth: "deep"}`, "props_depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileCUE(t, tt.src)
			_, err := CompileComponent(v.LookupPath(cue.ParsePath("component.C")))
			require.Error(t, err)
			ce, ok := err.(*CompileError)
			require.True(t, ok, "want *CompileError, got %T", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}
