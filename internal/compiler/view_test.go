package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/ir"
)

func compileCUE(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("test.cue"))
	require.NoError(t, v.Err())
	return v
}

func TestCompileView(t *testing.T) {
	v := compileCUE(t, `
view: home: {
	tag: "main"
	props: {class: "page", count: 3, open: true, tags: ["a", "b"]}
	children: [
		{text: "hello"},
		{list: true, children: [
			{tag: "li", key: "a", children: [{text: 1}]},
		]},
		{component: "Card", props: {title: "x"}, children: [{tag: "p"}]},
		{stream: "header"},
		{portal: "header", importance: 2, children: [{text: "t"}]},
		{host: "side"},
		{text: null},
	]
}
`)
	spec, err := CompileView(v.LookupPath(cue.ParsePath("view.home")))
	require.NoError(t, err)

	assert.Equal(t, "main", spec.Tag)
	assert.Equal(t, map[string]any{
		"class": "page",
		"count": int64(3),
		"open":  true,
		"tags":  []any{"a", "b"},
	}, spec.Props)
	require.Len(t, spec.Children, 7)
	assert.Equal(t, "hello", spec.Children[0].Text)
	assert.True(t, spec.Children[1].List)
	assert.Equal(t, "a", spec.Children[1].Children[0].Key)
	assert.Equal(t, int64(1), spec.Children[1].Children[0].Children[0].Text)
	assert.Equal(t, "Card", spec.Children[2].Component)
	assert.Equal(t, "header", spec.Children[3].Stream)
	assert.Equal(t, 2, spec.Children[4].Rank)
	assert.Equal(t, "side", spec.Children[5].Host)
	assert.True(t, spec.Children[6].Nil)

	require.NoError(t, spec.Validate())
}

func TestCompileView_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"unknown field", `view: v: {tag: "p", colour: "red"}`, "colour"},
		{"no kind", `view: v: {key: "a"}`, "node"},
		{"several kinds", `view: v: {tag: "p", text: "x"}`, "node"},
		{"float prop", `view: v: {tag: "p", props: {w: 1.5}}`, "props.w"},
		{"non-concrete prop", `view: v: {tag: "p", props: {w: int}}`, "props.w"},
		{"tag not string", `view: v: {tag: 3}`, "tag"},
		{"children not list", `view: v: {tag: "p", children: {text: "x"}}`, "children"},
		{"nested child", `view: v: {tag: "p", children: [{tag: "b"}, {bogus: 1}]}`, "children[1].bogus"},
		{"not a struct", `view: v: "text"`, "node"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileCUE(t, tt.src)
			_, err := CompileView(v.LookupPath(cue.ParsePath("view.v")))
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "want *CompileError, got %T", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileView_ErrorPosition(t *testing.T) {
	v := compileCUE(t, "view: v: {\n\ttag: \"p\"\n\tcolour: \"red\"\n}\n")
	_, err := CompileView(v.LookupPath(cue.ParsePath("view.v")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.cue:3:")
}

func TestCompileView_FeedsBuild(t *testing.T) {
	v := compileCUE(t, `view: v: {tag: "ul", children: [{tag: "li", key: "x", children: [{text: "x"}]}]}`)
	spec, err := CompileView(v.LookupPath(cue.ParsePath("view.v")))
	require.NoError(t, err)

	kind, err := spec.Kind()
	require.NoError(t, err)
	assert.Equal(t, ir.NodeElement, kind)
	assert.Empty(t, Validate(spec))
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "tag", Message: "must be a string"}
	assert.Equal(t, "tag: must be a string", err.Error())
}
