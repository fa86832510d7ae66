package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalScenario = `
name: minimal
description: "renders one element"
steps:
  - render:
      node: { tag: p }
    expect:
      snapshot: "<p/>"
assertions:
  - type: snapshot
    equals: "<p/>"
`

func TestLoadScenario_Minimal(t *testing.T) {
	path := writeFile(t, t.TempDir(), "minimal.yaml", minimalScenario)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, []string{DefaultHost}, s.hostNames())
	require.Len(t, s.Steps, 1)
	require.NotNil(t, s.Steps[0].Render)
	assert.Equal(t, "p", s.Steps[0].Render.Node.Tag)
	require.NotNil(t, s.Steps[0].Expect.Snapshot)
	assert.Equal(t, "<p/>", *s.Steps[0].Expect.Snapshot)
	require.Len(t, s.Assertions, 1)
}

func TestLoadScenario_ResolvesSpecsRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "views.cue", `view: home: {tag: "p"}`)
	path := writeFile(t, dir, "s.yaml", `
name: s
description: d
specs: [views.cue]
steps:
  - render: { view: home }
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "views.cue")}, s.Specs)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown field", minimalScenario + "assertion: []\n", "field assertion not found"},
		{"no name", "description: d\nsteps: [{flush: true}]\n", "name is required"},
		{"no description", "name: n\nsteps: [{flush: true}]\n", "description is required"},
		{"no steps", "name: n\ndescription: d\n", "steps list is required"},
		{"missing spec", "name: n\ndescription: d\nspecs: [nope.cue]\nsteps: [{flush: true}]\n", "spec file not found"},
		{"empty step", "name: n\ndescription: d\nsteps: [{}]\n", "exactly one of render, set_state and flush"},
		{"two actions", "name: n\ndescription: d\nsteps: [{flush: true, render: {view: v}}]\n", "exactly one of render, set_state and flush"},
		{"view and node", "name: n\ndescription: d\nsteps: [{render: {view: v, node: {tag: p}}}]\n", "exactly one of view and node"},
		{"node without kind", "name: n\ndescription: d\nsteps: [{render: {node: {key: k}}}]\n", "selects no kind"},
		{"set_state without component", "name: n\ndescription: d\nsteps: [{set_state: {state: {a: 1}}}]\n", "component is required"},
		{"float state", "name: n\ndescription: d\nsteps: [{set_state: {component: C, state: {a: 1.5}}}]\n", "floats are forbidden"},
		{"unknown op", "name: n\ndescription: d\nsteps: [{flush: true, expect: {ops: {paint: 1}}}]\n", `unknown op "paint"`},
		{"unknown call", "name: n\ndescription: d\nsteps: [{flush: true, expect: {calls: {born: 1}}}]\n", `unknown call kind "born"`},
		{"duplicate host", "name: n\ndescription: d\nhosts: [a, a]\nsteps: [{flush: true}]\n", "listed twice"},
		{"bad pre_compare", "name: n\ndescription: d\noptions: {pre_compare: never}\nsteps: [{flush: true}]\n", `unknown pre_compare "never"`},
		{"bad duplication", "name: n\ndescription: d\noptions: {duplication: factory}\nsteps: [{flush: true}]\n", `unknown duplication "factory"`},
		{"assertion without type", "name: n\ndescription: d\nsteps: [{flush: true}]\nassertions: [{}]\n", "type is required"},
		{"unknown assertion", "name: n\ndescription: d\nsteps: [{flush: true}]\nassertions: [{type: trace_contains}]\n", `unknown assertion type "trace_contains"`},
		{"snapshot without equals", "name: n\ndescription: d\nsteps: [{flush: true}]\nassertions: [{type: snapshot}]\n", "equals is required"},
		{"op_count without count", "name: n\ndescription: d\nsteps: [{flush: true}]\nassertions: [{type: op_count, op: create}]\n", "count is required"},
		{"call_order without components", "name: n\ndescription: d\nsteps: [{flush: true}]\nassertions: [{type: call_order}]\n", "components list is required"},
		{"stored_rows without table", "name: n\ndescription: d\nsteps: [{flush: true}]\nassertions: [{type: stored_rows, count: 1}]\n", "table is required"},
		{"stored_rows without check", "name: n\ndescription: d\nsteps: [{flush: true}]\nassertions: [{type: stored_rows, table: passes}]\n", "count or expect is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestOptions_EngineOptions(t *testing.T) {
	off := false
	depth := 2
	o := Options{
		WideKeys:          &off,
		WideKeysInArrays:  true,
		PreCompare:        "on_touch",
		MaxRerenders:      &depth,
		PropsDepth:        &depth,
		StateDepth:        &depth,
		SkipNonRenderable: &off,
		ImmediateCalls:    true,
		Duplication:       "refuse",
	}
	opts, err := o.engineOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 9)

	opts, err = Options{}.engineOptions()
	require.NoError(t, err)
	assert.Empty(t, opts)
}
