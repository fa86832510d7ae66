package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/ir"
)

func parse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src), t.TempDir())
	require.NoError(t, err)
	return s
}

func TestRun_Minimal(t *testing.T) {
	result, err := Run(parse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Passes)
	assert.Equal(t, map[string]string{"main": "<p/>"}, result.Snapshots)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, EventInstruction, result.Trace[0].Type)
	assert.Equal(t, "create", result.Trace[0].Op)
	assert.Equal(t, "pass-1", result.Trace[0].Pass)
	assert.Equal(t, ir.String("p"), result.Trace[0].Record["tag"])
	assert.Equal(t, EventCall, result.Trace[1].Type)
	assert.Equal(t, "mounted", result.Trace[1].Kind)
	assert.Equal(t, "main", result.Trace[1].Component)
}

func TestRun_InlineComponentAndState(t *testing.T) {
	s := parse(t, `
name: inline
description: "inline component with state"
components:
  - name: Toggle
    state: { on: false }
    template:
      tag: button
      props: { pressed: "$state.on" }
      children: [{ text: "$props.label" }]
views:
  home: { component: Toggle, props: { label: Go } }
steps:
  - render: { view: home }
    expect:
      snapshot: '<button pressed="false">Go</button>'
      calls: { mounted: 2 }
  - set_state: { component: Toggle, state: { on: true } }
    expect:
      snapshot: '<button pressed="true">Go</button>'
      ops: { update: 1, content: 0 }
      calls: { updated: 1 }
  - flush: true
    expect:
      ops: { update: 0 }
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Passes)
}

func TestRun_StepExpectationFailures(t *testing.T) {
	s := parse(t, `
name: wrong
description: "every expectation is off"
steps:
  - render: { node: { tag: p } }
    expect:
      snapshot: "<div/>"
      ops: { create: 3 }
      calls: { updated: 1 }
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected 3 create instructions, got 1")
	assert.Contains(t, result.Errors[1], "expected 1 updated calls, got 0")
	assert.Contains(t, result.Errors[2], "snapshot mismatch")
}

func TestRun_ExpectedError(t *testing.T) {
	s := parse(t, `
name: expected_error
description: "a content pass outside a component fails the step"
steps:
  - render: { node: { pass: true } }
    expect:
      error: "content pass outside a component"
  - render: { node: { tag: p } }
    expect:
      snapshot: "<p/>"
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Passes)
}

func TestRun_MissingExpectedError(t *testing.T) {
	s := parse(t, `
name: no_error
description: "expected an error that never came"
steps:
  - render: { node: { tag: p } }
    expect:
      error: boom
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected error containing "boom"`)
}

func TestRun_UnexpectedErrorStopsScenario(t *testing.T) {
	s := parse(t, `
name: unexpected
description: "later steps do not run after an unexpected error"
steps:
  - render: { view: nowhere }
  - render: { node: { tag: p } }
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `steps[0]: unexpected error: unknown view "nowhere"`)
	assert.Equal(t, 0, result.Passes)
	assert.Equal(t, "", result.Snapshots["main"])
}

func TestRun_StepTargetErrors(t *testing.T) {
	tests := []struct {
		name    string
		step    string
		wantErr string
	}{
		{"unknown host", "render: { host: other, node: { tag: p } }", `unknown host "other"`},
		{"component not mounted", "set_state: { component: Missing, state: { a: 1 } }", "component Missing not mounted on host main"},
		{"unknown component in node", "render: { node: { component: Missing } }", `unknown component "Missing"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parse(t, "name: n\ndescription: d\nsteps:\n  - "+tt.step+"\n")
			result, err := Run(s)
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestRun_DeclarationErrors(t *testing.T) {
	dir := t.TempDir()
	spec := writeFile(t, dir, "views.cue", `view: home: {tag: "p"}`)
	broken := writeFile(t, dir, "broken.cue", `view: home: {colour: "red"}`)

	tests := []struct {
		name    string
		s       *Scenario
		wantErr string
	}{
		{
			name: "view declared twice",
			s: &Scenario{
				Specs: []string{spec},
				Views: map[string]ir.NodeSpec{"home": {Tag: "div"}},
			},
			wantErr: "view home declared twice",
		},
		{
			name:    "spec does not compile",
			s:       &Scenario{Specs: []string{broken}},
			wantErr: "failed to compile",
		},
		{
			name: "placeholder in a view",
			s: &Scenario{
				Views: map[string]ir.NodeSpec{"home": {Tag: "p", Props: map[string]any{"id": "$props.id"}}},
			},
			wantErr: "invalid declarations",
		},
		{
			name: "unknown component",
			s: &Scenario{
				Views: map[string]ir.NodeSpec{"home": {Component: "Nope"}},
			},
			wantErr: "invalid declarations",
		},
		{
			name:    "bad options",
			s:       &Scenario{Options: Options{PreCompare: "never"}},
			wantErr: "invalid options",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_OptionsReachEngine(t *testing.T) {
	// With duplication refused the second placement of a host stays empty.
	s := parse(t, `
name: refuse
description: "duplicate host placement is refused"
hosts: [main, side]
options: { duplication: refuse }
steps:
  - render:
      host: side
      node: { tag: i }
  - render:
      node:
        tag: div
        children: [{ host: side }, { host: side }]
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.NotContains(t, result.Snapshots, "side#1")
}

func TestRun_Deterministic(t *testing.T) {
	path, err := filepath.Abs("../../testdata/scenarios/keyed_reorder.yaml")
	require.NoError(t, err)

	var outputs [][]byte
	for range 2 {
		s, err := LoadScenario(path)
		require.NoError(t, err)
		result, err := Run(s)
		require.NoError(t, err)
		data, err := GoldenBytes(s.Name, result)
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	assert.Equal(t, string(outputs[0]), string(outputs[1]))
}
