package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/ir"
)

func TestExtractScenarios(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", minimalScenario)
	abs := writeFile(t, t.TempDir(), "b.yaml", minimalScenario)

	paths, err := ExtractScenarios(ir.ComponentSpec{Name: "C", Scenarios: []string{"a.yaml", abs}}, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), abs}, paths)

	paths, err = ExtractScenarios(ir.ComponentSpec{Name: "C"}, dir)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestExtractScenarios_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := ExtractScenarios(ir.ComponentSpec{Name: "Card", Scenarios: []string{"card.yaml"}}, dir)

	var nf *ScenarioNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Card", nf.Component)
	assert.Equal(t, filepath.Join(dir, "card.yaml"), nf.ResolvedPath)
	assert.Contains(t, err.Error(), `component "Card" references scenario file "card.yaml"`)
}

func TestValidateComponentScenarios(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.yaml", minimalScenario)
	writeFile(t, dir, "fails.yaml", `
name: fails
description: "wrong snapshot"
steps:
  - render: { node: { tag: p } }
assertions:
  - type: snapshot
    equals: "<div/>"
`)
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	components := []ir.ComponentSpec{
		{Name: "Good", Scenarios: []string{"ok.yaml"}},
		{Name: "Bad", Scenarios: []string{"fails.yaml", "broken.yaml"}},
		{Name: "Plain"},
		{Name: "Lost", Scenarios: []string{"lost.yaml"}},
	}

	result, err := ValidateComponentScenarios(context.Background(), components, dir)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalComponents)
	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, 1, result.Skipped)

	require.Len(t, result.Failures, 3)
	assert.Equal(t, "Bad", result.Failures[0].Component)
	assert.Contains(t, result.Failures[0].Error, "scenario assertions failed")
	assert.Contains(t, result.Failures[1].Error, "failed to load scenario")
	assert.Equal(t, "Lost", result.Failures[2].Component)
	assert.Contains(t, result.Failures[2].Error, "does not exist")
}

func TestValidateComponentScenarios_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.yaml", minimalScenario)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ValidateComponentScenarios(ctx, []ir.ComponentSpec{{Name: "C", Scenarios: []string{"ok.yaml"}}}, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
