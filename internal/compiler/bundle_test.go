package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundleSrc = `
view: home: {component: "Page"}
view: about: {tag: "p", children: [{text: "about"}]}

component: Page: {
	template: {tag: "main", children: [{pass: true}]}
	scenarios: ["page.yaml"]
}
`

func TestCompileValue(t *testing.T) {
	b, errs := CompileValue(compileCUE(t, bundleSrc))
	require.Empty(t, errs)

	assert.Equal(t, []string{"about", "home"}, b.ViewNames())
	require.Len(t, b.Components, 1)
	assert.Equal(t, "Page", b.Components[0].Name)
	assert.Equal(t, []string{"page.yaml"}, b.Components[0].Scenarios)
	assert.Empty(t, ValidateSet(b.Views, b.Components))
}

func TestCompileValue_CollectsErrors(t *testing.T) {
	b, errs := CompileValue(compileCUE(t, `
view: good: {tag: "p"}
view: bad: {colour: "red"}
component: Broken: {state: {}}
`))
	assert.Len(t, errs, 2)
	assert.Equal(t, []string{"good"}, b.ViewNames())
	assert.Empty(t, b.Components)
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.cue")
	require.NoError(t, os.WriteFile(path, []byte(bundleSrc), 0644))

	b, err := CompileFile(path)
	require.NoError(t, err)
	assert.Len(t, b.Views, 2)

	_, err = CompileFile(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestBundleMerge(t *testing.T) {
	a, errs := CompileValue(compileCUE(t, bundleSrc))
	require.Empty(t, errs)
	other, errs := CompileValue(compileCUE(t, `view: extra: {tag: "hr"}`))
	require.Empty(t, errs)

	require.NoError(t, a.Merge(other))
	assert.Len(t, a.Views, 3)

	assert.Error(t, a.Merge(other), "views declared twice")
}
