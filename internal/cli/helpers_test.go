package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/engine"
)

const validSpecs = `package specs

component: Badge: {
	template: {
		tag: "b"
		children: [{text: "$props.label"}]
	}
	scenarios: ["badge.yaml"]
}

view: hello: {
	tag: "p"
	children: [{text: "hi"}]
}

view: badges: {
	tag: "div"
	children: [{component: "Badge", key: "x", props: label: "x"}]
}
`

const badgeScenario = `
name: badge
description: "A badge renders its label"
specs:
  - specs.cue
steps:
  - render: { view: badges }
    expect:
      snapshot: '<div><b>x</b></div>'
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// specsDir writes a CUE package with two views and one component.
func specsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "specs.cue", validSpecs)
	writeFile(t, dir, "badge.yaml", badgeScenario)
	return dir
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// recordTrace renders the hello view with sequential pass ids into a new
// trace store and returns its path.
func recordTrace(t *testing.T) string {
	t.Helper()
	dir := specsDir(t)
	db := filepath.Join(t.TempDir(), "trace.db")

	root := &RootOptions{Format: "text"}
	cmd := NewRunCommand(root)
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{"--store", db, "--log-level", "error"}))

	opts := &RunOptions{RootOptions: root, PassIDs: engine.NewSequenceGenerator("pass")}
	require.NoError(t, runView(opts, dir, "hello", cmd))
	return db
}

// copyDir copies the regular files of src into a new temp dir.
func copyDir(t *testing.T, src string) string {
	t.Helper()
	dst := t.TempDir()
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		writeFile(t, dst, e.Name(), string(data))
	}
	return dst
}
