package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/logging"
	"github.com/roach88/splice/internal/render"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// testPass builds a pass creating a <p> with one text child.
func testPass(id, host string, seq int64) engine.PassRecord {
	return engine.PassRecord{
		ID:   id,
		Host: host,
		Instructions: []engine.Instruction{
			{Seq: seq, Op: engine.OpCreate, Node: 1, Tag: "p", Props: ir.Object{"class": ir.String("x")}},
			{Seq: seq + 1, Op: engine.OpCreate, Node: 2, Parent: 1, Tag: engine.TextTag, Text: "hi"},
		},
		Calls: []engine.CallRecord{
			{Seq: seq + 2, Kind: engine.CallMounted, Boundary: 1, Component: host},
		},
		Snapshot:    `<p class="x">hi</p>`,
		HasSnapshot: true,
	}
}

// recordRun drives an engine with a recorder attached through three renders
// of a keyed list and returns the final snapshot.
func recordRun(t *testing.T, s *Store) string {
	t.Helper()
	rec := NewRecorder(context.Background(), s, logging.NewNop())
	e := engine.New(
		engine.WithLogger(logging.NewNop()),
		engine.WithPassIDs(engine.NewSequenceGenerator("pass")),
		engine.WithHooks(rec.Hooks()),
	)
	mem := render.NewMemory()
	h, err := e.NewHost("main", mem)
	require.NoError(t, err)

	list := func(keys ...string) *def.Def {
		items := make([]*def.Def, len(keys))
		for i, k := range keys {
			items[i] = def.El("li", ir.Object{"id": ir.String(k)}, def.Text(k)).WithKey(k)
		}
		return def.El("ul", nil, items...)
	}
	require.NoError(t, h.Render(list("a", "b", "c")))
	require.NoError(t, h.Render(list("c", "a")))
	require.NoError(t, h.Render(list("c", "a", "d")))
	require.NoError(t, rec.Err())
	return mem.Snapshot()
}
