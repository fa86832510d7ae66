package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/engine"
)

func TestReplay_RebuildsRecordedOutput(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := recordRun(t, s)
	require.Equal(t, `<ul><li id="c">c</li><li id="a">a</li><li id="d">d</li></ul>`, want)

	res, err := s.Replay(ctx, "main")
	require.NoError(t, err)
	assert.True(t, res.OK(), "mismatches: %v", res.Mismatches)
	assert.Equal(t, 3, res.Passes)
	assert.Equal(t, want, res.Snapshot)
}

func TestReplay_DetectsTamperedRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	recordRun(t, s)

	// Rewrite the first li's key prop in place; the stored digest stays.
	_, err := s.db.Exec(`
		UPDATE instructions SET record = replace(record, '"id":"a"', '"id":"z"')
		WHERE op = 'create' AND record LIKE '%"id":"a"%'`)
	require.NoError(t, err)

	res, err := s.Replay(ctx, "main")
	require.NoError(t, err)
	require.False(t, res.OK())

	kinds := map[string]int{}
	for _, m := range res.Mismatches {
		kinds[m.Kind]++
	}
	assert.Equal(t, 1, kinds[MismatchInstruction])
	assert.Positive(t, kinds[MismatchSnapshot])
	assert.Contains(t, res.Snapshot, `id="z"`)
}

func TestReplay_DetectsTamperedSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WritePass(ctx, testPass("pass-1", "main", 1))
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE passes SET snapshot_digest = 'bogus'`)
	require.NoError(t, err)

	res, err := s.Replay(ctx, "main")
	require.NoError(t, err)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, MismatchSnapshot, res.Mismatches[0].Kind)
	assert.Equal(t, -1, res.Mismatches[0].Index)
	assert.Equal(t, "bogus", res.Mismatches[0].Want)
}

func TestReplay_InapplicableInstruction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WritePass(ctx, engine.PassRecord{
		ID:           "pass-1",
		Host:         "main",
		Instructions: []engine.Instruction{{Seq: 1, Op: engine.OpRemove, Node: 42}},
	})
	require.NoError(t, err)

	_, err = s.Replay(ctx, "main")
	assert.Error(t, err)
}

func TestReplayAll(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, p := range []engine.PassRecord{testPass("p1", "main", 1), testPass("p2", "side", 4)} {
		_, err := s.WritePass(ctx, p)
		require.NoError(t, err)
	}

	results, err := s.ReplayAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "main", results[0].Host)
	assert.Equal(t, "side", results[1].Host)
	for _, r := range results {
		assert.True(t, r.OK())
		assert.Equal(t, `<p class="x">hi</p>`, r.Snapshot)
	}
}

func TestRecorder_CountsAndIdempotency(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := NewRecorder(ctx, s, nil)

	hooks := rec.Hooks()
	hooks.OnPassCommitted(testPass("p1", "main", 1))
	hooks.OnPassCommitted(testPass("p1", "main", 1))
	hooks.OnPassCommitted(testPass("p2", "main", 5))

	assert.NoError(t, rec.Err())
	assert.Equal(t, 2, rec.Written())
}

func TestRecorder_KeepsFirstError(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := NewRecorder(ctx, s, nil)

	rec.Hooks().OnPassCommitted(testPass("p1", "main", 1))
	assert.Error(t, rec.Err())
	assert.Equal(t, 0, rec.Written())
}
