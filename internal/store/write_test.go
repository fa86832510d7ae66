package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
)

func TestWritePass(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testPass("pass-1", "main", 10)
	rec.Duration = 1500 * time.Microsecond
	inserted, err := s.WritePass(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	var seq, n, durationUS int64
	var digest string
	require.NoError(t, s.db.QueryRow(
		`SELECT seq, instructions, duration_us, snapshot_digest FROM passes WHERE id = ? AND host = ?`,
		"pass-1", "main").Scan(&seq, &n, &durationUS, &digest))
	assert.Equal(t, int64(10), seq)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int64(1500), durationUS)
	assert.Equal(t, ir.SnapshotDigest(rec.Snapshot), digest)

	var record, insDigest string
	require.NoError(t, s.db.QueryRow(
		`SELECT record, digest FROM instructions WHERE pass_id = ? AND idx = 0`, "pass-1").Scan(&record, &insDigest))
	assert.Equal(t, `{"node":1,"op":"create","props":{"class":"x"},"tag":"p"}`, record)
	want, err := ir.InstructionDigest(rec.Instructions[0].Record())
	require.NoError(t, err)
	assert.Equal(t, want, insDigest)

	var calls int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM calls WHERE pass_id = ?`, "pass-1").Scan(&calls))
	assert.Equal(t, 1, calls)
}

func TestWritePass_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inserted, err := s.WritePass(ctx, testPass("pass-1", "main", 1))
	require.NoError(t, err)
	require.True(t, inserted)

	// Same id and host: left alone even when the content differs.
	again := testPass("pass-1", "main", 50)
	again.Instructions = again.Instructions[:1]
	inserted, err = s.WritePass(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	p, err := s.ReadPass(ctx, "pass-1", "main")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Seq)
	assert.Len(t, p.Instructions, 2)

	// Same id, other host: a separate pass.
	inserted, err = s.WritePass(ctx, testPass("pass-1", "side", 1))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestWritePass_NoSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testPass("pass-1", "main", 1)
	rec.Snapshot, rec.HasSnapshot = "", false
	_, err := s.WritePass(ctx, rec)
	require.NoError(t, err)

	p, err := s.ReadPass(ctx, "pass-1", "main")
	require.NoError(t, err)
	assert.False(t, p.HasSnapshot)
	assert.Empty(t, p.SnapshotDigest)
}

func TestWritePass_CallsOnly(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := engine.PassRecord{
		ID:    "pass-1",
		Host:  "main",
		Calls: []engine.CallRecord{{Seq: 7, Kind: engine.CallUpdated, Boundary: 3, Component: "App"}},
	}
	_, err := s.WritePass(ctx, rec)
	require.NoError(t, err)

	p, err := s.ReadPass(ctx, "pass-1", "main")
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.Seq)
	assert.Empty(t, p.Instructions)
	assert.Equal(t, rec.Calls, p.Calls)
}

func TestWritePass_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.WritePass(ctx, testPass("pass-1", "main", 1))
	assert.Error(t, err)
}
