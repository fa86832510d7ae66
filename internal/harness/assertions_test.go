package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/store"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

// sampleTrace is two passes: main creates a list and mounts Item then
// App; side creates a paragraph.
func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: EventInstruction, Pass: "pass-1", Host: "main", Seq: 1, Op: "create"},
		{Type: EventInstruction, Pass: "pass-1", Host: "main", Seq: 2, Op: "create"},
		{Type: EventInstruction, Pass: "pass-1", Host: "main", Seq: 3, Op: "remove"},
		{Type: EventCall, Pass: "pass-1", Host: "main", Seq: 4, Kind: "mounted", Component: "Item"},
		{Type: EventCall, Pass: "pass-1", Host: "main", Seq: 5, Kind: "mounted", Component: "App"},
		{Type: EventCall, Pass: "pass-1", Host: "main", Seq: 6, Kind: "updated", Component: "Item"},
		{Type: EventInstruction, Pass: "pass-2", Host: "side", Seq: 7, Op: "create"},
	}
}

func TestCountEvents(t *testing.T) {
	trace := sampleTrace()
	assert.Equal(t, 3, countEvents(trace, EventInstruction, "create", ""))
	assert.Equal(t, 2, countEvents(trace, EventInstruction, "create", "main"))
	assert.Equal(t, 0, countEvents(trace, EventInstruction, "move", ""))
	assert.Equal(t, 2, countEvents(trace, EventCall, "mounted", ""))
	assert.Equal(t, 1, countEvents(trace, EventCall, "mounted", "App"))
}

func TestAssertSnapshot(t *testing.T) {
	result := NewResult()
	result.Snapshots["main"] = "<p/>"

	assert.NoError(t, assertSnapshot(result, Assertion{Equals: strPtr("<p/>")}))

	err := assertSnapshot(result, Assertion{Equals: strPtr("<div/>")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: <div/>")
	assert.Contains(t, err.Error(), "Actual: <p/>")

	err = assertSnapshot(result, Assertion{Host: "side", Equals: strPtr("")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host not found")
}

func TestAssertOpCount(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertOpCount(trace, Assertion{Op: "create", Count: intPtr(3)}))
	assert.NoError(t, assertOpCount(trace, Assertion{Op: "create", Host: "side", Count: intPtr(1)}))

	err := assertOpCount(trace, Assertion{Op: "remove", Count: intPtr(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 remove instructions")
	assert.Contains(t, err.Error(), "Actual: 1 instructions")
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestAssertCallCount(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertCallCount(trace, Assertion{Kind: "mounted", Count: intPtr(2)}))
	assert.NoError(t, assertCallCount(trace, Assertion{Kind: "updated", Component: "Item", Count: intPtr(1)}))

	err := assertCallCount(trace, Assertion{Kind: "moved", Component: "Item", Count: intPtr(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 moved calls of Item")
}

func TestAssertCallOrder(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{"in order", Assertion{Components: []string{"Item", "App"}}, ""},
		{"single", Assertion{Components: []string{"App"}}, ""},
		{"wrong order", Assertion{Components: []string{"App", "Item"}}, "App (pos 5) should be before Item (pos 4)"},
		{"missing", Assertion{Components: []string{"Item", "Nav"}}, "no call of Nav"},
		{"kind filter", Assertion{Kind: "updated", Components: []string{"App"}}, "no call of App"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertCallOrder(trace, tt.a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// storeWithPass opens an in-memory store holding one pass of host main
// that creates <p class="x">hi</p>.
func storeWithPass(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.WritePass(context.Background(), engine.PassRecord{
		ID:   "pass-1",
		Host: "main",
		Instructions: []engine.Instruction{
			{Seq: 1, Op: engine.OpCreate, Node: 1, Tag: "p", Props: ir.Object{"class": ir.String("x")}},
			{Seq: 2, Op: engine.OpCreate, Node: 2, Parent: 1, Tag: engine.TextTag, Text: "hi"},
		},
		Calls: []engine.CallRecord{
			{Seq: 3, Kind: engine.CallMounted, Boundary: 1, Component: "main"},
		},
		Snapshot:    `<p class="x">hi</p>`,
		HasSnapshot: true,
	})
	require.NoError(t, err)
	return st
}

func TestAssertStoredRows(t *testing.T) {
	st := storeWithPass(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{"count all", Assertion{Table: "instructions", Count: intPtr(2)}, ""},
		{"count filtered", Assertion{Table: "instructions", Where: map[string]any{"host": "main", "node": 2}, Count: intPtr(1)}, ""},
		{"expect", Assertion{Table: "calls", Where: map[string]any{"kind": "mounted"}, Expect: map[string]any{"component": "main", "seq": 3}}, ""},
		{"expect on every row", Assertion{Table: "instructions", Expect: map[string]any{"op": "create"}}, ""},
		{"wrong count", Assertion{Table: "passes", Count: intPtr(2)}, "Actual: 1 rows"},
		{"not found", Assertion{Table: "passes", Where: map[string]any{"host": "side"}, Expect: map[string]any{"id": "x"}}, "row not found"},
		{"wrong value", Assertion{Table: "passes", Expect: map[string]any{"snapshot": "<p/>"}}, `field "snapshot" = <p/>`},
		{"missing column", Assertion{Table: "passes", Expect: map[string]any{"colour": "red"}}, `field "colour" not present`},
		{"invalid table", Assertion{Table: "passes; DROP TABLE passes", Count: intPtr(0)}, "invalid table name"},
		{"invalid column", Assertion{Table: "passes", Where: map[string]any{"1=1 OR id": "x"}, Count: intPtr(0)}, "invalid column name"},
		{"unknown table", Assertion{Table: "nope", Count: intPtr(0)}, "query error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertStoredRows(ctx, st, tt.a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertReplay(t *testing.T) {
	st := storeWithPass(t)
	ctx := context.Background()

	result := NewResult()
	result.Snapshots["main"] = `<p class="x">hi</p>`
	assert.NoError(t, assertReplay(ctx, st, result, Assertion{Host: "main"}))
	assert.NoError(t, assertReplay(ctx, st, result, Assertion{}))

	result.Snapshots["main"] = "<p/>"
	err := assertReplay(ctx, st, result, Assertion{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replayed main")

	_, err = st.DB().Exec(`UPDATE instructions SET record = replace(record, '"hi"', '"ho"')`)
	require.NoError(t, err)
	err = assertReplay(ctx, st, result, Assertion{Host: "main"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stored trace of main to verify")
}

func TestStoredValuesEqual(t *testing.T) {
	assert.True(t, storedValuesEqual("a", "a"))
	assert.True(t, storedValuesEqual("a", []byte("a")))
	assert.True(t, storedValuesEqual(3, int64(3)))
	assert.True(t, storedValuesEqual(int64(3), int64(3)))
	assert.True(t, storedValuesEqual(true, int64(1)))
	assert.True(t, storedValuesEqual(nil, nil))
	assert.False(t, storedValuesEqual("3", int64(3)))
	assert.False(t, storedValuesEqual(nil, "a"))
	assert.False(t, storedValuesEqual(false, int64(1)))
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.Snapshots["main"] = "<p/>"

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertSnapshot, Equals: strPtr("<p/>")},
		{Type: AssertOpCount, Op: "create", Count: intPtr(3)},
		{Type: AssertCallCount, Kind: "mounted", Count: intPtr(9)},
		{Type: AssertStoredRows, Table: "passes", Count: intPtr(0)},
		{Type: "nope"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "9 mounted calls")
	assert.Contains(t, errs[1], "stored_rows requires store context")
	assert.Contains(t, errs[2], `unknown assertion type "nope"`)
}
