package harness

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace for debugging context, may be nil
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, describeEvent(event))
		}
	}
	return buf.String()
}

func describeEvent(ev TraceEvent) string {
	if ev.Type == EventCall {
		return fmt.Sprintf("%s %s call %s (seq %d)", ev.Pass, ev.Host, ev.Kind+" "+ev.Component, ev.Seq)
	}
	rec, _ := ir.MarshalCanonical(ev.Record)
	return fmt.Sprintf("%s %s %s (seq %d)", ev.Pass, ev.Host, rec, ev.Seq)
}

// countEvents counts trace events of the given type whose op (for
// instructions) or kind (for calls) is name. A non-empty component
// restricts calls to that component; for instructions it names the host.
func countEvents(trace []TraceEvent, typ, name, filter string) int {
	n := 0
	for _, ev := range trace {
		if ev.Type != typ {
			continue
		}
		switch typ {
		case EventInstruction:
			if ev.Op == name && (filter == "" || ev.Host == filter) {
				n++
			}
		case EventCall:
			if ev.Kind == name && (filter == "" || ev.Component == filter) {
				n++
			}
		}
	}
	return n
}

// assertSnapshot checks the final output of a host.
func assertSnapshot(result *Result, a Assertion) error {
	host := cmp.Or(a.Host, DefaultHost)
	got, ok := result.Snapshots[host]
	if !ok {
		return &AssertionError{
			Type:     AssertSnapshot,
			Expected: fmt.Sprintf("output of host %s", host),
			Actual:   "host not found",
		}
	}
	if got != *a.Equals {
		return &AssertionError{
			Type:     AssertSnapshot,
			Expected: *a.Equals,
			Actual:   got,
		}
	}
	return nil
}

// assertOpCount checks how many instructions of an op were committed.
func assertOpCount(trace []TraceEvent, a Assertion) error {
	got := countEvents(trace, EventInstruction, a.Op, a.Host)
	if got != *a.Count {
		where := ""
		if a.Host != "" {
			where = " on host " + a.Host
		}
		return &AssertionError{
			Type:     AssertOpCount,
			Expected: fmt.Sprintf("%d %s instructions%s", *a.Count, a.Op, where),
			Actual:   fmt.Sprintf("%d instructions", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertCallCount checks how many calls of a kind were fired.
func assertCallCount(trace []TraceEvent, a Assertion) error {
	got := countEvents(trace, EventCall, a.Kind, a.Component)
	if got != *a.Count {
		of := ""
		if a.Component != "" {
			of = " of " + a.Component
		}
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d %s calls%s", *a.Count, a.Kind, of),
			Actual:   fmt.Sprintf("%d calls", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertCallOrder checks that components first appear among the fired
// calls in the given order. Intervening calls are allowed.
func assertCallOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Type != EventCall || (a.Kind != "" && ev.Kind != a.Kind) {
			continue
		}
		if _, seen := positions[ev.Component]; !seen {
			positions[ev.Component] = i + 1 // 1-indexed for readability
		}
	}

	for _, c := range a.Components {
		if positions[c] == 0 {
			return &AssertionError{
				Type:     AssertCallOrder,
				Expected: fmt.Sprintf("calls of all components: %v", a.Components),
				Actual:   fmt.Sprintf("no call of %s", c),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Components); i++ {
		prev, curr := a.Components[i-1], a.Components[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertCallOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Components),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertStoredRows checks rows of a trace store table.
// Queries with parameterized SQL; Count is the exact number of matching
// rows and Expect must hold on each of them (subset semantics).
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertStoredRows(ctx context.Context, st *store.Store, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", a.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertStoredRows,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	matched := 0
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		matched++

		actual := make(map[string]any, len(columns))
		for i, col := range columns {
			actual[col] = values[i]
		}
		for _, key := range sortedKeys(a.Expect) {
			want := a.Expect[key]
			got, exists := actual[key]
			if !exists {
				return &AssertionError{
					Type:     AssertStoredRows,
					Expected: fmt.Sprintf("field %q to exist", key),
					Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
				}
			}
			if !storedValuesEqual(want, got) {
				return &AssertionError{
					Type:     AssertStoredRows,
					Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
					Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}

	if a.Count != nil && matched != *a.Count {
		return &AssertionError{
			Type:     AssertStoredRows,
			Expected: fmt.Sprintf("%d rows in %s where %s", *a.Count, a.Table, formatWhereClause(a.Where)),
			Actual:   fmt.Sprintf("%d rows", matched),
		}
	}
	if a.Count == nil && matched == 0 {
		return &AssertionError{
			Type:     AssertStoredRows,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "row not found",
		}
	}
	return nil
}

// assertReplay rebuilds the output of a host (every host when Host is
// empty) from the stored trace and compares it with the live output.
func assertReplay(ctx context.Context, st *store.Store, result *Result, a Assertion) error {
	var replays []store.ReplayResult
	if a.Host != "" {
		rr, err := st.Replay(ctx, a.Host)
		if err != nil {
			return &AssertionError{Type: AssertReplay, Expected: "replayable trace", Actual: err.Error()}
		}
		replays = append(replays, rr)
	} else {
		all, err := st.ReplayAll(ctx)
		if err != nil {
			return &AssertionError{Type: AssertReplay, Expected: "replayable trace", Actual: err.Error()}
		}
		replays = all
	}

	for _, rr := range replays {
		if !rr.OK() {
			return &AssertionError{
				Type:     AssertReplay,
				Expected: fmt.Sprintf("stored trace of %s to verify", rr.Host),
				Actual:   rr.Mismatches[0].String(),
			}
		}
		if live, ok := result.Snapshots[rr.Host]; ok && live != rr.Snapshot {
			return &AssertionError{
				Type:     AssertReplay,
				Expected: live,
				Actual:   fmt.Sprintf("replayed %s: %s", rr.Host, rr.Snapshot),
			}
		}
	}
	return nil
}

// buildWhereClause constructs parameterized WHERE clause from a Where map.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
//
// Security: Column names are validated against a whitelist pattern to prevent
// SQL injection via identifier interpolation.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case ir.String:
		return string(val)
	case ir.Int:
		return int64(val)
	case ir.Bool:
		return bool(val)
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// storedValuesEqual compares an expected value from YAML with a value
// scanned from SQLite. SQLite returns int64 for integers and may return
// []byte for text.
func storedValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		s, ok := actual.(string)
		return ok && exp == s
	case int:
		n, ok := actual.(int64)
		return ok && int64(exp) == n
	case int64:
		n, ok := actual.(int64)
		return ok && exp == n
	case bool:
		if b, ok := actual.(bool); ok {
			return exp == b
		}
		n, ok := actual.(int64)
		return ok && exp == (n != 0)
	}
	return reflect.DeepEqual(expected, actual)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for stored_rows and replay.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertSnapshot:
			err = assertSnapshot(result, a)
		case AssertOpCount:
			err = assertOpCount(result.Trace, a)
		case AssertCallCount:
			err = assertCallCount(result.Trace, a)
		case AssertCallOrder:
			err = assertCallOrder(result.Trace, a)
		case AssertStoredRows, AssertReplay:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires store context", i, a.Type)
			} else if a.Type == AssertStoredRows {
				err = assertStoredRows(actx.Ctx, actx.Store, a)
			} else {
				err = assertReplay(actx.Ctx, actx.Store, result, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
