package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/splice/internal/ir"
)

// GoldenDir is where golden traces live, relative to the test's package.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures the reproducible part of a scenario execution:
// the committed trace and the final output of every host. Pass durations
// are wall-clock and left out.
type TraceSnapshot struct {
	ScenarioName string            `json:"scenario_name"`
	Trace        []TraceEvent      `json:"trace"`
	Snapshots    map[string]string `json:"snapshots"`
}

// Canonical converts the snapshot into an ir.Object for canonical JSON
// serialization.
func (s *TraceSnapshot) Canonical() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, ev := range s.Trace {
		obj := ir.Object{
			"type": ir.String(ev.Type),
			"pass": ir.String(ev.Pass),
			"host": ir.String(ev.Host),
			"seq":  ir.Int(ev.Seq),
		}
		if ev.Record != nil {
			obj["record"] = ev.Record
		}
		if ev.Kind != "" {
			obj["kind"] = ir.String(ev.Kind)
			obj["component"] = ir.String(ev.Component)
		}
		trace[i] = obj
	}

	snapshots := make(ir.Object, len(s.Snapshots))
	for host, out := range s.Snapshots {
		snapshots[host] = ir.String(out)
	}

	return ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"trace":         trace,
		"snapshots":     snapshots,
	}
}

// GoldenBytes returns the canonical golden encoding of a result.
func GoldenBytes(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Snapshots:    result.Snapshots,
	}
	return ir.MarshalCanonical(snapshot.Canonical())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result, opts...)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running. Options are applied
// after the defaults, e.g. to point at another fixture directory.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	traceJSON, err := GoldenBytes(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
