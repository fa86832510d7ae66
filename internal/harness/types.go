package harness

import (
	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
)

// Trace event types.
const (
	EventInstruction = "instruction"
	EventCall        = "call"
)

// TraceEvent is one committed instruction or fired call, flattened for
// assertions and golden comparison.
type TraceEvent struct {
	Type      string    `json:"type"` // "instruction" or "call"
	Pass      string    `json:"pass"`
	Host      string    `json:"host"`
	Seq       int64     `json:"seq"`
	Op        string    `json:"op,omitempty"`
	Record    ir.Object `json:"record,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Component string    `json:"component,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every committed instruction and call, in commit order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshots holds the final serialized output per host, duplicates
	// included.
	Snapshots map[string]string `json:"snapshots,omitempty"`

	// Passes is the number of committed pass records.
	Passes int `json:"passes"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Snapshots: make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPass appends the instructions and calls of a committed pass.
func (r *Result) AddPass(rec engine.PassRecord) {
	r.Passes++
	for _, in := range rec.Instructions {
		r.Trace = append(r.Trace, TraceEvent{
			Type:   EventInstruction,
			Pass:   rec.ID,
			Host:   rec.Host,
			Seq:    in.Seq,
			Op:     string(in.Op),
			Record: in.Record(),
		})
	}
	for _, c := range rec.Calls {
		r.Trace = append(r.Trace, TraceEvent{
			Type:      EventCall,
			Pass:      rec.ID,
			Host:      rec.Host,
			Seq:       c.Seq,
			Kind:      string(c.Kind),
			Component: c.Component,
		})
	}
}
