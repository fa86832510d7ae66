package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/splice/internal/compiler"
	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/logging"
	"github.com/roach88/splice/internal/render"
	"github.com/roach88/splice/internal/store"
)

// Harness is the scenario execution engine.
// It drives a real engine against in-memory renderers, with sequential
// pass ids so traces are reproducible.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	recorder *store.Recorder
	types    map[string]*def.Type
	views    map[string]ir.NodeSpec
	result   *Result
	logger   *slog.Logger

	// passErrs collects pass failures reported while a step runs.
	passErrs []error
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory trace store for isolation.
//
// Execution flow:
// 1. Create fresh in-memory store and engine
// 2. Load and compile CUE specs, merge inline views and components
// 3. Create hosts on in-memory renderers
// 4. Execute steps with per-step expectations
// 5. Evaluate assertions against the trace, the output and the store
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller supplied context for store access.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	bundle, err := loadBundle(scenario)
	if err != nil {
		return nil, err
	}
	types, err := def.Templates(bundle.Components)
	if err != nil {
		return nil, fmt.Errorf("failed to build components: %w", err)
	}

	opts, err := scenario.Options.engineOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	h := &Harness{
		store:  st,
		types:  types,
		views:  bundle.Views,
		result: NewResult(),
		logger: logging.NewNop(),
	}
	h.recorder = store.NewRecorder(ctx, st, h.logger)

	opts = append(opts,
		engine.WithLogger(h.logger),
		engine.WithPassIDs(engine.NewSequenceGenerator("pass")),
		engine.WithHooks(h.recorder.Hooks()),
		engine.WithHooks(engine.Hooks{
			OnPassCommitted: h.result.AddPass,
			OnPassError: func(_ string, err error) {
				h.passErrs = append(h.passErrs, err)
			},
		}),
	)
	h.engine = engine.New(opts...)

	for _, name := range scenario.hostNames() {
		if _, err := h.engine.NewHost(name, render.NewMemory()); err != nil {
			return nil, fmt.Errorf("failed to create host %s: %w", name, err)
		}
	}

	for i, step := range scenario.Steps {
		if !h.executeStep(i, &step) {
			break
		}
	}

	if err := h.recorder.Err(); err != nil {
		return nil, fmt.Errorf("failed to record trace: %w", err)
	}

	for _, host := range h.engine.Hosts() {
		if sn, ok := host.Renderer().(engine.Snapshotter); ok {
			h.result.Snapshots[host.Name()] = sn.Snapshot()
		}
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(errMsg)
	}
	return h.result, nil
}

// loadBundle compiles the scenario's CUE specs and merges the inline
// declarations into one bundle.
func loadBundle(scenario *Scenario) (*compiler.Bundle, error) {
	bundle := compiler.NewBundle()
	for _, path := range scenario.Specs {
		b, err := compiler.CompileFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s: %w", path, err)
		}
		if err := bundle.Merge(b); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	inline := &compiler.Bundle{Views: scenario.Views, Components: scenario.Components}
	if err := bundle.Merge(inline); err != nil {
		return nil, fmt.Errorf("failed to load inline declarations: %w", err)
	}
	if errs := compiler.ValidateSet(bundle.Views, bundle.Components); len(errs) > 0 {
		return nil, fmt.Errorf("invalid declarations: %w", errs[0])
	}
	return bundle, nil
}

// executeStep runs one step and checks its expectations. It reports
// whether the scenario should continue.
func (h *Harness) executeStep(index int, step *Step) bool {
	h.passErrs = nil
	start := len(h.result.Trace)
	host, err := h.runStep(step)
	if err == nil && len(h.passErrs) > 0 {
		err = h.passErrs[0]
	}

	prefix := fmt.Sprintf("steps[%d]", index)
	exp := step.Expect
	if err != nil {
		if exp == nil || exp.Error == "" {
			h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, err))
			return false
		}
		if !strings.Contains(err.Error(), exp.Error) {
			h.result.AddError(fmt.Sprintf("%s: error %q does not contain %q", prefix, err.Error(), exp.Error))
		}
	} else if exp != nil && exp.Error != "" {
		h.result.AddError(fmt.Sprintf("%s: expected error containing %q, got none", prefix, exp.Error))
	}
	if exp == nil {
		return true
	}

	events := h.result.Trace[start:]
	for _, op := range sortedKeys(exp.Ops) {
		if got := countEvents(events, EventInstruction, op, ""); got != exp.Ops[op] {
			h.result.AddError(fmt.Sprintf("%s: expected %d %s instructions, got %d", prefix, exp.Ops[op], op, got))
		}
	}
	for _, kind := range sortedKeys(exp.Calls) {
		if got := countEvents(events, EventCall, kind, ""); got != exp.Calls[kind] {
			h.result.AddError(fmt.Sprintf("%s: expected %d %s calls, got %d", prefix, exp.Calls[kind], kind, got))
		}
	}
	if exp.Snapshot != nil && host != nil {
		got, ok := snapshotOf(host)
		if !ok {
			h.result.AddError(fmt.Sprintf("%s: host %s cannot be serialized", prefix, host.Name()))
		} else if got != *exp.Snapshot {
			h.result.AddError(fmt.Sprintf("%s: snapshot mismatch:\n  expected: %s\n  got:      %s", prefix, *exp.Snapshot, got))
		}
	}
	return true
}

// runStep performs the step's action and returns the host it targeted.
func (h *Harness) runStep(step *Step) (*engine.Host, error) {
	switch {
	case step.Render != nil:
		host, err := h.host(step.Render.Host)
		if err != nil {
			return nil, err
		}
		spec := step.Render.Node
		if spec == nil {
			view, ok := h.views[step.Render.View]
			if !ok {
				return host, fmt.Errorf("unknown view %q", step.Render.View)
			}
			spec = &view
		}
		d, err := def.Build(spec, def.Env{Types: h.types})
		if err != nil {
			return host, fmt.Errorf("build: %w", err)
		}
		return host, host.Render(d)

	case step.SetState != nil:
		host, err := h.host(step.SetState.Host)
		if err != nil {
			return nil, err
		}
		b := host.Find(step.SetState.Component)
		if b == nil {
			return host, fmt.Errorf("component %s not mounted on host %s", step.SetState.Component, host.Name())
		}
		patch, err := ir.ObjectFromAny(step.SetState.State)
		if err != nil {
			return host, fmt.Errorf("state: %w", err)
		}
		b.SetState(patch)
		return host, nil

	default:
		return nil, h.engine.Flush()
	}
}

func (h *Harness) host(name string) (*engine.Host, error) {
	if name == "" {
		name = DefaultHost
	}
	host := h.engine.Host(name)
	if host == nil {
		return nil, fmt.Errorf("unknown host %q", name)
	}
	return host, nil
}

func snapshotOf(host *engine.Host) (string, bool) {
	sn, ok := host.Renderer().(engine.Snapshotter)
	if !ok {
		return "", false
	}
	return sn.Snapshot(), true
}
