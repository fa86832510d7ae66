package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
)

// Scenario defines a reconciliation test scenario.
// Scenarios render def trees into in-memory hosts step by step and assert
// on the instructions, lifecycle calls and output they produce.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE files declaring views and template components.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs,omitempty"`

	// Components declares template components inline.
	Components []ir.ComponentSpec `yaml:"components,omitempty"`

	// Views declares named trees inline, alongside those from Specs.
	Views map[string]ir.NodeSpec `yaml:"views,omitempty"`

	// Hosts lists the hosts to create, each on an in-memory renderer.
	// Defaults to a single "main" host.
	Hosts []string `yaml:"hosts,omitempty"`

	// Options configures the engine.
	Options Options `yaml:"options,omitempty"`

	// Steps run in order. Each step may carry expectations checked right
	// after it.
	Steps []Step `yaml:"steps"`

	// Assertions validate the complete trace, the final output and the
	// stored trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Options mirrors the engine options a scenario may set. Unset fields keep
// the engine defaults.
type Options struct {
	WideKeys          *bool  `yaml:"wide_keys,omitempty"`
	WideKeysInArrays  bool   `yaml:"wide_keys_in_arrays,omitempty"`
	PreCompare        string `yaml:"pre_compare,omitempty"` // "always" or "on_touch"
	MaxRerenders      *int   `yaml:"max_rerenders,omitempty"`
	PropsDepth        *int   `yaml:"props_depth,omitempty"`
	StateDepth        *int   `yaml:"state_depth,omitempty"`
	SkipNonRenderable *bool  `yaml:"skip_non_renderable,omitempty"`
	ImmediateCalls    bool   `yaml:"immediate_calls,omitempty"`
	Duplication       string `yaml:"duplication,omitempty"` // "auto" or "refuse"
}

// Step is one action of a scenario. Exactly one of Render, SetState and
// Flush must be set.
type Step struct {
	Render   *RenderStep   `yaml:"render,omitempty"`
	SetState *SetStateStep `yaml:"set_state,omitempty"`
	Flush    bool          `yaml:"flush,omitempty"`

	// Expect is checked against what this step alone produced.
	Expect *Expect `yaml:"expect,omitempty"`
}

// RenderStep renders a view or an inline node at a host root.
type RenderStep struct {
	Host string       `yaml:"host,omitempty"`
	View string       `yaml:"view,omitempty"`
	Node *ir.NodeSpec `yaml:"node,omitempty"`
}

// SetStateStep merges State into the first component named Component
// below the host root.
type SetStateStep struct {
	Host      string         `yaml:"host,omitempty"`
	Component string         `yaml:"component"`
	State     map[string]any `yaml:"state"`
}

// Expect specifies what a step must produce.
type Expect struct {
	// Snapshot is the exact output of the step's host afterwards.
	Snapshot *string `yaml:"snapshot,omitempty"`

	// Ops maps an op name to the number of such instructions the step
	// committed. Ops not listed are not checked.
	Ops map[string]int `yaml:"ops,omitempty"`

	// Calls maps a call kind to the number of such calls committed.
	Calls map[string]int `yaml:"calls,omitempty"`

	// Error is a substring the step's error must contain. Without it any
	// error fails the scenario.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the run as a whole.
type Assertion struct {
	// Type specifies the assertion type:
	// - "snapshot": final output of Host equals Equals
	// - "op_count": Op appears exactly Count times (optionally on Host)
	// - "call_count": Kind calls (optionally of Component) appear Count times
	// - "call_order": Components first appear in the given order
	// - "stored_rows": rows of a trace store table matching Where
	// - "replay": the stored trace replays to the final output
	Type string `yaml:"type"`

	Host       string   `yaml:"host,omitempty"`
	Equals     *string  `yaml:"equals,omitempty"`
	Op         string   `yaml:"op,omitempty"`
	Kind       string   `yaml:"kind,omitempty"`
	Component  string   `yaml:"component,omitempty"`
	Count      *int     `yaml:"count,omitempty"`
	Components []string `yaml:"components,omitempty"`

	// Table is the trace store table (used by stored_rows).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by stored_rows).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains field values every matching row must carry (used by
	// stored_rows). Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertSnapshot   = "snapshot"
	AssertOpCount    = "op_count"
	AssertCallCount  = "call_count"
	AssertCallOrder  = "call_order"
	AssertStoredRows = "stored_rows"
	AssertReplay     = "replay"
)

// DefaultHost is the host created when a scenario lists none.
const DefaultHost = "main"

// LoadScenario reads and parses a scenario YAML file.
// Spec paths are resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML, resolving spec paths against
// basePath when it is not empty.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// hostNames returns the hosts to create.
func (s *Scenario) hostNames() []string {
	if len(s.Hosts) == 0 {
		return []string{DefaultHost}
	}
	return s.Hosts
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	// Validate spec paths exist
	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	if _, err := s.Options.engineOptions(); err != nil {
		return fmt.Errorf("options: %w", err)
	}

	hosts := s.hostNames()
	for i, h := range hosts {
		if h == "" {
			return fmt.Errorf("hosts[%d]: name is empty", i)
		}
		if slices.Index(hosts, h) != i {
			return fmt.Errorf("hosts[%d]: %q listed twice", i, h)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	n := 0
	if st.Render != nil {
		n++
		if (st.Render.View == "") == (st.Render.Node == nil) {
			return fmt.Errorf("steps[%d].render: exactly one of view and node is required", index)
		}
		if st.Render.Node != nil {
			if _, err := st.Render.Node.Kind(); err != nil {
				return fmt.Errorf("steps[%d].render.node: %w", index, err)
			}
		}
	}
	if st.SetState != nil {
		n++
		if st.SetState.Component == "" {
			return fmt.Errorf("steps[%d].set_state: component is required", index)
		}
		if _, err := ir.ObjectFromAny(st.SetState.State); err != nil {
			return fmt.Errorf("steps[%d].set_state.state: %w", index, err)
		}
	}
	if st.Flush {
		n++
	}
	if n != 1 {
		return fmt.Errorf("steps[%d]: exactly one of render, set_state and flush is required", index)
	}
	if st.Expect != nil {
		for op := range st.Expect.Ops {
			if !validOp(op) {
				return fmt.Errorf("steps[%d].expect.ops: unknown op %q", index, op)
			}
		}
		for kind := range st.Expect.Calls {
			if !validCallKind(kind) {
				return fmt.Errorf("steps[%d].expect.calls: unknown call kind %q", index, kind)
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSnapshot:
		if a.Equals == nil {
			return fmt.Errorf("assertions[%d]: equals is required for snapshot", index)
		}
	case AssertOpCount:
		if !validOp(a.Op) {
			return fmt.Errorf("assertions[%d]: unknown op %q for op_count", index, a.Op)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for op_count", index)
		}
	case AssertCallCount:
		if !validCallKind(a.Kind) {
			return fmt.Errorf("assertions[%d]: unknown call kind %q for call_count", index, a.Kind)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for call_count", index)
		}
	case AssertCallOrder:
		if len(a.Components) == 0 {
			return fmt.Errorf("assertions[%d]: components list is required for call_order", index)
		}
		if a.Kind != "" && !validCallKind(a.Kind) {
			return fmt.Errorf("assertions[%d]: unknown call kind %q for call_order", index, a.Kind)
		}
	case AssertStoredRows:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for stored_rows", index)
		}
		if a.Count == nil && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: count or expect is required for stored_rows", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validOp(op string) bool {
	switch engine.Op(op) {
	case engine.OpCreate, engine.OpUpdate, engine.OpContent, engine.OpMove, engine.OpSwap, engine.OpRemove:
		return true
	}
	return false
}

func validCallKind(kind string) bool {
	switch engine.CallKind(kind) {
	case engine.CallMounted, engine.CallUpdated, engine.CallMoved, engine.CallRef:
		return true
	}
	return false
}

// engineOptions converts the scenario options.
func (o Options) engineOptions() ([]engine.Option, error) {
	var opts []engine.Option
	if o.WideKeys != nil {
		opts = append(opts, engine.WithWideKeys(*o.WideKeys))
	}
	if o.WideKeysInArrays {
		opts = append(opts, engine.WithWideKeysInArrays(true))
	}
	switch o.PreCompare {
	case "", "always":
	case "on_touch":
		opts = append(opts, engine.WithPreCompare(engine.PreCompareOnTouch))
	default:
		return nil, fmt.Errorf("unknown pre_compare %q", o.PreCompare)
	}
	if o.MaxRerenders != nil {
		opts = append(opts, engine.WithMaxRerenders(*o.MaxRerenders))
	}
	if o.PropsDepth != nil {
		opts = append(opts, engine.WithPropsDepth(*o.PropsDepth))
	}
	if o.StateDepth != nil {
		opts = append(opts, engine.WithStateDepth(*o.StateDepth))
	}
	if o.SkipNonRenderable != nil {
		opts = append(opts, engine.WithSkipNonRenderable(*o.SkipNonRenderable))
	}
	if o.ImmediateCalls {
		opts = append(opts, engine.WithImmediateCalls(true))
	}
	switch o.Duplication {
	case "", "auto":
	case "refuse":
		opts = append(opts, engine.WithDuplication(engine.DuplicateRefuse))
	default:
		return nil, fmt.Errorf("unknown duplication %q", o.Duplication)
	}
	return opts, nil
}
