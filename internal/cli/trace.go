package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Host     string // optional - filter to one host
	Pass     string // optional - show one pass in full
	Node     uint64 // optional - show the history of one node (needs Host)
}

// TracePass is one committed pass in the timeline.
type TracePass struct {
	Seq            int64          `json:"seq"`
	ID             string         `json:"id"`
	Host           string         `json:"host"`
	Instructions   int            `json:"instructions"`
	Calls          int            `json:"calls"`
	Ops            map[string]int `json:"ops"`
	SnapshotDigest string         `json:"snapshot_digest,omitempty"`
}

// TraceInstruction is one instruction with its canonical record.
type TraceInstruction struct {
	Index  int    `json:"index"`
	Op     string `json:"op"`
	Node   uint64 `json:"node"`
	Record string `json:"record"`
}

// TraceCall is one lifecycle call fired after a commit.
type TraceCall struct {
	Kind      string `json:"kind"`
	Boundary  uint64 `json:"boundary"`
	Component string `json:"component"`
}

// TraceResult holds the trace output. Only the parts the flags ask for
// are filled in.
type TraceResult struct {
	Passes       []TracePass        `json:"passes"`
	Instructions []TraceInstruction `json:"instructions,omitempty"`
	Calls        []TraceCall        `json:"calls,omitempty"`
	Snapshot     string             `json:"snapshot,omitempty"`
	Stats        TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Hosts        int `json:"hosts"`
	Passes       int `json:"passes"`
	Instructions int `json:"instructions"`
	Calls        int `json:"calls"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a recorded trace",
		Long: `Inspect the passes recorded in a trace store.

Without filters every committed pass is listed in sequence order with
its instruction counts. --pass shows the instructions and calls of one
pass and the output it left; --node shows every instruction that touched
one node of a host.

Examples:
  splice trace --db ./trace.db
  splice trace --db ./trace.db --host main
  splice trace --db ./trace.db --pass pass-2
  splice trace --db ./trace.db --host main --node 3 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Host, "host", "", "filter to one host")
	cmd.Flags().StringVar(&opts.Pass, "pass", "", "show one pass in full")
	cmd.Flags().Uint64Var(&opts.Node, "node", 0, "show the history of one node (requires --host)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Node != 0 && opts.Host == "" {
		return NewExitError(ExitCommandError, "--node requires --host")
	}
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("trace store not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace store", err)
	}
	defer st.Close()

	result, err := buildTrace(ctx, st, opts)
	if err != nil {
		return err
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result, opts)
	return nil
}

func buildTrace(ctx context.Context, st *store.Store, opts *TraceOptions) (TraceResult, error) {
	var result TraceResult

	passes, err := st.ReadPasses(ctx, opts.Host)
	if err != nil {
		return result, WrapExitError(ExitCommandError, "failed to read passes", err)
	}

	hosts := map[string]bool{}
	result.Passes = make([]TracePass, 0, len(passes))
	for _, p := range passes {
		hosts[p.Host] = true
		tp := TracePass{
			Seq:            p.Seq,
			ID:             p.ID,
			Host:           p.Host,
			Instructions:   len(p.Instructions),
			Calls:          len(p.Calls),
			Ops:            map[string]int{},
			SnapshotDigest: p.SnapshotDigest,
		}
		for _, ins := range p.Instructions {
			tp.Ops[string(ins.Op)]++
		}
		result.Passes = append(result.Passes, tp)
		result.Stats.Instructions += tp.Instructions
		result.Stats.Calls += tp.Calls

		if opts.Pass != "" && p.ID == opts.Pass {
			result.Instructions = append(result.Instructions, traceInstructions(p.Instructions)...)
			for _, c := range p.Calls {
				result.Calls = append(result.Calls, TraceCall{
					Kind:      string(c.Kind),
					Boundary:  c.Boundary,
					Component: c.Component,
				})
			}
			if p.HasSnapshot {
				result.Snapshot = p.Snapshot
			}
		}
	}
	result.Stats.Hosts = len(hosts)
	result.Stats.Passes = len(passes)

	if opts.Pass != "" && !hasPass(result.Passes, opts.Pass) {
		return result, NewExitError(ExitCommandError, fmt.Sprintf("pass not found: %s", opts.Pass))
	}

	if opts.Node != 0 {
		history, err := st.ReadNodeHistory(ctx, opts.Host, opts.Node)
		if err != nil {
			return result, WrapExitError(ExitCommandError, "failed to read node history", err)
		}
		result.Instructions = traceInstructions(history)
	}
	return result, nil
}

func traceInstructions(ins []engine.Instruction) []TraceInstruction {
	out := make([]TraceInstruction, 0, len(ins))
	for i, in := range ins {
		rec, err := ir.MarshalCanonical(in.Record())
		if err != nil {
			rec = []byte(err.Error())
		}
		out = append(out, TraceInstruction{
			Index:  i,
			Op:     string(in.Op),
			Node:   uint64(in.Node),
			Record: string(rec),
		})
	}
	return out
}

func hasPass(passes []TracePass, id string) bool {
	for _, p := range passes {
		if p.ID == id {
			return true
		}
	}
	return false
}

func outputTraceText(formatter *OutputFormatter, result TraceResult, opts *TraceOptions) {
	w := formatter.Writer
	if len(result.Passes) == 0 {
		fmt.Fprintln(w, "No passes recorded.")
		return
	}

	rows := make([]table.Row, 0, len(result.Passes))
	for _, p := range result.Passes {
		rows = append(rows, table.Row{p.Seq, p.ID, p.Host, p.Instructions, formatOps(p.Ops), p.Calls, shortDigest(p.SnapshotDigest)})
	}
	formatter.Table(table.Row{"Seq", "Pass", "Host", "Instructions", "Ops", "Calls", "Snapshot"}, rows)

	if len(result.Instructions) > 0 {
		fmt.Fprintln(w)
		switch {
		case opts.Node != 0:
			fmt.Fprintf(w, "History of node %d on %s:\n", opts.Node, opts.Host)
		default:
			fmt.Fprintf(w, "Instructions of %s:\n", opts.Pass)
		}
		rows := make([]table.Row, 0, len(result.Instructions))
		for _, in := range result.Instructions {
			rows = append(rows, table.Row{in.Index, in.Op, in.Node, in.Record})
		}
		formatter.Table(table.Row{"#", "Op", "Node", "Record"}, rows)
	}

	if len(result.Calls) > 0 {
		fmt.Fprintln(w)
		rows := make([]table.Row, 0, len(result.Calls))
		for _, c := range result.Calls {
			rows = append(rows, table.Row{c.Kind, c.Component, c.Boundary})
		}
		formatter.Table(table.Row{"Call", "Component", "Boundary"}, rows)
	}

	if result.Snapshot != "" {
		fmt.Fprintf(w, "\nOutput: %s\n", result.Snapshot)
	}

	fmt.Fprintf(w, "\n%d host(s), %d pass(es), %d instruction(s), %d call(s)\n",
		result.Stats.Hosts, result.Stats.Passes, result.Stats.Instructions, result.Stats.Calls)
}

// formatOps renders op counts in a fixed order, e.g. "create:3 move:1".
func formatOps(ops map[string]int) string {
	order := []engine.Op{engine.OpCreate, engine.OpUpdate, engine.OpContent, engine.OpMove, engine.OpSwap, engine.OpRemove}
	var parts []string
	for _, op := range order {
		if n := ops[string(op)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", op, n))
		}
	}
	return strings.Join(parts, " ")
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
