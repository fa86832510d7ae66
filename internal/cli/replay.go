package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/splice/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Host     string // optional - replay one host
}

// HostReplay is the replay outcome of one host.
type HostReplay struct {
	Host         string   `json:"host"`
	Passes       int      `json:"passes"`
	Instructions int      `json:"instructions"`
	Snapshot     string   `json:"snapshot"`
	OK           bool     `json:"ok"`
	Mismatches   []string `json:"mismatches,omitempty"`
}

// ReplayReport holds the replay outcome of every replayed host.
type ReplayReport struct {
	Hosts         []HostReplay `json:"hosts"`
	Deterministic bool         `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded trace and verify it",
		Long: `Rebuild each host's output from its recorded instruction logs.

Every stored instruction is re-digested and compared with its recorded
digest, and the rebuilt output is checked against the snapshot digest of
each pass. Any divergence fails the command.

Exit codes:
  0 - Every host replayed without divergence
  1 - Divergence found
  2 - Command error (store not found, unreadable trace, etc.)

Examples:
  splice replay --db ./trace.db
  splice replay --db ./trace.db --host main --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Host, "host", "", "replay only this host")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("trace store not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace store", err)
	}
	defer st.Close()

	var results []store.ReplayResult
	if opts.Host != "" {
		r, err := st.Replay(ctx, opts.Host)
		if err != nil {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}
		results = []store.ReplayResult{r}
	} else {
		results, err = st.ReplayAll(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}
	}

	report := ReplayReport{Hosts: make([]HostReplay, 0, len(results)), Deterministic: true}
	for _, r := range results {
		hr := HostReplay{
			Host:         r.Host,
			Passes:       r.Passes,
			Instructions: r.Instructions,
			Snapshot:     r.Snapshot,
			OK:           r.OK(),
		}
		for _, m := range r.Mismatches {
			hr.Mismatches = append(hr.Mismatches, m.String())
		}
		if !hr.OK {
			report.Deterministic = false
		}
		report.Hosts = append(report.Hosts, hr)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	return outputReplay(formatter, report)
}

func outputReplay(formatter *OutputFormatter, report ReplayReport) error {
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: report}
		if !report.Deterministic {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_REPLAY_DIVERGED", Message: "replayed output diverges from the recorded trace"}
		}
		if err := formatter.Response(resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if len(report.Hosts) == 0 {
			fmt.Fprintln(w, "No passes recorded.")
			return nil
		}
		rows := make([]table.Row, 0, len(report.Hosts))
		for _, h := range report.Hosts {
			status := "✓"
			if !h.OK {
				status = fmt.Sprintf("✗ %d mismatch(es)", len(h.Mismatches))
			}
			rows = append(rows, table.Row{h.Host, h.Passes, h.Instructions, status})
		}
		formatter.Table(table.Row{"Host", "Passes", "Instructions", "Status"}, rows)

		for _, h := range report.Hosts {
			formatter.VerboseLog("%s: %s", h.Host, h.Snapshot)
			for _, m := range h.Mismatches {
				fmt.Fprintf(w, "  %s\n", m)
			}
		}
		if report.Deterministic {
			fmt.Fprintln(w, "✓ Replay matches the recorded trace")
		} else {
			fmt.Fprintln(w, "✗ Replay diverges from the recorded trace")
		}
	}

	if !report.Deterministic {
		return NewExitError(ExitFailure, "replay diverged")
	}
	return nil
}
