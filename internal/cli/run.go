package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/splice/internal/config"
	"github.com/roach88/splice/internal/def"
	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/harness"
	"github.com/roach88/splice/internal/metrics"
	"github.com/roach88/splice/internal/render"
	"github.com/roach88/splice/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Hosts []string // extra hosts next to "main"
	Hold  bool     // keep the loop running until interrupted

	// PassIDs allows overriding the pass id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	PassIDs engine.PassIDGenerator
}

// HostOutput is the final output of one host.
type HostOutput struct {
	Name     string `json:"name"`
	Snapshot string `json:"snapshot"`
}

// RunResult summarizes a run.
type RunResult struct {
	View         string       `json:"view"`
	Hosts        []HostOutput `json:"hosts"`
	Passes       int          `json:"passes"`
	Instructions int          `json:"instructions"`
	Recorded     int          `json:"recorded,omitempty"`
	Errors       []string     `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-dir> <view>",
		Short: "Render a view into in-memory hosts",
		Long: `Render a compiled view into the "main" host and print the output of
every host.

Engine options come from splice.yaml, SPLICE_* environment variables and
flags, in increasing precedence. With --store every committed pass is
recorded into a SQLite trace store; with --metrics-file the engine
counters are written in Prometheus text format once the run ends.

Examples:
  splice run ./specs list
  splice run ./specs app --host side --store ./trace.db
  splice run ./specs app --update-delay 50ms --hold`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(opts, args[0], args[1], cmd)
		},
	}

	config.BindFlags(cmd.Flags())
	cmd.Flags().StringSliceVar(&opts.Hosts, "host", nil, "additional host names")
	cmd.Flags().BoolVar(&opts.Hold, "hold", false, "keep running until interrupted")

	return cmd
}

func runView(opts *RunOptions, specsDir, view string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, used, err := config.Load("", cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	log, err := cfg.Logger()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if used != "" {
		log.Debug("config loaded", "file", used)
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return WrapExitError(ExitCommandError, "failed to compile specs", loadErrors[0])
	}
	spec, ok := loadResult.Bundle.Views[view]
	if !ok {
		_ = formatter.Error(ErrCodeUnknownView, fmt.Sprintf("unknown view %q", view), loadResult.Bundle.ViewNames())
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown view %q", view))
	}
	types, err := def.Templates(loadResult.Bundle.Components)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build components", err)
	}
	root, err := def.Build(&spec, def.Env{Types: types})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build view", err)
	}
	log.Info("specs compiled", "views", len(loadResult.Bundle.Views), "components", len(types))

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engOpts, err := cfg.EngineOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid engine options", err)
	}
	result := RunResult{View: view}
	engOpts = append(engOpts,
		engine.WithLogger(log),
		engine.WithHooks(engine.Hooks{
			OnPassCommitted: func(rec engine.PassRecord) {
				result.Passes++
				result.Instructions += len(rec.Instructions)
			},
			OnPassError: func(id string, err error) {
				result.Errors = append(result.Errors, fmt.Sprintf("pass %s: %v", id, err))
			},
		}),
	)
	if opts.PassIDs != nil {
		engOpts = append(engOpts, engine.WithPassIDs(opts.PassIDs))
	}

	var recorder *store.Recorder
	if cfg.Store != "" {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open store", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				log.Error("error closing store", "error", closeErr)
			}
		}()
		recorder = store.NewRecorder(ctx, st, log)
		engOpts = append(engOpts, engine.WithHooks(recorder.Hooks()))
	}

	var reg *prometheus.Registry
	if cfg.MetricsFile != "" {
		reg = prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		engOpts = append(engOpts, engine.WithHooks(m.Hooks()))
	}

	e := engine.New(engOpts...)
	mainHost, err := e.NewHost(harness.DefaultHost, render.NewMemory())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create host", err)
	}
	for _, name := range opts.Hosts {
		if _, err := e.NewHost(name, render.NewMemory()); err != nil {
			return WrapExitError(ExitCommandError, "failed to create host", err)
		}
	}

	renderErr := runLoop(ctx, e, log, opts.Hold, func() error {
		if err := mainHost.Render(root); err != nil {
			return err
		}
		return e.Flush()
	})

	if recorder != nil {
		if err := recorder.Err(); err != nil {
			return WrapExitError(ExitCommandError, "failed to record trace", err)
		}
		result.Recorded = recorder.Written()
	}
	if reg != nil {
		if err := metrics.WriteFile(cfg.MetricsFile, reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	for _, h := range e.Hosts() {
		out := HostOutput{Name: h.Name()}
		if sn, ok := h.Renderer().(engine.Snapshotter); ok {
			out.Snapshot = sn.Snapshot()
		}
		result.Hosts = append(result.Hosts, out)
	}

	if renderErr != nil && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, renderErr.Error())
	}
	return outputRunResult(formatter, result)
}

// runLoop runs the engine loop in its own goroutine and posts first onto
// it. Unless hold is set the loop stops once first has run.
func runLoop(ctx context.Context, e *engine.Engine, log *slog.Logger, hold bool, first func() error) error {
	g, gctx := errgroup.WithContext(ctx)

	var firstErr error
	g.Go(func() error {
		err := e.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	e.Post(func() {
		firstErr = first()
		if !hold {
			e.Stop()
			return
		}
		log.Info("holding; press Ctrl-C to stop")
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return firstErr
}

func outputRunResult(formatter *OutputFormatter, result RunResult) error {
	failed := len(result.Errors) > 0
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if failed {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeRunFailed, Message: result.Errors[0]}
		}
		if err := formatter.Response(resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, h := range result.Hosts {
			fmt.Fprintf(w, "%s: %s\n", h.Name, h.Snapshot)
		}
		fmt.Fprintf(w, "\n%d pass(es), %d instruction(s)", result.Passes, result.Instructions)
		if result.Recorded > 0 {
			fmt.Fprintf(w, ", %d recorded", result.Recorded)
		}
		fmt.Fprintln(w)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "✗ %s\n", e)
		}
	}
	if failed {
		return NewExitError(ExitFailure, fmt.Sprintf("run failed: %s", result.Errors[0]))
	}
	return nil
}
