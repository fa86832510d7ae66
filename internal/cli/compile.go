package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/splice/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled views and components.
type CompilationResult struct {
	Views      map[string]ir.NodeSpec `json:"views"`
	Components []ir.ComponentSpec     `json:"components"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	ViewCount      int
	ComponentCount int
	TotalNodes     int
	TotalScenarios int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE views and components",
		Long: `Compile the CUE views and template components of a package into
node specs.

Every view and component is compiled; all errors are reported together.
The specs are written as JSON with --output.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)
	for _, name := range loadResult.Bundle.ViewNames() {
		formatter.VerboseLog("Compiled view: %s", name)
	}
	for _, c := range loadResult.Bundle.Components {
		formatter.VerboseLog("Compiled component: %s", c.Name)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{
		Views:      loadResult.Bundle.Views,
		Components: loadResult.Bundle.Components,
	}
	if result.Components == nil {
		result.Components = []ir.ComponentSpec{}
	}
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeSpecsToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, loadResult.Bundle.ViewNames(), stats, opts.Output)
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{
		ViewCount:      len(result.Views),
		ComponentCount: len(result.Components),
	}
	for _, v := range result.Views {
		stats.TotalNodes += countNodes(v)
	}
	for _, c := range result.Components {
		stats.TotalNodes += countNodes(c.Template)
		stats.TotalScenarios += len(c.Scenarios)
	}
	return stats
}

func countNodes(n ir.NodeSpec) int {
	total := 1
	for _, c := range n.Children {
		total += countNodes(c)
	}
	return total
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, viewNames []string, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d view(s), %d component(s), %d node(s)\n\n",
		stats.ViewCount, stats.ComponentCount, stats.TotalNodes)

	if len(viewNames) > 0 {
		rows := make([]table.Row, 0, len(viewNames))
		for _, name := range viewNames {
			rows = append(rows, table.Row{name, countNodes(result.Views[name])})
		}
		formatter.Table(table.Row{"View", "Nodes"}, rows)
		fmt.Fprintln(w)
	}

	if len(result.Components) > 0 {
		rows := make([]table.Row, 0, len(result.Components))
		for _, c := range result.Components {
			rows = append(rows, table.Row{c.Name, countNodes(c.Template), len(c.State), len(c.Scenarios)})
		}
		formatter.Table(table.Row{"Component", "Nodes", "State", "Scenarios"}, rows)
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote node specs to %s\n", outputFile)
	}
	return nil
}

func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := formatter.Response(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		code, message := parseCompileError(err)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeSpecsToFile writes the compiled specs as indented JSON.
func writeSpecsToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling specs: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
