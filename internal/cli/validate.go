package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/splice/internal/compiler"
	"github.com/roach88/splice/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Scenarios bool // run the scenarios components declare
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
	Scenarios *harness.ValidationResult  `json:"scenarios,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate views and components",
		Long: `Validate the CUE views and template components of a package.

Checks node shapes, keys, placeholders, component references and
template cycles. With --scenarios, the harness scenarios each component
lists are run as well.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Scenarios, "scenarios", false, "run the scenarios declared by components")

	return cmd
}

func runValidate(opts *ValidateOptions, specsDir string, cmd *cobra.Command) error {
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
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	validationErrors := loadErrorsToValidation(loadErrors)
	validationErrors = append(validationErrors, compiler.ValidateSet(loadResult.Bundle.Views, loadResult.Bundle.Components)...)

	result := ValidationResult{Errors: validationErrors}
	if opts.Scenarios && len(validationErrors) == 0 {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		formatter.VerboseLog("Running component scenarios")
		scen, err := harness.ValidateComponentScenarios(ctx, loadResult.Bundle.Components, specsDir)
		if err != nil {
			return WrapExitError(ExitCommandError, "scenario validation interrupted", err)
		}
		result.Scenarios = scen
	}

	result.Valid = len(result.Errors) == 0 && (result.Scenarios == nil || result.Scenarios.Failed == 0)
	if !result.Valid {
		return outputValidationFailure(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// loadErrorsToValidation converts compile errors so they are reported with
// the set-level findings.
func loadErrorsToValidation(errs []error) []compiler.ValidationError {
	var out []compiler.ValidationError
	for _, err := range errs {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			out = append(out, compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric})
			continue
		}
		line := 0
		if loadErr.Pos.IsValid() {
			line = loadErr.Pos.Line()
		}
		out = append(out, compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    line,
		})
	}
	return out
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ All specs valid")
	if s := result.Scenarios; s != nil {
		fmt.Fprintf(formatter.Writer, "✓ %d scenario(s) passed, %d component(s) without scenarios\n", s.Passed, s.Skipped)
	}
	return nil
}

func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputValidationFailure(formatter *OutputFormatter, result ValidationResult) error {
	failures := len(result.Errors)
	if result.Scenarios != nil {
		failures += result.Scenarios.Failed
	}
	msg := fmt.Sprintf("validation failed with %d error(s)", failures)

	if formatter.Format == "json" {
		first := &CLIError{Code: "E_SCENARIO_FAILED", Message: msg}
		if len(result.Errors) > 0 {
			first = &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message}
		}
		if err := formatter.Response(CLIResponse{Status: "error", Data: result, Error: first}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, err := range result.Errors {
		if err.Line > 0 {
			fmt.Fprintf(w, "line %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	if result.Scenarios != nil {
		for _, f := range result.Scenarios.Failures {
			fmt.Fprintf(w, "  %s %s: %s\n\n", f.Component, f.ScenarioPath, f.Error)
		}
	}
	return NewExitError(ExitFailure, msg)
}

// ValidateSpecsDir validates all specs in a directory without running
// scenarios.
func ValidateSpecsDir(specsDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	errs := loadErrorsToValidation(loadErrors)
	return append(errs, compiler.ValidateSet(loadResult.Bundle.Views, loadResult.Bundle.Components)...), nil
}
