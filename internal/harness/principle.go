package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/splice/internal/ir"
)

// ScenarioNotFoundError is returned when a referenced scenario file doesn't exist.
type ScenarioNotFoundError struct {
	Component    string
	ScenarioPath string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf(
		"component %q references scenario file %q which does not exist (resolved to: %s)",
		e.Component,
		e.ScenarioPath,
		e.ResolvedPath,
	)
}

// ExtractScenarios resolves the scenario files a component declares.
// Relative paths are resolved against specDir; every file must exist.
func ExtractScenarios(component ir.ComponentSpec, specDir string) ([]string, error) {
	paths := make([]string, 0, len(component.Scenarios))
	for _, ref := range component.Scenarios {
		scenarioPath := ref
		if !filepath.IsAbs(scenarioPath) {
			scenarioPath = filepath.Join(specDir, scenarioPath)
		}
		if _, err := os.Stat(scenarioPath); os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{
				Component:    component.Name,
				ScenarioPath: ref,
				ResolvedPath: scenarioPath,
			}
		}
		paths = append(paths, scenarioPath)
	}
	return paths, nil
}

// ValidationResult contains results from running component scenarios.
type ValidationResult struct {
	TotalComponents int               `json:"total_components"`
	TotalScenarios  int               `json:"total_scenarios"`
	Passed          int               `json:"passed"`
	Failed          int               `json:"failed"`
	Skipped         int               `json:"skipped"` // Components without scenarios
	Failures        []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents a failed component scenario.
type ScenarioFailure struct {
	Component    string `json:"component"`
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// ValidateComponentScenarios runs the scenarios declared by each component
// and returns a summary. A scenario fails when it cannot be found, loaded
// or run, or when any of its expectations fail.
func ValidateComponentScenarios(
	ctx context.Context,
	components []ir.ComponentSpec,
	specDir string,
) (*ValidationResult, error) {
	result := &ValidationResult{}

	for _, component := range components {
		result.TotalComponents++

		paths, err := ExtractScenarios(component, specDir)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				Component: component.Name,
				Error:     err.Error(),
			})
			continue
		}
		if len(paths) == 0 {
			result.Skipped++
			continue
		}

		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.TotalScenarios++

			fail := func(msg string) {
				result.Failed++
				result.Failures = append(result.Failures, ScenarioFailure{
					Component:    component.Name,
					ScenarioPath: path,
					Error:        msg,
				})
			}

			scenario, err := LoadScenario(path)
			if err != nil {
				fail(fmt.Sprintf("failed to load scenario: %v", err))
				continue
			}
			runResult, err := RunContext(ctx, scenario)
			if err != nil {
				fail(fmt.Sprintf("scenario execution failed: %v", err))
				continue
			}
			if !runResult.Pass {
				fail(fmt.Sprintf("scenario assertions failed: %v", runResult.Errors))
				continue
			}
			result.Passed++
		}
	}

	return result, nil
}
