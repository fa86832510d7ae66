// Package config loads splice settings from defaults, a YAML file,
// SPLICE_* environment variables and command-line flags, and turns them
// into engine options.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/logging"
)

// Default config file names, looked up in the working directory.
var DefaultFiles = []string{"splice.yaml", "splice.yml"}

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SPLICE_"

// Config is the complete splice configuration.
type Config struct {
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"` // "text" or "json"

	// Store is the trace store path. Empty disables recording.
	Store string `koanf:"store"`

	// MetricsFile receives a Prometheus text dump after a run. Empty
	// disables it.
	MetricsFile string `koanf:"metrics_file"`

	Engine EngineConfig `koanf:"engine"`
}

// EngineConfig mirrors the engine options.
type EngineConfig struct {
	// UpdateDelay defers update passes. Zero runs them synchronously.
	UpdateDelay time.Duration `koanf:"update_delay"`
	// RenderDelay defers commits. Zero commits right after each update pass.
	RenderDelay       time.Duration `koanf:"render_delay"`
	MaxRerenders      int           `koanf:"max_rerenders"`
	PropsDepth        int           `koanf:"props_depth"`
	StateDepth        int           `koanf:"state_depth"`
	PreCompare        string        `koanf:"pre_compare"` // "always" or "on_touch"
	WideKeys          bool          `koanf:"wide_keys"`
	WideKeysInArrays  bool          `koanf:"wide_keys_in_arrays"`
	ImmediateCalls    bool          `koanf:"immediate_calls"`
	SkipNonRenderable bool          `koanf:"skip_non_renderable"`
	Duplication       string        `koanf:"duplication"` // "auto", "factory" or "refuse"
}

// defaults returns the flattened default values.
func defaults() map[string]any {
	return map[string]any{
		"log_level":                  "info",
		"log_format":                 "text",
		"store":                      "",
		"metrics_file":               "",
		"engine.update_delay":        "0s",
		"engine.render_delay":        "0s",
		"engine.max_rerenders":       engine.DefaultMaxRerenders,
		"engine.props_depth":         engine.DefaultPropsDepth,
		"engine.state_depth":         engine.DefaultStateDepth,
		"engine.pre_compare":         "always",
		"engine.wide_keys":           true,
		"engine.wide_keys_in_arrays": false,
		"engine.immediate_calls":     false,
		"engine.skip_non_renderable": true,
		"engine.duplication":         "auto",
	}
}

// Validate checks enumerated and bounded settings.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be text or json", c.LogFormat)
	}
	if _, err := preCompare(c.Engine.PreCompare); err != nil {
		return err
	}
	if _, err := duplication(c.Engine.Duplication); err != nil {
		return err
	}
	if c.Engine.MaxRerenders < 0 {
		return fmt.Errorf("engine.max_rerenders must not be negative")
	}
	if c.Engine.UpdateDelay < 0 || c.Engine.RenderDelay < 0 {
		return fmt.Errorf("engine delays must not be negative")
	}
	return nil
}

// EngineOptions converts the engine settings. Logger, hooks, timers and
// pass ids are left to the caller.
func (c *Config) EngineOptions() ([]engine.Option, error) {
	pc, err := preCompare(c.Engine.PreCompare)
	if err != nil {
		return nil, err
	}
	dup, err := duplication(c.Engine.Duplication)
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithMaxRerenders(c.Engine.MaxRerenders),
		engine.WithPropsDepth(c.Engine.PropsDepth),
		engine.WithStateDepth(c.Engine.StateDepth),
		engine.WithPreCompare(pc),
		engine.WithWideKeys(c.Engine.WideKeys),
		engine.WithWideKeysInArrays(c.Engine.WideKeysInArrays),
		engine.WithImmediateCalls(c.Engine.ImmediateCalls),
		engine.WithSkipNonRenderable(c.Engine.SkipNonRenderable),
		engine.WithDuplication(dup),
	}
	if c.Engine.UpdateDelay > 0 {
		opts = append(opts, engine.WithUpdateDelay(c.Engine.UpdateDelay))
	}
	if c.Engine.RenderDelay > 0 {
		opts = append(opts, engine.WithRenderDelay(c.Engine.RenderDelay))
	}
	return opts, nil
}

// Logger builds the stderr logger the settings describe.
func (c *Config) Logger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewWriter(os.Stderr, level, c.LogFormat == "json"), nil
}

func preCompare(s string) (engine.PreCompare, error) {
	switch s {
	case "", "always":
		return engine.PreCompareAlways, nil
	case "on_touch":
		return engine.PreCompareOnTouch, nil
	}
	return 0, fmt.Errorf("invalid engine.pre_compare %q: must be always or on_touch", s)
}

func duplication(s string) (engine.Duplication, error) {
	switch s {
	case "", "auto":
		return engine.DuplicateAuto, nil
	case "factory":
		return engine.DuplicateFactory, nil
	case "refuse":
		return engine.DuplicateRefuse, nil
	}
	return 0, fmt.Errorf("invalid engine.duplication %q: must be auto, factory or refuse", s)
}
