package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/render"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "splice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, used, err := Load("", nil)
	require.NoError(t, err)

	assert.Empty(t, used)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.Store)
	assert.Equal(t, engine.DefaultMaxRerenders, cfg.Engine.MaxRerenders)
	assert.Equal(t, engine.DefaultPropsDepth, cfg.Engine.PropsDepth)
	assert.Equal(t, engine.DefaultStateDepth, cfg.Engine.StateDepth)
	assert.Equal(t, "always", cfg.Engine.PreCompare)
	assert.True(t, cfg.Engine.WideKeys)
	assert.True(t, cfg.Engine.SkipNonRenderable)
	assert.False(t, cfg.Engine.WideKeysInArrays)
	assert.Equal(t, "auto", cfg.Engine.Duplication)
	assert.Zero(t, cfg.Engine.UpdateDelay)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
store: trace.db
engine:
  max_rerenders: 5
  pre_compare: on_touch
  update_delay: 20ms
  wide_keys: false
`)
	cfg, used, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, used)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "trace.db", cfg.Store)
	assert.Equal(t, 5, cfg.Engine.MaxRerenders)
	assert.Equal(t, "on_touch", cfg.Engine.PreCompare)
	assert.Equal(t, 20*time.Millisecond, cfg.Engine.UpdateDelay)
	assert.False(t, cfg.Engine.WideKeys)
	assert.Equal(t, engine.DefaultPropsDepth, cfg.Engine.PropsDepth, "unset keys keep defaults")
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, "log_level: debug\nengine:\n  max_rerenders: 5\n  props_depth: 2\n")
	t.Setenv("SPLICE_ENGINE_MAX_RERENDERS", "7")
	t.Setenv("SPLICE_LOG_FORMAT", "json")

	cfg, _, err := Load(path, newFlags(t, "--max-rerenders=9", "--duplication", "refuse"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel, "file over defaults")
	assert.Equal(t, 2, cfg.Engine.PropsDepth, "file over defaults")
	assert.Equal(t, "json", cfg.LogFormat, "env over defaults")
	assert.Equal(t, 9, cfg.Engine.MaxRerenders, "flags over env over file")
	assert.Equal(t, "refuse", cfg.Engine.Duplication)
}

func TestLoad_UnchangedFlagsDoNotOverride(t *testing.T) {
	path := writeConfig(t, "engine:\n  pre_compare: on_touch\n")
	cfg, _, err := Load(path, newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "on_touch", cfg.Engine.PreCompare)
}

func TestLoad_ConfigFlag(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")
	cfg, used, err := Load("", newFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"log level", "log_level: loud\n", `unknown log level "loud"`},
		{"log format", "log_format: xml\n", `invalid log_format "xml"`},
		{"pre compare", "engine:\n  pre_compare: never\n", `invalid engine.pre_compare "never"`},
		{"duplication", "engine:\n  duplication: twice\n", `invalid engine.duplication "twice"`},
		{"max rerenders", "engine:\n  max_rerenders: -1\n", "must not be negative"},
		{"malformed", "engine: [\n", "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "engine.max_rerenders", envKey("SPLICE_ENGINE_MAX_RERENDERS"))
	assert.Equal(t, "log_level", envKey("SPLICE_LOG_LEVEL"))
	assert.Equal(t, "store", envKey("SPLICE_STORE"))
}

func TestEngineOptions(t *testing.T) {
	cfg, _, err := Load("", nil)
	require.NoError(t, err)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 9)

	cfg.Engine.UpdateDelay = time.Millisecond
	cfg.Engine.RenderDelay = time.Millisecond
	opts, err = cfg.EngineOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 11)

	cfg.Engine.Duplication = "twice"
	_, err = cfg.EngineOptions()
	assert.Error(t, err)
}

func TestEngineOptions_ConfigureEngine(t *testing.T) {
	cfg, _, err := Load("", nil)
	require.NoError(t, err)
	cfg.Engine.MaxRerenders = 0

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	e := engine.New(opts...)
	_, err = e.NewHost("main", render.NewMemory())
	require.NoError(t, err)
	assert.NotNil(t, e.Host("main"))
}

func TestLogger(t *testing.T) {
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	log, err := cfg.Logger()
	require.NoError(t, err)
	assert.NotNil(t, log)

	cfg.LogLevel = "loud"
	_, err = cfg.Logger()
	assert.Error(t, err)
}
