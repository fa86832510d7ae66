package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// flagKeys maps flag names to config keys where they differ from the
// kebab-to-snake rule.
var flagKeys = map[string]string{
	"update-delay":        "engine.update_delay",
	"render-delay":        "engine.render_delay",
	"max-rerenders":       "engine.max_rerenders",
	"props-depth":         "engine.props_depth",
	"state-depth":         "engine.state_depth",
	"pre-compare":         "engine.pre_compare",
	"wide-keys":           "engine.wide_keys",
	"wide-keys-in-arrays": "engine.wide_keys_in_arrays",
	"immediate-calls":     "engine.immediate_calls",
	"skip-non-renderable": "engine.skip_non_renderable",
	"duplication":         "engine.duplication",
}

// BindFlags registers the flags Load understands. Only flags the user
// changed override lower layers.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default splice.yaml in the working directory)")
	fs.String("log-level", "info", "log level (debug|info|warn|error)")
	fs.String("log-format", "text", "log format (text|json)")
	fs.String("store", "", "record committed passes into this SQLite trace store")
	fs.String("metrics-file", "", "write Prometheus metrics to this file after the run")
	fs.Duration("update-delay", 0, "defer update passes by this delay (0 = synchronous)")
	fs.Duration("render-delay", 0, "defer commits by this delay")
	fs.Int("max-rerenders", 0, "extra renders a boundary may trigger while rendering")
	fs.Int("props-depth", 0, "props compare depth")
	fs.Int("state-depth", 0, "state compare depth")
	fs.String("pre-compare", "always", "when element props are diffed (always|on_touch)")
	fs.Bool("wide-keys", true, "match keyed defs across positions outside lists")
	fs.Bool("wide-keys-in-arrays", false, "match keyed defs across positions inside lists")
	fs.Bool("immediate-calls", false, "fire lifecycle calls before the commit")
	fs.Bool("skip-non-renderable", true, "skip non-renderable values instead of rendering text")
	fs.String("duplication", "auto", "second placement of a host (auto|factory|refuse)")
}

// findConfigFile returns the explicit path or the first default file
// present in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey maps SPLICE_ENGINE_MAX_RERENDERS to engine.max_rerenders and
// SPLICE_LOG_LEVEL to log_level.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "engine_"); ok {
		return "engine." + rest
	}
	return key
}

// Load reads the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// The flag set may be nil. When cfgFile is empty, the --config flag and then
// the default file names are tried.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" && flags != nil {
		if f := flags.Lookup("config"); f != nil {
			cfgFile = f.Value.String()
		}
	}
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, used, nil
}
