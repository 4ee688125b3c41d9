package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// File names searched for, in order.
var fileNames = []string{"leapforge.yaml", "leapforge.yml"}

// EnvPrefix prefixes environment overrides. A double underscore nests:
// LEAPFORGE_TARGET__SCHEMA sets target.schema.
const EnvPrefix = "LEAPFORGE_"

// ErrNoProject is returned when a command needs a project and no config
// file was found.
var ErrNoProject = errors.New("no leapforge.yaml found in this directory or its parents; pass --config")

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps CLI flag names whose config key is not the snake_case of
// the flag.
var flagKeys = map[string]string{
	"state":  "state_path",
	"target": "target_name",
}

// Options controls Load.
type Options struct {
	// File is an explicit config file. Its directory becomes the project root.
	File string
	// Dir is where the upward search starts. Defaults to the working directory.
	Dir string
	// Flags are applied last; only flags the user changed are read.
	Flags *pflag.FlagSet
}

// Load reads configuration from defaults, the project file, the
// environment and flags, in increasing precedence.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path, root, err := locate(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFile = path
	cfg.ProjectRoot = root

	cfg.Target = expandMap(cfg.Target)
	for name, t := range cfg.Targets {
		cfg.Targets[name] = expandMap(t)
	}
	cfg.Vars = expandMap(cfg.Vars)

	cfg.ModelsPath = resolvePathRelativeTo(cfg.ModelsPath, root)
	cfg.SeedsPath = resolvePathRelativeTo(cfg.SeedsPath, root)
	cfg.MacrosPath = resolvePathRelativeTo(cfg.MacrosPath, root)
	if cfg.StatePath != ":memory:" {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, root)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// locate returns the config file to read and the project root.
func locate(opts Options) (path, root string, err error) {
	if opts.File != "" {
		abs, err := filepath.Abs(opts.File)
		if err != nil {
			return "", "", fmt.Errorf("invalid config path %s: %w", opts.File, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return "", "", fmt.Errorf("config file %s: %w", opts.File, err)
		}
		return abs, filepath.Dir(abs), nil
	}

	start := opts.Dir
	if start == "" {
		if start, err = os.Getwd(); err != nil {
			return "", "", fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	start, err = filepath.Abs(start)
	if err != nil {
		return "", "", err
	}
	if root := FindProjectRoot(start); root != "" {
		return findConfigFile(root), root, nil
	}
	return "", start, nil
}

// findConfigFile returns the config file in dir, or "" when there is none.
func findConfigFile(dir string) string {
	for _, name := range fileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the nearest directory holding a
// config file. Returns "" when none is found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if findConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value. Unset variables
// are left as written.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

func expandMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = expandValue(v)
	}
	return out
}

func expandValue(v any) any {
	switch v := v.(type) {
	case string:
		return expandEnvVars(v)
	case map[string]any:
		return expandMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = expandValue(item)
		}
		return out
	default:
		return v
	}
}
