// Package config loads leapforge.yaml: the project layout, the target
// profile and the project-level node configuration trees.
package config

import (
	"fmt"
	"maps"

	lfstarlark "github.com/leapstack-labs/leapforge/internal/starlark"
	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"go.uber.org/multierr"
)

// Config is the resolved project configuration.
type Config struct {
	ProjectName string `koanf:"project_name"`
	// TargetName selects an entry of Targets and is exposed as target.name.
	TargetName string `koanf:"target_name"`

	ModelsPath string `koanf:"models_path"`
	SeedsPath  string `koanf:"seeds_path"`
	MacrosPath string `koanf:"macros_path"`
	StatePath  string `koanf:"state_path"`

	// Target holds the connection keys shared by every target: type plus
	// backend-specific keys.
	Target map[string]any `koanf:"target"`
	// Targets holds named overrides merged over Target.
	Targets map[string]map[string]any `koanf:"targets"`

	Threads  int            `koanf:"threads"`
	Vars     map[string]any `koanf:"vars"`
	Models   map[string]any `koanf:"models"`
	Seeds    map[string]any `koanf:"seeds"`
	LogLevel string         `koanf:"log_level"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the file that was loaded, empty when none was found.
	ConfigFile string `koanf:"-"`
}

// ActiveTarget returns Target with the selected named target merged over it.
func (c *Config) ActiveTarget() map[string]any {
	out := make(map[string]any, len(c.Target))
	maps.Copy(out, c.Target)
	if named, ok := c.Targets[c.TargetName]; ok {
		maps.Copy(out, named)
	}
	return out
}

// AdapterConfig decodes the active target for the adapter registry. The
// project thread count fills in when the target does not set one.
func (c *Config) AdapterConfig() (adapter.Config, error) {
	cfg, err := adapter.ConfigFromMap(c.ActiveTarget())
	if err != nil {
		return adapter.Config{}, fmt.Errorf("target %s: %w", c.TargetName, err)
	}
	if cfg.Threads == 0 {
		cfg.Threads = c.Threads
	}
	return cfg, nil
}

// TargetInfo converts the active target to the template "target" global.
// Credentials are not exposed.
func (c *Config) TargetInfo() (*lfstarlark.TargetInfo, error) {
	cfg, err := c.AdapterConfig()
	if err != nil {
		return nil, err
	}
	return &lfstarlark.TargetInfo{
		Name:     c.TargetName,
		Type:     cfg.Type,
		Schema:   cfg.Schema,
		Database: cfg.Database,
		Threads:  cfg.Threads,
	}, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs error
	if c.ProjectName == "" {
		errs = multierr.Append(errs, fmt.Errorf("project_name is required"))
	}
	if c.Threads < 1 {
		errs = multierr.Append(errs, fmt.Errorf("threads must be at least 1, got %d", c.Threads))
	}
	if len(c.Targets) > 0 {
		if _, ok := c.Targets[c.TargetName]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("target %q is not defined in targets", c.TargetName))
		}
	}
	target := c.ActiveTarget()
	if t, _ := target["type"].(string); t == "" {
		errs = multierr.Append(errs, fmt.Errorf("target type is required"))
	}
	if errs != nil {
		return fmt.Errorf("invalid configuration: %w", errs)
	}
	return nil
}
