package commands

import (
	"maps"

	"github.com/leapstack-labs/leapforge/internal/config"
	"github.com/leapstack-labs/leapforge/pkg/auth/snowflake"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "********"

// resolvedConfig is the printed form of a config. Field order is the
// output order.
type resolvedConfig struct {
	ProjectName string         `yaml:"project_name"`
	ConfigFile  string         `yaml:"config_file,omitempty"`
	ProjectRoot string         `yaml:"project_root"`
	TargetName  string         `yaml:"target_name"`
	Target      map[string]any `yaml:"target"`
	ModelsPath  string         `yaml:"models_path"`
	SeedsPath   string         `yaml:"seeds_path"`
	MacrosPath  string         `yaml:"macros_path"`
	StatePath   string         `yaml:"state_path"`
	Threads     int            `yaml:"threads"`
	LogLevel    string         `yaml:"log_level"`
	Vars        map[string]any `yaml:"vars,omitempty"`
	Models      map[string]any `yaml:"models,omitempty"`
	Seeds       map[string]any `yaml:"seeds,omitempty"`
}

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the configuration after defaults, the project file, LEAPFORGE_
environment variables and flags have been applied. The active target is
shown merged; credentials are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(resolve(cfg, showSecrets)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print credentials instead of redacting them")
	return cmd
}

func resolve(cfg *config.Config, showSecrets bool) resolvedConfig {
	target := cfg.ActiveTarget()
	if !showSecrets {
		target = redactMap(target)
	}
	return resolvedConfig{
		ProjectName: cfg.ProjectName,
		ConfigFile:  cfg.ConfigFile,
		ProjectRoot: cfg.ProjectRoot,
		TargetName:  cfg.TargetName,
		Target:      target,
		ModelsPath:  cfg.ModelsPath,
		SeedsPath:   cfg.SeedsPath,
		MacrosPath:  cfg.MacrosPath,
		StatePath:   cfg.StatePath,
		Threads:     cfg.Threads,
		LogLevel:    cfg.LogLevel,
		Vars:        cfg.Vars,
		Models:      cfg.Models,
		Seeds:       cfg.Seeds,
	}
}

func redactMap(m map[string]any) map[string]any {
	out := maps.Clone(m)
	for k := range out {
		if isSecretKey(k) {
			out[k] = redacted
		}
	}
	return out
}

// isSecretKey reports whether a profile key or descriptor option holds a
// credential.
func isSecretKey(name string) bool {
	switch name {
	case "private_key", "private_key_passphrase", "token", "oauth_client_secret", "refresh_token", "keyfile_json":
		return true
	}
	return snowflake.IsSecret(name)
}
