// Package cli provides the command-line interface for leapforge.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/leapforge/internal/cli/commands"
	"github.com/leapstack-labs/leapforge/internal/cli/output"
	"github.com/leapstack-labs/leapforge/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leapforge",
		Short: "leapforge - SQL model builder",
		Long: `leapforge compiles templated SQL models and seeds, orders them on their
dependency graph and builds them in a warehouse, tracking what changed
between runs.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			mode := configMode(cmd)
			if mode == "skip" {
				return nil
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr())
			ctx = commands.WithRenderer(ctx, r)

			if mode == "optional" && cfgFile == "" && !projectFound() {
				ctx = commands.WithLogger(ctx, newLogger(cmd.ErrOrStderr(), flagLevel(cmd)))
				cmd.SetContext(ctx)
				return nil
			}

			cfg, err := config.Load(config.Options{File: cfgFile, Flags: cmd.Root().PersistentFlags()})
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			logger.Debug("configuration loaded",
				slog.String("file", cfg.ConfigFile),
				slog.String("target", cfg.TargetName))

			ctx = commands.WithConfig(ctx, cfg)
			ctx = commands.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./leapforge.yaml, searched upward)")
	flags.StringP("target", "t", "", "Target to use (e.g., dev, prod)")
	flags.String("models-path", "", "Path to models directory")
	flags.String("seeds-path", "", "Path to seeds directory")
	flags.String("macros-path", "", "Path to macros directory")
	flags.String("state", "", "Path to state database")
	flags.Int("threads", 0, "Number of nodes built concurrently")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("target", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		cfg, err := config.Load(config.Options{File: cfgFile})
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		names := make([]string, 0, len(cfg.Targets))
		for name := range cfg.Targets {
			names = append(names, name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewAuthCommand())
	rootCmd.AddCommand(commands.NewPlanCommand())
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewEvalCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command. Cancelling ctx cancels the statements in
// flight and skips the nodes not yet started.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// configMode returns how cmd uses the project config. help and completion
// never load it.
func configMode(cmd *cobra.Command) string {
	switch cmd.Name() {
	case "help", "completion", "__complete", "__completeNoDesc":
		return "skip"
	}
	for c := cmd; c != nil; c = c.Parent() {
		if mode, ok := c.Annotations[commands.AnnotationConfig]; ok {
			return mode
		}
	}
	return "required"
}

func projectFound() bool {
	wd, err := os.Getwd()
	if err != nil {
		return false
	}
	return config.FindProjectRoot(wd) != ""
}

func flagLevel(cmd *cobra.Command) string {
	level, _ := cmd.Root().PersistentFlags().GetString("log-level")
	if level == "" {
		return config.DefaultLogLevel
	}
	return level
}

// newLogger returns a text logger on w. Unknown levels fall back to warn.
func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leapforge.

To load completions:

Bash:
  $ source <(leapforge completion bash)

Zsh:
  $ leapforge completion zsh > "${fpath[1]}/_leapforge"

Fish:
  $ leapforge completion fish | source

PowerShell:
  PS> leapforge completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
