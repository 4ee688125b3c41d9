package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/leapstack-labs/leapforge/internal/cli/output"
	"github.com/leapstack-labs/leapforge/internal/config"
	"github.com/leapstack-labs/leapforge/internal/engine"
	"github.com/spf13/cobra"
)

// Annotation keys read by the root command.
const (
	// AnnotationConfig is "skip" for commands that never read the project
	// and "optional" for commands that run without one.
	AnnotationConfig = "leapforge/config"
)

type (
	configKey   struct{}
	loggerKey   struct{}
	rendererKey struct{}
)

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithRenderer stores r in ctx.
func WithRenderer(ctx context.Context, r *output.Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

// GetConfig returns the config loaded by the root command, or nil.
func GetConfig(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	return cfg
}

// GetLogger returns the command logger. It discards when none was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// GetRenderer returns the output renderer of cmd.
func GetRenderer(cmd *cobra.Command) *output.Renderer {
	if r, ok := cmd.Context().Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	return output.NewRenderer(cmd.OutOrStdout(), os.Stderr)
}

func requireConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := GetConfig(cmd.Context())
	if cfg == nil {
		return nil, config.ErrNoProject
	}
	return cfg, nil
}

// newEngine creates an engine for the loaded project.
func newEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := requireConfig(cmd)
	if err != nil {
		return nil, err
	}
	return engine.New(cmd.Context(), engine.Options{Config: cfg, Logger: GetLogger(cmd.Context())})
}
