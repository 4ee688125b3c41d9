package commands

import (
	"fmt"
	"maps"

	lfstarlark "github.com/leapstack-labs/leapforge/internal/starlark"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewEvalCommand creates the eval command.
func NewEvalCommand() *cobra.Command {
	var (
		vars   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate a template expression",
		Long: `Evaluate one Starlark expression with the template built-ins, the
project vars and the active target. Works outside a project, in which case
only the built-ins and --vars are available.`,
		Example: `  leapforge eval 'zip([1, 2], ["a", "b"])'
  leapforge eval 'var("start_date")' --vars '{start_date: 2024-01-01}'
  leapforge eval 'target.schema'`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{AnnotationConfig: "optional"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			scope := make(map[string]any)
			var target *lfstarlark.TargetInfo
			if cfg := GetConfig(ctx); cfg != nil {
				maps.Copy(scope, cfg.Vars)
				t, err := cfg.TargetInfo()
				if err != nil {
					return err
				}
				target = t
			}
			if vars != "" {
				var extra map[string]any
				if err := yaml.Unmarshal([]byte(vars), &extra); err != nil {
					return fmt.Errorf("invalid --vars: %w", err)
				}
				maps.Copy(scope, extra)
			}

			ec, err := lfstarlark.NewContext(nil, target,
				lfstarlark.WithVars(scope),
				lfstarlark.WithLogger(GetLogger(ctx)))
			if err != nil {
				return err
			}
			v, err := ec.EvalExpr(ctx, args[0], "<eval>", 0)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := lfstarlark.MarshalJSON(v)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), lfstarlark.Stringify(v))
			return nil
		},
	}
	cmd.Flags().StringVar(&vars, "vars", "", "YAML mapping of vars layered over the project vars")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
