package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapforge/pkg/auth"
	"github.com/spf13/cobra"
)

// NewAuthCommand creates the auth command group.
func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect warehouse authentication",
	}
	cmd.AddCommand(newAuthDescribeCommand())
	return cmd
}

func newAuthDescribeCommand() *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Show the connection descriptor of the active target",
		Long: `Build the connection descriptor the active target's backend would
connect with and print it. Credentials are redacted unless --show-secrets
is given.`,
		Example: `  leapforge auth describe
  leapforge auth describe --target prod`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig(cmd)
			if err != nil {
				return err
			}
			target := cfg.ActiveTarget()
			backend, _ := target["type"].(string)
			a, err := auth.Lookup(backend)
			if err != nil {
				return fmt.Errorf("target %s: %w; registered backends: %s",
					cfg.TargetName, err, strings.Join(auth.Backends(), ", "))
			}
			b, err := a.Configure(auth.NewAdapterConfig(target))
			if err != nil {
				return fmt.Errorf("target %s: %w", cfg.TargetName, err)
			}
			renderDescriptor(cmd, cfg.TargetName, backend, b, showSecrets)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print credentials instead of redacting them")
	return cmd
}

func renderDescriptor(cmd *cobra.Command, target, backend string, b *auth.Builder, showSecrets bool) {
	r := GetRenderer(cmd)
	_, _ = fmt.Fprintf(r.Out(), "%s (%s)\n", r.Styles.Header.Render(target), backend)

	t := r.Table()
	t.AppendHeader(table.Row{"Option", "Value"})
	value := func(name, v string) string {
		if !showSecrets && isSecretKey(name) {
			return redacted
		}
		return v
	}
	if u, ok := b.Username(); ok {
		t.AppendRow(table.Row{"user", value("user", u)})
	}
	if p, ok := b.Password(); ok {
		t.AppendRow(table.Row{"password", value("password", p)})
	}
	for _, opt := range b.Options() {
		t.AppendRow(table.Row{opt.Name, value(opt.Name, opt.String())})
	}
	t.Render()
}
