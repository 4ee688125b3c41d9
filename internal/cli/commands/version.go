package commands

import (
	"fmt"
	"runtime"

	lfstarlark "github.com/leapstack-labs/leapforge/internal/starlark"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Long:        `Display leapforge version and build information.`,
		Annotations: map[string]string{AnnotationConfig: "skip"},
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "leapforge v%s\n", version)
			_, _ = fmt.Fprintf(out, "commit %s, built %s, %s\n", commit, date, runtime.Version())
			_, _ = fmt.Fprintf(out, "template runtime compatible with dbt %s\n", lfstarlark.Version)
		},
	}
}
