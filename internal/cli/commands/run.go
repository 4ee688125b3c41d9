package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/leapstack-labs/leapforge/internal/cli/output"
	"github.com/leapstack-labs/leapforge/internal/engine"
	"github.com/leapstack-labs/leapforge/internal/state"
	"github.com/spf13/cobra"
)

// ErrRunFailed is returned when at least one node did not build. Node
// errors have already been printed.
var ErrRunFailed = errors.New("run failed")

// RunOptions holds options for the run command.
type RunOptions struct {
	Select      []string
	FullRefresh bool
	Changed     bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build models and seeds",
		Long: `Build nodes in dependency order. Nodes whose dependencies have all
been built run concurrently, up to --threads at a time.

By default every enabled node is built. --select narrows the run; --changed
keeps only nodes that changed since their last build and their descendants.`,
		Example: `  # Build everything
  leapforge run

  # Build one model and everything downstream of it
  leapforge run --select orders+

  # Rebuild incremental models from scratch
  leapforge run --full-refresh

  # Build only what changed since the last run
  leapforge run --changed`,
		Aliases: []string{"build"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Select, "select", "s", nil, "Nodes to build by name; +name adds ancestors, name+ adds descendants")
	cmd.Flags().BoolVar(&opts.FullRefresh, "full-refresh", false, "Rebuild incremental models from scratch")
	cmd.Flags().BoolVar(&opts.Changed, "changed", false, "Only build new and changed nodes and their descendants")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	eng, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	result, err := eng.Run(cmd.Context(), engine.RunOptions{
		Select:      opts.Select,
		FullRefresh: opts.FullRefresh,
		Changed:     opts.Changed,
	})
	if result == nil {
		return err
	}
	r := GetRenderer(cmd)
	renderRun(r, result)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRunFailed, strings.TrimSpace(result.Run.Error))
	}
	return nil
}

func renderRun(r *output.Renderer, result *engine.RunResult) {
	out := r.Out()
	if len(result.Nodes) == 0 {
		_, _ = fmt.Fprintln(out, "Nothing to build.")
		return
	}
	width := len(fmt.Sprint(len(result.Nodes)))
	for i, n := range result.Nodes {
		line := fmt.Sprintf("%*d of %d %s %s", width, i+1, len(result.Nodes), n.ResourceType, n.Name)
		detail := n.Message
		if n.Status == state.NodeRunStatusSuccess {
			detail = fmt.Sprintf("%s in %s", n.Message, n.Duration.Round(time.Millisecond))
		}
		_, _ = fmt.Fprintf(out, "%s [%s] %s\n", line, r.Status(string(n.Status)), r.Styles.Muted.Render(detail))
	}

	counts := result.Counts()
	var rows int64
	for _, n := range result.Nodes {
		rows += n.RowsAffected
	}
	_, _ = fmt.Fprintf(out, "\nRun %s %s: %s in %s, %s rows\n",
		result.Run.ID,
		r.Status(string(result.Run.Status)),
		english.Plural(len(result.Nodes), "node", ""),
		result.Duration.Round(time.Millisecond),
		humanize.Comma(rows))
	_, _ = fmt.Fprintf(out, "%d succeeded, %d failed, %d skipped\n",
		counts[state.NodeRunStatusSuccess],
		counts[state.NodeRunStatusFailed],
		counts[state.NodeRunStatusSkipped])
}
