package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapforge/internal/cli/output"
	"github.com/leapstack-labs/leapforge/internal/engine"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// planOrder lists the change classes in summary order.
var planOrder = []engine.Change{
	engine.ChangeNew,
	engine.ChangeContentChanged,
	engine.ChangeConfigChanged,
	engine.ChangeUnchanged,
	engine.ChangeRemoved,
}

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	var changedOnly bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which nodes changed since their last build",
		Long: `Resolve every node of the project and compare it with the state
store. Each node is classified as new, changed-content (its SQL or seed file
changed), changed-config (its resolved config or materialization changed),
unchanged, or removed.`,
		Example: `  leapforge plan
  leapforge plan --changed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			plan, err := eng.Plan(cmd.Context())
			if err != nil {
				return err
			}
			renderPlan(GetRenderer(cmd), plan, changedOnly)
			return nil
		},
	}
	cmd.Flags().BoolVar(&changedOnly, "changed", false, "Only list new, changed and removed nodes")
	return cmd
}

func renderPlan(r *output.Renderer, plan *engine.Plan, changedOnly bool) {
	caser := cases.Title(language.English)

	// Group by resource type, keeping build order within each group.
	var types []string
	groups := make(map[string][]engine.PlanEntry)
	for _, e := range plan.Entries {
		if changedOnly && e.Change == engine.ChangeUnchanged {
			continue
		}
		if _, ok := groups[e.ResourceType]; !ok {
			types = append(types, e.ResourceType)
		}
		groups[e.ResourceType] = append(groups[e.ResourceType], e)
	}

	for _, rt := range types {
		_, _ = fmt.Fprintln(r.Out(), r.Styles.Header.Render(caser.String(rt)+"s"))
		t := r.Table()
		t.AppendHeader(table.Row{"Name", "Unique ID", "Materialized", "Change"})
		for _, e := range groups[rt] {
			t.AppendRow(table.Row{e.Name, e.UniqueID, e.Materialized, r.Status(string(e.Change))})
		}
		t.Render()
		_, _ = fmt.Fprintln(r.Out())
	}
	writePlanSummary(r.Out(), plan)
}

func writePlanSummary(w io.Writer, plan *engine.Plan) {
	counts := plan.Counts()
	_, _ = fmt.Fprintf(w, "%d node(s):", len(plan.Entries))
	for _, c := range planOrder {
		if n := counts[c]; n > 0 {
			_, _ = fmt.Fprintf(w, " %d %s", n, c)
		}
	}
	_, _ = fmt.Fprintln(w)
}
