package databricks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// Components of a relation config.
const (
	ComponentTblProperties     = "tblproperties"
	ComponentComment           = "comment"
	ComponentLiquidClusteredBy = "liquid_clustered_by"
	ComponentPipelineID        = "pipeline_id"
)

// ignoredProperties are set by Databricks itself and never compared.
var ignoredProperties = map[string]bool{
	"pipelines.pipelineId":                                         true,
	"delta.enableChangeDataFeed":                                   true,
	"delta.minReaderVersion":                                       true,
	"delta.minWriterVersion":                                       true,
	"pipeline_internal.catalogType":                                true,
	"pipelines.metastore.tableName":                                true,
	"pipeline_internal.enzymeMode":                                 true,
	"clusterByAuto":                                                true,
	"clusteringColumns":                                            true,
	"delta.enableRowTracking":                                      true,
	"delta.feature.appendOnly":                                     true,
	"delta.feature.changeDataFeed":                                 true,
	"delta.feature.checkConstraints":                               true,
	"delta.feature.domainMetadata":                                 true,
	"delta.feature.generatedColumns":                               true,
	"delta.feature.invariants":                                     true,
	"delta.feature.rowTracking":                                    true,
	"delta.rowTracking.materializedRowCommitVersionColumnName":     true,
	"delta.rowTracking.materializedRowIdColumnName":                true,
	"spark.internal.pipelines.top_level_entry.user_specified_name": true,
	"delta.columnMapping.maxColumnId":                              true,
}

// GetRelationConfig reads the comparable configuration of an existing
// relation: its user tblproperties, comment and liquid clustering columns.
func (a *Adapter) GetRelationConfig(ctx context.Context, conn adapter.Connection, rel *relation.Relation) (map[string]any, error) {
	props, err := a.fetch(ctx, conn, "show tblproperties "+rel.Render())
	if err != nil {
		return nil, err
	}
	described, err := a.fetch(ctx, conn, "describe table extended "+rel.Render())
	if err != nil {
		return nil, err
	}

	out := FromRelationResults(props, described)
	a.Logger.Debug("read relation config", slog.String("relation", rel.Render()), slog.Int("components", len(out)))
	return out, nil
}

func (a *Adapter) fetch(ctx context.Context, conn adapter.Connection, stmt string) (*adapter.Table, error) {
	_, table, err := a.Execute(ctx, conn, adapter.Query(stmt), adapter.ExecOptions{Fetch: true})
	if err != nil {
		return nil, fmt.Errorf("failed to describe relation: %w", err)
	}
	return table, nil
}

// FromRelationResults builds a relation config from the results of
// "show tblproperties" (key, value rows) and "describe table extended".
func FromRelationResults(props, described *adapter.Table) map[string]any {
	tblproperties := map[string]string{}
	clustered := []string{}
	var pipelineID string
	if props != nil {
		for _, row := range props.Rows {
			if len(row) < 2 {
				continue
			}
			k, v := cell(row[0]), cell(row[1])
			switch {
			case k == "pipelines.pipelineId":
				pipelineID = v
			case k == "clusteringColumns":
				clustered = parseClusteringColumns(v)
			case !ignoredProperties[k]:
				tblproperties[k] = v
			}
		}
	}

	out := map[string]any{
		ComponentTblProperties:     tblproperties,
		ComponentComment:           describedComment(described),
		ComponentLiquidClusteredBy: clustered,
	}
	if pipelineID != "" {
		out[ComponentPipelineID] = pipelineID
	}
	return out
}

// describedComment finds the Comment row of a describe table extended
// result. Column comments come before the detailed section and are skipped.
func describedComment(t *adapter.Table) string {
	if t == nil {
		return ""
	}
	detailed := false
	for _, row := range t.Rows {
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(cell(row[0]))
		if strings.HasPrefix(name, "# Detailed Table Information") {
			detailed = true
			continue
		}
		if detailed && name == "Comment" {
			return cell(row[1])
		}
	}
	return ""
}

// parseClusteringColumns decodes the clusteringColumns property, a JSON
// list of column paths such as [["a"],["b","c"]].
func parseClusteringColumns(v string) []string {
	var paths [][]string
	if err := json.Unmarshal([]byte(v), &paths); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, strings.Join(p, "."))
	}
	return out
}

// GetConfigFromModel builds the relation config a model asks for, in the
// same shape as GetRelationConfig.
func (a *Adapter) GetConfigFromModel(model *nodes.Model) (map[string]any, error) {
	if model == nil {
		return nil, core.InvalidOperationError("get_config_from_model needs a model")
	}
	cfg := &model.Config
	props, err := a.UpdateTblpropertiesForIceberg(cfg, nil)
	if err != nil {
		return nil, err
	}
	tblproperties := make(map[string]string, len(props))
	for k, v := range props {
		if !ignoredProperties[k] {
			tblproperties[k] = fmt.Sprint(v)
		}
	}

	var comment string
	if cfg.PersistDocs != nil && cfg.PersistDocs.Relation != nil && *cfg.PersistDocs.Relation {
		comment = model.Description
	}
	clustered := []string(cfg.LiquidClusteredBy)
	if clustered == nil {
		clustered = []string{}
	}
	return map[string]any{
		ComponentTblProperties:     tblproperties,
		ComponentComment:           comment,
		ComponentLiquidClusteredBy: clustered,
	}, nil
}

// Changes lists the components whose desired value differs from the
// existing one, sorted. Components absent from desired are not compared.
func Changes(existing, desired map[string]any) []string {
	var out []string
	for k, want := range desired {
		if k == ComponentPipelineID {
			continue
		}
		if !equalComponent(existing[k], want) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func equalComponent(a, b any) bool {
	switch bv := b.(type) {
	case map[string]string:
		av, _ := a.(map[string]string)
		if len(av) != len(bv) {
			return false
		}
		for k, v := range bv {
			if av[k] != v {
				return false
			}
		}
		return true
	case []string:
		av, _ := a.([]string)
		if len(av) != len(bv) {
			return false
		}
		for i := range bv {
			if !strings.EqualFold(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
