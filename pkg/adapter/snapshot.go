package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// Hard delete behaviors of a snapshot.
const (
	HardDeletesIgnore     = "ignore"
	HardDeletesInvalidate = "invalidate"
	HardDeletesNewRecord  = "new_record"
)

// GetHardDeletesBehavior resolves how a snapshot handles rows deleted at the
// source from the legacy invalidate_hard_deletes flag and the hard_deletes
// setting. Setting both is an error; setting neither ignores deletes.
func (b *Base) GetHardDeletesBehavior(cfg *config.SnapshotConfig) (string, error) {
	if cfg == nil {
		return HardDeletesIgnore, nil
	}
	if cfg.InvalidateHardDeletes != nil && cfg.HardDeletes != nil {
		return "", core.ConfigurationError("You cannot set both the invalidate_hard_deletes and hard_deletes config properties on the same snapshot.")
	}
	if cfg.InvalidateHardDeletes != nil {
		return HardDeletesInvalidate, nil
	}
	if cfg.HardDeletes == nil {
		return HardDeletesIgnore, nil
	}
	switch v := *cfg.HardDeletes; v {
	case HardDeletesInvalidate, HardDeletesNewRecord, HardDeletesIgnore:
		return v, nil
	}
	return "", core.ConfigurationError("Invalid setting for property hard_deletes.")
}

// snapshotColumns are the bookkeeping columns every snapshot target has.
// dbt_updated_at is not required.
var snapshotColumns = []string{"dbt_scd_id", "dbt_valid_from", "dbt_valid_to"}

// AssertValidSnapshotTargetGivenStrategy checks that an existing snapshot
// table has the bookkeeping columns, under their configured names. A nil
// columnNames uses the default names; a non-nil map must name every
// required column. All missing columns are reported together.
func (b *Base) AssertValidSnapshotTargetGivenStrategy(ctx context.Context, conn Connection, rel *relation.Relation, columnNames map[string]string, hardDeletes string) error {
	cols, err := b.self.GetColumnsInRelation(ctx, conn, rel)
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		present[strings.ToLower(c.Name)] = struct{}{}
	}

	required := snapshotColumns
	if hardDeletes == HardDeletesNewRecord {
		required = append(required[:len(required):len(required)], "dbt_is_deleted")
	}

	var missing []string
	for _, col := range required {
		desired := col
		if columnNames != nil {
			v, ok := columnNames[col]
			if !ok {
				return core.ConfigurationError("Could not find key %s", col)
			}
			desired = v
		}
		if _, ok := present[strings.ToLower(desired)]; !ok {
			missing = append(missing, desired)
		}
	}
	if len(missing) > 0 {
		return core.ConfigurationError("There are missing columns: %s", quotedList(missing))
	}
	return nil
}

// CalculateFreshnessFromMetadataBatch reads last-modified times of sources
// through the get_relation_last_modified macro.
func (b *Base) CalculateFreshnessFromMetadataBatch(ctx context.Context, m MacroExecutor, sources []*relation.Relation) (map[FreshnessKey]time.Time, error) {
	res, err := m.ExecuteMacro(ctx, "get_relation_last_modified", nil, map[string]any{
		"information_schema": "INFORMATION_SCHEMA",
		"relations":          sources,
	})
	if err != nil {
		return nil, err
	}
	table, ok := res.(*Table)
	if !ok || table == nil {
		return nil, core.InternalError("get_relation_last_modified returned %T, want a result table", res)
	}

	ids, err := table.ColumnValues("IDENTIFIER")
	if err != nil {
		return nil, err
	}
	schemas, err := table.ColumnValues("SCHEMA")
	if err != nil {
		return nil, err
	}
	modified, err := table.ColumnValues("LAST_MODIFIED")
	if err != nil {
		return nil, err
	}

	out := make(map[FreshnessKey]time.Time, table.Len())
	for i := range ids {
		ts, ok := modified[i].(time.Time)
		if !ok {
			return nil, core.InternalError("LAST_MODIFIED value %v is not a timestamp", modified[i])
		}
		key := FreshnessKey{
			Identifier: strings.ToLower(fmt.Sprint(ids[i])),
			Schema:     strings.ToLower(fmt.Sprint(schemas[i])),
		}
		out[key] = ts
	}
	return out, nil
}

func quotedList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
