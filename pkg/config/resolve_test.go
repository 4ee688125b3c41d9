package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

func TestDecodeLayer(t *testing.T) {
	raw := map[string]any{
		"+materialized": "incremental",
		"+tags":         "nightly",
		"+pre-hook":     []any{"select 1", map[string]any{"sql": "select 2", "transaction": false}},
		"+full_refresh": "true",
		"+grants":       map[string]any{"+select": "reporter"},
		"+alias":        nil,
		"+mystery":      1,
		"target_lag":    "downstream",
	}

	layer, err := DecodeLayer[ModelConfig](raw)
	require.NoError(t, err)

	cfg := layer.Config
	assert.Equal(t, "incremental", *cfg.Materialized)
	assert.Equal(t, StringList{"nightly"}, cfg.Tags)
	assert.Equal(t, Hooks{{SQL: "select 1", Transaction: true}, {SQL: "select 2", Transaction: false}}, cfg.PreHook)
	assert.True(t, *cfg.FullRefresh)
	assert.Equal(t, map[string][]string{"+select": {"reporter"}}, cfg.Grants)
	assert.Equal(t, "downstream", *cfg.TargetLag)
	assert.Equal(t, []string{"alias"}, layer.Nulls)
	assert.Equal(t, []string{"mystery"}, layer.Unknown)
}

func TestDecodeLayerRejectsBadHook(t *testing.T) {
	_, err := DecodeLayer[ModelConfig](map[string]any{"+post-hook": []any{42}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook must be a string or a mapping")
}

const projectTree = `
+materialized: view
+tags: [base]
+post-hook: "analyze {{ this }}"
shop:
  +schema: shop
  staging:
    +materialized: table
    +tags: [staging]
    +schema: null
    orders:
      +alias: stg_orders
  marts:
    +materialized: incremental
    +incremental_strategy: merge
    +merge_update_columns: [a]
`

func parseTree(t *testing.T) map[string]any {
	t.Helper()
	var tree map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(projectTree), &tree))
	return tree
}

func TestResolverFoldsByDepth(t *testing.T) {
	r := NewResolver(parseTree(t), ModelConfig{Database: Ptr("warehouse")})

	cfg, err := r.Resolve([]string{"shop", "staging", "orders"}, map[string]any{"enabled": false})
	require.NoError(t, err)

	assert.Equal(t, "warehouse", *cfg.Database)
	assert.Equal(t, "table", *cfg.Materialized)
	assert.Equal(t, "stg_orders", *cfg.Alias)
	assert.Nil(t, cfg.Schema, "explicit null clears the inherited schema")
	assert.Equal(t, StringList{"base", "staging"}, cfg.Tags)
	assert.Equal(t, []string{"analyze {{ this }}"}, cfg.PostHook.SQL())
	assert.False(t, IsEnabled(cfg.Enabled))
}

func TestResolverLayers(t *testing.T) {
	r := NewResolver(parseTree(t), ModelConfig{})

	layers, err := r.Layers([]string{"shop", "staging", "orders"})
	require.NoError(t, err)
	assert.Len(t, layers, 4)

	layers, err = r.Layers([]string{"shop", "unknown_dir", "orders"})
	require.NoError(t, err)
	assert.Len(t, layers, 2)
}

func TestResolverInlineWins(t *testing.T) {
	r := NewResolver(parseTree(t), ModelConfig{})

	cfg, err := r.Resolve([]string{"shop", "marts", "revenue"}, map[string]any{
		"materialized":         core.MaterializationTable,
		"merge_update_columns": nil,
		"schema":               "finance",
	})
	require.NoError(t, err)

	assert.Equal(t, "table", *cfg.Materialized)
	assert.Equal(t, "merge", *cfg.IncrementalStrategy)
	assert.Equal(t, "finance", *cfg.Schema)
	assert.Nil(t, cfg.MergeUpdateColumns)
}

func TestResolverValidates(t *testing.T) {
	r := NewResolver(parseTree(t), ModelConfig{})

	_, err := r.Resolve([]string{"shop", "marts", "revenue"}, map[string]any{
		"merge_exclude_columns": []any{"b"},
	})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConfiguration))
}

func TestFoldOtherResourceKinds(t *testing.T) {
	snap := Fold(SnapshotConfig{Strategy: Ptr("timestamp")},
		Layer[SnapshotConfig]{Config: SnapshotConfig{
			HardDeletes:             Ptr("new_record"),
			SnapshotMetaColumnNames: &SnapshotMetaColumnNames{DbtValidTo: Ptr("valid_to")},
		}},
		Layer[SnapshotConfig]{Config: SnapshotConfig{
			SnapshotMetaColumnNames: &SnapshotMetaColumnNames{DbtScdID: Ptr("scd")},
		}},
	)

	assert.Equal(t, "timestamp", *snap.Strategy)
	assert.Equal(t, "new_record", *snap.HardDeletes)
	assert.Equal(t, map[string]string{"dbt_valid_to": "valid_to", "dbt_scd_id": "scd"}, snap.SnapshotMetaColumnNames.Overrides())
}
