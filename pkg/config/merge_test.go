package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

func sampleModelConfig() ModelConfig {
	cfg := ModelConfig{
		Enabled:      Ptr(true),
		Materialized: Ptr(core.MaterializationTable),
		Schema:       Ptr("analytics"),
		Tags:         StringList{"nightly", "finance"},
		Meta:         map[string]any{"owner": "data"},
		PreHook:      Hooks{{SQL: "set search_path = analytics", Transaction: true}},
		PostHook:     Hooks{{SQL: "grant select on {{ this }} to reporter", Transaction: false}},
		Quoting:      &Quoting{Identifier: Ptr(true)},
		ColumnTypes:  map[string]string{"id": "bigint"},
		Grants:       map[string][]string{"select": {"reporter"}},
	}
	cfg.TargetLag = Ptr("downstream")
	cfg.PartitionBy = &BigQueryPartitionBy{Field: Ptr("created_at")}
	return cfg
}

func TestDefaultToCopiesAbsentFields(t *testing.T) {
	parent := ModelConfig{
		Materialized: Ptr(core.MaterializationView),
		Schema:       Ptr("staging"),
		Alias:        Ptr("orders_v"),
	}
	child := ModelConfig{Schema: Ptr("marts")}

	got := DefaultTo(child, parent)

	assert.Equal(t, "view", *got.Materialized)
	assert.Equal(t, "marts", *got.Schema)
	assert.Equal(t, "orders_v", *got.Alias)
	assert.Nil(t, child.Materialized, "child must not be modified")
}

func TestDefaultToIdempotent(t *testing.T) {
	cfg := sampleModelConfig()
	assert.Equal(t, cfg, DefaultTo(cfg, cfg))
}

func TestDefaultToEmptyChildYieldsParent(t *testing.T) {
	parents := []ModelConfig{{}, sampleModelConfig(), {Quoting: &Quoting{Schema: Ptr(false)}}}
	for _, parent := range parents {
		assert.Equal(t, parent, DefaultTo(ModelConfig{}, parent))
	}
}

func TestDefaultToHooksConcatenate(t *testing.T) {
	parent := ModelConfig{
		PreHook:  Hooks{{SQL: "parent pre", Transaction: true}},
		PostHook: Hooks{{SQL: "parent post", Transaction: true}},
	}
	child := ModelConfig{
		PreHook: Hooks{{SQL: "child pre", Transaction: true}},
	}

	got := DefaultTo(child, parent)

	assert.Equal(t, []string{"child pre", "parent pre"}, got.PreHook.SQL())
	assert.Equal(t, []string{"parent post"}, got.PostHook.SQL())
}

func TestDefaultToHooksKeepChildOrder(t *testing.T) {
	tests := []struct {
		name   string
		parent Hooks
		child  Hooks
		want   []string
	}{
		{"child before parent", Hooks{{SQL: "parent"}}, Hooks{{SQL: "child"}}, []string{"child", "parent"}},
		{"child order untouched", Hooks{{SQL: "parent"}}, Hooks{{SQL: "child"}, {SQL: "parent"}}, []string{"child", "parent", "parent"}},
		{"self merge", Hooks{{SQL: "a"}, {SQL: "b"}}, Hooks{{SQL: "a"}, {SQL: "b"}}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultTo(ModelConfig{PostHook: tt.child}, ModelConfig{PostHook: tt.parent})
			assert.Equal(t, tt.want, got.PostHook.SQL())
		})
	}
}

func TestDefaultToQuotingComponentWise(t *testing.T) {
	parent := ModelConfig{Quoting: &Quoting{Database: Ptr(true), Schema: Ptr(true)}}
	child := ModelConfig{Quoting: &Quoting{Schema: Ptr(false), Identifier: Ptr(false)}}

	got := DefaultTo(child, parent)

	require.NotNil(t, got.Quoting)
	assert.Equal(t, core.Policy{Database: true, Schema: false, Identifier: false}, got.Quoting.Resolve(core.AllTrue()))
	assert.Nil(t, child.Quoting.Database, "child quoting must not be modified")
}

func TestDefaultToMetaAndTags(t *testing.T) {
	parent := ModelConfig{
		Meta: map[string]any{"owner": "platform", "tier": 1},
		Tags: StringList{"core", "daily"},
	}
	child := ModelConfig{
		Meta: map[string]any{"owner": "finance"},
		Tags: StringList{"daily", "pii"},
	}

	got := DefaultTo(child, parent)

	assert.Equal(t, map[string]any{"owner": "finance", "tier": 1}, got.Meta)
	assert.Equal(t, StringList{"core", "daily", "pii"}, got.Tags)
}

func TestDefaultToColumnTypes(t *testing.T) {
	parent := ModelConfig{ColumnTypes: map[string]string{"id": "int", "name": "text"}}
	child := ModelConfig{ColumnTypes: map[string]string{"id": "bigint"}}

	got := DefaultTo(child, parent)

	assert.Equal(t, map[string]string{"id": "bigint", "name": "text"}, got.ColumnTypes)
}

func TestDefaultToGrants(t *testing.T) {
	tests := []struct {
		name   string
		parent map[string][]string
		child  map[string][]string
		want   map[string][]string
	}{
		{
			name:   "child replaces",
			parent: map[string][]string{"select": {"a"}, "insert": {"b"}},
			child:  map[string][]string{"select": {"c"}},
			want:   map[string][]string{"select": {"c"}},
		},
		{
			name:   "plus extends parent",
			parent: map[string][]string{"select": {"a"}},
			child:  map[string][]string{"+select": {"c"}},
			want:   map[string][]string{"select": {"c", "a"}},
		},
		{
			name:   "plus without parent entry",
			parent: map[string][]string{"insert": {"b"}},
			child:  map[string][]string{"+select": {"c"}},
			want:   map[string][]string{"select": {"c"}},
		},
		{
			name:   "absent child inherits",
			parent: map[string][]string{"select": {"a"}},
			want:   map[string][]string{"select": {"a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultTo(ModelConfig{Grants: tt.child}, ModelConfig{Grants: tt.parent})
			assert.Equal(t, tt.want, got.Grants)
		})
	}
}

func TestDefaultToWarehouseBlocksRecurse(t *testing.T) {
	parent := ModelConfig{}
	parent.SnowflakeWarehouse = Ptr("transforming")
	parent.TargetLag = Ptr("1 hour")
	parent.Labels = map[string]string{"team": "data"}

	child := ModelConfig{}
	child.TargetLag = Ptr("downstream")
	child.Labels = map[string]string{"env": "prod"}

	got := DefaultTo(child, parent)

	assert.Equal(t, "transforming", *got.SnowflakeWarehouse)
	assert.Equal(t, "downstream", *got.TargetLag)
	assert.Equal(t, map[string]string{"team": "data", "env": "prod"}, got.Labels)
}

func TestClear(t *testing.T) {
	cfg := sampleModelConfig()
	Clear(&cfg, []string{"schema", "target_lag", "pre_hook", "no_such_key"})

	assert.Nil(t, cfg.Schema)
	assert.Nil(t, cfg.TargetLag)
	assert.Nil(t, cfg.PreHook)
	assert.NotNil(t, cfg.Materialized)
}

func TestModelConfigValidate(t *testing.T) {
	cfg := ModelConfig{
		MergeUpdateColumns:  StringList{"a"},
		MergeExcludeColumns: StringList{"b"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConfiguration))
	assert.Contains(t, err.Error(), "merge_update_columns")
	assert.Contains(t, err.Error(), "merge_exclude_columns")

	cfg.MergeExcludeColumns = nil
	assert.NoError(t, cfg.Validate())
}
