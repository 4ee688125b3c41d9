package config

import (
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// ModelConfig is the resolved configuration of a model.
type ModelConfig struct {
	Enabled               *bool               `yaml:"enabled,omitempty"`
	Alias                 *string             `yaml:"alias,omitempty"`
	Schema                *string             `yaml:"schema,omitempty"`
	Database              *string             `yaml:"database,omitempty"`
	Tags                  StringList          `yaml:"tags,omitempty" merge:"tags"`
	Meta                  map[string]any      `yaml:"meta,omitempty" merge:"union"`
	Group                 *string             `yaml:"group,omitempty"`
	Materialized          *string             `yaml:"materialized,omitempty"`
	IncrementalStrategy   *string             `yaml:"incremental_strategy,omitempty"`
	IncrementalPredicates []string            `yaml:"incremental_predicates,omitempty"`
	BatchSize             *string             `yaml:"batch_size,omitempty"`
	Lookback              *int                `yaml:"lookback,omitempty"`
	Begin                 *string             `yaml:"begin,omitempty"`
	ConcurrentBatches     *bool               `yaml:"concurrent_batches,omitempty"`
	PersistDocs           *PersistDocs        `yaml:"persist_docs,omitempty"`
	PreHook               Hooks               `yaml:"pre_hook,omitempty" merge:"hooks"`
	PostHook              Hooks               `yaml:"post_hook,omitempty" merge:"hooks"`
	Quoting               *Quoting            `yaml:"quoting,omitempty" merge:"components"`
	ColumnTypes           map[string]string   `yaml:"column_types,omitempty" merge:"union"`
	FullRefresh           *bool               `yaml:"full_refresh,omitempty"`
	UniqueKey             StringList          `yaml:"unique_key,omitempty"`
	OnSchemaChange        *string             `yaml:"on_schema_change,omitempty"`
	OnConfigurationChange *string             `yaml:"on_configuration_change,omitempty"`
	Grants                map[string][]string `yaml:"grants,omitempty" merge:"grants"`
	Packages              []string            `yaml:"packages,omitempty"`
	Docs                  *Docs               `yaml:"docs,omitempty"`
	Access                *string             `yaml:"access,omitempty"`
	Contract              *Contract           `yaml:"contract,omitempty"`
	EventTime             *string             `yaml:"event_time,omitempty"`
	SQLHeader             *string             `yaml:"sql_header,omitempty"`
	Location              *string             `yaml:"location,omitempty"`
	MergeUpdateColumns    StringList          `yaml:"merge_update_columns,omitempty"`
	MergeExcludeColumns   StringList          `yaml:"merge_exclude_columns,omitempty"`
	Freshness             *ModelFreshness     `yaml:"freshness,omitempty"`
	StaticAnalysis        *string             `yaml:"static_analysis,omitempty"`
	ClusterBy             StringList          `yaml:"cluster_by,omitempty"`
	Constraints           []core.Constraint   `yaml:"constraints,omitempty"`

	WarehouseConfig `yaml:",inline"`
}

// Validate checks settings that cannot be combined.
func (c *ModelConfig) Validate() error {
	if c.MergeUpdateColumns != nil && c.MergeExcludeColumns != nil {
		return core.ConfigurationError("merge_update_columns and merge_exclude_columns cannot both be set; they are mutually exclusive")
	}
	return nil
}

// SeedConfig is the resolved configuration of a seed.
type SeedConfig struct {
	Enabled      *bool               `yaml:"enabled,omitempty"`
	Alias        *string             `yaml:"alias,omitempty"`
	Schema       *string             `yaml:"schema,omitempty"`
	Database     *string             `yaml:"database,omitempty"`
	Tags         StringList          `yaml:"tags,omitempty" merge:"tags"`
	Meta         map[string]any      `yaml:"meta,omitempty" merge:"union"`
	Group        *string             `yaml:"group,omitempty"`
	Materialized *string             `yaml:"materialized,omitempty"`
	PersistDocs  *PersistDocs        `yaml:"persist_docs,omitempty"`
	PreHook      Hooks               `yaml:"pre_hook,omitempty" merge:"hooks"`
	PostHook     Hooks               `yaml:"post_hook,omitempty" merge:"hooks"`
	Quoting      *Quoting            `yaml:"quoting,omitempty" merge:"components"`
	ColumnTypes  map[string]string   `yaml:"column_types,omitempty" merge:"union"`
	FullRefresh  *bool               `yaml:"full_refresh,omitempty"`
	Grants       map[string][]string `yaml:"grants,omitempty" merge:"grants"`
	Docs         *Docs               `yaml:"docs,omitempty"`
	Delimiter    *string             `yaml:"delimiter,omitempty"`
	QuoteColumns *bool               `yaml:"quote_columns,omitempty"`
	EventTime    *string             `yaml:"event_time,omitempty"`

	WarehouseConfig `yaml:",inline"`
}

// SnapshotConfig is the resolved configuration of a snapshot.
type SnapshotConfig struct {
	Enabled                 *bool                    `yaml:"enabled,omitempty"`
	Alias                   *string                  `yaml:"alias,omitempty"`
	Schema                  *string                  `yaml:"schema,omitempty"`
	Database                *string                  `yaml:"database,omitempty"`
	Tags                    StringList               `yaml:"tags,omitempty" merge:"tags"`
	Meta                    map[string]any           `yaml:"meta,omitempty" merge:"union"`
	Group                   *string                  `yaml:"group,omitempty"`
	Materialized            *string                  `yaml:"materialized,omitempty"`
	PersistDocs             *PersistDocs             `yaml:"persist_docs,omitempty"`
	PreHook                 Hooks                    `yaml:"pre_hook,omitempty" merge:"hooks"`
	PostHook                Hooks                    `yaml:"post_hook,omitempty" merge:"hooks"`
	Quoting                 *Quoting                 `yaml:"quoting,omitempty" merge:"components"`
	Grants                  map[string][]string      `yaml:"grants,omitempty" merge:"grants"`
	Docs                    *Docs                    `yaml:"docs,omitempty"`
	Strategy                *string                  `yaml:"strategy,omitempty"`
	UniqueKey               StringList               `yaml:"unique_key,omitempty"`
	UpdatedAt               *string                  `yaml:"updated_at,omitempty"`
	CheckCols               StringList               `yaml:"check_cols,omitempty"`
	InvalidateHardDeletes   *bool                    `yaml:"invalidate_hard_deletes,omitempty"`
	HardDeletes             *string                  `yaml:"hard_deletes,omitempty"`
	SnapshotMetaColumnNames *SnapshotMetaColumnNames `yaml:"snapshot_meta_column_names,omitempty" merge:"components"`
	TargetSchema            *string                  `yaml:"target_schema,omitempty"`
	TargetDatabase          *string                  `yaml:"target_database,omitempty"`
	DbtValidToCurrent       *string                  `yaml:"dbt_valid_to_current,omitempty"`
	EventTime               *string                  `yaml:"event_time,omitempty"`

	WarehouseConfig `yaml:",inline"`
}

// DataTestConfig is the resolved configuration of a data test.
type DataTestConfig struct {
	Enabled               *bool               `yaml:"enabled,omitempty"`
	Alias                 *string             `yaml:"alias,omitempty"`
	Schema                *string             `yaml:"schema,omitempty"`
	Database              *string             `yaml:"database,omitempty"`
	Tags                  StringList          `yaml:"tags,omitempty" merge:"tags"`
	Meta                  map[string]any      `yaml:"meta,omitempty" merge:"union"`
	Group                 *string             `yaml:"group,omitempty"`
	Materialized          *string             `yaml:"materialized,omitempty"`
	IncrementalStrategy   *string             `yaml:"incremental_strategy,omitempty"`
	PersistDocs           *PersistDocs        `yaml:"persist_docs,omitempty"`
	PreHook               Hooks               `yaml:"pre_hook,omitempty" merge:"hooks"`
	PostHook              Hooks               `yaml:"post_hook,omitempty" merge:"hooks"`
	Quoting               *Quoting            `yaml:"quoting,omitempty" merge:"components"`
	ColumnTypes           map[string]string   `yaml:"column_types,omitempty" merge:"union"`
	FullRefresh           *bool               `yaml:"full_refresh,omitempty"`
	UniqueKey             StringList          `yaml:"unique_key,omitempty"`
	OnSchemaChange        *string             `yaml:"on_schema_change,omitempty"`
	OnConfigurationChange *string             `yaml:"on_configuration_change,omitempty"`
	Grants                map[string][]string `yaml:"grants,omitempty" merge:"grants"`
	Packages              []string            `yaml:"packages,omitempty"`
	Docs                  *Docs               `yaml:"docs,omitempty"`
	Access                *string             `yaml:"access,omitempty"`
	Severity              *string             `yaml:"severity,omitempty"`
	Where                 *string             `yaml:"where,omitempty"`
	Limit                 *int                `yaml:"limit,omitempty"`
	FailCalc              *string             `yaml:"fail_calc,omitempty"`
	WarnIf                *string             `yaml:"warn_if,omitempty"`
	ErrorIf               *string             `yaml:"error_if,omitempty"`
	StoreFailures         *bool               `yaml:"store_failures,omitempty"`
	StoreFailuresAs       *string             `yaml:"store_failures_as,omitempty"`

	WarehouseConfig `yaml:",inline"`
}

// SourceConfig is the resolved configuration of a source table.
type SourceConfig struct {
	Enabled        *bool           `yaml:"enabled,omitempty"`
	Tags           StringList      `yaml:"tags,omitempty" merge:"tags"`
	Meta           map[string]any  `yaml:"meta,omitempty" merge:"union"`
	Quoting        *Quoting        `yaml:"quoting,omitempty" merge:"components"`
	Freshness      *FreshnessRules `yaml:"freshness,omitempty"`
	LoadedAtField  *string         `yaml:"loaded_at_field,omitempty"`
	LoadedAtQuery  *string         `yaml:"loaded_at_query,omitempty"`
	EventTime      *string         `yaml:"event_time,omitempty"`
	StaticAnalysis *string         `yaml:"static_analysis,omitempty"`

	WarehouseConfig `yaml:",inline"`
}

// UnitTestConfig is the resolved configuration of a unit test.
type UnitTestConfig struct {
	Enabled        *bool          `yaml:"enabled,omitempty"`
	Tags           StringList     `yaml:"tags,omitempty" merge:"tags"`
	Meta           map[string]any `yaml:"meta,omitempty" merge:"union"`
	StaticAnalysis *string        `yaml:"static_analysis,omitempty"`
}

// IsEnabled reports the enabled flag, defaulting to true.
func IsEnabled(enabled *bool) bool {
	return enabled == nil || *enabled
}
