package adapter

import (
	"context"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// Messages of operations that exist only for some backends.
const (
	OnlyBigQuery   = "only available with BigQuery adapter"
	OnlyPostgres   = "only available with Postgres and Redshift adapters"
	OnlyDatabricks = "only available with Databricks adapter"
)

func bigQueryOnly(op string) error   { return core.NotImplemented(op, OnlyBigQuery) }
func postgresOnly(op string) error   { return core.NotImplemented(op, OnlyPostgres) }
func databricksOnly(op string) error { return core.NotImplemented(op, OnlyDatabricks) }

// UpdateColumnsDescriptions is BigQuery only.
func (b *Base) UpdateColumnsDescriptions(context.Context, Connection, *relation.Relation, map[string]core.ColumnDef) error {
	return bigQueryOnly("update_columns_descriptions")
}

// NestColumnDataTypes is BigQuery only.
func (b *Base) NestColumnDataTypes(map[string]core.ColumnDef) (map[string]core.ColumnDef, error) {
	return nil, bigQueryOnly("nest_column_data_types")
}

// GrantAccessTo is BigQuery only.
func (b *Base) GrantAccessTo(context.Context, Connection, *relation.Relation, string, string, map[string]string) error {
	return bigQueryOnly("grant_access_to")
}

// GetDatasetLocation is BigQuery only.
func (b *Base) GetDatasetLocation(context.Context, Connection, *relation.Relation) (string, error) {
	return "", bigQueryOnly("get_dataset_location")
}

// UpdateTableDescription is BigQuery only.
func (b *Base) UpdateTableDescription(context.Context, Connection, string, string, string, string) error {
	return bigQueryOnly("update_table_description")
}

// AlterTableAddColumns is BigQuery only.
func (b *Base) AlterTableAddColumns(context.Context, Connection, *relation.Relation, []Column) error {
	return bigQueryOnly("alter_table_add_columns")
}

// GetColumnsInSelectSQL is BigQuery only.
func (b *Base) GetColumnsInSelectSQL(context.Context, Connection, string) ([]Column, error) {
	return nil, bigQueryOnly("get_columns_in_select_sql")
}

// IsReplaceable is BigQuery only.
func (b *Base) IsReplaceable(context.Context, Connection, *relation.Relation, *PartitionConfig, []string) (bool, error) {
	return false, bigQueryOnly("is_replaceable")
}

// ParsePartitionBy is BigQuery only.
func (b *Base) ParsePartitionBy(*config.BigQueryPartitionBy) (*PartitionConfig, error) {
	return nil, bigQueryOnly("parse_partition_by")
}

// GetTableOptions is BigQuery only.
func (b *Base) GetTableOptions(*config.ModelConfig, bool) (map[string]string, error) {
	return nil, bigQueryOnly("get_table_options")
}

// GetViewOptions is BigQuery only.
func (b *Base) GetViewOptions(*config.ModelConfig) (map[string]string, error) {
	return nil, bigQueryOnly("get_view_options")
}

// AddTimeIngestionPartitionColumn is BigQuery only.
func (b *Base) AddTimeIngestionPartitionColumn(*PartitionConfig, []Column) ([]Column, error) {
	return nil, bigQueryOnly("add_time_ingestion_partition_column")
}

// ListRelationsWithoutCaching is BigQuery only.
func (b *Base) ListRelationsWithoutCaching(context.Context, Connection, *relation.Relation) ([]*relation.Relation, error) {
	return nil, bigQueryOnly("list_relations_without_caching")
}

// CopyTable is BigQuery only.
func (b *Base) CopyTable(context.Context, Connection, *relation.Relation, *relation.Relation, string) error {
	return bigQueryOnly("copy_table")
}

// DescribeRelation is BigQuery only.
func (b *Base) DescribeRelation(context.Context, Connection, *relation.Relation) (map[string]any, error) {
	return nil, bigQueryOnly("describe_relation")
}

// VerifyDatabase is Postgres and Redshift only.
func (b *Base) VerifyDatabase(string) error {
	return postgresOnly("verify_database")
}

// RelationMaxNameLength is Postgres and Redshift only.
func (b *Base) RelationMaxNameLength() (int, error) {
	return 0, postgresOnly("relation_max_name_length")
}

// CompareDBRVersion is Databricks only.
func (b *Base) CompareDBRVersion(context.Context, Connection, int, int) (int, error) {
	return 0, databricksOnly("compare_dbr_version")
}

// ComputeExternalPath is Databricks only.
func (b *Base) ComputeExternalPath(*config.ModelConfig, *nodes.Model, bool) (string, error) {
	return "", databricksOnly("compute_external_path")
}

// UpdateTblpropertiesForIceberg is Databricks only.
func (b *Base) UpdateTblpropertiesForIceberg(*config.ModelConfig, map[string]any) (map[string]any, error) {
	return nil, databricksOnly("update_tblproperties_for_iceberg")
}

// GetRelationConfig is Databricks only.
func (b *Base) GetRelationConfig(context.Context, Connection, *relation.Relation) (map[string]any, error) {
	return nil, databricksOnly("get_relation_config")
}

// GetConfigFromModel is Databricks only.
func (b *Base) GetConfigFromModel(*nodes.Model) (map[string]any, error) {
	return nil, databricksOnly("get_config_from_model")
}

// ValidIncrementalStrategiesAsValues is Databricks only.
func (b *Base) ValidIncrementalStrategiesAsValues() ([]string, error) {
	return nil, databricksOnly("valid_incremental_strategies_as_values")
}
