package config

// SnowflakeConfig holds Snowflake-only settings. It is embedded in the
// resource configs and flattened into the same key namespace.
type SnowflakeConfig struct {
	ExternalVolume      *string `yaml:"external_volume,omitempty"`
	BaseLocationRoot    *string `yaml:"base_location_root,omitempty"`
	BaseLocationSubpath *string `yaml:"base_location_subpath,omitempty"`
	TargetLag           *string `yaml:"target_lag,omitempty"`
	SnowflakeWarehouse  *string `yaml:"snowflake_warehouse,omitempty"`
	RefreshMode         *string `yaml:"refresh_mode,omitempty"`
	Initialize          *string `yaml:"initialize,omitempty"`
	TmpRelationType     *string `yaml:"tmp_relation_type,omitempty"`
	QueryTag            *string `yaml:"query_tag,omitempty"`
	AutomaticClustering *bool   `yaml:"automatic_clustering,omitempty"`
	CopyGrants          *bool   `yaml:"copy_grants,omitempty"`
	Secure              *bool   `yaml:"secure,omitempty"`
	Transient           *bool   `yaml:"transient,omitempty"`
	TableFormat         *string `yaml:"table_format,omitempty"`
	RowAccessPolicy     *string `yaml:"row_access_policy,omitempty"`
	TableTag            *string `yaml:"table_tag,omitempty"`
}

// BigQueryPartitionBy is the partitioning spec of a BigQuery table.
type BigQueryPartitionBy struct {
	Field              *string        `yaml:"field,omitempty"`
	DataType           *string        `yaml:"data_type,omitempty"`
	Granularity        *string        `yaml:"granularity,omitempty"`
	Range              map[string]any `yaml:"range,omitempty"`
	TimeIngestionBased *bool          `yaml:"time_ingestion_partitioning,omitempty"`
	CopyPartitions     *bool          `yaml:"copy_partitions,omitempty"`
}

// BigQueryConfig holds BigQuery-only settings.
type BigQueryConfig struct {
	PartitionBy             *BigQueryPartitionBy `yaml:"partition_by,omitempty"`
	HoursToExpiration       *int                 `yaml:"hours_to_expiration,omitempty"`
	Labels                  map[string]string    `yaml:"labels,omitempty" merge:"union"`
	LabelsFromMeta          *bool                `yaml:"labels_from_meta,omitempty"`
	KMSKeyName              *string              `yaml:"kms_key_name,omitempty"`
	RequirePartitionFilter  *bool                `yaml:"require_partition_filter,omitempty"`
	PartitionExpirationDays *int                 `yaml:"partition_expiration_days,omitempty"`
	Partitions              []string             `yaml:"partitions,omitempty"`
	EnableRefresh           *bool                `yaml:"enable_refresh,omitempty"`
	RefreshIntervalMinutes  *int                 `yaml:"refresh_interval_minutes,omitempty"`
	Description             *string              `yaml:"description,omitempty"`
	MaxStaleness            *string              `yaml:"max_staleness,omitempty"`
	GrantAccessTo           []map[string]string  `yaml:"grant_access_to,omitempty"`
}

// DatabricksConfig holds Databricks-only settings.
type DatabricksConfig struct {
	FileFormat                  *string        `yaml:"file_format,omitempty"`
	LocationRoot                *string        `yaml:"location_root,omitempty"`
	TblProperties               map[string]any `yaml:"tblproperties,omitempty" merge:"union"`
	IncludeFullNameInPath       *bool          `yaml:"include_full_name_in_path,omitempty"`
	LiquidClusteredBy           StringList     `yaml:"liquid_clustered_by,omitempty"`
	AutoLiquidCluster           *bool          `yaml:"auto_liquid_cluster,omitempty"`
	ClusteredBy                 *string        `yaml:"clustered_by,omitempty"`
	Buckets                     *int           `yaml:"buckets,omitempty"`
	Catalog                     *string        `yaml:"catalog,omitempty"`
	DatabricksTags              map[string]any `yaml:"databricks_tags,omitempty" merge:"union"`
	Compression                 *string        `yaml:"compression,omitempty"`
	DatabricksCompute           *string        `yaml:"databricks_compute,omitempty"`
	TargetAlias                 *string        `yaml:"target_alias,omitempty"`
	SourceAlias                 *string        `yaml:"source_alias,omitempty"`
	MatchedCondition            *string        `yaml:"matched_condition,omitempty"`
	NotMatchedCondition         *string        `yaml:"not_matched_condition,omitempty"`
	NotMatchedBySourceCondition *string        `yaml:"not_matched_by_source_condition,omitempty"`
	NotMatchedBySourceAction    *string        `yaml:"not_matched_by_source_action,omitempty"`
	MergeWithSchemaEvolution    *bool          `yaml:"merge_with_schema_evolution,omitempty"`
	SkipMatchedStep             *bool          `yaml:"skip_matched_step,omitempty"`
	SkipNotMatchedStep          *bool          `yaml:"skip_not_matched_step,omitempty"`
}

// RedshiftConfig holds Redshift-only settings.
type RedshiftConfig struct {
	AutoRefresh *bool      `yaml:"auto_refresh,omitempty"`
	Backup      *bool      `yaml:"backup,omitempty"`
	Bind        *bool      `yaml:"bind,omitempty"`
	Dist        *string    `yaml:"dist,omitempty"`
	Sort        StringList `yaml:"sort,omitempty"`
	SortType    *string    `yaml:"sort_type,omitempty"`
}

// WarehouseConfig groups the per-backend blocks. Every resource config embeds it.
type WarehouseConfig struct {
	SnowflakeConfig  `yaml:",inline"`
	BigQueryConfig   `yaml:",inline"`
	DatabricksConfig `yaml:",inline"`
	RedshiftConfig   `yaml:",inline"`
}
