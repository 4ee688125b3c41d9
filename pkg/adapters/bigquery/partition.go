package bigquery

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// PartitionTimeColumn is the pseudo column of ingestion-time partitioned
// tables.
const PartitionTimeColumn = "_PARTITIONTIME"

var (
	partitionDataTypes   = []string{"timestamp", "date", "datetime", "int64"}
	partitionGranularity = []string{"hour", "day", "month", "year"}
)

// ParsePartitionBy validates and normalizes a partition_by setting. A nil
// setting means the table is not partitioned. data_type defaults to date
// and granularity to day; int64 partitions need a range.
func (a *Adapter) ParsePartitionBy(raw *config.BigQueryPartitionBy) (*adapter.PartitionConfig, error) {
	return ParsePartitionBy(raw)
}

// ParsePartitionBy is the adapter-independent form of Adapter.ParsePartitionBy.
func ParsePartitionBy(raw *config.BigQueryPartitionBy) (*adapter.PartitionConfig, error) {
	if raw == nil {
		return nil, nil
	}
	if raw.Field == nil || *raw.Field == "" {
		return nil, core.ConfigurationError("Could not parse partition config: 'field' is a required property")
	}

	pc := &adapter.PartitionConfig{
		Field:       *raw.Field,
		DataType:    "date",
		Granularity: "day",
	}
	if raw.DataType != nil {
		pc.DataType = strings.ToLower(*raw.DataType)
	}
	if raw.Granularity != nil {
		pc.Granularity = strings.ToLower(*raw.Granularity)
	}
	if raw.TimeIngestionBased != nil {
		pc.TimeIngestionPartitioning = *raw.TimeIngestionBased
	}
	if raw.CopyPartitions != nil {
		pc.CopyPartitions = *raw.CopyPartitions
	}

	if !contains(partitionDataTypes, pc.DataType) {
		return nil, core.ConfigurationError("Could not parse partition config: data_type '%s' is not one of %s",
			pc.DataType, strings.Join(partitionDataTypes, ", "))
	}
	if pc.DataType == "int64" {
		if raw.Range == nil {
			return nil, core.ConfigurationError("Could not parse partition config: int64 partitioning requires a range")
		}
		var r adapter.PartitionRange
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &r, WeaklyTypedInput: true, ErrorUnused: true})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(raw.Range); err != nil {
			return nil, core.ConfigurationError("Could not parse partition config: invalid range: %v", err)
		}
		if r.Interval <= 0 {
			return nil, core.ConfigurationError("Could not parse partition config: range interval must be positive")
		}
		pc.Range = &r
	} else if !contains(partitionGranularity, pc.Granularity) {
		return nil, core.ConfigurationError("Could not parse partition config: granularity '%s' is not one of %s",
			pc.Granularity, strings.Join(partitionGranularity, ", "))
	}
	return pc, nil
}

// DataTypeForPartition is the type of the partitioning column as inserted.
// Ingestion-time partitions are timestamps unless partitioned by date.
func DataTypeForPartition(pc *adapter.PartitionConfig) string {
	if !pc.TimeIngestionPartitioning || pc.DataType == "date" {
		return pc.DataType
	}
	return "timestamp"
}

// InsertableField is the column a query writes the partition value to.
func InsertableField(pc *adapter.PartitionConfig) string {
	if pc.TimeIngestionPartitioning {
		return PartitionTimeColumn
	}
	return pc.Field
}

// RenderPartition renders the partition by expression, optionally
// qualifying the column with alias.
func RenderPartition(pc *adapter.PartitionConfig, alias string) string {
	column := pc.Field
	if pc.TimeIngestionPartitioning {
		column = PartitionTimeColumn
	}
	if alias != "" {
		column = alias + "." + column
	}
	switch {
	case pc.DataType == "int64":
		return column
	case pc.DataType == "date" && pc.Granularity == "day":
		return column
	case pc.TimeIngestionPartitioning && pc.Granularity == "day":
		return fmt.Sprintf("date(%s)", column)
	default:
		return fmt.Sprintf("%s_trunc(%s, %s)", pc.DataType, column, pc.Granularity)
	}
}

// AddTimeIngestionPartitionColumn appends the ingestion-time partition
// column so the insert statement can populate it.
func (a *Adapter) AddTimeIngestionPartitionColumn(pc *adapter.PartitionConfig, columns []adapter.Column) ([]adapter.Column, error) {
	if pc == nil {
		return nil, core.ConfigurationError("add_time_ingestion_partition_column needs a partition_by config")
	}
	out := make([]adapter.Column, len(columns), len(columns)+1)
	copy(out, columns)
	return append(out, adapter.Column{
		Name:     InsertableField(pc),
		DType:    DataTypeForPartition(pc),
		Nullable: true,
		Position: len(columns) + 1,
	}), nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
