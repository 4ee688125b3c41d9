package bigquery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// layout is the partitioning and clustering of an existing table.
type layout struct {
	partitionField string
	partitionType  string
	clusterBy      []string
}

func (a *Adapter) describeLayout(ctx context.Context, conn adapter.Connection, rel *relation.Relation) (*layout, error) {
	query := "select column_name, data_type, is_partitioning_column, clustering_ordinal_position from " +
		datasetInfoSchema(rel.Database, rel.Schema, "COLUMNS") +
		" where table_name = ? and (is_partitioning_column = 'YES' or clustering_ordinal_position is not null)"
	rows, err := conn.QueryContext(ctx, query, rel.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", rel, err)
	}
	defer func() { _ = rows.Close() }()

	var (
		out       layout
		clustered = map[int64]string{}
	)
	for rows.Next() {
		var (
			name, dtype, partitioning string
			ordinal                   *int64
		)
		if err := rows.Scan(&name, &dtype, &partitioning, &ordinal); err != nil {
			return nil, fmt.Errorf("failed to scan layout of %s: %w", rel, err)
		}
		if strings.EqualFold(partitioning, "YES") {
			out.partitionField = name
			out.partitionType = strings.ToLower(dtype)
		}
		if ordinal != nil {
			clustered[*ordinal] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ordinals := make([]int64, 0, len(clustered))
	for o := range clustered {
		ordinals = append(ordinals, o)
	}
	sort.Slice(ordinals, func(i, j int) bool { return ordinals[i] < ordinals[j] })
	for _, o := range ordinals {
		out.clusterBy = append(out.clusterBy, clustered[o])
	}
	return &out, nil
}

// IsReplaceable reports whether a create or replace keeps the table's
// partitioning and clustering. A missing relation is always replaceable.
func (a *Adapter) IsReplaceable(ctx context.Context, conn adapter.Connection, rel *relation.Relation, partition *adapter.PartitionConfig, clusterBy []string) (bool, error) {
	if rel == nil {
		return true, nil
	}
	l, err := a.describeLayout(ctx, conn, rel)
	if err != nil {
		return false, err
	}

	switch {
	case partition == nil && l.partitionField != "":
		return false, nil
	case partition != nil && !strings.EqualFold(InsertableField(partition), l.partitionField):
		return false, nil
	}

	if len(clusterBy) != len(l.clusterBy) {
		return false, nil
	}
	for i := range clusterBy {
		if !strings.EqualFold(clusterBy[i], l.clusterBy[i]) {
			return false, nil
		}
	}
	return true, nil
}

// DescribeRelation returns the partition_by and cluster_by of an existing
// table. Unpartitioned tables have a nil partition_by.
func (a *Adapter) DescribeRelation(ctx context.Context, conn adapter.Connection, rel *relation.Relation) (map[string]any, error) {
	l, err := a.describeLayout(ctx, conn, rel)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"partition_by": nil,
		"cluster_by":   l.clusterBy,
	}
	if l.partitionField != "" {
		out["partition_by"] = map[string]any{
			"field":     l.partitionField,
			"data_type": l.partitionType,
		}
	}
	return out, nil
}
