// Package bigquery provides the BigQuery adapter.
package bigquery

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// DefaultTemporarySuffix prefixes generated temporary table suffixes.
const DefaultTemporarySuffix = "__dbt_tmp"

// Adapter implements adapter.TypedAdapter for BigQuery. A project is the
// relation database and a dataset its schema.
type Adapter struct {
	*adapter.SQLAdapter
	cfg adapter.Config
}

// New creates a BigQuery adapter. The DSN is "bigquery://project/location"
// unless the profile sets one.
func New(cfg adapter.Config, logger *slog.Logger) *Adapter {
	a := &Adapter{
		SQLAdapter: adapter.NewSQLAdapter(relation.BigQuery, logger),
		cfg:        cfg,
	}
	a.Driver = "bigquery"
	a.DSN = dsn(cfg)
	a.Split = adapter.SplitOptions{Backticks: true, HashComments: true, BackslashEscapes: true}
	a.Types[adapter.KindText] = "string"
	a.Types[adapter.KindBoolean] = "bool"
	a.Types[adapter.KindInteger] = "int64"
	a.Types[adapter.KindNumber] = "float64"
	a.Types[adapter.KindDateTime] = "datetime"
	a.Bind(a)
	return a
}

func dsn(cfg adapter.Config) string {
	if v, ok := cfg.Param("dsn"); ok {
		return v
	}
	project := cfg.Database
	if v, ok := cfg.Param("project"); ok {
		project = v
	}
	out := "bigquery://" + project
	if loc, ok := cfg.Param("location"); ok {
		out += "/" + loc
	}
	return out
}

// ValidIncrementalStrategies implements adapter.TypedAdapter.
func (a *Adapter) ValidIncrementalStrategies() []string {
	return []string{core.StrategyMerge, core.StrategyInsertOverwrite, core.StrategyMicrobatch}
}

// GenerateUniqueTemporaryTableSuffix returns initial (or __dbt_tmp) joined
// to a random uuid with dashes replaced by underscores.
func (a *Adapter) GenerateUniqueTemporaryTableSuffix(initial string) (string, error) {
	if initial == "" {
		initial = DefaultTemporarySuffix
	}
	return initial + "_" + strings.ReplaceAll(uuid.NewString(), "-", "_"), nil
}

// quoted renders a backtick-quoted path.
func quoted(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, relation.BigQuery.Identifiers.QuoteIdentifier(p))
	}
	return strings.Join(out, ".")
}

// datasetInfoSchema is the dataset-scoped INFORMATION_SCHEMA view.
func datasetInfoSchema(project, dataset, view string) string {
	return quoted(project, dataset) + ".INFORMATION_SCHEMA." + view
}

// ListSchemas lists the datasets of a project.
func (a *Adapter) ListSchemas(ctx context.Context, conn adapter.Connection, database string) ([]string, error) {
	query := fmt.Sprintf("select schema_name from %s order by schema_name", quoted(database)+".INFORMATION_SCHEMA.SCHEMATA")
	if database == "" {
		query = "select schema_name from INFORMATION_SCHEMA.SCHEMATA order by schema_name"
	}
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan dataset name: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetRelation implements adapter.Core.
func (a *Adapter) GetRelation(ctx context.Context, conn adapter.Connection, database, schema, identifier string) (*relation.Relation, error) {
	rels, err := a.listRelations(ctx, conn, database, schema, identifier)
	if err != nil || len(rels) == 0 {
		return nil, err
	}
	return rels[0], nil
}

// ListRelationsWithoutCaching lists every table and view of a dataset.
func (a *Adapter) ListRelationsWithoutCaching(ctx context.Context, conn adapter.Connection, schema *relation.Relation) ([]*relation.Relation, error) {
	if schema == nil || schema.Schema == "" {
		return nil, core.InvalidOperationError("list_relations_without_caching needs a dataset")
	}
	return a.listRelations(ctx, conn, schema.Database, schema.Schema, "")
}

func (a *Adapter) listRelations(ctx context.Context, conn adapter.Connection, project, dataset, identifier string) ([]*relation.Relation, error) {
	query := "select table_catalog, table_schema, table_name, table_type from " + datasetInfoSchema(project, dataset, "TABLES")
	var args []any
	if identifier != "" {
		query += " where table_name = ?"
		args = append(args, identifier)
	}
	query += " order by table_name"

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations in %s: %w", quoted(project, dataset), err)
	}
	defer func() { _ = rows.Close() }()

	var out []*relation.Relation
	for rows.Next() {
		var db, sc, id, kind string
		if err := rows.Scan(&db, &sc, &id, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		t, err := a.RelationType(kind)
		if err != nil {
			return nil, err
		}
		rel, err := relation.New(a.Dialect, db, sc, id, t, a.Quoting)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

// GetColumnsInRelation implements adapter.Core.
func (a *Adapter) GetColumnsInRelation(ctx context.Context, conn adapter.Connection, rel *relation.Relation) ([]adapter.Column, error) {
	query := "select column_name, data_type, is_nullable, ordinal_position from " +
		datasetInfoSchema(rel.Database, rel.Schema, "COLUMNS") +
		" where table_name = ? order by ordinal_position"
	rows, err := conn.QueryContext(ctx, query, rel.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []adapter.Column
	for rows.Next() {
		var (
			col      adapter.Column
			nullable string
			pos      int64
		)
		if err := rows.Scan(&col.Name, &col.DType, &nullable, &pos); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		col.Position = int(pos)
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// GetColumnsInSelectSQL returns the columns a select statement produces.
func (a *Adapter) GetColumnsInSelectSQL(ctx context.Context, conn adapter.Connection, sql string) ([]adapter.Column, error) {
	return a.GetColumnSchemaFromQuery(ctx, conn, adapter.Query(sql))
}

// GetDatasetLocation returns the location of the relation's dataset.
func (a *Adapter) GetDatasetLocation(ctx context.Context, conn adapter.Connection, rel *relation.Relation) (string, error) {
	query := "select location from " + quoted(rel.Database) + ".INFORMATION_SCHEMA.SCHEMATA where schema_name = ?"
	rows, err := conn.QueryContext(ctx, query, rel.Schema)
	if err != nil {
		return "", fmt.Errorf("failed to look up dataset location: %w", err)
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", core.InvalidOperationError("dataset %s not found", quoted(rel.Database, rel.Schema))
	}
	var loc sql.NullString
	if err := rows.Scan(&loc); err != nil {
		return "", fmt.Errorf("failed to scan dataset location: %w", err)
	}
	return loc.String, nil
}

// UpdateTableDescription sets the description option of a table.
func (a *Adapter) UpdateTableDescription(ctx context.Context, conn adapter.Connection, database, schema, identifier, description string) error {
	stmt := fmt.Sprintf("alter table %s set options (description=%s)", quoted(database, schema, identifier), tripleQuoted(description))
	return a.AddQuery(ctx, conn, adapter.Query(stmt), false, false)
}

// UpdateColumnsDescriptions sets the description of every documented
// column. Columns without a description are left alone.
func (a *Adapter) UpdateColumnsDescriptions(ctx context.Context, conn adapter.Connection, rel *relation.Relation, columns map[string]core.ColumnDef) error {
	names := make([]string, 0, len(columns))
	for name, col := range columns {
		if col.Description != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		col := columns[name]
		stmt := fmt.Sprintf("alter table %s alter column %s set options (description=%s)",
			rel.Render(), quoted(col.Name), tripleQuoted(col.Description))
		if err := a.AddQuery(ctx, conn, adapter.Query(stmt), false, false); err != nil {
			return err
		}
	}
	return nil
}

// AlterTableAddColumns adds columns to an existing table in one statement.
func (a *Adapter) AlterTableAddColumns(ctx context.Context, conn adapter.Connection, rel *relation.Relation, columns []adapter.Column) error {
	if len(columns) == 0 {
		return nil
	}
	clauses := make([]string, len(columns))
	for i, c := range columns {
		clauses[i] = fmt.Sprintf("add column %s %s", quoted(c.Name), c.DType)
	}
	stmt := fmt.Sprintf("alter table %s %s", rel.Render(), strings.Join(clauses, ", "))
	return a.AddQuery(ctx, conn, adapter.Query(stmt), false, false)
}

// CopyTable copies src into dst. A table materialization replaces dst; an
// incremental one appends to it.
func (a *Adapter) CopyTable(ctx context.Context, conn adapter.Connection, src, dst *relation.Relation, materialization string) error {
	var stmt string
	switch materialization {
	case core.MaterializationTable:
		stmt = fmt.Sprintf("create or replace table %s copy %s", dst.Render(), src.Render())
	case core.MaterializationIncremental:
		stmt = fmt.Sprintf("insert into %s select * from %s", dst.Render(), src.Render())
	default:
		return core.ConfigurationError(`Copy table materialization must be "table" or "incremental", but %q was provided`, materialization)
	}
	return a.AddQuery(ctx, conn, adapter.Query(stmt), false, false)
}

// GrantAccessTo grants role on entity to the principal named in target.
// Authorizing a view on a dataset needs the dataset access API and is not
// available over SQL.
func (a *Adapter) GrantAccessTo(ctx context.Context, conn adapter.Connection, entity *relation.Relation, entityType, role string, target map[string]string) error {
	switch entityType {
	case "view":
		return core.UnsupportedFeatureError("granting dataset access to a view needs the BigQuery dataset API")
	case "table", "schema":
	default:
		return core.ConfigurationError("Unsupported grant_access_to entity type: %s", entityType)
	}
	if role == "" {
		return core.ConfigurationError("grant_access_to needs a role")
	}
	principal := target["principal"]
	if principal == "" {
		return core.ConfigurationError("grant_access_to needs a principal")
	}
	object := entity.Render()
	if entityType == "schema" {
		object = quoted(entity.Database, entity.Schema)
	}
	stmt := fmt.Sprintf("grant %s on %s %s to %s", quoted(role), entityType, object, doubleQuoted(principal))
	return a.AddQuery(ctx, conn, adapter.Query(stmt), false, false)
}

var _ adapter.TypedAdapter = (*Adapter)(nil)
