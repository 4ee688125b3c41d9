package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// SQLAdapter implements Core over database/sql and the information_schema
// views most warehouses expose. Backends embed it and override what their
// warehouse does differently.
type SQLAdapter struct {
	*Base

	DB *sql.DB
	// Driver is the database/sql driver name; DSN is passed to sql.Open.
	Driver string
	DSN    string

	Dialect *relation.Flavor
	Split   SplitOptions
	Quoting core.Policy
	// Types maps inferred seed column kinds to warehouse types.
	Types map[DataKind]string
}

// NewSQLAdapter creates an adapter for a flavor. The caller must Bind the
// embedding backend.
func NewSQLAdapter(f *relation.Flavor, logger *slog.Logger) *SQLAdapter {
	return &SQLAdapter{
		Base:    NewBase(nil, logger),
		Dialect: f,
		Quoting: f.DefaultQuote,
		Types:   DefaultTypes(),
	}
}

// DefaultTypes is the generic seed type mapping.
func DefaultTypes() map[DataKind]string {
	return map[DataKind]string{
		KindText:     "text",
		KindBoolean:  "boolean",
		KindInteger:  "integer",
		KindNumber:   "numeric",
		KindDate:     "date",
		KindDateTime: "timestamp without time zone",
	}
}

// AdapterType implements Core.
func (a *SQLAdapter) AdapterType() string { return a.Dialect.Name }

// Flavor implements Core.
func (a *SQLAdapter) Flavor() *relation.Flavor { return a.Dialect }

// Open opens the connection pool. A driver that is not linked into the
// binary is reported as an unsupported feature.
func (a *SQLAdapter) Open(ctx context.Context) error {
	if a.DB != nil {
		return nil
	}
	if a.Driver == "" {
		return core.ConfigurationError("no database driver configured for %s", a.AdapterType())
	}
	if !slices.Contains(sql.Drivers(), a.Driver) {
		return core.UnsupportedFeatureError(
			"the %s adapter needs a database/sql driver registered as %q, and none is linked into this binary",
			a.AdapterType(), a.Driver)
	}
	db, err := sql.Open(a.Driver, a.DSN)
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", a.AdapterType(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to connect to %s: %w", a.AdapterType(), err)
	}
	a.DB = db
	a.Logger.Debug("connected", slog.String("adapter", a.AdapterType()))
	return nil
}

// IsConnected returns true if the connection pool is open.
func (a *SQLAdapter) IsConnected() bool { return a.DB != nil }

// Close closes the connection pool.
func (a *SQLAdapter) Close() error {
	if a.DB == nil {
		return nil
	}
	a.Logger.Debug("closing database connection", slog.String("adapter", a.AdapterType()))
	err := a.DB.Close()
	a.DB = nil
	return err
}

// NewConnection implements Core. It opens the pool on first use and hands
// out a dedicated session.
func (a *SQLAdapter) NewConnection(ctx context.Context) (Connection, error) {
	if err := a.Open(ctx); err != nil {
		return nil, err
	}
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// SplitStatements implements Core.
func (a *SQLAdapter) SplitStatements(sql string) []string {
	return SplitStatements(sql, a.Split)
}

// Execute implements Core.
func (a *SQLAdapter) Execute(ctx context.Context, conn Connection, qc QueryContext, opts ExecOptions) (*Response, *Table, error) {
	return a.ExecuteInner(ctx, conn, qc, opts)
}

// AddQuery implements Core.
func (a *SQLAdapter) AddQuery(ctx context.Context, conn Connection, qc QueryContext, _ bool, abridgeSQLLog bool) error {
	return a.AddQueryInner(ctx, conn, qc, abridgeSQLLog)
}

// Quote implements Core.
func (a *SQLAdapter) Quote(identifier string) string {
	return a.Dialect.Identifiers.QuoteIdentifier(identifier)
}

// GetResolvedQuoting implements Core.
func (a *SQLAdapter) GetResolvedQuoting() core.Policy { return a.Quoting }

// ListSchemas implements Core.
func (a *SQLAdapter) ListSchemas(ctx context.Context, conn Connection, database string) ([]string, error) {
	query := "SELECT schema_name FROM information_schema.schemata"
	var args []any
	if database != "" {
		query += " WHERE catalog_name = " + a.Dialect.FormatPlaceholder(1)
		args = append(args, a.resolve(database, core.ComponentDatabase))
	}
	query += " ORDER BY schema_name"

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schemas []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan schema name: %w", err)
		}
		schemas = append(schemas, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schemas: %w", err)
	}
	return schemas, nil
}

// GetRelation implements Core.
func (a *SQLAdapter) GetRelation(ctx context.Context, conn Connection, database, schema, identifier string) (*relation.Relation, error) {
	query, args := a.infoSchemaQuery("SELECT table_catalog, table_schema, table_name, table_type FROM information_schema.tables",
		database, schema, identifier, "table_catalog", "table_schema", "table_name")

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up relation: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error looking up relation: %w", err)
		}
		return nil, nil
	}
	var db, sc, id, kind sql.NullString
	if err := rows.Scan(&db, &sc, &id, &kind); err != nil {
		return nil, fmt.Errorf("failed to scan relation: %w", err)
	}
	t, err := a.RelationType(kind.String)
	if err != nil {
		return nil, err
	}
	return relation.New(a.Dialect, db.String, sc.String, id.String, t, a.Quoting)
}

// RelationType maps an information_schema table_type to a relation type.
func (a *SQLAdapter) RelationType(tableType string) (relation.Type, error) {
	switch a.Dialect.Name {
	case relation.BigQuery.Name, relation.Databricks.Name:
		return relation.ParseWarehouseType(a.Dialect.Name, tableType)
	}
	switch strings.ToUpper(tableType) {
	case "BASE TABLE", "TABLE", "LOCAL TEMPORARY", "TEMPORARY":
		return relation.TypeTable, nil
	case "VIEW":
		return relation.TypeView, nil
	case "MATERIALIZED VIEW":
		return relation.TypeMaterializedView, nil
	case "DYNAMIC TABLE":
		return relation.TypeDynamicTable, nil
	case "EXTERNAL TABLE", "EXTERNAL", "FOREIGN":
		return relation.TypeExternal, nil
	}
	return relation.TypeNone, core.InvalidOperationError("unknown table type: %s", tableType)
}

// GetColumnsInRelation implements Core.
func (a *SQLAdapter) GetColumnsInRelation(ctx context.Context, conn Connection, rel *relation.Relation) ([]Column, error) {
	query, args := a.infoSchemaQuery(`SELECT
			column_name,
			data_type,
			character_maximum_length,
			numeric_precision,
			numeric_scale,
			is_nullable,
			ordinal_position
		FROM information_schema.columns`,
		rel.Database, rel.Schema, rel.Identifier, "table_catalog", "table_schema", "table_name")
	query += " ORDER BY ordinal_position"

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var (
			col                    Column
			size, prec, scale, pos sql.NullInt64
			nullable               string
		)
		if err := rows.Scan(&col.Name, &col.DType, &size, &prec, &scale, &nullable, &pos); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.CharSize = nullInt(size)
		col.NumericPrecision = nullInt(prec)
		col.NumericScale = nullInt(scale)
		col.Nullable = strings.EqualFold(nullable, "YES")
		col.Position = int(pos.Int64)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return columns, nil
}

// GetColumnSchemaFromQuery implements Core by running the query with no rows.
func (a *SQLAdapter) GetColumnSchemaFromQuery(ctx context.Context, conn Connection, qc QueryContext) ([]Column, error) {
	if qc.SQL == nil {
		return nil, core.InternalError("Missing query in the context")
	}
	query := fmt.Sprintf("select * from (\n%s\n) as __dbt_sbq where false limit 0", strings.TrimRight(strings.TrimSpace(*qc.SQL), ";"))
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to describe query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}
	return a.Self().ColumnsFromSchema(types)
}

// ColumnsFromSchema implements Core.
func (a *SQLAdapter) ColumnsFromSchema(types []*sql.ColumnType) ([]Column, error) {
	cols := make([]Column, len(types))
	for i, ct := range types {
		col := Column{Name: ct.Name(), DType: strings.ToLower(ct.DatabaseTypeName()), Position: i + 1}
		if col.DType == "" {
			col.DType = "text"
		}
		if n, ok := ct.Length(); ok && n > 0 && n < 1<<31 {
			size := int(n)
			col.CharSize = &size
		}
		if p, s, ok := ct.DecimalSize(); ok {
			prec, scale := int(p), int(s)
			col.NumericPrecision, col.NumericScale = &prec, &scale
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		}
		cols[i] = col
	}
	return cols, nil
}

// ConvertTypeInner implements Core.
func (a *SQLAdapter) ConvertTypeInner(kind DataKind) (string, error) {
	t, ok := a.Types[kind]
	if !ok {
		return "", core.InvalidOperationError("no %s type for %s columns", a.AdapterType(), kind)
	}
	return t, nil
}

// resolve applies the flavor's casing to unquoted components.
func (a *SQLAdapter) resolve(v string, c core.ComponentName) string {
	if a.Quoting.Get(c) {
		return v
	}
	return a.Dialect.Identifiers.Normalize(v)
}

// infoSchemaQuery appends equality filters for the non-empty path
// components. The database filter is skipped for flavors whose relations
// do not include a database.
func (a *SQLAdapter) infoSchemaQuery(base, database, schema, identifier, dbCol, schemaCol, idCol string) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(col, v string, c core.ComponentName) {
		if v == "" {
			return
		}
		args = append(args, a.resolve(v, c))
		where = append(where, fmt.Sprintf("%s = %s", col, a.Dialect.FormatPlaceholder(len(args))))
	}
	if a.Dialect.DefaultInclude.Database {
		add(dbCol, database, core.ComponentDatabase)
	}
	add(schemaCol, schema, core.ComponentSchema)
	add(idCol, identifier, core.ComponentIdentifier)
	if len(where) == 0 {
		return base, args
	}
	return base + " WHERE " + strings.Join(where, " AND "), args
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
