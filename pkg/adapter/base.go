package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// Base provides the default implementation of every TypedAdapter operation
// outside Core. Backends embed *Base and call Bind with themselves so that
// defaults dispatch to the backend's own Core methods and overrides.
type Base struct {
	Engine Engine
	Logger *slog.Logger

	self TypedAdapter
}

// NewBase creates defaults that run statements through engine. A nil engine
// uses a RetryEngine and a nil logger discards output.
func NewBase(engine Engine, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if engine == nil {
		engine = NewRetryEngine(logger)
	}
	return &Base{Engine: engine, Logger: logger}
}

// Bind sets the adapter the defaults dispatch to. It must be called once by
// the backend constructor before the adapter is used.
func (b *Base) Bind(self TypedAdapter) { b.self = self }

// Self returns the bound adapter.
func (b *Base) Self() TypedAdapter { return b.self }

// ExecuteInner splits the query into statements and runs them in order,
// each with one retry. Only the last statement is fetched; earlier ones run
// for effect.
func (b *Base) ExecuteInner(ctx context.Context, conn Connection, qc QueryContext, opts ExecOptions) (*Response, *Table, error) {
	if qc.SQL == nil {
		return nil, nil, core.InternalError("Missing query in the context")
	}
	stmts := b.self.SplitStatements(*qc.SQL)
	if len(stmts) == 0 {
		return selectResponse(0), EmptyTable(), nil
	}

	var (
		resp  *Response
		table *Table
		err   error
	)
	for i, stmt := range stmts {
		b.Logger.Debug("executing statement",
			slog.String("adapter", b.self.AdapterType()),
			slog.String("node", qc.NodeID),
			slog.Int("index", i),
			slog.String("sql", stmt))
		last := i == len(stmts)-1
		resp, table, err = b.Engine.ExecuteStatement(ctx, conn, stmt, 1, last && opts.Fetch, opts.Limit)
		if err != nil {
			return nil, nil, fmt.Errorf("statement %d of %d failed: %w", i+1, len(stmts), err)
		}
	}
	return resp, table, nil
}

// AddQueryInner runs a query for effect. With abridge set only the start of
// the statement is logged.
func (b *Base) AddQueryInner(ctx context.Context, conn Connection, qc QueryContext, abridgeSQL bool) error {
	if qc.SQL == nil {
		return core.InternalError("Missing query in the context")
	}
	logged := *qc.SQL
	if abridgeSQL {
		logged = abridge(logged)
	}
	b.Logger.Debug("adding query", slog.String("adapter", b.self.AdapterType()), slog.String("sql", logged))
	_, _, err := b.Engine.ExecuteStatement(ctx, conn, *qc.SQL, 1, false, 0)
	return err
}

const abridgedLength = 512

// ExecuteWithNewConnection opens a connection, executes and closes it.
func (b *Base) ExecuteWithNewConnection(ctx context.Context, qc QueryContext, opts ExecOptions) (*Response, *Table, error) {
	conn, err := b.self.NewConnection(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = conn.Close() }()
	return b.self.Execute(ctx, conn, qc, opts)
}

// DropRelation calls the drop_relation macro. The relation must have a type.
func (b *Base) DropRelation(ctx context.Context, m MacroExecutor, rel *relation.Relation) error {
	if rel.Type == relation.TypeNone {
		return core.ConfigurationError("relation has no type")
	}
	_, err := m.ExecuteMacro(ctx, "drop_relation", []any{rel}, nil)
	return err
}

// TruncateRelation calls the truncate_relation macro.
func (b *Base) TruncateRelation(ctx context.Context, m MacroExecutor, rel *relation.Relation) error {
	_, err := m.ExecuteMacro(ctx, "truncate_relation", []any{rel}, nil)
	return err
}

// RenameRelation is not called directly; renames go through the
// rename_relation macro.
func (b *Base) RenameRelation(context.Context, Connection, *relation.Relation, *relation.Relation) error {
	return &core.Error{Kind: core.KindInvalidOperation, Op: "rename_relation", Message: "renames are performed by the rename_relation macro"}
}

// CheckSchemaExistsMacro returns the package and name of the macro that
// checks for a schema.
func (b *Base) CheckSchemaExistsMacro() (pkg, name string) {
	return "dbt", "check_schema_exists"
}

// GetMissingColumns returns the columns of source that target lacks.
func (b *Base) GetMissingColumns(ctx context.Context, conn Connection, source, target *relation.Relation) ([]Column, error) {
	src, err := b.self.GetColumnsInRelation(ctx, conn, source)
	if err != nil {
		return nil, err
	}
	tgt, err := b.self.GetColumnsInRelation(ctx, conn, target)
	if err != nil {
		return nil, err
	}
	return MissingColumns(src, tgt), nil
}

// MissingColumns returns the columns of source whose name does not appear in
// target, ordered by name. Names compare case-sensitively.
func MissingColumns(source, target []Column) []Column {
	present := make(map[string]struct{}, len(target))
	for _, c := range target {
		present[c.Name] = struct{}{}
	}
	byName := columnsByName(source)
	out := make([]Column, 0, len(byName))
	for _, name := range sortedKeys(byName) {
		if _, ok := present[name]; !ok {
			out = append(out, byName[name])
		}
	}
	return out
}

// ExpandTargetColumnTypes widens string columns of to that are narrower than
// the same column in from, through the alter_column_type macro.
func (b *Base) ExpandTargetColumnTypes(ctx context.Context, conn Connection, m MacroExecutor, from, to *relation.Relation) error {
	fromCols, err := b.self.GetColumnsInRelation(ctx, conn, from)
	if err != nil {
		return err
	}
	toCols, err := b.self.GetColumnsInRelation(ctx, conn, to)
	if err != nil {
		return err
	}

	source := columnsByName(fromCols)
	target := columnsByName(toCols)
	for _, name := range sortedKeys(target) {
		src, ok := source[name]
		if !ok {
			continue
		}
		dst := target[name]
		expand, err := dst.CanExpandTo(src)
		if err != nil {
			return err
		}
		if !expand {
			continue
		}
		size, err := src.StringSize()
		if err != nil {
			return err
		}
		newType := StringType(size)
		b.Logger.Debug("changing column type",
			slog.String("relation", to.Render()),
			slog.String("column", name),
			slog.String("from", dst.DataType()),
			slog.String("to", newType))
		if _, err := m.ExecuteMacro(ctx, "alter_column_type", nil, map[string]any{
			"relation":        to,
			"column_name":     name,
			"new_column_type": newType,
		}); err != nil {
			return err
		}
	}
	return nil
}

// QuoteAsConfigured quotes identifier when the resolved quoting policy asks
// for it on component.
func (b *Base) QuoteAsConfigured(identifier string, component core.ComponentName) string {
	if b.self.GetResolvedQuoting().Get(component) {
		return b.self.Quote(identifier)
	}
	return identifier
}

// QuoteSeedColumn quotes seed columns unless quote is explicitly false.
func (b *Base) QuoteSeedColumn(column string, quote *bool) string {
	if quote == nil || *quote {
		return b.self.Quote(column)
	}
	return column
}

// ConvertType maps the inferred kind of a table column to a warehouse type.
func (b *Base) ConvertType(t *Table, col int) (string, error) {
	kind, err := t.Kind(col)
	if err != nil {
		return "", err
	}
	return b.self.ConvertTypeInner(kind)
}

// StandardizeGrantsDict pivots a (grantee, privilege_type) result into
// privilege → grantees, keeping row order.
func (b *Base) StandardizeGrantsDict(grants *Table) (map[string][]string, error) {
	grantee, ok := grants.ColumnIndexFold("grantee")
	if !ok {
		return nil, core.InternalError("grants table has no grantee column")
	}
	privilege, ok := grants.ColumnIndexFold("privilege_type")
	if !ok {
		return nil, core.InternalError("grants table has no privilege_type column")
	}

	out := make(map[string][]string)
	for _, row := range grants.Rows {
		p := fmt.Sprint(row[privilege])
		out[p] = append(out[p], fmt.Sprint(row[grantee]))
	}
	return out, nil
}

// ValidIncrementalStrategies lists the strategies the backend supports.
func (b *Base) ValidIncrementalStrategies() []string {
	return []string{core.StrategyAppend}
}

// Behavior lists backend behavior flags. There are none by default.
func (b *Base) Behavior() []BehaviorFlag { return nil }

// GenerateUniqueTemporaryTableSuffix is backend specific.
func (b *Base) GenerateUniqueTemporaryTableSuffix(string) (string, error) {
	return "", core.NotImplemented("generate_unique_temporary_table_suffix", "not available for this adapter")
}

func columnsByName(cols []Column) map[string]Column {
	m := make(map[string]Column, len(cols))
	for _, c := range cols {
		m[c.Name] = c
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// abridge shortens long SQL for logs.
func abridge(sql string) string {
	sql = strings.TrimSpace(sql)
	if len(sql) <= abridgedLength {
		return sql
	}
	return sql[:abridgedLength] + "..."
}
