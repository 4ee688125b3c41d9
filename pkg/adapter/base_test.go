package adapter

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapforge/internal/testutil"
	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// fakeAdapter serves relation columns from memory.
type fakeAdapter struct {
	*SQLAdapter
	columns map[string][]Column
	support map[core.ConstraintType]ConstraintSupport
}

func newFakeAdapter(t *testing.T) *fakeAdapter {
	t.Helper()
	f := &fakeAdapter{
		SQLAdapter: NewSQLAdapter(relation.Postgres, testutil.NewTestLogger(t)),
		columns:    map[string][]Column{},
	}
	f.Engine = &RetryEngine{Base: time.Millisecond, Logger: f.Logger}
	f.Bind(f)
	return f
}

func (f *fakeAdapter) GetColumnsInRelation(_ context.Context, _ Connection, rel *relation.Relation) ([]Column, error) {
	cols, ok := f.columns[rel.Identifier]
	if !ok {
		return nil, errors.New("relation not found")
	}
	return cols, nil
}

func (f *fakeAdapter) GetConstraintSupport(t core.ConstraintType) ConstraintSupport {
	if s, ok := f.support[t]; ok {
		return s
	}
	return f.SQLAdapter.GetConstraintSupport(t)
}

type macroCall struct {
	name   string
	args   []any
	kwargs map[string]any
}

type recordingMacros struct {
	calls  []macroCall
	result any
	err    error
}

func (m *recordingMacros) ExecuteMacro(_ context.Context, name string, args []any, kwargs map[string]any) (any, error) {
	m.calls = append(m.calls, macroCall{name: name, args: args, kwargs: kwargs})
	return m.result, m.err
}

func rel(t *testing.T, id string) *relation.Relation {
	t.Helper()
	return relation.MustNew(relation.Postgres, "db", "analytics", id, relation.TypeTable, core.AllTrue())
}

func intp(n int) *int { return &n }

func TestExecuteInner(t *testing.T) {
	ctx := context.Background()

	t.Run("missing query is internal", func(t *testing.T) {
		a := newFakeAdapter(t)
		_, _, err := a.Execute(ctx, nil, QueryContext{}, ExecOptions{})
		require.Error(t, err)
		assert.True(t, core.IsKind(err, core.KindInternal))
		assert.Contains(t, err.Error(), "Missing query in the context")
	})

	t.Run("runs every statement and returns the last result", func(t *testing.T) {
		a := newFakeAdapter(t)
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectExec(regexp.QuoteMeta("create temp table t as select 1 as id")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("select id from t")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))

		resp, table, err := a.Execute(ctx, db, Query("create temp table t as select 1 as id; select id from t;"), ExecOptions{Fetch: true, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, &Response{Message: "SELECT 2", Code: "SELECT", RowsAffected: 2}, resp)
		assert.Equal(t, []string{"id"}, table.Columns)
		assert.Equal(t, 2, table.Len())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries a failing statement once", func(t *testing.T) {
		a := newFakeAdapter(t)
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectExec("drop table x").WillReturnError(errors.New("transient"))
		mock.ExpectExec("drop table x").WillReturnResult(sqlmock.NewResult(0, 0))

		resp, _, err := a.Execute(ctx, db, Query("drop table x"), ExecOptions{})
		require.NoError(t, err)
		assert.Equal(t, "SELECT 0", resp.Message)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives up after the retry", func(t *testing.T) {
		a := newFakeAdapter(t)
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectExec("drop table x").WillReturnError(errors.New("boom"))
		mock.ExpectExec("drop table x").WillReturnError(errors.New("boom"))

		_, _, err = a.Execute(ctx, db, Query("drop table x"), ExecOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "statement 1 of 1 failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty script", func(t *testing.T) {
		a := newFakeAdapter(t)
		resp, table, err := a.Execute(ctx, nil, Query("  ;  -- nothing\n"), ExecOptions{})
		require.NoError(t, err)
		assert.Equal(t, "SELECT 0", resp.Message)
		assert.Equal(t, 0, table.Len())
	})
}

func TestAddQuery(t *testing.T) {
	a := newFakeAdapter(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("insert into t").WillReturnResult(sqlmock.NewResult(0, 4))
	require.NoError(t, a.AddQuery(context.Background(), db, Query("insert into t values (1)"), false, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingColumns(t *testing.T) {
	a := newFakeAdapter(t)
	a.columns["src"] = []Column{{Name: "b", DType: "int"}, {Name: "Id", DType: "int"}, {Name: "a", DType: "text"}, {Name: "id", DType: "int"}}
	a.columns["tgt"] = []Column{{Name: "id", DType: "int"}}

	got, err := a.GetMissingColumns(context.Background(), nil, rel(t, "src"), rel(t, "tgt"))
	require.NoError(t, err)

	names := make([]string, len(got))
	for i, c := range got {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Id", "a", "b"}, names, "case-sensitive difference ordered by name")
	assert.Equal(t, "text", got[1].DType, "source metadata is kept")
}

func TestMissingColumnsIsSetDifference(t *testing.T) {
	tests := []struct {
		name   string
		source []string
		target []string
		want   []string
	}{
		{"disjoint", []string{"c", "a"}, []string{"x"}, []string{"a", "c"}},
		{"subset", []string{"a"}, []string{"a", "b"}, []string{}},
		{"empty source", nil, []string{"a"}, []string{}},
		{"empty target", []string{"b", "a"}, nil, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toCols := func(names []string) []Column {
				out := make([]Column, len(names))
				for i, n := range names {
					out[i] = Column{Name: n}
				}
				return out
			}
			got := MissingColumns(toCols(tt.source), toCols(tt.target))
			names := []string{}
			for _, c := range got {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestExpandTargetColumnTypes(t *testing.T) {
	a := newFakeAdapter(t)
	a.columns["from"] = []Column{
		{Name: "name", DType: "character varying", CharSize: intp(200)},
		{Name: "code", DType: "varchar", CharSize: intp(5)},
		{Name: "amount", DType: "integer"},
		{Name: "only_in_source", DType: "text"},
	}
	a.columns["to"] = []Column{
		{Name: "name", DType: "character varying", CharSize: intp(50)},
		{Name: "code", DType: "varchar", CharSize: intp(10)},
		{Name: "amount", DType: "integer"},
	}
	m := &recordingMacros{}
	to := rel(t, "to")

	require.NoError(t, a.ExpandTargetColumnTypes(context.Background(), nil, m, rel(t, "from"), to))
	require.Len(t, m.calls, 1)
	assert.Equal(t, "alter_column_type", m.calls[0].name)
	assert.Equal(t, map[string]any{
		"relation":        to,
		"column_name":     "name",
		"new_column_type": "character varying(200)",
	}, m.calls[0].kwargs)
}

func TestDropAndTruncateRelation(t *testing.T) {
	ctx := context.Background()
	a := newFakeAdapter(t)

	untyped := relation.MustNew(relation.Postgres, "db", "s", "t", relation.TypeNone, core.AllTrue())
	err := a.DropRelation(ctx, &recordingMacros{}, untyped)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConfiguration))
	assert.Contains(t, err.Error(), "relation has no type")

	m := &recordingMacros{}
	require.NoError(t, a.DropRelation(ctx, m, rel(t, "t")))
	require.NoError(t, a.TruncateRelation(ctx, m, rel(t, "t")))
	require.Len(t, m.calls, 2)
	assert.Equal(t, "drop_relation", m.calls[0].name)
	assert.Equal(t, "truncate_relation", m.calls[1].name)
	assert.Len(t, m.calls[0].args, 1)
}

func TestQuoting(t *testing.T) {
	a := newFakeAdapter(t)
	a.Quoting = core.Policy{Database: false, Schema: true, Identifier: true}

	assert.Equal(t, "analytics", a.QuoteAsConfigured("analytics", core.ComponentDatabase))
	assert.Equal(t, `"analytics"`, a.QuoteAsConfigured("analytics", core.ComponentSchema))

	assert.Equal(t, `"Col"`, a.QuoteSeedColumn("Col", nil))
	assert.Equal(t, `"Col"`, a.QuoteSeedColumn("Col", config.Ptr(true)))
	assert.Equal(t, "Col", a.QuoteSeedColumn("Col", config.Ptr(false)))
}

func TestConvertType(t *testing.T) {
	a := newFakeAdapter(t)
	table := NewTable([]string{"id", "price", "name", "active", "day", "at"}, [][]any{
		{"1", "1.5", "x", "true", "2024-01-01", "2024-01-01 10:00:00"},
		{"2", "2", "", "false", "2024-01-02", ""},
	})

	tests := []struct {
		col  int
		want string
	}{
		{0, "integer"},
		{1, "numeric"},
		{2, "text"},
		{3, "boolean"},
		{4, "date"},
		{5, "timestamp without time zone"},
	}
	for _, tt := range tests {
		got, err := a.ConvertType(table, tt.col)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "column %d", tt.col)
	}

	_, err := a.ConvertType(table, 9)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindInternal))
}

func TestStandardizeGrantsDict(t *testing.T) {
	a := newFakeAdapter(t)
	grants := NewTable([]string{"grantee", "privilege_type"}, [][]any{
		{"alice", "SELECT"},
		{"bob", "INSERT"},
		{"carol", "SELECT"},
	})

	got, err := a.StandardizeGrantsDict(grants)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"SELECT": {"alice", "carol"},
		"INSERT": {"bob"},
	}, got)

	_, err = a.StandardizeGrantsDict(NewTable([]string{"who"}, nil))
	assert.Error(t, err)
}

func TestCalculateFreshnessFromMetadataBatch(t *testing.T) {
	a := newFakeAdapter(t)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := &recordingMacros{result: &Table{
		Columns: []string{"IDENTIFIER", "SCHEMA", "LAST_MODIFIED"},
		Rows:    [][]any{{"ORDERS", "RAW", ts}},
	}}
	sources := []*relation.Relation{rel(t, "orders")}

	got, err := a.CalculateFreshnessFromMetadataBatch(context.Background(), m, sources)
	require.NoError(t, err)
	assert.Equal(t, map[FreshnessKey]time.Time{{Identifier: "orders", Schema: "raw"}: ts}, got)
	require.Len(t, m.calls, 1)
	assert.Equal(t, "get_relation_last_modified", m.calls[0].name)
	assert.Equal(t, "INFORMATION_SCHEMA", m.calls[0].kwargs["information_schema"])
	assert.Equal(t, sources, m.calls[0].kwargs["relations"])
}

func TestDefaults(t *testing.T) {
	a := newFakeAdapter(t)

	pkg, name := a.CheckSchemaExistsMacro()
	assert.Equal(t, "dbt", pkg)
	assert.Equal(t, "check_schema_exists", name)
	assert.Equal(t, []string{"append"}, a.ValidIncrementalStrategies())
	assert.Empty(t, a.Behavior())

	_, err := a.GenerateUniqueTemporaryTableSuffix("")
	assert.True(t, core.IsNotImplemented(err))

	err = a.RenameRelation(context.Background(), nil, rel(t, "a"), rel(t, "b"))
	assert.True(t, core.IsKind(err, core.KindInvalidOperation))
}

func TestExclusiveOperationsAreNotImplemented(t *testing.T) {
	ctx := context.Background()
	a := newFakeAdapter(t)
	r := rel(t, "t")

	tests := []struct {
		name    string
		call    func() error
		message string
	}{
		{"get_table_options", func() error { _, err := a.GetTableOptions(&config.ModelConfig{}, false); return err }, OnlyBigQuery},
		{"get_view_options", func() error { _, err := a.GetViewOptions(&config.ModelConfig{}); return err }, OnlyBigQuery},
		{"parse_partition_by", func() error { _, err := a.ParsePartitionBy(nil); return err }, OnlyBigQuery},
		{"copy_table", func() error { return a.CopyTable(ctx, nil, r, r, "table") }, OnlyBigQuery},
		{"describe_relation", func() error { _, err := a.DescribeRelation(ctx, nil, r); return err }, OnlyBigQuery},
		{"grant_access_to", func() error { return a.GrantAccessTo(ctx, nil, r, "view", "", nil) }, OnlyBigQuery},
		{"compute_external_path", func() error { _, err := a.ComputeExternalPath(nil, nil, false); return err }, OnlyDatabricks},
		{"compare_dbr_version", func() error { _, err := a.CompareDBRVersion(ctx, nil, 13, 3); return err }, OnlyDatabricks},
		{"get_config_from_model", func() error { _, err := a.GetConfigFromModel(nil); return err }, OnlyDatabricks},
		{"verify_database", func() error { return a.VerifyDatabase("db") }, OnlyPostgres},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, core.IsNotImplemented(err))
			assert.Contains(t, err.Error(), tt.name)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
