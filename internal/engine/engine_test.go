package engine

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapforge/internal/config"
	"github.com/leapstack-labs/leapforge/internal/state"
	"github.com/leapstack-labs/leapforge/internal/testutil"
	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// fakeAdapter records every statement instead of running it.
type fakeAdapter struct {
	*adapter.SQLAdapter

	mu        sync.Mutex
	stmts     []string
	relations map[string]*relation.Relation
	columns   map[string][]adapter.Column
	// failOn fails any statement containing the key.
	failOn map[string]error
	opened int
}

func newFakeAdapter(t *testing.T) *fakeAdapter {
	t.Helper()
	f := &fakeAdapter{
		SQLAdapter: adapter.NewSQLAdapter(relation.Postgres, testutil.NewTestLogger(t)),
		relations:  make(map[string]*relation.Relation),
		columns:    make(map[string][]adapter.Column),
		failOn:     make(map[string]error),
	}
	f.Bind(f)
	return f
}

type fakeConn struct{}

func (fakeConn) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("fakeConn: unexpected ExecContext")
}

func (fakeConn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("fakeConn: unexpected QueryContext")
}

func (fakeConn) Close() error { return nil }

func (f *fakeAdapter) NewConnection(context.Context) (adapter.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return fakeConn{}, nil
}

func (f *fakeAdapter) Execute(_ context.Context, _ adapter.Connection, qc adapter.QueryContext, opts adapter.ExecOptions) (*adapter.Response, *adapter.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stmt := range f.SplitStatements(*qc.SQL) {
		for key, err := range f.failOn {
			if strings.Contains(stmt, key) {
				return nil, nil, err
			}
		}
		f.stmts = append(f.stmts, stmt)
	}
	if opts.Fetch {
		return &adapter.Response{Message: "SELECT 1", Code: "SELECT", RowsAffected: 1},
			adapter.NewTable([]string{"count"}, [][]any{{int64(3)}}), nil
	}
	return &adapter.Response{Message: "OK", Code: "OK", RowsAffected: 2}, adapter.EmptyTable(), nil
}

func (f *fakeAdapter) GetRelation(_ context.Context, _ adapter.Connection, _, _, identifier string) (*relation.Relation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.relations[identifier], nil
}

func (f *fakeAdapter) GetColumnsInRelation(_ context.Context, _ adapter.Connection, rel *relation.Relation) ([]adapter.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.columns[rel.Identifier], nil
}

func (f *fakeAdapter) ValidIncrementalStrategies() []string {
	return []string{core.StrategyAppend, core.StrategyDeleteInsert, core.StrategyMerge}
}

func (f *fakeAdapter) statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stmts...)
}

func (f *fakeAdapter) addRelation(t *testing.T, identifier string, typ relation.Type) {
	t.Helper()
	rel, err := relation.New(relation.Postgres, "warehouse", "analytics", identifier, typ, core.AllTrue())
	require.NoError(t, err)
	f.relations[identifier] = rel
}

func countContaining(stmts []string, sub string) int {
	n := 0
	for _, s := range stmts {
		if strings.Contains(s, sub) {
			n++
		}
	}
	return n
}

func writeProject(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

var shopFiles = map[string]string{
	"models/staging/stg_orders.sql": "/*---\nconfig:\n  materialized: ephemeral\n---*/\nselect id, amount from {{ source('raw', 'orders') }}",
	"models/customers.sql":          "/*---\nconfig:\n  post_hook: \"grant select on {{ this }} to reporter\"\n---*/\nselect 1 as id",
	"models/marts/orders.sql":       "/*---\nconfig:\n  materialized: table\n---*/\nselect o.id from {{ ref('stg_orders') }} o join {{ ref('customers') }} c on o.id = c.id",
}

func newTestEngine(t *testing.T, files map[string]string) (*Engine, *fakeAdapter, string) {
	t.Helper()
	dir := t.TempDir()
	writeProject(t, dir, files)

	logger := testutil.NewTestLogger(t)
	store, err := state.OpenStore(context.Background(), filepath.Join(dir, "state.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fake := newFakeAdapter(t)
	e, err := New(context.Background(), Options{
		Config: &config.Config{
			ProjectName: "shop",
			TargetName:  "dev",
			ModelsPath:  filepath.Join(dir, "models"),
			SeedsPath:   filepath.Join(dir, "seeds"),
			MacrosPath:  filepath.Join(dir, "macros"),
			Threads:     2,
			Target: map[string]any{
				"type":     "postgres",
				"database": "warehouse",
				"schema":   "analytics",
			},
		},
		Adapter: fake,
		Store:   store,
		Logger:  logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, fake, dir
}

func TestCompile(t *testing.T) {
	e, _, _ := newTestEngine(t, shopFiles)

	got, err := e.Compile(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t,
		"with __dbt__cte__stg_orders as (\n"+
			`select id, amount from "warehouse"."raw"."orders"`+"\n)\n"+
			`select o.id from __dbt__cte__stg_orders o join "warehouse"."analytics"."customers" c on o.id = c.id`,
		got)

	byID, err := e.Compile(context.Background(), "model.shop.customers")
	require.NoError(t, err)
	assert.Equal(t, "select 1 as id", byID)

	_, err = e.Compile(context.Background(), "nowhere")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindInvalidOperation))
}

func TestInjectCTEs(t *testing.T) {
	ctes := []cte{{name: "__dbt__cte__a", sql: "select 1\n"}}
	assert.Equal(t, "with __dbt__cte__a as (\nselect 1\n)\nselect * from x", injectCTEs("  select * from x", ctes))
	assert.Equal(t, "with __dbt__cte__a as (\nselect 1\n),\nb as (select 2) select * from b",
		injectCTEs("WITH b as (select 2) select * from b", ctes))
}

func TestCompile_DynamicRef(t *testing.T) {
	e, _, _ := newTestEngine(t, map[string]string{
		"models/a.sql": "select 1",
		"models/b.sql": "{* for m in ['a']: *}select * from {{ ref(m) }}{* endfor *}",
	})

	_, err := e.Compile(context.Background(), "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ref() arguments must be string literals")
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	e, fake, _ := newTestEngine(t, shopFiles)

	res, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 3)
	assert.Equal(t, state.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 3, res.Counts()[state.NodeRunStatusSuccess])

	order := make([]string, len(res.Nodes))
	for i, n := range res.Nodes {
		order[i] = n.UniqueID
	}
	assert.Equal(t, []string{"model.shop.customers", "model.shop.stg_orders", "model.shop.orders"}, order)
	assert.Equal(t, "SELECT 3", res.Nodes[2].Message)
	assert.Equal(t, int64(3), res.Nodes[2].RowsAffected)
	assert.Equal(t, "EPHEMERAL", res.Nodes[1].Message)

	stmts := fake.statements()
	assert.Equal(t, 1, countContaining(stmts, "create schema if not exists"))
	assert.Contains(t, stmts, "create view \"warehouse\".\"analytics\".\"customers\" as (\nselect 1 as id\n)")
	assert.Contains(t, stmts, `grant select on "warehouse"."analytics"."customers" to reporter`)
	assert.Equal(t, 1, countContaining(stmts, `create table "warehouse"."analytics"."orders" as`))
	assert.Zero(t, countContaining(stmts, "stg_orders\""), "ephemeral models are not built")
	assert.LessOrEqual(t, fake.opened, 2)

	runs, err := e.Store().ListNodeRuns(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	plan, err := e.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[Change]int{ChangeUnchanged: 3}, plan.Counts())

	again, err := e.Run(ctx, RunOptions{Changed: true})
	require.NoError(t, err)
	assert.Empty(t, again.Nodes)
}

func TestRun_FailureSkipsDownstream(t *testing.T) {
	ctx := context.Background()
	e, fake, _ := newTestEngine(t, shopFiles)
	fake.failOn["create view"] = errors.New("permission denied")

	res, err := e.Run(ctx, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.shop.customers")
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, state.RunStatusFailed, res.Run.Status)

	byID := make(map[string]NodeResult)
	for _, n := range res.Nodes {
		byID[n.UniqueID] = n
	}
	assert.Equal(t, state.NodeRunStatusFailed, byID["model.shop.customers"].Status)
	assert.Equal(t, state.NodeRunStatusSuccess, byID["model.shop.stg_orders"].Status)
	assert.Equal(t, state.NodeRunStatusSkipped, byID["model.shop.orders"].Status)
	assert.Contains(t, byID["model.shop.orders"].Message, "model.shop.customers")

	plan, err := e.Plan(ctx)
	require.NoError(t, err)
	entry, ok := plan.Entry("model.shop.orders")
	require.True(t, ok)
	assert.Equal(t, ChangeNew, entry.Change)
}

func TestRun_FailureMasksEnvVars(t *testing.T) {
	t.Setenv("WAREHOUSE_TOKEN", "s3cr3t-value")
	e, fake, _ := newTestEngine(t, map[string]string{
		"models/tokens.sql": "select '{{ env_var('WAREHOUSE_TOKEN') }}' as token",
	})
	fake.failOn["s3cr3t-value"] = errors.New("syntax error near 's3cr3t-value'")

	res, err := e.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, state.NodeRunStatusFailed, res.Nodes[0].Status)
	assert.NotContains(t, res.Nodes[0].Message, "s3cr3t-value")
	assert.Contains(t, res.Nodes[0].Message, "*****")
}

func TestRun_Select(t *testing.T) {
	e, fake, _ := newTestEngine(t, shopFiles)

	res, err := e.Run(context.Background(), RunOptions{Select: []string{"customers"}})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, "model.shop.customers", res.Nodes[0].UniqueID)
	assert.Zero(t, countContaining(fake.statements(), "orders"))

	_, err = e.Run(context.Background(), RunOptions{Select: []string{"missing"}})
	require.Error(t, err)
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	e, _, dir := newTestEngine(t, shopFiles)

	plan, err := e.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[Change]int{ChangeNew: 3}, plan.Counts())

	_, err = e.Run(ctx, RunOptions{})
	require.NoError(t, err)

	writeProject(t, dir, map[string]string{
		"models/customers.sql": "/*---\nconfig:\n  post_hook: \"grant select on {{ this }} to reporter\"\n---*/\nselect 2 as id",
		"models/marts/orders.sql": "/*---\nconfig:\n  materialized: view\n---*/\n" +
			"select o.id from {{ ref('stg_orders') }} o join {{ ref('customers') }} c on o.id = c.id",
	})
	require.NoError(t, os.Remove(filepath.Join(dir, "models/staging/stg_orders.sql")))
	writeProject(t, dir, map[string]string{
		"models/stg_orders.sql": "/*---\nconfig:\n  materialized: ephemeral\n---*/\nselect id, amount from {{ source('raw', 'orders') }}",
		"models/extra.sql":      "select 1",
	})
	require.NoError(t, e.Load())

	plan, err = e.Plan(ctx)
	require.NoError(t, err)
	changes := make(map[string]Change)
	for _, entry := range plan.Entries {
		changes[entry.UniqueID] = entry.Change
	}
	assert.Equal(t, ChangeContentChanged, changes["model.shop.customers"])
	assert.Equal(t, ChangeConfigChanged, changes["model.shop.orders"])
	assert.Equal(t, ChangeUnchanged, changes["model.shop.stg_orders"])
	assert.Equal(t, ChangeNew, changes["model.shop.extra"])
	assert.ElementsMatch(t, []string{"model.shop.customers", "model.shop.extra", "model.shop.orders"}, plan.Changed())
}

func TestPlan_Removed(t *testing.T) {
	ctx := context.Background()
	e, _, dir := newTestEngine(t, shopFiles)
	_, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "models/marts/orders.sql")))
	require.NoError(t, e.Load())

	plan, err := e.Plan(ctx)
	require.NoError(t, err)
	last := plan.Entries[len(plan.Entries)-1]
	assert.Equal(t, "model.shop.orders", last.UniqueID)
	assert.Equal(t, "orders", last.Name)
	assert.Equal(t, ChangeRemoved, last.Change)
	assert.Equal(t, "table", last.Materialized)
}

const eventsModel = "/*---\nconfig:\n  materialized: incremental\n  unique_key: id\n%s---*/\n" +
	"select * from {{ source('raw', 'events') }}{* if is_incremental(): *} where ts > 0{* endif *}"

func eventsFiles(extra string) map[string]string {
	return map[string]string{"models/events.sql": strings.Replace(eventsModel, "%s", extra, 1)}
}

func TestRun_Incremental(t *testing.T) {
	ctx := context.Background()
	target := `"warehouse"."analytics"."events"`
	tmp := `"warehouse"."analytics"."events__dbt_tmp"`

	t.Run("first build creates the table", func(t *testing.T) {
		e, fake, _ := newTestEngine(t, eventsFiles(""))
		_, err := e.Run(ctx, RunOptions{})
		require.NoError(t, err)
		assert.Contains(t, fake.statements(), "create table "+target+" as (\nselect * from \"warehouse\".\"raw\".\"events\"\n)")
	})

	t.Run("existing table merges new rows", func(t *testing.T) {
		e, fake, _ := newTestEngine(t, eventsFiles(""))
		fake.addRelation(t, "events", relation.TypeTable)
		fake.columns["events__dbt_tmp"] = []adapter.Column{{Name: "id", DType: "integer"}, {Name: "ts", DType: "integer"}, {Name: "extra", DType: "text"}}
		fake.columns["events"] = []adapter.Column{{Name: "id", DType: "integer"}, {Name: "ts", DType: "integer"}}

		res, err := e.Run(ctx, RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, "delete+insert 2", res.Nodes[0].Message)
		assert.Equal(t, []string{
			`create schema if not exists "analytics"`,
			"create table " + tmp + " as (\nselect * from \"warehouse\".\"raw\".\"events\" where ts > 0\n)",
			"delete from " + target + "\nwhere (\"id\") in (select \"id\" from " + tmp + ")",
			"insert into " + target + " (\"id\", \"ts\")\nselect \"id\", \"ts\" from " + tmp,
			"drop table if exists " + tmp + " cascade",
		}, fake.statements())
	})

	t.Run("full refresh rebuilds", func(t *testing.T) {
		e, fake, _ := newTestEngine(t, eventsFiles(""))
		fake.addRelation(t, "events", relation.TypeTable)

		_, err := e.Run(ctx, RunOptions{FullRefresh: true})
		require.NoError(t, err)
		stmts := fake.statements()
		assert.Contains(t, stmts, "drop table if exists "+target+" cascade")
		assert.Contains(t, stmts, "create table "+target+" as (\nselect * from \"warehouse\".\"raw\".\"events\"\n)")
		assert.Zero(t, countContaining(stmts, "__dbt_tmp"))
	})

	t.Run("new columns are added", func(t *testing.T) {
		e, fake, _ := newTestEngine(t, eventsFiles("  on_schema_change: append_new_columns\n"))
		fake.addRelation(t, "events", relation.TypeTable)
		fake.columns["events__dbt_tmp"] = []adapter.Column{{Name: "id", DType: "integer"}, {Name: "extra", DType: "text"}}
		fake.columns["events"] = []adapter.Column{{Name: "id", DType: "integer"}}

		_, err := e.Run(ctx, RunOptions{})
		require.NoError(t, err)
		stmts := fake.statements()
		assert.Contains(t, stmts, "alter table "+target+` add column "extra" text`)
		assert.Contains(t, stmts, "insert into "+target+" (\"id\", \"extra\")\nselect \"id\", \"extra\" from "+tmp)
	})

	t.Run("schema change fails", func(t *testing.T) {
		e, fake, _ := newTestEngine(t, eventsFiles("  on_schema_change: fail\n"))
		fake.addRelation(t, "events", relation.TypeTable)
		fake.columns["events__dbt_tmp"] = []adapter.Column{{Name: "id", DType: "integer"}, {Name: "extra", DType: "text"}}
		fake.columns["events"] = []adapter.Column{{Name: "id", DType: "integer"}}

		_, err := e.Run(ctx, RunOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of sync")
		assert.Contains(t, fake.statements(), "drop table if exists "+tmp+" cascade")
	})

	t.Run("unsupported strategy", func(t *testing.T) {
		e, fake, _ := newTestEngine(t, eventsFiles("  incremental_strategy: insert_overwrite\n"))
		fake.addRelation(t, "events", relation.TypeTable)

		_, err := e.Run(ctx, RunOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `incremental strategy "insert_overwrite" is not supported by postgres`)
	})
}

func TestRun_Seed(t *testing.T) {
	e, fake, _ := newTestEngine(t, map[string]string{
		"seeds/countries.csv": "code,name\nNL,Netherlands\nBE,\nCI,Côte d'Ivoire\n",
		"models/regions.sql":  "select * from {{ ref('countries') }}",
	})

	res, err := e.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
	assert.Equal(t, "seed.shop.countries", res.Nodes[0].UniqueID)
	assert.Equal(t, "INSERT 3", res.Nodes[0].Message)

	rel := `"warehouse"."analytics"."countries"`
	stmts := fake.statements()
	assert.Contains(t, stmts, "create table "+rel+` ("code" text, "name" text)`)
	assert.Contains(t, stmts, "insert into "+rel+` ("code", "name") values`+"\n"+
		"('NL', 'Netherlands'),\n('BE', null),\n('CI', 'Côte d''Ivoire')")
	assert.Contains(t, stmts, "create view \"warehouse\".\"analytics\".\"regions\" as (\nselect * from "+rel+"\n)")
}

func TestReadSeed_Delimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffa;b\n1;true\n2;false\n"), 0o600))

	semi := ";"
	table, err := readSeed(path, &semi)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Columns)
	assert.Equal(t, []adapter.DataKind{adapter.KindInteger, adapter.KindBoolean}, table.Kinds)
	assert.Equal(t, 2, table.Len())

	bad := ";;"
	_, err = readSeed(path, &bad)
	require.Error(t, err)
}
