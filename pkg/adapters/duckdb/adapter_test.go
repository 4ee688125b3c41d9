package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapforge/internal/testutil"
	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

func newTestAdapter(t *testing.T, cfg adapter.Config) (*Adapter, adapter.Connection) {
	t.Helper()
	adp, err := New(cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)

	conn, err := adp.NewConnection(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = adp.Close()
	})
	return adp, conn
}

func exec(t *testing.T, adp *Adapter, conn adapter.Connection, sql string) {
	t.Helper()
	_, _, err := adp.Execute(context.Background(), conn, adapter.Query(sql), adapter.ExecOptions{})
	require.NoError(t, err)
}

func fetch(t *testing.T, adp *Adapter, conn adapter.Connection, sql string) *adapter.Table {
	t.Helper()
	_, table, err := adp.Execute(context.Background(), conn, adapter.Query(sql), adapter.ExecOptions{Fetch: true})
	require.NoError(t, err)
	return table
}

func memoryRelation(t *testing.T, id string) *relation.Relation {
	t.Helper()
	return relation.MustNew(relation.DuckDB, "memory", "main", id, relation.TypeTable, core.AllTrue())
}

func TestAdapter_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name: "in-memory",
			setupPath: func(_ *testing.T) string {
				return ":memory:"
			},
		},
		{
			name: "default path is in-memory",
			setupPath: func(_ *testing.T) string {
				return ""
			},
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "test.duckdb")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := tt.setupPath(t)
			adp, _ := newTestAdapter(t, adapter.Config{Path: dbPath})
			assert.True(t, adp.IsConnected())

			if tt.verify != nil {
				tt.verify(t, dbPath)
			}
		})
	}
}

func TestAdapter_NotConnectedUntilUsed(t *testing.T) {
	adp, err := New(adapter.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, adp.IsConnected())
	assert.NoError(t, adp.Close(), "closing an unopened adapter is a no-op")
}

func TestNew_InvalidParams(t *testing.T) {
	_, err := New(adapter.Config{Params: map[string]any{"settings": "nope"}}, nil)
	assert.Error(t, err)
}

func TestAdapter_Execute(t *testing.T) {
	adp, conn := newTestAdapter(t, adapter.Config{})

	resp, table, err := adp.Execute(context.Background(), conn, adapter.Query(`
		CREATE TABLE orders (order_id INTEGER, customer_id INTEGER, amount DOUBLE);
		INSERT INTO orders VALUES (1, 1, 100.0), (2, 1, 150.0), (3, 2, 200.0);
		SELECT customer_id, SUM(amount) AS total FROM orders GROUP BY customer_id ORDER BY customer_id;
	`), adapter.ExecOptions{Fetch: true})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", resp.Message)
	assert.Equal(t, []string{"customer_id", "total"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.InEpsilon(t, 250.0, table.Rows[0][1], 0.001)
}

func TestAdapter_IntrospectRelations(t *testing.T) {
	ctx := context.Background()
	adp, conn := newTestAdapter(t, adapter.Config{})
	exec(t, adp, conn, `CREATE TABLE products (product_id INTEGER NOT NULL, name VARCHAR, price DOUBLE, in_stock BOOLEAN)`)
	exec(t, adp, conn, `CREATE VIEW cheap_products AS SELECT * FROM products WHERE price < 10`)

	rel, err := adp.GetRelation(ctx, conn, "memory", "main", "products")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, relation.TypeTable, rel.Type)

	view, err := adp.GetRelation(ctx, conn, "memory", "main", "cheap_products")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, relation.TypeView, view.Type)

	missing, err := adp.GetRelation(ctx, conn, "memory", "main", "nonexistent_table")
	require.NoError(t, err)
	assert.Nil(t, missing)

	cols, err := adp.GetColumnsInRelation(ctx, conn, memoryRelation(t, "products"))
	require.NoError(t, err)
	got := make(map[string]string, len(cols))
	for _, c := range cols {
		got[c.Name] = c.DType
	}
	assert.Equal(t, map[string]string{
		"product_id": "INTEGER",
		"name":       "VARCHAR",
		"price":      "DOUBLE",
		"in_stock":   "BOOLEAN",
	}, got)
	assert.False(t, cols[0].Nullable)

	schemas, err := adp.ListSchemas(ctx, conn, "memory")
	require.NoError(t, err)
	assert.Contains(t, schemas, "main")
}

func TestAdapter_GetColumnSchemaFromQuery(t *testing.T) {
	adp, conn := newTestAdapter(t, adapter.Config{})

	cols, err := adp.GetColumnSchemaFromQuery(context.Background(), conn,
		adapter.Query("select 1::integer as id, 'x'::varchar as name;"))
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "integer", cols[0].DType)
	assert.Equal(t, "name", cols[1].Name)
}

func TestAdapter_MissingColumnsAndRename(t *testing.T) {
	ctx := context.Background()
	adp, conn := newTestAdapter(t, adapter.Config{})
	exec(t, adp, conn, "CREATE TABLE src (id INTEGER, name VARCHAR, email VARCHAR)")
	exec(t, adp, conn, "CREATE TABLE tgt (id INTEGER)")

	missing, err := adp.GetMissingColumns(ctx, conn, memoryRelation(t, "src"), memoryRelation(t, "tgt"))
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, "email", missing[0].Name)
	assert.Equal(t, "name", missing[1].Name)

	require.NoError(t, adp.RenameRelation(ctx, conn, memoryRelation(t, "tgt"), memoryRelation(t, "tgt_renamed")))
	rel, err := adp.GetRelation(ctx, conn, "memory", "main", "tgt_renamed")
	require.NoError(t, err)
	assert.NotNil(t, rel)
}

func TestAdapter_LoadSeed(t *testing.T) {
	adp, conn := newTestAdapter(t, adapter.Config{})

	csvPath := filepath.Join(t.TempDir(), "test_data.csv")
	csvContent := `id,name,value
1,alice,100.5
2,bob,200.75
3,charlie,300.25`
	require.NoError(t, os.WriteFile(csvPath, []byte(csvContent), 0600))

	require.NoError(t, adp.LoadSeed(context.Background(), conn, memoryRelation(t, "test_data"), csvPath))

	table := fetch(t, adp, conn, `SELECT COUNT(*) AS n FROM "memory"."main"."test_data"`)
	require.Equal(t, 1, table.Len())
	assert.EqualValues(t, 3, table.Rows[0][0])

	cols, err := adp.GetColumnsInRelation(context.Background(), conn, memoryRelation(t, "test_data"))
	require.NoError(t, err)
	assert.Len(t, cols, 3)
}

func TestBuildCreateSecretSQL(t *testing.T) {
	tests := []struct {
		name string
		cfg  SecretConfig
		want string
	}{
		{
			name: "s3 with credential chain",
			cfg: SecretConfig{
				Type:     "s3",
				Provider: "credential_chain",
				Region:   "us-west-2",
			},
			want: `CREATE SECRET (
    TYPE s3,
    PROVIDER credential_chain,
    REGION 'us-west-2'
)`,
		},
		{
			name: "s3 type only",
			cfg: SecretConfig{
				Type: "s3",
			},
			want: `CREATE SECRET (
    TYPE s3
)`,
		},
		{
			name: "s3 with single scope string",
			cfg: SecretConfig{
				Type:   "s3",
				Region: "eu-central-1",
				Scope:  "s3://my-bucket",
			},
			want: `CREATE SECRET (
    TYPE s3,
    REGION 'eu-central-1',
    SCOPE 's3://my-bucket'
)`,
		},
		{
			name: "s3 with multiple scopes as []any",
			cfg: SecretConfig{
				Type:   "s3",
				Region: "eu-central-1",
				Scope:  []any{"s3://bucket1", "s3://bucket2"},
			},
			want: `CREATE SECRET (
    TYPE s3,
    REGION 'eu-central-1',
    SCOPE ('s3://bucket1', 's3://bucket2')
)`,
		},
		{
			name: "s3 with multiple scopes as []string",
			cfg: SecretConfig{
				Type:   "s3",
				Region: "eu-central-1",
				Scope:  []string{"s3://bucket1", "s3://bucket2"},
			},
			want: `CREATE SECRET (
    TYPE s3,
    REGION 'eu-central-1',
    SCOPE ('s3://bucket1', 's3://bucket2')
)`,
		},
		{
			name: "quotes in secrets are escaped",
			cfg: SecretConfig{
				Type:     "s3",
				Provider: "config",
				KeyID:    "id",
				Secret:   "it's",
			},
			want: `CREATE SECRET (
    TYPE s3,
    PROVIDER config,
    KEY_ID 'id',
    SECRET 'it''s'
)`,
		},
		{
			name: "s3 compatible with endpoint and path style",
			cfg: SecretConfig{
				Type:     "s3",
				Provider: "config",
				KeyID:    "minioadmin",
				Secret:   "minioadmin",
				Endpoint: "localhost:9000",
				URLStyle: "path",
				UseSSL:   boolPtr(false),
			},
			want: `CREATE SECRET (
    TYPE s3,
    PROVIDER config,
    KEY_ID 'minioadmin',
    SECRET 'minioadmin',
    ENDPOINT 'localhost:9000',
    URL_STYLE 'path',
    USE_SSL false
)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildCreateSecretSQL(tt.cfg))
		})
	}
}

func TestConnect_WithParams(t *testing.T) {
	adp, conn := newTestAdapter(t, adapter.Config{
		Path: ":memory:",
		Params: map[string]any{
			"extensions": []any{"json"},
			"settings": map[string]any{
				"threads": "2",
			},
		},
	})

	loaded := fetch(t, adp, conn, "SELECT extension_name FROM duckdb_extensions() WHERE loaded = true AND extension_name = 'json'")
	require.Equal(t, 1, loaded.Len(), "json extension should be loaded")

	threads := fetch(t, adp, conn, "SELECT current_setting('threads') AS threads")
	require.Equal(t, 1, threads.Len())
	assert.EqualValues(t, 2, threads.Rows[0][0])
}

func TestConnect_WithEmptyParams(t *testing.T) {
	adp, conn := newTestAdapter(t, adapter.Config{Params: map[string]any{}})
	table := fetch(t, adp, conn, "SELECT 1 AS one")
	assert.Equal(t, 1, table.Len())
}
