package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapforge/internal/testutil"
	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name: "sslmode as a profile key",
			config: adapter.Config{
				Database: "db",
				Params:   map[string]any{"sslmode": "verify-full", "connect_timeout": 10},
			},
			expected: "host=localhost port=5432 dbname=db sslmode=verify-full connect_timeout=10",
		},
		{
			name: "defaults",
			config: adapter.Config{
				Database: "mydb",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
		{
			name: "custom port and schema",
			config: adapter.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "analytics",
				Schema:   "marts",
				Username: "analyst",
			},
			expected: "host=db.example.com port=5433 dbname=analytics sslmode=disable user=analyst search_path=marts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config, 5432))
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"name", "name"},
		{"my column", "my_column"},
		{"first-name", "first_name"},
		{" padded ", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeIdentifier(tt.input))
		})
	}
}

func TestNew(t *testing.T) {
	adp := New(adapter.Config{Database: "warehouse"}, testutil.NewTestLogger(t))
	assert.Equal(t, "postgres", adp.AdapterType())
	assert.Equal(t, "pgx", adp.Driver)
	assert.False(t, adp.IsConnected(), "constructing an adapter does not connect")
	assert.Equal(t, []string{"append", "delete+insert", "merge", "microbatch"}, adp.ValidIncrementalStrategies())

	n, err := adp.RelationMaxNameLength()
	require.NoError(t, err)
	assert.Equal(t, 63, n)
}

func TestVerifyDatabase(t *testing.T) {
	adp := New(adapter.Config{Database: "warehouse"}, nil)

	assert.NoError(t, adp.VerifyDatabase("warehouse"))
	assert.NoError(t, adp.VerifyDatabase(`"warehouse"`))

	err := adp.VerifyDatabase("other")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConfiguration))
	assert.Contains(t, err.Error(), "Cross-db references not allowed in adapter postgres: Got other, expected warehouse")
}

func TestSplitKeepsDollarQuotedBodies(t *testing.T) {
	adp := New(adapter.Config{}, nil)
	got := adp.SplitStatements("create function f() returns int as $$ select 1; $$ language sql; select f()")
	assert.Equal(t, []string{"create function f() returns int as $$ select 1; $$ language sql", "select f()"}, got)
}

func TestRenameRelation(t *testing.T) {
	adp := New(adapter.Config{}, testutil.NewTestLogger(t))
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	from := relation.MustNew(relation.Postgres, "db", "analytics", "orders__dbt_tmp", relation.TypeView, core.AllTrue())
	to := relation.MustNew(relation.Postgres, "db", "analytics", "orders", relation.TypeView, core.AllTrue())

	mock.ExpectExec(`alter view "db"\."analytics"\."orders__dbt_tmp" rename to "orders"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adp.RenameRelation(context.Background(), db, from, to))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSeedNeedsSession(t *testing.T) {
	adp := New(adapter.Config{}, nil)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rel := relation.MustNew(relation.Postgres, "db", "raw", "countries", relation.TypeTable, core.AllTrue())
	err = adp.LoadSeed(context.Background(), db, rel, "countries.csv")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindUnsupportedFeature))
}

func TestConstraintDefaults(t *testing.T) {
	adp := New(adapter.Config{}, nil)
	got := adp.RenderRawColumnsConstraints(map[string]core.ColumnDef{
		"id": {Name: "id", DataType: "integer", Constraints: []core.Constraint{
			{Type: core.ConstraintNotNull},
			{Type: core.ConstraintCheck, Expression: "id > 0"},
		}},
	})
	assert.Equal(t, []string{"id integer not null"}, got)
}
