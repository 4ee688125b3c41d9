package adapter_test

import (
	"testing"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/bigquery"
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/databricks"
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/redshift"
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/snowflake"
)

func TestDuckDBSelfRegistration(t *testing.T) {
	// DuckDB should be auto-registered via init()
	assert.True(t, adapter.IsRegistered("duckdb"), "duckdb adapter should be auto-registered")
}

func TestListAdapters(t *testing.T) {
	adapters := adapter.ListAdapters()

	for _, name := range []string{"bigquery", "databricks", "duckdb", "postgres", "redshift", "snowflake"} {
		assert.Contains(t, adapters, name, "%s should be in adapter list", name)
	}
}

func TestIsRegistered(t *testing.T) {
	tests := []struct {
		name        string
		adapterName string
		expected    bool
	}{
		{"duckdb registered", "duckdb", true},
		{"postgres registered", "postgres", true},
		{"snowflake registered", "snowflake", true},
		{"unknown not registered", "unknown_db", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.IsRegistered(tt.adapterName)
			assert.Equal(t, tt.expected, got, "IsRegistered(%q)", tt.adapterName)
		})
	}
}

func TestGet(t *testing.T) {
	// Get existing adapter
	factory, ok := adapter.Get("duckdb")
	require.True(t, ok, "Get(duckdb) should return true")
	require.NotNil(t, factory, "Get(duckdb) should return non-nil factory")

	// Get non-existing adapter
	_, ok = adapter.Get("nonexistent")
	assert.False(t, ok, "Get(nonexistent) should return false")
}

func TestNewAdapter_Success(t *testing.T) {
	cfg := adapter.Config{
		Type: "duckdb",
		Path: ":memory:",
	}

	adp, err := adapter.NewAdapter(cfg, nil)
	require.NoError(t, err, "NewAdapter(duckdb) failed")
	require.NotNil(t, adp, "NewAdapter(duckdb) returned nil adapter")
	assert.Equal(t, "duckdb", adp.AdapterType())
}

func TestNewAdapter_DefaultsDispatchToBackend(t *testing.T) {
	tests := []struct {
		adapterType string
		op          func(adapter.TypedAdapter) error
		supported   bool
	}{
		{"postgres", func(a adapter.TypedAdapter) error { _, err := a.RelationMaxNameLength(); return err }, true},
		{"snowflake", func(a adapter.TypedAdapter) error { _, err := a.RelationMaxNameLength(); return err }, false},
		{"bigquery", func(a adapter.TypedAdapter) error { _, err := a.GetViewOptions(&config.ModelConfig{}); return err }, true},
		{"duckdb", func(a adapter.TypedAdapter) error { _, err := a.GetViewOptions(&config.ModelConfig{}); return err }, false},
		{"databricks", func(a adapter.TypedAdapter) error { _, err := a.ValidIncrementalStrategiesAsValues(); return err }, true},
		{"redshift", func(a adapter.TypedAdapter) error { _, err := a.ValidIncrementalStrategiesAsValues(); return err }, false},
	}

	for _, tt := range tests {
		t.Run(tt.adapterType, func(t *testing.T) {
			adp, err := adapter.NewAdapter(adapter.Config{Type: tt.adapterType}, nil)
			require.NoError(t, err)

			err = tt.op(adp)
			if tt.supported {
				assert.NoError(t, err)
			} else {
				assert.True(t, core.IsNotImplemented(err), "want not implemented, got %v", err)
			}
		})
	}
}

func TestNewAdapter_UnknownType(t *testing.T) {
	cfg := adapter.Config{
		Type: "unknown_adapter",
	}

	_, err := adapter.NewAdapter(cfg, nil)
	require.Error(t, err, "NewAdapter(unknown_adapter) should fail")

	// Check error type
	var unknownErr *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknownErr)

	assert.Equal(t, "unknown_adapter", unknownErr.Type, "error type")

	// Available should include duckdb
	assert.Contains(t, unknownErr.Available, "duckdb", "Available adapters should include duckdb")
}
