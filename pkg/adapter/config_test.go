package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromMap(t *testing.T) {
	cfg, err := ConfigFromMap(map[string]any{
		"type":      "postgres",
		"host":      "localhost",
		"port":      "5432",
		"user":      "dbt",
		"password":  "secret",
		"database":  "warehouse",
		"schema":    "analytics",
		"threads":   4,
		"sslmode":   "disable",
		"keepalive": 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Type)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "dbt", cfg.Username)
	assert.Equal(t, 4, cfg.Threads)

	mode, ok := cfg.Param("sslmode")
	assert.True(t, ok)
	assert.Equal(t, "disable", mode)
	keepalive, ok := cfg.Param("keepalive")
	assert.True(t, ok)
	assert.Equal(t, "30", keepalive)
	_, ok = cfg.Param("missing")
	assert.False(t, ok)
}

func TestDecodeParams(t *testing.T) {
	var out struct {
		Retries int  `mapstructure:"retries"`
		Verbose bool `mapstructure:"verbose"`
	}
	require.NoError(t, DecodeParams(map[string]any{"retries": "3", "verbose": "true"}, &out))
	assert.Equal(t, 3, out.Retries)
	assert.True(t, out.Verbose)

	require.NoError(t, DecodeParams(nil, &out))
	assert.Error(t, DecodeParams(map[string]any{"retries": "many"}, &out))
}
