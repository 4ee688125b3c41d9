package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

func TestBuilder_OrderAndOverwrite(t *testing.T) {
	b := NewBuilder().
		WithNamedOption("account", "A").
		WithBoolOption("keep_session_alive", true).
		WithNamedOption("role", "r").
		WithNamedOption("account", "B")

	opts := b.Options()
	require.Len(t, opts, 3)
	assert.Equal(t, "account", opts[0].Name)
	assert.Equal(t, "B", opts[0].String())
	assert.Equal(t, "true", opts[1].String())

	v, ok := b.Get("role")
	assert.True(t, ok)
	assert.Equal(t, "r", v)
	_, ok = b.Get("missing")
	assert.False(t, ok)
}

func TestBuilder_Map(t *testing.T) {
	b := NewBuilder().WithUsername("U").WithPassword("P").WithNamedOption("account", "A")
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, map[string]string{"user": "U", "password": "P", "account": "A"}, b.Map())

	empty := NewBuilder()
	_, ok := empty.Username()
	assert.False(t, ok)
	assert.Equal(t, 0, empty.Len())
}

func TestAdapterConfig_GetString(t *testing.T) {
	cfg := NewAdapterConfig(map[string]any{
		"null":     nil,
		"bool":     true,
		"int":      42,
		"float":    42.5,
		"string":   "test",
		"sequence": []any{"abra", "cadabra"},
		"mapping":  map[string]any{"key1": "value1", "key2": "value2"},
	})

	tests := []struct {
		field string
		want  string
	}{
		{"null", "null"},
		{"bool", "true"},
		{"int", "42"},
		{"float", "42.5"},
		{"string", "test"},
		{"sequence", "- abra\n- cadabra"},
		{"mapping", "key1: value1\nkey2: value2"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, ok := cfg.GetString(tt.field)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := cfg.GetString("absent")
	assert.False(t, ok)
	assert.Nil(t, cfg.MaybeGetStr("null"))
	assert.Nil(t, cfg.MaybeGetStr("absent"))
	require.NotNil(t, cfg.MaybeGetStr("bool"))
	assert.Equal(t, "true", *cfg.MaybeGetStr("bool"))
}

func TestAdapterConfig_Require(t *testing.T) {
	cfg := NewAdapterConfig(nil)
	_, err := cfg.RequireString("account")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConfiguration))
	assert.Contains(t, err.Error(), "missing field `account`")
}

func TestParseAdapterConfig(t *testing.T) {
	cfg, err := ParseAdapterConfig([]byte(`
type: snowflake

account: 'test_account'

role: INTEGRATION_TEST
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"account", "role", "type"}, cfg.Keys())
	account, _ := cfg.GetString("account")
	assert.Equal(t, "test_account", account)
	assert.True(t, cfg.Contains("role"))

	_, err = ParseAdapterConfig([]byte("- not\n- a map"))
	assert.True(t, core.IsKind(err, core.KindConfiguration))
}

type stubAuth struct{ name string }

func (s stubAuth) Backend() string { return s.name }
func (s stubAuth) Configure(*AdapterConfig) (*Builder, error) {
	return NewBuilder(), nil
}

func TestRegistry(t *testing.T) {
	Register(stubAuth{name: "stub_backend"})
	a, err := Lookup("stub_backend")
	require.NoError(t, err)
	assert.Equal(t, "stub_backend", a.Backend())
	assert.Contains(t, Backends(), "stub_backend")

	_, err = Lookup("nope")
	assert.True(t, core.IsKind(err, core.KindUnsupportedFeature))
}
