package auth

import (
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// AdapterConfig is the raw backend section of a profile output.
type AdapterConfig struct {
	repr map[string]any
}

// NewAdapterConfig wraps an already decoded mapping. A nil map is empty.
func NewAdapterConfig(m map[string]any) *AdapterConfig {
	if m == nil {
		m = map[string]any{}
	}
	return &AdapterConfig{repr: m}
}

// ParseAdapterConfig decodes a YAML mapping.
func ParseAdapterConfig(data []byte) (*AdapterConfig, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, core.ConfigurationError("invalid adapter config: %v", err)
	}
	return NewAdapterConfig(m), nil
}

// Repr returns the underlying mapping.
func (c *AdapterConfig) Repr() map[string]any { return c.repr }

// Keys returns the configured keys, sorted.
func (c *AdapterConfig) Keys() []string {
	keys := make([]string, 0, len(c.repr))
	for k := range c.repr {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Contains reports whether field is set, even to null.
func (c *AdapterConfig) Contains(field string) bool {
	_, ok := c.repr[field]
	return ok
}

// Get returns the raw value of field.
func (c *AdapterConfig) Get(field string) (any, bool) {
	v, ok := c.repr[field]
	return v, ok
}

// Require is Get that fails when field is missing.
func (c *AdapterConfig) Require(field string) (any, error) {
	v, ok := c.repr[field]
	if !ok {
		return nil, core.ConfigurationError("missing field `%s`", field)
	}
	return v, nil
}

// GetString returns field rendered as a string. Scalars render bare,
// sequences and mappings render as YAML without the trailing newline.
func (c *AdapterConfig) GetString(field string) (string, bool) {
	v, ok := c.repr[field]
	if !ok {
		return "", false
	}
	return valueToString(v), true
}

// RequireString is GetString that fails when field is missing.
func (c *AdapterConfig) RequireString(field string) (string, error) {
	v, err := c.Require(field)
	if err != nil {
		return "", err
	}
	return valueToString(v), nil
}

// MaybeGetStr returns a pointer to the string form of field, or nil when
// it is absent or null.
func (c *AdapterConfig) MaybeGetStr(field string) *string {
	v, ok := c.repr[field]
	if !ok || v == nil {
		return nil
	}
	s := valueToString(v)
	return &s
}

func valueToString(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(string(out), "\n")
}
