package nodes

import (
	"reflect"
	"slices"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// TestMetadata describes a generic test invocation.
type TestMetadata struct {
	Name      string         `yaml:"name"`
	Kwargs    map[string]any `yaml:"kwargs,omitempty"`
	Namespace string         `yaml:"namespace,omitempty"`
}

// Test is a data test: a query returning failing rows.
type Test struct {
	CommonAttributes `yaml:",inline"`
	BaseAttributes   `yaml:",inline"`

	Config       config.DataTestConfig `yaml:"config"`
	ColumnName   string                `yaml:"column_name,omitempty"`
	AttachedNode string                `yaml:"attached_node,omitempty"`
	TestMetadata *TestMetadata         `yaml:"test_metadata,omitempty"`
	FileKeyName  string                `yaml:"file_key_name,omitempty"`
}

func (*Test) node() {}

// Common returns the shared attributes.
func (t *Test) Common() *CommonAttributes { return &t.CommonAttributes }

// Base returns the code-carrying attributes.
func (t *Test) Base() *BaseAttributes { return &t.BaseAttributes }

// ResourceType returns test.
func (*Test) ResourceType() ResourceType { return ResourceTest }

// Materialization returns test unless overridden.
func (t *Test) Materialization() string {
	if t.Config.Materialized != nil {
		return *t.Config.Materialized
	}
	return core.MaterializationTest
}

// Enabled reports the enabled flag.
func (t *Test) Enabled() bool { return config.IsEnabled(t.Config.Enabled) }

// HasSameConfig compares only the settings that affect how a test is built.
// Severity, thresholds, where and limit changes are not config changes.
func (t *Test) HasSameConfig(other Node) bool {
	o, ok := other.(*Test)
	if !ok {
		return false
	}
	a, b := &t.Config, &o.Config
	return eq(a.Enabled, b.Enabled) &&
		eq(a.Alias, b.Alias) &&
		eq(a.Database, b.Database) &&
		slices.Equal(a.Tags, b.Tags) &&
		reflect.DeepEqual(a.Meta, b.Meta) &&
		eq(a.Group, b.Group) &&
		eq(a.Materialized, b.Materialized) &&
		eq(a.IncrementalStrategy, b.IncrementalStrategy) &&
		reflect.DeepEqual(a.PersistDocs, b.PersistDocs) &&
		slices.Equal(a.PostHook, b.PostHook) &&
		slices.Equal(a.PreHook, b.PreHook) &&
		reflect.DeepEqual(a.Quoting, b.Quoting) &&
		reflect.DeepEqual(a.ColumnTypes, b.ColumnTypes) &&
		eq(a.FullRefresh, b.FullRefresh) &&
		slices.Equal(a.UniqueKey, b.UniqueKey) &&
		eq(a.OnSchemaChange, b.OnSchemaChange) &&
		eq(a.OnConfigurationChange, b.OnConfigurationChange) &&
		reflect.DeepEqual(a.Grants, b.Grants) &&
		slices.Equal(a.Packages, b.Packages) &&
		reflect.DeepEqual(a.Docs, b.Docs) &&
		eq(a.Access, b.Access)
}

// HasSameContent compares fully qualified names.
func (t *Test) HasSameContent(other Node) bool {
	o, ok := other.(*Test)
	return ok && slices.Equal(t.FQN, o.FQN)
}

// Introspection always returns IntrospectionNone.
func (*Test) Introspection() core.IntrospectionKind { return core.IntrospectionNone }

// SetIntrospection is not supported for tests.
func (t *Test) SetIntrospection(core.IntrospectionKind) error { return introspectionUnsupported(t) }

// WarnOnMicrobatch fails when the test selects the microbatch strategy.
func (t *Test) WarnOnMicrobatch() error {
	if config.IsMicrobatch(t.Config.IncrementalStrategy) {
		return microbatchError(t)
	}
	return nil
}

func eq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
