package nodes

import (
	"reflect"
	"slices"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// Fixture is one given input or the expected output of a unit test.
type Fixture struct {
	Input   string `yaml:"input,omitempty"`
	Rows    any    `yaml:"rows,omitempty"`
	Format  string `yaml:"format,omitempty"`
	Fixture string `yaml:"fixture,omitempty"`
}

// VersionSelector picks the model versions a unit test runs against.
type VersionSelector struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Overrides replaces macros, vars and env vars during a unit test.
type Overrides struct {
	Macros  map[string]any `yaml:"macros,omitempty"`
	Vars    map[string]any `yaml:"vars,omitempty"`
	EnvVars map[string]any `yaml:"env_vars,omitempty"`
}

// UnitTest checks a model's logic against fixed inputs.
type UnitTest struct {
	CommonAttributes `yaml:",inline"`
	BaseAttributes   `yaml:",inline"`

	Config    config.UnitTestConfig `yaml:"config"`
	Model     string                `yaml:"model"`
	Given     []Fixture             `yaml:"given,omitempty"`
	Expect    Fixture               `yaml:"expect"`
	Versions  *VersionSelector      `yaml:"versions,omitempty"`
	Version   string                `yaml:"version,omitempty"`
	Overrides *Overrides            `yaml:"overrides,omitempty"`
}

func (*UnitTest) node() {}

// Common returns the shared attributes.
func (u *UnitTest) Common() *CommonAttributes { return &u.CommonAttributes }

// Base returns the code-carrying attributes.
func (u *UnitTest) Base() *BaseAttributes { return &u.BaseAttributes }

// ResourceType returns unit_test.
func (*UnitTest) ResourceType() ResourceType { return ResourceUnitTest }

// Materialization returns unit.
func (*UnitTest) Materialization() string { return core.MaterializationUnit }

// Enabled reports the enabled flag.
func (u *UnitTest) Enabled() bool { return config.IsEnabled(u.Config.Enabled) }

// HasSameConfig compares the full config.
func (u *UnitTest) HasSameConfig(other Node) bool {
	o, ok := other.(*UnitTest)
	return ok && reflect.DeepEqual(u.Config, o.Config)
}

// HasSameContent compares fully qualified names.
func (u *UnitTest) HasSameContent(other Node) bool {
	o, ok := other.(*UnitTest)
	return ok && slices.Equal(u.FQN, o.FQN)
}

// Introspection always returns IntrospectionNone.
func (*UnitTest) Introspection() core.IntrospectionKind { return core.IntrospectionNone }

// SetIntrospection is not supported for unit tests.
func (u *UnitTest) SetIntrospection(core.IntrospectionKind) error {
	return introspectionUnsupported(u)
}

// WarnOnMicrobatch never fails for unit tests.
func (*UnitTest) WarnOnMicrobatch() error { return nil }
