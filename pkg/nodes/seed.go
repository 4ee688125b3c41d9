package nodes

import (
	"reflect"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// Seed is a CSV file loaded into the warehouse.
type Seed struct {
	CommonAttributes `yaml:",inline"`
	BaseAttributes   `yaml:",inline"`

	Config   config.SeedConfig `yaml:"config"`
	RootPath string            `yaml:"root_path,omitempty"`
}

func (*Seed) node() {}

// Common returns the shared attributes.
func (s *Seed) Common() *CommonAttributes { return &s.CommonAttributes }

// Base returns the code-carrying attributes.
func (s *Seed) Base() *BaseAttributes { return &s.BaseAttributes }

// ResourceType returns seed.
func (*Seed) ResourceType() ResourceType { return ResourceSeed }

// Materialization returns seed unless overridden.
func (s *Seed) Materialization() string {
	if s.Config.Materialized != nil {
		return *s.Config.Materialized
	}
	return core.MaterializationSeed
}

// Enabled reports the enabled flag.
func (s *Seed) Enabled() bool { return config.IsEnabled(s.Config.Enabled) }

// HasSameConfig compares the full resolved config.
func (s *Seed) HasSameConfig(other Node) bool {
	o, ok := other.(*Seed)
	return ok && reflect.DeepEqual(s.Config, o.Config)
}

// HasSameContent compares checksums.
func (s *Seed) HasSameContent(other Node) bool {
	o, ok := other.(*Seed)
	return ok && s.Checksum == o.Checksum
}

// Introspection always returns IntrospectionNone.
func (*Seed) Introspection() core.IntrospectionKind { return core.IntrospectionNone }

// SetIntrospection is not supported for seeds.
func (s *Seed) SetIntrospection(core.IntrospectionKind) error { return introspectionUnsupported(s) }

// WarnOnMicrobatch never fails for seeds.
func (*Seed) WarnOnMicrobatch() error { return nil }
