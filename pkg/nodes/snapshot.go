package nodes

import (
	"reflect"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// Snapshot records slowly changing history of a query.
type Snapshot struct {
	CommonAttributes `yaml:",inline"`
	BaseAttributes   `yaml:",inline"`

	Config config.SnapshotConfig `yaml:"config"`
}

func (*Snapshot) node() {}

// Common returns the shared attributes.
func (s *Snapshot) Common() *CommonAttributes { return &s.CommonAttributes }

// Base returns the code-carrying attributes.
func (s *Snapshot) Base() *BaseAttributes { return &s.BaseAttributes }

// ResourceType returns snapshot.
func (*Snapshot) ResourceType() ResourceType { return ResourceSnapshot }

// Materialization returns snapshot unless overridden.
func (s *Snapshot) Materialization() string {
	if s.Config.Materialized != nil {
		return *s.Config.Materialized
	}
	return core.MaterializationSnapshot
}

// Enabled reports the enabled flag.
func (s *Snapshot) Enabled() bool { return config.IsEnabled(s.Config.Enabled) }

// HasSameConfig compares the full resolved config.
func (s *Snapshot) HasSameConfig(other Node) bool {
	o, ok := other.(*Snapshot)
	return ok && reflect.DeepEqual(s.Config, o.Config)
}

// HasSameContent compares checksums.
func (s *Snapshot) HasSameContent(other Node) bool {
	o, ok := other.(*Snapshot)
	return ok && s.Checksum == o.Checksum
}

// Introspection always returns IntrospectionNone.
func (*Snapshot) Introspection() core.IntrospectionKind { return core.IntrospectionNone }

// SetIntrospection is not supported for snapshots.
func (s *Snapshot) SetIntrospection(core.IntrospectionKind) error {
	return introspectionUnsupported(s)
}

// WarnOnMicrobatch never fails for snapshots.
func (*Snapshot) WarnOnMicrobatch() error { return nil }
