package nodes

import (
	"reflect"
	"slices"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// Source is a table loaded outside the project. It carries no code.
type Source struct {
	CommonAttributes `yaml:",inline"`

	Config        config.SourceConfig       `yaml:"config"`
	SourceName    string                    `yaml:"source_name"`
	Identifier    string                    `yaml:"identifier"`
	Loader        string                    `yaml:"loader,omitempty"`
	Freshness     *config.FreshnessRules    `yaml:"freshness,omitempty"`
	LoadedAtField string                    `yaml:"loaded_at_field,omitempty"`
	LoadedAtQuery string                    `yaml:"loaded_at_query,omitempty"`
	RelationName  string                    `yaml:"relation_name,omitempty"`
	Quoting       core.Policy               `yaml:"quoting"`
	Columns       map[string]core.ColumnDef `yaml:"columns,omitempty"`
}

func (*Source) node() {}

// Common returns the shared attributes.
func (s *Source) Common() *CommonAttributes { return &s.CommonAttributes }

// Base returns nil; sources carry no code.
func (*Source) Base() *BaseAttributes { return nil }

// ResourceType returns source.
func (*Source) ResourceType() ResourceType { return ResourceSource }

// Materialization returns "".
func (*Source) Materialization() string { return "" }

// Enabled reports the enabled flag.
func (s *Source) Enabled() bool { return config.IsEnabled(s.Config.Enabled) }

// HasSameConfig compares the full config.
func (s *Source) HasSameConfig(other Node) bool {
	o, ok := other.(*Source)
	return ok && reflect.DeepEqual(s.Config, o.Config)
}

// HasSameContent compares the location, identity and loading settings.
func (s *Source) HasSameContent(other Node) bool {
	o, ok := other.(*Source)
	if !ok {
		return false
	}
	return s.Database == o.Database &&
		s.Schema == o.Schema &&
		s.Name == o.Name &&
		s.Identifier == o.Identifier &&
		slices.Equal(s.FQN, o.FQN) &&
		reflect.DeepEqual(s.Config, o.Config) &&
		s.Quoting == o.Quoting &&
		s.LoadedAtField == o.LoadedAtField &&
		s.Loader == o.Loader
}

// Introspection always returns IntrospectionNone.
func (*Source) Introspection() core.IntrospectionKind { return core.IntrospectionNone }

// SetIntrospection is not supported for sources.
func (s *Source) SetIntrospection(core.IntrospectionKind) error { return introspectionUnsupported(s) }

// WarnOnMicrobatch never fails for sources.
func (*Source) WarnOnMicrobatch() error { return nil }
