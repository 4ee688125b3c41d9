package nodes

import (
	"reflect"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// Model is a SQL transformation that materializes a relation. Analyses share
// this shape and are flagged with Analysis.
type Model struct {
	CommonAttributes `yaml:",inline"`
	BaseAttributes   `yaml:",inline"`

	Config          config.ModelConfig     `yaml:"config"`
	Analysis        bool                   `yaml:"-"`
	Quoting         core.Policy            `yaml:"quoting"`
	Version         string                 `yaml:"version,omitempty"`
	LatestVersion   string                 `yaml:"latest_version,omitempty"`
	Constraints     []core.Constraint      `yaml:"constraints,omitempty"`
	PrimaryKey      []string               `yaml:"primary_key,omitempty"`
	DeprecationDate string                 `yaml:"deprecation_date,omitempty"`
	Introspected    core.IntrospectionKind `yaml:"introspection,omitempty"`
}

func (*Model) node() {}

// Common returns the shared attributes.
func (m *Model) Common() *CommonAttributes { return &m.CommonAttributes }

// Base returns the code-carrying attributes.
func (m *Model) Base() *BaseAttributes { return &m.BaseAttributes }

// ResourceType returns model, or analysis for analyses.
func (m *Model) ResourceType() ResourceType {
	if m.Analysis {
		return ResourceAnalysis
	}
	return ResourceModel
}

// Materialization returns the configured materialization, view by default.
func (m *Model) Materialization() string {
	if m.Config.Materialized != nil {
		return *m.Config.Materialized
	}
	return core.MaterializationView
}

// Enabled reports the enabled flag.
func (m *Model) Enabled() bool { return config.IsEnabled(m.Config.Enabled) }

// Access returns the access level, protected by default.
func (m *Model) Access() string {
	if m.Config.Access != nil {
		return *m.Config.Access
	}
	return "protected"
}

// IncrementalStrategy returns the configured strategy or "".
func (m *Model) IncrementalStrategy() string {
	if m.Config.IncrementalStrategy != nil {
		return *m.Config.IncrementalStrategy
	}
	return ""
}

// StaticAnalysis returns the static analysis mode, on by default.
func (m *Model) StaticAnalysis() string {
	if m.Config.StaticAnalysis != nil {
		return *m.Config.StaticAnalysis
	}
	return core.StaticAnalysisOn
}

// IsVersioned reports whether the model is one version of a versioned model.
func (m *Model) IsVersioned() bool { return m.Version != "" }

// HasSameConfig compares the full resolved config.
func (m *Model) HasSameConfig(other Node) bool {
	o, ok := other.(*Model)
	return ok && reflect.DeepEqual(m.Config, o.Config)
}

// HasSameContent compares checksums.
func (m *Model) HasSameContent(other Node) bool {
	o, ok := other.(*Model)
	return ok && m.Checksum == o.Checksum
}

// Introspection returns the detected introspection kind.
func (m *Model) Introspection() core.IntrospectionKind { return m.Introspected }

// SetIntrospection records what compiling the model required.
func (m *Model) SetIntrospection(kind core.IntrospectionKind) error {
	m.Introspected = kind
	return nil
}

// WarnOnMicrobatch fails when the model selects the microbatch strategy.
func (m *Model) WarnOnMicrobatch() error {
	if config.IsMicrobatch(m.Config.IncrementalStrategy) {
		return microbatchError(m)
	}
	return nil
}
