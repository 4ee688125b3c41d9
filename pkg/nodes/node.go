// Package nodes models the buildable and testable units of a project.
//
// The six node kinds form a closed set: every kind implements Node, and the
// unexported node method keeps other packages from adding variants. Code that
// needs kind-specific behavior switches over the concrete types.
package nodes

import (
	"fmt"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// ResourceType names a node kind.
type ResourceType string

// Resource types.
const (
	ResourceModel    ResourceType = "model"
	ResourceAnalysis ResourceType = "analysis"
	ResourceSeed     ResourceType = "seed"
	ResourceTest     ResourceType = "test"
	ResourceUnitTest ResourceType = "unit_test"
	ResourceSource   ResourceType = "source"
	ResourceSnapshot ResourceType = "snapshot"
)

// Node is the capability set shared by all node kinds.
type Node interface {
	Common() *CommonAttributes
	// Base returns nil for sources, which carry no code.
	Base() *BaseAttributes
	ResourceType() ResourceType
	Materialization() string
	Enabled() bool
	// HasSameConfig reports whether the configs match for change detection.
	HasSameConfig(other Node) bool
	// HasSameContent reports whether the contents match for change detection.
	HasSameContent(other Node) bool
	Introspection() core.IntrospectionKind
	SetIntrospection(kind core.IntrospectionKind) error
	// WarnOnMicrobatch fails when the node selects the microbatch strategy.
	WarnOnMicrobatch() error

	node()
}

func introspectionUnsupported(n Node) error {
	return core.InvalidOperationError("%s %s does not support setting detected introspection",
		n.ResourceType(), n.Common().UniqueID)
}

func microbatchError(n Node) error {
	return &core.Error{
		Kind: core.KindUnsupportedFeature,
		Message: fmt.Sprintf("%s: Microbatch incremental strategy is not supported. "+
			"Use --exclude config.incremental_strategy:microbatch to exclude these models.", n.Common().Path),
	}
}
