package nodes

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// UniqueID builds `{resource_type}.{project}.{name}[.v{version}]`.
func UniqueID(rt ResourceType, project, name, version string) string {
	id := fmt.Sprintf("%s.%s.%s", rt, project, name)
	if version != "" {
		id += ".v" + version
	}
	return id
}

// SourceUniqueID builds `source.{project}.{source_name}.{table_name}`.
func SourceUniqueID(project, sourceName, tableName string) string {
	return fmt.Sprintf("%s.%s.%s.%s", ResourceSource, project, sourceName, tableName)
}

// ValidateIdentity checks that the node's unique_id matches its kind, package
// and name, and that versioned identity is only used by versioned models.
func ValidateIdentity(n Node) error {
	c := n.Common()
	switch v := n.(type) {
	case *Source:
		want := SourceUniqueID(c.PackageName, v.SourceName, c.Name)
		if c.UniqueID != want {
			return core.ConfigurationError("unique_id %q does not match source identity %q", c.UniqueID, want)
		}
		return nil
	case *Model:
		if v.Version != "" && v.LatestVersion == "" {
			return core.ConfigurationError("model %s has version %q but its parent declares no versions", c.Name, v.Version)
		}
		want := UniqueID(v.ResourceType(), c.PackageName, c.Name, v.Version)
		if c.UniqueID != want {
			return core.ConfigurationError("unique_id %q does not match model identity %q", c.UniqueID, want)
		}
		return nil
	case *Seed, *Snapshot, *Test, *UnitTest:
		prefix := fmt.Sprintf("%s.%s.", n.ResourceType(), c.PackageName)
		if !strings.HasPrefix(c.UniqueID, prefix) {
			return core.ConfigurationError("unique_id %q must start with %q", c.UniqueID, prefix)
		}
		return nil
	default:
		return core.InternalError("unknown node type %T", n)
	}
}
