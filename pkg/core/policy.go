package core

import "fmt"

// ComponentName names one part of a three-part relation name.
type ComponentName int

// Relation components.
const (
	ComponentDatabase ComponentName = iota
	ComponentSchema
	ComponentIdentifier
)

// String returns the string representation of the component.
func (c ComponentName) String() string {
	switch c {
	case ComponentDatabase:
		return "database"
	case ComponentSchema:
		return "schema"
	case ComponentIdentifier:
		return "identifier"
	default:
		return "unknown"
	}
}

// ParseComponentName converts a string to a ComponentName.
func ParseComponentName(s string) (ComponentName, error) {
	switch s {
	case "database":
		return ComponentDatabase, nil
	case "schema":
		return ComponentSchema, nil
	case "identifier":
		return ComponentIdentifier, nil
	default:
		return 0, InvalidOperationError("invalid relation component %q", s)
	}
}

// Policy holds one boolean per relation component. It is used both for
// quoting and for inclusion; the two are independent.
type Policy struct {
	Database   bool `json:"database" yaml:"database"`
	Schema     bool `json:"schema" yaml:"schema"`
	Identifier bool `json:"identifier" yaml:"identifier"`
}

// AllTrue is the policy with every component enabled.
func AllTrue() Policy {
	return Policy{Database: true, Schema: true, Identifier: true}
}

// AllFalse is the policy with every component disabled.
func AllFalse() Policy {
	return Policy{}
}

// Get returns the flag for a component.
func (p Policy) Get(c ComponentName) bool {
	switch c {
	case ComponentDatabase:
		return p.Database
	case ComponentSchema:
		return p.Schema
	case ComponentIdentifier:
		return p.Identifier
	default:
		return false
	}
}

// With returns a copy of p with one component changed.
func (p Policy) With(c ComponentName, v bool) Policy {
	switch c {
	case ComponentDatabase:
		p.Database = v
	case ComponentSchema:
		p.Schema = v
	case ComponentIdentifier:
		p.Identifier = v
	}
	return p
}

// String renders the policy for diagnostics.
func (p Policy) String() string {
	return fmt.Sprintf("{database: %t, schema: %t, identifier: %t}", p.Database, p.Schema, p.Identifier)
}
