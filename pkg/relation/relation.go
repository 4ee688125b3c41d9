// Package relation identifies and renders warehouse objects.
//
// A Relation is a database.schema.identifier triple with independent
// include and quote policies. Rendering joins the included components
// with ".", quoting each one its policy asks for. Ephemeral relations
// render as the name of the CTE that inlines them.
package relation

import (
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// CTEPrefix is prepended to the identifier of an ephemeral relation.
const CTEPrefix = "__dbt__cte__"

// TableFormat is the storage format of a table.
type TableFormat string

// Table formats.
const (
	FormatDefault TableFormat = ""
	FormatIceberg TableFormat = "iceberg"
)

// Relation is an immutable reference to a warehouse object. An empty
// component is absent; absent components are never rendered.
type Relation struct {
	Database   string
	Schema     string
	Identifier string
	Type       Type
	Include    core.Policy
	Quote      core.Policy
	Format     TableFormat

	flavor *Flavor
}

// New creates a relation for a flavor using the flavor's include policy.
// A typed relation whose identifier is longer than the flavor allows is
// rejected.
func New(f *Flavor, database, schema, identifier string, t Type, quote core.Policy) (*Relation, error) {
	r := &Relation{
		Database:   database,
		Schema:     schema,
		Identifier: identifier,
		Type:       t,
		Include:    f.DefaultInclude,
		Quote:      quote,
		flavor:     f,
	}
	if err := r.checkLength(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNew is New for fixed inputs known to be valid.
func MustNew(f *Flavor, database, schema, identifier string, t Type, quote core.Policy) *Relation {
	r, err := New(f, database, schema, identifier, t, quote)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Relation) checkLength() error {
	limit := r.flavor.Identifiers.MaxLength
	if limit > 0 && r.Type != TypeNone && len(r.Identifier) > limit {
		return core.InvalidOperationError("Relation name '%s' is longer than %d characters", r.Identifier, limit)
	}
	return nil
}

// Flavor returns the warehouse flavor of the relation.
func (r *Relation) Flavor() *Flavor { return r.flavor }

// AdapterType returns the flavor name.
func (r *Relation) AdapterType() string { return r.flavor.Name }

// Component returns one path component as written.
func (r *Relation) Component(c core.ComponentName) string {
	switch c {
	case core.ComponentDatabase:
		return r.Database
	case core.ComponentSchema:
		return r.Schema
	default:
		return r.Identifier
	}
}

// Quoted wraps s in the flavor's quote character.
func (r *Relation) Quoted(s string) string {
	return r.flavor.Identifiers.QuoteIdentifier(s)
}

// Resolved returns a component the way the warehouse stores it: quoted
// components keep their case, unquoted ones are normalized.
func (r *Relation) Resolved(c core.ComponentName) string {
	v := r.Component(c)
	if r.Quote.Get(c) {
		return v
	}
	return r.flavor.Identifiers.Normalize(v)
}

// Render returns the SQL reference for the relation.
func (r *Relation) Render() string {
	if r.Type == TypeEphemeral {
		return CTEPrefix + r.Identifier
	}
	parts := make([]string, 0, 3)
	for _, c := range []core.ComponentName{core.ComponentDatabase, core.ComponentSchema, core.ComponentIdentifier} {
		v := r.Component(c)
		if !r.Include.Get(c) || v == "" {
			continue
		}
		if r.Quote.Get(c) {
			v = r.Quoted(v)
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, ".")
}

// String renders the relation.
func (r *Relation) String() string { return r.Render() }

// SemanticFQN is a name that identifies the object regardless of how its
// components were spelled: every component is resolved and then quoted.
func (r *Relation) SemanticFQN() string {
	parts := make([]string, 0, 3)
	for _, c := range []core.ComponentName{core.ComponentDatabase, core.ComponentSchema, core.ComponentIdentifier} {
		if r.Component(c) == "" {
			continue
		}
		parts = append(parts, r.Quoted(r.Resolved(c)))
	}
	return strings.Join(parts, ".")
}

// Equal reports whether both relations point at the same object.
func (r *Relation) Equal(o *Relation) bool {
	return o != nil && r.flavor.Name == o.flavor.Name && r.SemanticFQN() == o.SemanticFQN()
}

// IsTable reports whether the relation is a table.
func (r *Relation) IsTable() bool { return r.Type == TypeTable }

// IsView reports whether the relation is a view.
func (r *Relation) IsView() bool { return r.Type == TypeView }

// IsCTE reports whether the relation is a CTE or an ephemeral model.
func (r *Relation) IsCTE() bool { return r.Type == TypeCTE || r.Type == TypeEphemeral }

// IsMaterializedView reports whether the relation is a materialized view.
func (r *Relation) IsMaterializedView() bool { return r.Type == TypeMaterializedView }

// IsStreamingTable reports whether the relation is a streaming table.
func (r *Relation) IsStreamingTable() bool { return r.Type == TypeStreamingTable }

// IsDynamicTable reports whether the relation is a dynamic table.
func (r *Relation) IsDynamicTable() bool { return r.Type == TypeDynamicTable }

// IsPointer reports whether the relation is a pointer table.
func (r *Relation) IsPointer() bool { return r.Type == TypePointerTable }

// IsIceberg reports whether the table is stored as Iceberg.
func (r *Relation) IsIceberg() bool { return r.Format == FormatIceberg }

// CanBeRenamed reports whether the warehouse can rename this relation.
func (r *Relation) CanBeRenamed() bool { return r.flavor.CanRename(r.Type) && !r.IsIceberg() }

// CanBeReplaced reports whether the warehouse can replace this relation in place.
func (r *Relation) CanBeReplaced() bool { return r.flavor.CanReplace(r.Type) }

func (r *Relation) clone() *Relation {
	c := *r
	return &c
}

// WithInclude returns a copy with a different include policy.
func (r *Relation) WithInclude(p core.Policy) *Relation {
	c := r.clone()
	c.Include = p
	return c
}

// WithType returns a copy with a different relation type.
func (r *Relation) WithType(t Type) (*Relation, error) {
	c := r.clone()
	c.Type = t
	if err := c.checkLength(); err != nil {
		return nil, err
	}
	return c, nil
}

// WithoutIdentifier returns the schema containing the relation.
func (r *Relation) WithoutIdentifier() *Relation {
	c := r.clone()
	c.Identifier = ""
	return c
}

// Patch changes path components. A nil field keeps the current value.
type Patch struct {
	Database   *string
	Schema     *string
	Identifier *string
}

// ReplacePath returns a copy with the patched components.
func (r *Relation) ReplacePath(p Patch) (*Relation, error) {
	c := r.clone()
	if p.Database != nil {
		c.Database = *p.Database
	}
	if p.Schema != nil {
		c.Schema = *p.Schema
	}
	if p.Identifier != nil {
		c.Identifier = *p.Identifier
	}
	if err := c.checkLength(); err != nil {
		return nil, err
	}
	return c, nil
}

// Incorporate is ReplacePath that also changes the type when t is set. An
// empty identifier in the patch keeps the current identifier; an empty
// database or schema clears it.
func (r *Relation) Incorporate(p Patch, t Type) (*Relation, error) {
	if p.Identifier != nil && *p.Identifier == "" {
		p.Identifier = nil
	}
	c, err := r.ReplacePath(p)
	if err != nil {
		return nil, err
	}
	if t != TypeNone {
		return c.WithType(t)
	}
	return c, nil
}

// InformationSchema returns the relation of an information_schema view in
// the relation's database.
func (r *Relation) InformationSchema(view string) *Relation {
	c := r.clone()
	c.Schema = "information_schema"
	c.Identifier = view
	c.Type = TypeView
	c.Quote = core.AllFalse()
	if view == "" {
		c.Include = c.Include.With(core.ComponentIdentifier, false)
	}
	return c
}

// MaxNameLength returns the longest identifier the warehouse accepts.
func (r *Relation) MaxNameLength() (int, error) {
	if r.flavor.Identifiers.MaxLength == 0 {
		return 0, core.NotImplemented("relation_max_name_length", "Available only for postgres and redshift")
	}
	return r.flavor.Identifiers.MaxLength, nil
}

// IsHiveMetastore reports whether a Databricks relation lives in the legacy
// hive metastore rather than Unity Catalog.
func (r *Relation) IsHiveMetastore() (bool, error) {
	if r.flavor.Name != Databricks.Name {
		return false, core.NotImplemented("is_hive_metastore", "Available only for databricks")
	}
	return r.Database == "" || strings.EqualFold(r.Database, "hive_metastore"), nil
}
