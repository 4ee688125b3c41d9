package starlark

import (
	"sort"

	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Relation exposes a relation.Relation to templates. str(rel) renders it.
type Relation struct {
	rel *relation.Relation
}

var (
	_ starlark.HasAttrs   = (*Relation)(nil)
	_ starlark.Comparable = (*Relation)(nil)
)

// NewRelation wraps rel.
func NewRelation(rel *relation.Relation) *Relation { return &Relation{rel: rel} }

// Unwrap returns the wrapped relation.
func (r *Relation) Unwrap() *relation.Relation { return r.rel }

func (r *Relation) String() string       { return r.rel.Render() }
func (r *Relation) Type() string         { return "relation" }
func (r *Relation) Freeze()              {}
func (r *Relation) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value.
func (r *Relation) Hash() (uint32, error) {
	return starlark.String(r.rel.Render()).Hash()
}

// CompareSameType implements starlark.Comparable for == and !=.
func (r *Relation) CompareSameType(op syntax.Token, y starlark.Value, _ int) (bool, error) {
	other := y.(*Relation)
	switch op {
	case syntax.EQL:
		return r.rel.Equal(other.rel), nil
	case syntax.NEQ:
		return !r.rel.Equal(other.rel), nil
	}
	return false, core.InvalidOperationError("relation does not support %s", op)
}

type relationMethod func(r *Relation, p *argParser) (starlark.Value, error)

var relationMethods = map[string]relationMethod{
	"render": func(r *Relation, _ *argParser) (starlark.Value, error) {
		return starlark.String(r.rel.Render()), nil
	},
	"without_identifier": func(r *Relation, _ *argParser) (starlark.Value, error) {
		return NewRelation(r.rel.WithoutIdentifier()), nil
	},
	"include": func(r *Relation, p *argParser) (starlark.Value, error) {
		policy := r.rel.Include
		for _, c := range []core.ComponentName{core.ComponentDatabase, core.ComponentSchema, core.ComponentIdentifier} {
			if v, ok := p.keyword(c.String()); ok && v != starlark.None {
				policy = policy.With(c, bool(v.Truth()))
			}
		}
		return NewRelation(r.rel.WithInclude(policy)), nil
	},
	"incorporate": func(r *Relation, p *argParser) (starlark.Value, error) {
		var patch relation.Patch
		if v, ok := p.keyword("path"); ok && v != starlark.None {
			path, isDict := v.(*starlark.Dict)
			if !isDict {
				return nil, core.InvalidOperationError("incorporate: path must be a dict, got %s", v.Type())
			}
			for _, item := range path.Items() {
				key, _ := starlark.AsString(item[0])
				val := Stringify(item[1])
				if item[1] == starlark.None {
					val = ""
				}
				switch key {
				case "database":
					patch.Database = &val
				case "schema":
					patch.Schema = &val
				case "identifier":
					patch.Identifier = &val
				default:
					return nil, core.InvalidOperationError("incorporate: unknown path component %q", key)
				}
			}
		}
		t := relation.TypeNone
		if v, ok := p.keyword("type"); ok && v != starlark.None {
			parsed, err := relation.ParseType(Stringify(v))
			if err != nil {
				return nil, err
			}
			t = parsed
		}
		rel, err := r.rel.Incorporate(patch, t)
		if err != nil {
			return nil, err
		}
		return NewRelation(rel), nil
	},
	"information_schema": func(r *Relation, p *argParser) (starlark.Value, error) {
		view := ""
		if v, ok := p.optional("view_name"); ok && v != starlark.None {
			view = Stringify(v)
		}
		return NewRelation(r.rel.InformationSchema(view)), nil
	},
}

// Attr implements starlark.HasAttrs.
func (r *Relation) Attr(name string) (starlark.Value, error) {
	switch name {
	case "database":
		return optionalString(r.rel.Database), nil
	case "schema":
		return optionalString(r.rel.Schema), nil
	case "identifier", "name", "table":
		return optionalString(r.rel.Identifier), nil
	case "type":
		return optionalString(string(r.rel.Type)), nil
	case "is_table":
		return starlark.Bool(r.rel.IsTable()), nil
	case "is_view":
		return starlark.Bool(r.rel.IsView()), nil
	case "is_cte":
		return starlark.Bool(r.rel.IsCTE()), nil
	case "is_materialized_view":
		return starlark.Bool(r.rel.IsMaterializedView()), nil
	case "is_dynamic_table":
		return starlark.Bool(r.rel.IsDynamicTable()), nil
	case "is_iceberg_format":
		return starlark.Bool(r.rel.IsIceberg()), nil
	case "can_be_renamed":
		return starlark.Bool(r.rel.CanBeRenamed()), nil
	case "can_be_replaced":
		return starlark.Bool(r.rel.CanBeReplaced()), nil
	}
	m, ok := relationMethods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return m(r, newArgParser(b.Name(), args, kwargs))
	}), nil
}

// AttrNames implements starlark.HasAttrs.
func (r *Relation) AttrNames() []string {
	names := []string{
		"can_be_renamed", "can_be_replaced", "database", "identifier", "is_cte",
		"is_dynamic_table", "is_iceberg_format", "is_materialized_view", "is_table",
		"is_view", "name", "schema", "table", "type",
	}
	for name := range relationMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func optionalString(s string) starlark.Value {
	if s == "" {
		return starlark.None
	}
	return starlark.String(s)
}
