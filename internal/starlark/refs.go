package starlark

import (
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
	"go.starlark.net/starlark"
)

// RefResolver maps ref() and source() calls to the relations they name.
type RefResolver interface {
	// Ref resolves ref(name) or ref(package, name). version is "" unless
	// the call passed v= or version=.
	Ref(pkg, name, version string) (*relation.Relation, error)
	Source(sourceName, tableName string) (*relation.Relation, error)
}

// WithRefs exposes ref() and source() backed by r.
func WithRefs(r RefResolver) ContextOption {
	return func(ctx *ExecutionContext) { ctx.refs = r }
}

func refBuiltin(r RefResolver) *starlark.Builtin {
	return starlark.NewBuiltin("ref", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		p := newArgParser(b.Name(), args, kwargs)
		version := ""
		for _, key := range []string{"v", "version"} {
			if v, ok := p.keyword(key); ok {
				version = Stringify(v)
			}
		}
		var pkg, name string
		switch len(args) {
		case 0, 1, 2:
			first, err := p.requiredString("name")
			if err != nil {
				return nil, err
			}
			name = first
			if len(args) == 2 {
				second, err := p.requiredString("name")
				if err != nil {
					return nil, err
				}
				pkg, name = first, second
			}
		default:
			return nil, core.InvalidOperationError("ref() takes 1 or 2 positional arguments, got %d", len(args))
		}
		if len(p.remainingKwargs()) > 0 {
			return nil, core.InvalidOperationError("ref() got unexpected keyword arguments")
		}
		rel, err := r.Ref(pkg, name, version)
		if err != nil {
			return nil, err
		}
		return NewRelation(rel), nil
	})
}

func sourceBuiltin(r RefResolver) *starlark.Builtin {
	return starlark.NewBuiltin("source", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		p := newArgParser(b.Name(), args, kwargs)
		sourceName, err := p.requiredString("source_name")
		if err != nil {
			return nil, err
		}
		tableName, err := p.requiredString("table_name")
		if err != nil {
			return nil, err
		}
		rel, err := r.Source(sourceName, tableName)
		if err != nil {
			return nil, err
		}
		return NewRelation(rel), nil
	})
}
