package starlark

import (
	"context"
	"sort"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"go.starlark.net/starlark"
)

// contextLocal is the thread-local key holding the context.Context of the
// evaluation.
const contextLocal = "leapforge.context"

// WithContext attaches ctx to thread so blocking built-ins honor
// cancellation.
func WithContext(thread *starlark.Thread, ctx context.Context) {
	thread.SetLocal(contextLocal, ctx)
}

func threadContext(thread *starlark.Thread) context.Context {
	if thread != nil {
		if ctx, ok := thread.Local(contextLocal).(context.Context); ok {
			return ctx
		}
	}
	return context.Background()
}

// Adapter is the adapter host object. Warehouse calls run on conn, which
// may be nil for evaluations that never touch the warehouse.
type Adapter struct {
	a    adapter.TypedAdapter
	conn adapter.Connection
}

var _ starlark.HasAttrs = (*Adapter)(nil)

// NewAdapter exposes a to templates.
func NewAdapter(a adapter.TypedAdapter, conn adapter.Connection) *Adapter {
	return &Adapter{a: a, conn: conn}
}

func (o *Adapter) String() string        { return "<adapter " + o.a.AdapterType() + ">" }
func (o *Adapter) Type() string          { return "adapter" }
func (o *Adapter) Freeze()               {}
func (o *Adapter) Truth() starlark.Bool  { return starlark.True }
func (o *Adapter) Hash() (uint32, error) { return 0, core.InvalidOperationError("unhashable: adapter") }

func (o *Adapter) connection(fn string) (adapter.Connection, error) {
	if o.conn == nil {
		return nil, core.InvalidOperationError("%s: no open connection", fn)
	}
	return o.conn, nil
}

type adapterMethod func(o *Adapter, thread *starlark.Thread, p *argParser) (starlark.Value, error)

var adapterMethods = map[string]adapterMethod{
	"type": func(o *Adapter, _ *starlark.Thread, _ *argParser) (starlark.Value, error) {
		return starlark.String(o.a.AdapterType()), nil
	},
	"quote": func(o *Adapter, _ *starlark.Thread, p *argParser) (starlark.Value, error) {
		id, err := p.requiredString("identifier")
		if err != nil {
			return nil, err
		}
		return starlark.String(o.a.Quote(id)), nil
	},
	"valid_incremental_strategies": func(o *Adapter, _ *starlark.Thread, _ *argParser) (starlark.Value, error) {
		return GoToStarlark(o.a.ValidIncrementalStrategies())
	},
	"generate_unique_temporary_table_suffix": func(o *Adapter, _ *starlark.Thread, p *argParser) (starlark.Value, error) {
		initial := ""
		if v, ok := p.optional("suffix_initial"); ok && v != starlark.None {
			initial = Stringify(v)
		}
		s, err := o.a.GenerateUniqueTemporaryTableSuffix(initial)
		if err != nil {
			return nil, err
		}
		return starlark.String(s), nil
	},
	"list_schemas": func(o *Adapter, thread *starlark.Thread, p *argParser) (starlark.Value, error) {
		db, err := p.requiredString("database")
		if err != nil {
			return nil, err
		}
		conn, err := o.connection("list_schemas")
		if err != nil {
			return nil, err
		}
		schemas, err := o.a.ListSchemas(threadContext(thread), conn, db)
		if err != nil {
			return nil, err
		}
		return GoToStarlark(schemas)
	},
	"get_relation": func(o *Adapter, thread *starlark.Thread, p *argParser) (starlark.Value, error) {
		var parts [3]string
		for i, name := range []string{"database", "schema", "identifier"} {
			s, err := p.requiredString(name)
			if err != nil {
				return nil, err
			}
			parts[i] = s
		}
		conn, err := o.connection("get_relation")
		if err != nil {
			return nil, err
		}
		rel, err := o.a.GetRelation(threadContext(thread), conn, parts[0], parts[1], parts[2])
		if err != nil {
			return nil, err
		}
		return GoToStarlark(rel)
	},
	"get_columns_in_relation": func(o *Adapter, thread *starlark.Thread, p *argParser) (starlark.Value, error) {
		v, err := p.required("relation")
		if err != nil {
			return nil, err
		}
		rel, ok := v.(*Relation)
		if !ok {
			return nil, core.InvalidOperationError("get_columns_in_relation: expected a relation, got %s", v.Type())
		}
		conn, err := o.connection("get_columns_in_relation")
		if err != nil {
			return nil, err
		}
		cols, err := o.a.GetColumnsInRelation(threadContext(thread), conn, rel.rel)
		if err != nil {
			return nil, err
		}
		out := make([]starlark.Value, len(cols))
		for i, c := range cols {
			d := starlark.NewDict(2)
			_ = d.SetKey(starlark.String("name"), starlark.String(c.Name))
			_ = d.SetKey(starlark.String("data_type"), starlark.String(c.DataType()))
			out[i] = d
		}
		return starlark.NewList(out), nil
	},
	"execute": func(o *Adapter, thread *starlark.Thread, p *argParser) (starlark.Value, error) {
		sql, err := p.requiredString("sql")
		if err != nil {
			return nil, err
		}
		fetch := p.optionalBool("fetch")
		conn, err := o.connection("execute")
		if err != nil {
			return nil, err
		}
		resp, table, err := o.a.Execute(threadContext(thread), conn, adapter.Query(sql), adapter.ExecOptions{Fetch: fetch})
		if err != nil {
			return nil, err
		}
		return starlark.Tuple{responseValue(resp), tableValue(table)}, nil
	},
}

func responseValue(r *adapter.Response) starlark.Value {
	d := starlark.NewDict(3)
	if r == nil {
		return d
	}
	_ = d.SetKey(starlark.String("_message"), starlark.String(r.Message))
	_ = d.SetKey(starlark.String("code"), starlark.String(r.Code))
	_ = d.SetKey(starlark.String("rows_affected"), starlark.MakeInt64(r.RowsAffected))
	return d
}

func tableValue(t *adapter.Table) starlark.Value {
	if t == nil {
		t = adapter.EmptyTable()
	}
	return NewTable(t)
}

// Attr implements starlark.HasAttrs.
func (o *Adapter) Attr(name string) (starlark.Value, error) {
	m, ok := adapterMethods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return m(o, thread, newArgParser(b.Name(), args, kwargs))
	}), nil
}

// AttrNames implements starlark.HasAttrs.
func (o *Adapter) AttrNames() []string {
	names := make([]string, 0, len(adapterMethods))
	for name := range adapterMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
