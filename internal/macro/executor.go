package macro

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	lfstarlark "github.com/leapstack-labs/leapforge/internal/starlark"
	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"go.starlark.net/starlark"
)

// Executor runs macros against one execution context. Each namespace is
// instantiated on first use with the context's globals, so macros see the
// node's config, target, this and adapter. An Executor is not safe for
// concurrent use; create one per node.
type Executor struct {
	registry  *Registry
	ectx      *lfstarlark.ExecutionContext
	instances map[string]starlark.StringDict
	loading   map[string]bool

	// ctx is the context of the call in progress. Namespace instantiation
	// triggered from attribute access runs under it.
	ctx context.Context
}

var _ adapter.MacroExecutor = (*Executor)(nil)

// NewExecutor binds the namespaces of registry into ectx.
func NewExecutor(registry *Registry, ectx *lfstarlark.ExecutionContext) (*Executor, error) {
	e := &Executor{
		registry:  registry,
		ectx:      ectx,
		instances: make(map[string]starlark.StringDict),
		loading:   make(map[string]bool),
		ctx:       context.Background(),
	}
	namespaces := make(starlark.StringDict, registry.Len())
	for _, ns := range registry.Namespaces() {
		namespaces[ns] = &lazyModule{name: ns, e: e}
	}
	if err := ectx.AddMacros(namespaces); err != nil {
		return nil, err
	}
	return e, nil
}

// Context returns the execution context macros run in.
func (e *Executor) Context() *lfstarlark.ExecutionContext { return e.ectx }

// ExecuteMacro calls a macro by name. A dotted name selects the namespace;
// a bare name is resolved through the registry. A returned table or list
// of row dicts becomes an *adapter.Table; other results convert with
// ToGo.
func (e *Executor) ExecuteMacro(ctx context.Context, name string, args []any, kwargs map[string]any) (any, error) {
	prev := e.ctx
	e.ctx = ctx
	defer func() { e.ctx = prev }()

	fn, err := e.lookup(name)
	if err != nil {
		return nil, err
	}

	sargs := make(starlark.Tuple, len(args))
	for i, a := range args {
		v, err := lfstarlark.GoToStarlark(a)
		if err != nil {
			return nil, fmt.Errorf("macro %s: argument %d: %w", name, i, err)
		}
		sargs[i] = v
	}
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	skwargs := make([]starlark.Tuple, 0, len(keys))
	for _, k := range keys {
		v, err := lfstarlark.GoToStarlark(kwargs[k])
		if err != nil {
			return nil, fmt.Errorf("macro %s: argument %s: %w", name, k, err)
		}
		skwargs = append(skwargs, starlark.Tuple{starlark.String(k), v})
	}

	thread := e.ectx.NewThread(ctx, "macro:"+name)
	result, err := starlark.Call(thread, fn, sargs, skwargs)
	if err != nil {
		var ret *lfstarlark.ReturnValue
		if !errors.As(err, &ret) {
			return nil, fmt.Errorf("macro %s: %w", name, err)
		}
		result = ret.Value
	}
	return resultToGo(result)
}

func (e *Executor) lookup(name string) (starlark.Value, error) {
	var module *LoadedModule
	fn := name
	if ns, rest, ok := strings.Cut(name, "."); ok {
		module, fn = e.registry.Get(ns), rest
	} else {
		module = e.registry.Resolve(name)
	}
	if module == nil {
		return nil, core.InvalidOperationError("macro '%s' not found", name)
	}
	exports, err := e.instance(module.Namespace)
	if err != nil {
		return nil, err
	}
	v, ok := exports[fn]
	if !ok {
		return nil, core.InvalidOperationError("macro '%s' not found", name)
	}
	if _, ok := v.(starlark.Callable); !ok {
		return nil, core.InvalidOperationError("macro '%s' is a %s, not a function", name, v.Type())
	}
	return v, nil
}

// instance runs the namespace's top level once with the context globals.
func (e *Executor) instance(ns string) (starlark.StringDict, error) {
	if exports, ok := e.instances[ns]; ok {
		return exports, nil
	}
	if e.loading[ns] {
		return nil, core.InvalidOperationError("macro namespace %q is part of an initialization cycle", ns)
	}
	module := e.registry.Get(ns)
	if module == nil || module.program == nil {
		return nil, core.InvalidOperationError("macro namespace %q is not loaded", ns)
	}

	e.loading[ns] = true
	defer delete(e.loading, ns)

	thread := e.ectx.NewThread(e.ctx, "init:"+ns)
	exports, err := module.instantiate(thread, e.ectx.Globals())
	if err != nil {
		return nil, fmt.Errorf("macros/%s.star: %w", ns, err)
	}
	e.instances[ns] = exports
	return exports, nil
}

func resultToGo(v starlark.Value) (any, error) {
	if t, ok := v.(*lfstarlark.Table); ok {
		return t.Unwrap(), nil
	}
	if list, ok := v.(*starlark.List); ok && list.Len() > 0 {
		if t, ok := rowsToTable(list); ok {
			return t, nil
		}
	}
	return lfstarlark.ToGo(v)
}

// rowsToTable converts a list of dicts to a table whose columns follow the
// key order of the first row.
func rowsToTable(list *starlark.List) (*adapter.Table, bool) {
	first, ok := list.Index(0).(*starlark.Dict)
	if !ok {
		return nil, false
	}
	var columns []string
	for _, k := range first.Keys() {
		s, ok := starlark.AsString(k)
		if !ok {
			return nil, false
		}
		columns = append(columns, s)
	}

	rows := make([][]any, 0, list.Len())
	for i := range list.Len() {
		d, ok := list.Index(i).(*starlark.Dict)
		if !ok {
			return nil, false
		}
		row := make([]any, len(columns))
		for j, col := range columns {
			v, found, err := d.Get(starlark.String(col))
			if err != nil {
				return nil, false
			}
			if found {
				gv, err := lfstarlark.ToGo(v)
				if err != nil {
					return nil, false
				}
				row[j] = gv
			}
		}
		rows = append(rows, row)
	}
	return adapter.NewTable(columns, rows), true
}

// lazyModule is a namespace value that instantiates on attribute access.
type lazyModule struct {
	name string
	e    *Executor
}

var _ starlark.HasAttrs = (*lazyModule)(nil)

func (m *lazyModule) String() string       { return fmt.Sprintf("<module %s>", m.name) }
func (m *lazyModule) Type() string         { return "module" }
func (m *lazyModule) Freeze()              {}
func (m *lazyModule) Truth() starlark.Bool { return starlark.True }
func (m *lazyModule) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: module")
}

// Attr implements starlark.HasAttrs.
func (m *lazyModule) Attr(name string) (starlark.Value, error) {
	exports, err := m.e.instance(m.name)
	if err != nil {
		return nil, err
	}
	v, ok := exports[name]
	if !ok {
		return nil, fmt.Errorf("module %s has no attribute %s", m.name, name)
	}
	return v, nil
}

// AttrNames implements starlark.HasAttrs.
func (m *lazyModule) AttrNames() []string {
	module := m.e.registry.Get(m.name)
	if module == nil {
		return nil
	}
	return module.Exports.Keys()
}
