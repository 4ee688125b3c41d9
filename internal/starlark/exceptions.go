package starlark

import (
	"log/slog"
	"sort"

	"github.com/leapstack-labs/leapforge/pkg/core"
	"go.starlark.net/starlark"
)

// nodeLocal is the thread-local key holding the NodeInfo of the node being
// evaluated.
const nodeLocal = "leapforge.node"

// NodeInfo identifies the node whose code is running.
type NodeInfo struct {
	UniqueID string
	Path     string
}

func currentNode(thread *starlark.Thread) (NodeInfo, bool) {
	if thread == nil {
		return NodeInfo{}, false
	}
	n, ok := thread.Local(nodeLocal).(NodeInfo)
	return n, ok && n.UniqueID != ""
}

// Exceptions is the exceptions host object.
type Exceptions struct {
	logger  *slog.Logger
	methods map[string]*starlark.Builtin
}

var _ starlark.HasAttrs = (*Exceptions)(nil)

// Methods that are accepted and ignored.
var noopExceptionMethods = []string{
	"raise_not_implemented",
	"relation_wrong_type",
	"raise_contract_error",
	"column_type_missing",
	"raise_fail_fast_error",
	"warn_snapshot_timestamp_data_types",
}

// NewExceptions returns the exceptions object. Warnings go to logger.
func NewExceptions(logger *slog.Logger) *Exceptions {
	e := &Exceptions{logger: logger, methods: make(map[string]*starlark.Builtin)}
	e.methods["raise_compiler_error"] = starlark.NewBuiltin("raise_compiler_error", raiseCompilerError)
	e.methods["warn"] = starlark.NewBuiltin("warn", e.warn)
	for _, name := range noopExceptionMethods {
		e.methods[name] = starlark.NewBuiltin(name, noop)
	}
	return e
}

func raiseCompilerError(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	p := newArgParser(b.Name(), args, kwargs)
	msg, err := p.required("message")
	if err != nil {
		return nil, err
	}
	if n, ok := currentNode(thread); ok {
		return nil, core.InvalidOperationError("Compilation Error for %s from %s: %s", n.UniqueID, n.Path, Stringify(msg))
	}
	return nil, core.InvalidOperationError("Compilation Error: %s", Stringify(msg))
}

func (e *Exceptions) warn(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		attrs := []any{slog.String("message", Stringify(args[0]))}
		if n, ok := currentNode(thread); ok {
			attrs = append(attrs, slog.String("node", n.UniqueID))
		}
		e.logger.Warn("template warning", attrs...)
	}
	return starlark.None, nil
}

func noop(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return starlark.None, nil
}

func (e *Exceptions) String() string        { return "<exceptions>" }
func (e *Exceptions) Type() string          { return "exceptions" }
func (e *Exceptions) Freeze()               {}
func (e *Exceptions) Truth() starlark.Bool  { return starlark.True }
func (e *Exceptions) Hash() (uint32, error) { return 0, core.InvalidOperationError("unhashable: exceptions") }

// Attr implements starlark.HasAttrs.
func (e *Exceptions) Attr(name string) (starlark.Value, error) {
	if m, ok := e.methods[name]; ok {
		return m, nil
	}
	return nil, core.InvalidOperationError("Unknown method on Exceptions: %s", name)
}

// AttrNames implements starlark.HasAttrs.
func (e *Exceptions) AttrNames() []string {
	names := make([]string, 0, len(e.methods))
	for name := range e.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
