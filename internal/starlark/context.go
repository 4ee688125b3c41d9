package starlark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapforge/pkg/relation"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// TargetInfo describes the active profile output.
// Exposed as the "target" global.
type TargetInfo struct {
	Name     string // profile output name, e.g. "dev"
	Type     string // "duckdb", "postgres", "snowflake", ...
	Schema   string
	Database string
	Threads  int
}

// ToStarlark converts TargetInfo to a Starlark struct value.
func (t *TargetInfo) ToStarlark() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("target"), starlark.StringDict{
		"name":     starlark.String(t.Name),
		"type":     starlark.String(t.Type),
		"schema":   starlark.String(t.Schema),
		"database": starlark.String(t.Database),
		"threads":  starlark.MakeInt(t.Threads),
	})
}

// ExecutionContext holds the globals of one node's evaluation.
type ExecutionContext struct {
	// Config is the resolved node config, exposed as the "config" dict.
	Config starlark.Value

	// Target is exposed as target.type, target.schema, ...
	Target *TargetInfo

	// This is the relation of the node being built, exposed as "this".
	This *relation.Relation

	// Node identifies the node for error messages.
	Node NodeInfo

	// Adapter is exposed as the "adapter" global when set.
	Adapter *Adapter

	// Macros contains loaded macro namespaces.
	Macros starlark.StringDict

	builtins BuiltinOptions
	logger   *slog.Logger
	refs     RefResolver
	run      RunInfo

	globals starlark.StringDict
	mu      sync.RWMutex
}

// ContextOption is a functional option for configuring ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithMacros sets the macro namespaces.
func WithMacros(macros starlark.StringDict) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.Macros = macros
	}
}

// WithThis sets the relation of the current node.
func WithThis(rel *relation.Relation) ContextOption {
	return func(ctx *ExecutionContext) { ctx.This = rel }
}

// WithNode sets the node reported by raise_compiler_error.
func WithNode(n NodeInfo) ContextOption {
	return func(ctx *ExecutionContext) { ctx.Node = n }
}

// WithAdapter exposes an adapter host object.
func WithAdapter(a *Adapter) ContextOption {
	return func(ctx *ExecutionContext) { ctx.Adapter = a }
}

// WithVars sets the values returned by var().
func WithVars(vars map[string]any) ContextOption {
	return func(ctx *ExecutionContext) { ctx.builtins.Vars = vars }
}

// WithDocs sets the doc() lookup.
func WithDocs(d *DocMacro) ContextOption {
	return func(ctx *ExecutionContext) { ctx.builtins.Docs = d }
}

// WithLogger routes log(), print() and warnings to logger.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.logger = logger
		ctx.builtins.Logger = logger
	}
}

// NewContext creates an execution context. config may be nil.
func NewContext(config map[string]any, target *TargetInfo, opts ...ContextOption) (*ExecutionContext, error) {
	cfg, err := GoToStarlark(config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	ctx := &ExecutionContext{
		Config: cfg,
		Target: target,
		Macros: make(starlark.StringDict),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	if ctx.builtins.Logger == nil {
		ctx.builtins.Logger = ctx.logger
	}
	ctx.buildGlobals()
	return ctx, nil
}

// contextGlobals are set per evaluation on top of the built-ins.
var contextGlobals = []string{
	"adapter", "config", "invocation_id", "is_incremental", "ref",
	"should_full_refresh", "source", "target", "this",
}

// PredeclaredNames lists every global an evaluation defines before macro
// namespaces are added, sorted.
func PredeclaredNames() []string {
	names := append([]string(nil), contextGlobals...)
	for name := range Builtins(BuiltinOptions{}) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsReserved reports whether name is a predeclared global that a macro
// namespace cannot shadow.
func IsReserved(name string) bool {
	return slices.Contains(PredeclaredNames(), name)
}

func (ctx *ExecutionContext) buildGlobals() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	globals := Builtins(ctx.builtins)
	globals["config"] = ctx.Config
	if ctx.Target != nil {
		globals["target"] = ctx.Target.ToStarlark()
	} else {
		globals["target"] = starlark.None
	}
	if ctx.This != nil {
		globals["this"] = NewRelation(ctx.This)
	} else {
		globals["this"] = starlark.None
	}
	if ctx.Adapter != nil {
		globals["adapter"] = ctx.Adapter
	} else {
		globals["adapter"] = starlark.None
	}
	if ctx.refs != nil {
		globals["ref"] = refBuiltin(ctx.refs)
		globals["source"] = sourceBuiltin(ctx.refs)
	} else {
		globals["ref"] = starlark.None
		globals["source"] = starlark.None
	}
	for name, v := range ctx.run.globals() {
		globals[name] = v
	}
	for name, macro := range ctx.Macros {
		globals[name] = macro
	}
	ctx.globals = globals
}

// Globals returns the combined globals dictionary.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.globals
}

// AddMacros adds macro namespaces to the context.
// Returns error if a macro name conflicts with a reserved global.
func (ctx *ExecutionContext) AddMacros(macros starlark.StringDict) error {
	for name := range macros {
		if IsReserved(name) {
			return fmt.Errorf("macro namespace %q conflicts with builtin", name)
		}
	}

	ctx.mu.Lock()
	for name, macro := range macros {
		ctx.Macros[name] = macro
	}
	ctx.mu.Unlock()

	ctx.buildGlobals()
	return nil
}

// NewThread creates a thread bound to c whose print goes to the context's
// logger.
func (ctx *ExecutionContext) NewThread(c context.Context, name string) *starlark.Thread {
	logger := ctx.logger
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info(msg)
		},
	}
	WithContext(thread, c)
	thread.SetLocal(nodeLocal, ctx.Node)
	return thread
}

// EvalExpr evaluates a single Starlark expression and returns the result.
func (ctx *ExecutionContext) EvalExpr(c context.Context, expr string, filename string, line int) (starlark.Value, error) {
	return ctx.EvalExprWithLocals(c, expr, filename, line, nil)
}

// EvalExprWithLocals evaluates an expression with additional local
// variables. Locals take precedence over globals. A return_ call ends the
// evaluation with its argument.
func (ctx *ExecutionContext) EvalExprWithLocals(c context.Context, expr string, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := ctx.NewThread(c, filename)

	globals := ctx.Globals()
	if len(locals) > 0 {
		combined := make(starlark.StringDict, len(globals)+len(locals))
		for k, v := range globals {
			combined[k] = v
		}
		for k, v := range locals {
			combined[k] = v
		}
		globals = combined
	}

	result, err := starlark.Eval(thread, filename, expr, globals) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		var ret *ReturnValue
		if errors.As(err, &ret) {
			return ret.Value, nil
		}
		return nil, &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
			Err:     err,
		}
	}

	return result, nil
}

// EvalExprString evaluates an expression and renders the result as text.
// None renders as the empty string.
func (ctx *ExecutionContext) EvalExprString(c context.Context, expr string, filename string, line int) (string, error) {
	result, err := ctx.EvalExpr(c, expr, filename, line)
	if err != nil {
		return "", err
	}
	if result == starlark.None {
		return "", nil
	}
	return Stringify(result), nil
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
	Err     error
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}

// Unwrap returns the evaluation failure, so error kinds raised by
// built-ins stay visible to core.IsKind.
func (e *EvalError) Unwrap() error { return e.Err }
