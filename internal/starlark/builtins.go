package starlark

import (
	"crypto/md5" //nolint:gosec // local_md5 is a checksum helper, not a security primitive
	"encoding/hex"
	"log/slog"

	"github.com/leapstack-labs/leapforge/pkg/core"
	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Version is reported to templates as dbt_version.
const Version = "1.10.0"

// BuiltinOptions configures the built-in library.
type BuiltinOptions struct {
	Logger *slog.Logger
	// Vars backs var(). Values are converted with GoToStarlark.
	Vars map[string]any
	// Docs backs doc(). Nil means no documentation blocks.
	Docs *DocMacro
}

// Builtins returns the functions and host objects every evaluation sees.
func Builtins(opts BuiltinOptions) starlark.StringDict {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	docs := opts.Docs
	if docs == nil {
		docs = NewDocMacro("", nil)
	}
	vars := opts.Vars

	return starlark.StringDict{
		"var": starlark.NewBuiltin("var", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return lookupVar(vars, newArgParser(b.Name(), args, kwargs))
		}),
		"env_var":               starlark.NewBuiltin("env_var", envVar),
		"return_":               starlark.NewBuiltin("return_", returnFn),
		"fromjson":              starlark.NewBuiltin("fromjson", fromjson),
		"tojson":                starlark.NewBuiltin("tojson", tojson),
		"fromyaml":              starlark.NewBuiltin("fromyaml", fromyaml),
		"toyaml":                starlark.NewBuiltin("toyaml", toyaml),
		"set":                   starlark.NewBuiltin("set", setFn),
		"set_strict":            starlark.NewBuiltin("set_strict", setStrictFn),
		"zip":                   starlark.NewBuiltin("zip", zipFn),
		"zip_strict":            starlark.NewBuiltin("zip_strict", zipStrictFn),
		"diff_of_two_dicts":     starlark.NewBuiltin("diff_of_two_dicts", diffOfTwoDicts),
		"try_or_compiler_error": starlark.NewBuiltin("try_or_compiler_error", tryOrCompilerError),
		"local_md5":             starlark.NewBuiltin("local_md5", localMD5),
		"log": starlark.NewBuiltin("log", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return logFn(logger, newArgParser(b.Name(), args, kwargs))
		}),
		"print": starlark.NewBuiltin("print", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return printFn(logger, args)
		}),
		"doc":         docs,
		"exceptions":  NewExceptions(logger),
		"json":        json.Module,
		"struct":      starlark.NewBuiltin("struct", starlarkstruct.Make),
		"dbt_version": starlark.String(Version),
	}
}

func lookupVar(vars map[string]any, p *argParser) (starlark.Value, error) {
	name, err := p.requiredString("name")
	if err != nil {
		return nil, err
	}
	if v, ok := vars[name]; ok {
		return GoToStarlark(v)
	}
	if def, ok := p.optional("default"); ok {
		return def, nil
	}
	return nil, core.InvalidOperationError("'var': variable '%s' not found", name)
}

// ReturnValue is raised by return_ to end evaluation with a value. Macro
// callers unwrap it with errors.As.
type ReturnValue struct {
	Value starlark.Value
}

func (r *ReturnValue) Error() string { return "return_ called outside of a macro" }

func returnFn(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 {
		return nil, core.InvalidOperationError("return_ requires exactly 1 argument")
	}
	return nil, &ReturnValue{Value: args[0]}
}

// try_or_compiler_error(message_if_exception, func, *args, **kwargs).
// The callee's error is replaced by the message.
func tryOrCompilerError(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	p := newArgParser(b.Name(), args, kwargs)
	msg, err := p.requiredString("message_if_exception")
	if err != nil {
		return nil, err
	}
	fn, err := p.required("func")
	if err != nil {
		return nil, err
	}
	result, err := starlark.Call(thread, fn, p.rest(), p.remainingKwargs())
	if err != nil {
		return nil, core.InvalidOperationError("%s", msg)
	}
	return result, nil
}

func localMD5(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 {
		return nil, core.InvalidOperationError("local_md5 requires exactly 1 argument")
	}
	s, ok := starlark.AsString(args[0])
	if !ok {
		return nil, core.InvalidOperationError("local_md5's argument must be a string")
	}
	sum := md5.Sum([]byte(s)) //nolint:gosec // see import
	return starlark.String(hex.EncodeToString(sum[:])), nil
}

// log(msg, info=False) logs at Info when info is true and at Debug
// otherwise.
func logFn(logger *slog.Logger, p *argParser) (starlark.Value, error) {
	msg, err := p.required("msg")
	if err != nil {
		return nil, err
	}
	if p.optionalBool("info") {
		logger.Info(Stringify(msg))
	} else {
		logger.Debug(Stringify(msg))
	}
	return starlark.String(""), nil
}

func printFn(logger *slog.Logger, args starlark.Tuple) (starlark.Value, error) {
	switch len(args) {
	case 0:
		return nil, core.InvalidOperationError("print requires at least one argument (a message to print)")
	case 1:
		logger.Info(Stringify(args[0]))
		return starlark.String(""), nil
	default:
		return nil, core.InvalidOperationError("print accepts only one argument")
	}
}
