package starlark

import (
	"go.starlark.net/starlark"
)

// RunInfo describes the invocation a node is built in.
type RunInfo struct {
	InvocationID string
	// Incremental is true when an incremental model builds on top of an
	// existing relation.
	Incremental bool
	FullRefresh bool
}

// WithRun exposes invocation_id, is_incremental() and should_full_refresh().
func WithRun(r RunInfo) ContextOption {
	return func(ctx *ExecutionContext) { ctx.run = r }
}

func (r RunInfo) globals() starlark.StringDict {
	incremental := starlark.Bool(r.Incremental && !r.FullRefresh)
	fullRefresh := starlark.Bool(r.FullRefresh)
	return starlark.StringDict{
		"invocation_id": starlark.String(r.InvocationID),
		"is_incremental": starlark.NewBuiltin("is_incremental", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			return incremental, nil
		}),
		"should_full_refresh": starlark.NewBuiltin("should_full_refresh", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			return fullRefresh, nil
		}),
	}
}
