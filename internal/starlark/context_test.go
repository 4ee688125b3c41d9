package starlark

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapforge/internal/testutil"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func newTestContext(t *testing.T, opts ...ContextOption) *ExecutionContext {
	t.Helper()
	target := &TargetInfo{Name: "dev", Type: "postgres", Schema: "analytics", Database: "warehouse", Threads: 4}
	opts = append([]ContextOption{WithLogger(testutil.NewTestLogger(t))}, opts...)
	ctx, err := NewContext(map[string]any{"materialized": "table", "tags": []any{"a", "b"}}, target, opts...)
	require.NoError(t, err)
	return ctx
}

func evalString(t *testing.T, ctx *ExecutionContext, expr string) string {
	t.Helper()
	got, err := ctx.EvalExprString(context.Background(), expr, "test.star", 1)
	require.NoError(t, err, expr)
	return got
}

func TestNewContext_Globals(t *testing.T) {
	ctx := newTestContext(t)
	globals := ctx.Globals()
	for _, key := range []string{"config", "target", "this", "var", "env_var", "tojson", "exceptions", "doc", "dbt_version"} {
		_, ok := globals[key]
		assert.True(t, ok, "global %q not found", key)
	}
	assert.Equal(t, starlark.None, globals["adapter"], "adapter is None unless configured")
	assert.True(t, IsReserved("exceptions"))
	assert.False(t, IsReserved("utils"))
}

func TestExecutionContext_EvalExpr(t *testing.T) {
	this := relation.MustNew(relation.Postgres, "warehouse", "analytics", "orders", relation.TypeTable, core.AllTrue())
	ctx := newTestContext(t, WithThis(this))

	tests := []struct {
		name string
		expr string
		want string
	}{
		{name: "config access", expr: `config["materialized"]`, want: "table"},
		{name: "config get default", expr: `config.get("unique_key", "id")`, want: "id"},
		{name: "target", expr: `target.type + ":" + target.schema`, want: "postgres:analytics"},
		{name: "target threads", expr: `str(target.threads)`, want: "4"},
		{name: "this renders", expr: `str(this)`, want: `"warehouse"."analytics"."orders"`},
		{name: "conditional", expr: `"prod" if target.name == "prod" else "dev"`, want: "dev"},
		{name: "none renders empty", expr: `None`, want: ""},
		{name: "return ends evaluation", expr: `return_("early")`, want: "early"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalString(t, ctx, tt.expr))
		})
	}
}

func TestExecutionContext_EvalExprWithLocals(t *testing.T) {
	ctx := newTestContext(t)
	got, err := ctx.EvalExprWithLocals(context.Background(), `col + "_" + config["materialized"]`, "test.star", 3,
		starlark.StringDict{"col": starlark.String("id")})
	require.NoError(t, err)
	assert.Equal(t, starlark.String("id_table"), got)
}

func TestExecutionContext_EvalError(t *testing.T) {
	ctx := newTestContext(t)

	_, err := ctx.EvalExpr(context.Background(), `undefined_name`, "models/orders.sql", 7)
	require.Error(t, err)
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, 7, evalErr.Line)
	assert.Contains(t, err.Error(), "models/orders.sql:7")

	_, err = ctx.EvalExpr(context.Background(), `var("missing")`, "models/orders.sql", 0)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindInvalidOperation), "kind is kept through evaluation: %v", err)
}

func TestAddMacros(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.AddMacros(starlark.StringDict{"utils": starlark.String("ns")}))
	assert.Equal(t, "ns", evalString(t, ctx, `utils`))

	err := ctx.AddMacros(starlark.StringDict{"config": starlark.None})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicts with builtin")
}

func TestRaiseCompilerError(t *testing.T) {
	tests := []struct {
		name string
		opts []ContextOption
		want string
	}{
		{name: "without node", want: "Compilation Error: bad input"},
		{
			name: "with node",
			opts: []ContextOption{WithNode(NodeInfo{UniqueID: "model.shop.orders", Path: "models/orders.sql"})},
			want: "Compilation Error for model.shop.orders from models/orders.sql: bad input",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t, tt.opts...)
			_, err := ctx.EvalExpr(context.Background(), `exceptions.raise_compiler_error("bad input")`, "x", 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, core.IsKind(err, core.KindInvalidOperation))
		})
	}
}

func TestExceptions(t *testing.T) {
	ctx := newTestContext(t)
	assert.Equal(t, "", evalString(t, ctx, `exceptions.warn("careful")`))
	assert.Equal(t, "", evalString(t, ctx, `exceptions.raise_not_implemented("x")`))

	_, err := ctx.EvalExpr(context.Background(), `exceptions.explode()`, "x", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown method on Exceptions: explode")
}
