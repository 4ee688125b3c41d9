package starlark

import (
	"context"
	"fmt"
	"testing"

	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

type fakeRefs struct {
	calls []string
}

func (f *fakeRefs) Ref(pkg, name, version string) (*relation.Relation, error) {
	f.calls = append(f.calls, fmt.Sprintf("ref(%s,%s,%s)", pkg, name, version))
	if name == "missing" {
		return nil, core.ConfigurationError("model depends on a node named '%s' which was not found", name)
	}
	return relation.MustNew(relation.Postgres, "warehouse", "analytics", name, relation.TypeTable, core.AllTrue()), nil
}

func (f *fakeRefs) Source(sourceName, tableName string) (*relation.Relation, error) {
	f.calls = append(f.calls, fmt.Sprintf("source(%s,%s)", sourceName, tableName))
	return relation.MustNew(relation.Postgres, "warehouse", sourceName, tableName, relation.TypeTable, core.AllTrue()), nil
}

func TestRefs(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
		call string
	}{
		{name: "ref by name", expr: `str(ref("orders"))`, want: `"warehouse"."analytics"."orders"`, call: "ref(,orders,)"},
		{name: "ref with package", expr: `ref("shop", "orders").identifier`, want: "orders", call: "ref(shop,orders,)"},
		{name: "ref keyword", expr: `ref(name = "orders").identifier`, want: "orders", call: "ref(,orders,)"},
		{name: "ref version", expr: `ref("orders", v = 2).identifier`, want: "orders", call: "ref(,orders,2)"},
		{name: "source", expr: `str(source("raw", "payments"))`, want: `"warehouse"."raw"."payments"`, call: "source(raw,payments)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := &fakeRefs{}
			ctx := newTestContext(t, WithRefs(refs))
			assert.Equal(t, tt.want, evalString(t, ctx, tt.expr))
			assert.Equal(t, []string{tt.call}, refs.calls)
		})
	}
}

func TestRefs_Errors(t *testing.T) {
	ctx := newTestContext(t, WithRefs(&fakeRefs{}))
	for expr, msg := range map[string]string{
		`ref("missing")`:       "which was not found",
		`ref("a", "b", "c")`:   "takes 1 or 2 positional arguments",
		`ref("a", mode = "x")`: "unexpected keyword",
		`source("raw")`:        "missing required argument 'table_name'",
		`ref()`:                "missing required argument 'name'",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ctx.EvalExpr(context.Background(), expr, "test.sql", 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), msg)
		})
	}
}

func TestRefs_NoneWithoutResolver(t *testing.T) {
	ctx := newTestContext(t)
	assert.Equal(t, starlark.None, ctx.Globals()["ref"])
	assert.True(t, IsReserved("ref"))
	assert.True(t, IsReserved("source"))
}
