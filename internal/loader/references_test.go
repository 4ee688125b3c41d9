package loader

import (
	"testing"

	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"github.com/stretchr/testify/assert"
)

func TestExtractReferences(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []nodes.Ref
	}{
		{name: "none", sql: "select 1"},
		{
			name: "single quoted and double quoted",
			sql:  `select * from {{ ref('orders') }} join {{ ref("customers") }} using (id)`,
			want: []nodes.Ref{{Name: "orders"}, {Name: "customers"}},
		},
		{
			name: "package and version",
			sql:  `{{ ref('shop', 'orders') }} {{ ref('orders', v=2) }} {{ ref('orders', version='1.5') }}`,
			want: []nodes.Ref{{Package: "shop", Name: "orders"}, {Name: "orders", Version: "2"}, {Name: "orders", Version: "1.5"}},
		},
		{
			name: "duplicates collapse in order",
			sql:  `{{ ref('b') }} {{ ref( 'a' ) }} {{ ref('b') }}`,
			want: []nodes.Ref{{Name: "b"}, {Name: "a"}},
		},
		{
			name: "dynamic argument is not extracted",
			sql:  `{{ ref(name) }} {{ myref('x') }}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractReferences(tt.sql))
		})
	}
}

func TestExtractSources(t *testing.T) {
	got := ExtractSources(`from {{ source('raw', 'orders') }} join {{ source("raw", "items") }} join {{ source('raw', 'orders') }}`)
	assert.Equal(t, []nodes.SourceRef{
		{SourceName: "raw", TableName: "orders"},
		{SourceName: "raw", TableName: "items"},
	}, got)
	assert.Nil(t, ExtractSources(`{{ source('raw') }}`))
}

func TestExtractMacroCalls(t *testing.T) {
	sql := `select {{ utils.cents(amount) }}, {{ dates.trunc("day") }}, {{ utils.cents(tax) }}, {{ target.schema }}, {{ adapter.quote("x") }}`
	assert.Equal(t, []string{"dates.trunc", "utils.cents"}, ExtractMacroCalls(sql, []string{"utils", "dates"}))
	assert.Nil(t, ExtractMacroCalls(sql, nil))
}
