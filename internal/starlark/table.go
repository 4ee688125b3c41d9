package starlark

import (
	"fmt"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"go.starlark.net/starlark"
)

// Table is a fetched result set. It indexes and iterates as a list of row
// dicts keyed by column name and keeps the typed table for Go callers.
type Table struct {
	t    *adapter.Table
	rows *starlark.List
}

var (
	_ starlark.Indexable = (*Table)(nil)
	_ starlark.Iterable  = (*Table)(nil)
	_ starlark.HasAttrs  = (*Table)(nil)
)

// NewTable wraps t.
func NewTable(t *adapter.Table) *Table {
	rows := make([]starlark.Value, 0, t.Len())
	for _, row := range t.Rows {
		d := starlark.NewDict(len(t.Columns))
		for i, col := range t.Columns {
			v, err := GoToStarlark(row[i])
			if err != nil {
				v = starlark.String(fmt.Sprint(row[i]))
			}
			_ = d.SetKey(starlark.String(col), v)
		}
		rows = append(rows, d)
	}
	return &Table{t: t, rows: starlark.NewList(rows)}
}

// Unwrap returns the typed table.
func (t *Table) Unwrap() *adapter.Table { return t.t }

func (t *Table) String() string        { return t.rows.String() }
func (t *Table) Type() string          { return "table" }
func (t *Table) Freeze()               { t.rows.Freeze() }
func (t *Table) Truth() starlark.Bool  { return t.rows.Len() > 0 }
func (t *Table) Hash() (uint32, error) { return 0, core.InvalidOperationError("unhashable: table") }

// Index implements starlark.Indexable.
func (t *Table) Index(i int) starlark.Value { return t.rows.Index(i) }

// Len implements starlark.Indexable.
func (t *Table) Len() int { return t.rows.Len() }

// Iterate implements starlark.Iterable.
func (t *Table) Iterate() starlark.Iterator { return t.rows.Iterate() }

// Attr implements starlark.HasAttrs.
func (t *Table) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		return GoToStarlark(t.t.Columns)
	case "rows":
		return t.rows, nil
	}
	return nil, nil
}

// AttrNames implements starlark.HasAttrs.
func (t *Table) AttrNames() []string { return []string{"columns", "rows"} }
