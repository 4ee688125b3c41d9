package bigquery

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

type field struct {
	def      *core.ColumnDef
	children map[string]*field
}

// NestColumnDataTypes folds dotted column names into struct types on their
// root column, so "a.b int64" and "a.c string" become
// "a struct<b int64, c string>". A root declared as array wraps the struct.
// Subfields without a data type are left out.
func (a *Adapter) NestColumnDataTypes(columns map[string]core.ColumnDef) (map[string]core.ColumnDef, error) {
	return NestColumnDataTypes(columns), nil
}

// NestColumnDataTypes is the adapter-independent form of
// Adapter.NestColumnDataTypes.
func NestColumnDataTypes(columns map[string]core.ColumnDef) map[string]core.ColumnDef {
	roots := map[string]*field{}
	for key, col := range columns {
		name := col.Name
		if name == "" {
			name = key
		}
		path := strings.Split(name, ".")
		node := roots[path[0]]
		if node == nil {
			node = &field{}
			roots[path[0]] = node
		}
		for _, p := range path[1:] {
			if node.children == nil {
				node.children = map[string]*field{}
			}
			next := node.children[p]
			if next == nil {
				next = &field{}
				node.children[p] = next
			}
			node = next
		}
		c := col
		node.def = &c
	}

	out := make(map[string]core.ColumnDef, len(roots))
	for name, node := range roots {
		var col core.ColumnDef
		if node.def != nil {
			col = *node.def
		}
		col.Name = name
		if len(node.children) > 0 {
			col.DataType = node.dataType()
		}
		out[name] = col
	}
	return out
}

func (f *field) dataType() string {
	var declared string
	if f.def != nil {
		declared = strings.TrimSpace(f.def.DataType)
	}
	if len(f.children) == 0 {
		return declared
	}
	names := make([]string, 0, len(f.children))
	for n := range f.children {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if t := f.children[n].dataType(); t != "" {
			parts = append(parts, n+" "+t)
		}
	}
	if len(parts) == 0 {
		return declared
	}
	st := "struct<" + strings.Join(parts, ", ") + ">"
	if strings.EqualFold(declared, "array") {
		return "array<" + st + ">"
	}
	return st
}
