package relation

import (
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// Type tags what kind of warehouse object a relation is. The zero value
// means the type is not known.
type Type string

// Relation types.
const (
	TypeNone             Type = ""
	TypeTable            Type = "table"
	TypeView             Type = "view"
	TypeCTE              Type = "cte"
	TypeMaterializedView Type = "materialized_view"
	TypeEphemeral        Type = "ephemeral"
	TypeExternal         Type = "external"
	TypePointerTable     Type = "pointer_table"
	TypeDynamicTable     Type = "dynamic_table"
	TypeStreamingTable   Type = "streaming_table"
)

// ParseType converts a dbt relation type name.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeNone, TypeTable, TypeView, TypeCTE, TypeMaterializedView, TypeEphemeral,
		TypeExternal, TypePointerTable, TypeDynamicTable, TypeStreamingTable:
		return t, nil
	}
	return TypeNone, core.InvalidOperationError("Invalid relation type: %s", s)
}

// ParseWarehouseType converts a table type as reported by the warehouse's
// information schema. Warehouses without their own vocabulary use dbt names.
func ParseWarehouseType(adapterType, s string) (Type, error) {
	switch adapterType {
	case BigQuery.Name:
		switch s {
		case "BASE TABLE", "CLONE", "SNAPSHOT":
			return TypeTable, nil
		case "VIEW":
			return TypeView, nil
		case "MATERIALIZED VIEW":
			return TypeMaterializedView, nil
		case "EXTERNAL":
			return TypeExternal, nil
		}
		return TypeNone, core.InvalidOperationError("unknown table type: %s", s)
	case Databricks.Name:
		switch strings.ToUpper(s) {
		case "TABLE", "MANAGED", "MANAGED_SHALLOW_CLONE":
			return TypeTable, nil
		case "VIEW":
			return TypeView, nil
		case "MATERIALIZED_VIEW":
			return TypeMaterializedView, nil
		case "EXTERNAL", "EXTERNAL_SHALLOW_CLONE", "FOREIGN":
			return TypeExternal, nil
		case "STREAMING_TABLE":
			return TypeStreamingTable, nil
		}
		return TypeNone, core.InvalidOperationError("unknown table type: %s", s)
	default:
		return ParseType(s)
	}
}
