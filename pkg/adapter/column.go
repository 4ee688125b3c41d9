package adapter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// Column is a physical column of a warehouse relation.
type Column struct {
	Name             string `json:"name"`
	DType            string `json:"dtype"`
	CharSize         *int   `json:"char_size,omitempty"`
	NumericPrecision *int   `json:"numeric_precision,omitempty"`
	NumericScale     *int   `json:"numeric_scale,omitempty"`
	Nullable         bool   `json:"nullable"`
	Position         int    `json:"position"`
}

// defaultStringSize is assumed for text columns and strings of unknown size.
const defaultStringSize = 256

func (c Column) lowerType() string { return strings.ToLower(c.DType) }

// IsString reports whether the column holds character data.
func (c Column) IsString() bool {
	switch c.lowerType() {
	case "text", "character varying", "character", "varchar":
		return true
	}
	return false
}

// IsFloat reports whether the column is a floating point type.
func (c Column) IsFloat() bool {
	switch c.lowerType() {
	case "real", "float4", "float", "double precision", "float8", "double":
		return true
	}
	return false
}

// IsInteger reports whether the column is an integer type.
func (c Column) IsInteger() bool {
	switch c.lowerType() {
	case "smallint", "integer", "bigint", "smallserial", "serial", "bigserial",
		"int2", "int4", "int8", "serial2", "serial4", "serial8":
		return true
	}
	return false
}

// IsNumeric reports whether the column is a fixed point decimal.
func (c Column) IsNumeric() bool {
	switch c.lowerType() {
	case "numeric", "decimal":
		return true
	}
	return false
}

// IsNumber reports whether the column holds any kind of number.
func (c Column) IsNumber() bool { return c.IsFloat() || c.IsInteger() || c.IsNumeric() }

// StringSize returns the declared length of a string column.
func (c Column) StringSize() (int, error) {
	if !c.IsString() {
		return 0, core.InvalidOperationError("Called string_size() on non-string field")
	}
	if c.DType == "text" || c.CharSize == nil {
		return defaultStringSize, nil
	}
	return *c.CharSize, nil
}

// CanExpandTo reports whether c is a string column narrower than other.
func (c Column) CanExpandTo(other Column) (bool, error) {
	if !c.IsString() || !other.IsString() {
		return false, nil
	}
	mine, err := c.StringSize()
	if err != nil {
		return false, err
	}
	theirs, err := other.StringSize()
	if err != nil {
		return false, err
	}
	return mine < theirs, nil
}

// StringType is the generic varchar type of the given length.
func StringType(size int) string { return fmt.Sprintf("character varying(%d)", size) }

// NumericType renders dtype with precision and scale when both are known.
func NumericType(dtype string, precision, scale *int) string {
	if precision != nil && scale != nil {
		return fmt.Sprintf("%s(%d,%d)", dtype, *precision, *scale)
	}
	return dtype
}

// Quoted returns the column name in double quotes.
func (c Column) Quoted() string { return `"` + c.Name + `"` }

// DataType renders the full column type, including sizes.
func (c Column) DataType() string {
	switch {
	case c.IsString():
		size, _ := c.StringSize()
		return StringType(size)
	case c.IsNumeric():
		return NumericType(c.DType, c.NumericPrecision, c.NumericScale)
	default:
		return c.DType
	}
}

var rawDataType = regexp.MustCompile(`^([^(]+)(\(([^)]+)\))?`)

// ParseColumn builds a column from a raw warehouse type such as
// VARCHAR(16777216) or NUMBER(38,0).
func ParseColumn(name, raw string) (Column, error) {
	m := rawDataType.FindStringSubmatch(raw)
	if m == nil {
		return Column{}, core.InvalidOperationError("Could not interpret raw_data_type %q", raw)
	}
	col := Column{Name: name, DType: m[1]}
	if m[3] == "" {
		return col, nil
	}

	parts := strings.Split(m[3], ",")
	ints := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Column{}, core.InvalidOperationError(
				"Could not interpret data_type %q: could not convert %q to an integer", raw, p)
		}
		ints = append(ints, n)
	}
	switch len(ints) {
	case 1:
		col.CharSize = &ints[0]
	case 2:
		col.NumericPrecision, col.NumericScale = &ints[0], &ints[1]
	}
	return col, nil
}
