package adapter

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// DataKind is the logical type of a result or seed column.
type DataKind int

// Data kinds, from most to least specific.
const (
	KindText DataKind = iota
	KindBoolean
	KindInteger
	KindNumber
	KindDate
	KindDateTime
)

// String returns the string representation of the kind.
func (k DataKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	default:
		return "text"
	}
}

// Table is a materialized result set.
type Table struct {
	Columns []string
	Kinds   []DataKind
	Rows    [][]any
}

// NewTable builds a table and infers column kinds from the values.
func NewTable(columns []string, rows [][]any) *Table {
	t := &Table{Columns: columns, Rows: rows, Kinds: make([]DataKind, len(columns))}
	for i := range columns {
		t.Kinds[i] = inferKind(rows, i)
	}
	return t
}

// ReadTable drains rows into a table. limit caps the number of rows read;
// zero reads everything.
func ReadTable(rows *sql.Rows, limit int) (*Table, error) {
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}
	t := &Table{Columns: make([]string, len(types)), Kinds: make([]DataKind, len(types))}
	for i, ct := range types {
		t.Columns[i] = ct.Name()
		t.Kinds[i] = kindOfDatabaseType(ct.DatabaseTypeName())
	}

	for rows.Next() {
		if limit > 0 && len(t.Rows) >= limit {
			break
		}
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return t, nil
}

// EmptyTable is the result of a statement that was not fetched.
func EmptyTable() *Table { return &Table{} }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex finds a column by exact name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// ColumnIndexFold finds a column ignoring case.
func (t *Table) ColumnIndexFold(name string) (int, bool) {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i, true
		}
	}
	return 0, false
}

// ColumnValues returns the values of one column.
func (t *Table) ColumnValues(name string) ([]any, error) {
	i, ok := t.ColumnIndexFold(name)
	if !ok {
		return nil, core.InternalError("column %q not found in result table", name)
	}
	out := make([]any, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Kind returns the inferred kind of a column. An out of range index is a bug
// in the caller.
func (t *Table) Kind(col int) (DataKind, error) {
	if col < 0 || col >= len(t.Kinds) {
		return 0, core.InternalError("column index %d out of bounds for table with %d columns", col, len(t.Kinds))
	}
	return t.Kinds[col], nil
}

func kindOfDatabaseType(name string) DataKind {
	switch n := strings.ToUpper(name); {
	case n == "BOOL" || n == "BOOLEAN":
		return KindBoolean
	case strings.Contains(n, "INT") || n == "SERIAL":
		return KindInteger
	case strings.HasPrefix(n, "FLOAT") || n == "DOUBLE" || n == "REAL" ||
		strings.HasPrefix(n, "NUMERIC") || strings.HasPrefix(n, "DECIMAL") || n == "NUMBER":
		return KindNumber
	case n == "DATE":
		return KindDate
	case strings.HasPrefix(n, "TIMESTAMP") || n == "DATETIME":
		return KindDateTime
	default:
		return KindText
	}
}

var dateLayouts = []string{"2006-01-02", "2006/01/02"}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// inferKind picks the narrowest kind every non-null value of a column fits.
func inferKind(rows [][]any, col int) DataKind {
	candidates := []DataKind{KindBoolean, KindInteger, KindNumber, KindDate, KindDateTime}
	seen := false
	for _, row := range rows {
		if col >= len(row) || isNull(row[col]) {
			continue
		}
		seen = true
		kept := candidates[:0]
		for _, k := range candidates {
			if fits(row[col], k) {
				kept = append(kept, k)
			}
		}
		candidates = kept
		if len(candidates) == 0 {
			return KindText
		}
	}
	if !seen {
		return KindText
	}
	return candidates[0]
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func fits(v any, k DataKind) bool {
	switch x := v.(type) {
	case bool:
		return k == KindBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return k == KindInteger || k == KindNumber
	case float32, float64:
		f := reflect.ValueOf(x).Float()
		return k == KindNumber || (k == KindInteger && f == float64(int64(f)))
	case time.Time:
		if k == KindDate {
			return x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0
		}
		return k == KindDateTime
	case string:
		return stringFits(x, k)
	}
	return false
}

func stringFits(s string, k DataKind) bool {
	switch k {
	case KindBoolean:
		switch strings.ToLower(s) {
		case "true", "false":
			return true
		}
		return false
	case KindInteger:
		_, err := strconv.ParseInt(s, 10, 64)
		return err == nil
	case KindNumber:
		_, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		return err == nil
	case KindDate:
		return parsesAny(s, dateLayouts)
	case KindDateTime:
		return parsesAny(s, dateTimeLayouts)
	}
	return false
}

func parsesAny(s string, layouts []string) bool {
	for _, l := range layouts {
		if _, err := time.Parse(l, s); err == nil {
			return true
		}
	}
	return false
}
