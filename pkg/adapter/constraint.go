package adapter

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// GetConstraintSupport returns how the warehouse treats a constraint type.
// Check constraints are not supported by default; not null and foreign keys
// are enforced; unique and primary keys are accepted but not enforced.
func (b *Base) GetConstraintSupport(t core.ConstraintType) ConstraintSupport {
	switch t {
	case core.ConstraintNotNull, core.ConstraintForeignKey:
		return Enforced
	case core.ConstraintUnique, core.ConstraintPrimaryKey:
		return NotEnforced
	default:
		return NotSupported
	}
}

// RenderRawColumnsConstraints renders "name type constraint..." for every
// column, ordered by column key.
func (b *Base) RenderRawColumnsConstraints(columns map[string]core.ColumnDef) []string {
	out := make([]string, 0, len(columns))
	for _, key := range sortedKeys(columns) {
		col := columns[key]
		parts := []string{fmt.Sprintf("%s %s", col.Name, col.DataType)}
		for _, c := range col.Constraints {
			if rendered, ok := b.self.RenderColumnConstraint(c); ok {
				parts = append(parts, rendered)
			}
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

// RenderColumnConstraint renders an inline column constraint. Constraints the
// warehouse does not support render nothing.
func (b *Base) RenderColumnConstraint(c core.Constraint) (string, bool) {
	if b.self.GetConstraintSupport(c.Type) == NotSupported {
		return "", false
	}
	rendered, ok := RenderColumnConstraint(c)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rendered), true
}

// RenderColumnConstraint renders c as an inline column constraint without
// consulting warehouse support.
func RenderColumnConstraint(c core.Constraint) (string, bool) {
	expr := c.Expression
	switch c.Type {
	case core.ConstraintCheck:
		if expr == "" {
			return "", false
		}
		return fmt.Sprintf("check (%s)", expr), true
	case core.ConstraintNotNull:
		return "not null " + expr, true
	case core.ConstraintUnique:
		return "unique " + expr, true
	case core.ConstraintPrimaryKey:
		return "primary key " + expr, true
	case core.ConstraintForeignKey:
		if c.To != "" && c.ToColumns != nil {
			return fmt.Sprintf("references %s (%s)", c.To, strings.Join(c.ToColumns, ", ")), true
		}
		if expr != "" {
			return "references " + expr, true
		}
		return "", false
	case core.ConstraintCustom:
		if expr == "" {
			return "", false
		}
		return expr, true
	}
	return "", false
}

// RenderRawModelConstraints renders every model-level constraint that
// produces DDL.
func (b *Base) RenderRawModelConstraints(constraints []core.Constraint) []string {
	out := make([]string, 0, len(constraints))
	for _, c := range constraints {
		if rendered, ok := b.self.RenderModelConstraint(c); ok {
			out = append(out, rendered)
		}
	}
	return out
}

// RenderModelConstraint renders a table-level constraint.
func (b *Base) RenderModelConstraint(c core.Constraint) (string, bool) {
	return RenderModelConstraint(c)
}

// RenderModelConstraint renders c as a table-level constraint clause. Not
// null constraints only exist on columns and render nothing.
func RenderModelConstraint(c core.Constraint) (string, bool) {
	var prefix string
	if c.Name != "" {
		prefix = fmt.Sprintf("constraint %s ", c.Name)
	}
	cols := strings.Join(c.Columns, ", ")
	var expr string
	if c.Expression != "" {
		expr = " " + c.Expression
	}

	switch c.Type {
	case core.ConstraintCheck:
		if c.Expression == "" {
			return "", false
		}
		return fmt.Sprintf("%scheck (%s)", prefix, c.Expression), true
	case core.ConstraintUnique:
		return fmt.Sprintf("%sunique%s (%s)", prefix, expr, cols), true
	case core.ConstraintPrimaryKey:
		return fmt.Sprintf("%sprimary key%s (%s)", prefix, expr, cols), true
	case core.ConstraintForeignKey:
		if c.To != "" && c.ToColumns != nil {
			return fmt.Sprintf("%sforeign key (%s) references %s (%s)", prefix, cols, c.To, strings.Join(c.ToColumns, ", ")), true
		}
		if c.Expression == "" {
			return "", false
		}
		return fmt.Sprintf("%sforeign key (%s) references %s", prefix, cols, c.Expression), true
	case core.ConstraintCustom:
		if c.Expression == "" {
			return "", false
		}
		return prefix + c.Expression, true
	}
	return "", false
}
