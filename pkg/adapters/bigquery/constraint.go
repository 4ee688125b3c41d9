package bigquery

import (
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

const notEnforced = " not enforced"

// GetConstraintSupport implements adapter.TypedAdapter. BigQuery accepts
// keys as metadata only.
func (a *Adapter) GetConstraintSupport(t core.ConstraintType) adapter.ConstraintSupport {
	switch t {
	case core.ConstraintUnique, core.ConstraintPrimaryKey, core.ConstraintForeignKey:
		return adapter.NotEnforced
	default:
		return adapter.NotSupported
	}
}

// RenderColumnConstraint renders primary and foreign keys as not enforced.
// Every other constraint renders nothing.
func (a *Adapter) RenderColumnConstraint(c core.Constraint) (string, bool) {
	if a.GetConstraintSupport(c.Type) == adapter.NotSupported {
		return "", false
	}
	if !isKey(c.Type) {
		return "", false
	}
	rendered, ok := adapter.RenderColumnConstraint(c)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rendered) + notEnforced, true
}

// RenderModelConstraint renders primary and foreign keys as not enforced.
func (a *Adapter) RenderModelConstraint(c core.Constraint) (string, bool) {
	if !isKey(c.Type) {
		return "", false
	}
	rendered, ok := adapter.RenderModelConstraint(c)
	if !ok {
		return "", false
	}
	return rendered + notEnforced, true
}

func isKey(t core.ConstraintType) bool {
	return t == core.ConstraintPrimaryKey || t == core.ConstraintForeignKey
}
