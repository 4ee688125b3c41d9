// Package redshift provides the Amazon Redshift adapter. Redshift speaks the
// Postgres protocol, so the adapter extends the postgres one.
package redshift

import (
	"log/slog"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/adapters/postgres"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// Adapter implements adapter.TypedAdapter for Redshift.
type Adapter struct {
	*postgres.Adapter
}

// New creates a Redshift adapter. It does not connect.
func New(cfg adapter.Config, logger *slog.Logger) *Adapter {
	a := &Adapter{Adapter: postgres.NewWithFlavor(relation.Redshift, cfg, 5439, logger)}
	a.Split = adapter.SplitOptions{DollarQuotes: true}
	a.Types[adapter.KindText] = "varchar"
	a.Types[adapter.KindDateTime] = "timestamp without time zone"
	a.Bind(a)
	return a
}

// ValidIncrementalStrategies lists the supported incremental strategies.
func (a *Adapter) ValidIncrementalStrategies() []string {
	return []string{core.StrategyAppend, core.StrategyDeleteInsert, core.StrategyMerge, core.StrategyMicrobatch}
}

// GetConstraintSupport reports that Redshift accepts unique, primary and
// foreign keys without enforcing them. Check constraints are not supported.
func (a *Adapter) GetConstraintSupport(t core.ConstraintType) adapter.ConstraintSupport {
	switch t {
	case core.ConstraintNotNull:
		return adapter.Enforced
	case core.ConstraintUnique, core.ConstraintPrimaryKey, core.ConstraintForeignKey:
		return adapter.NotEnforced
	default:
		return adapter.NotSupported
	}
}

var _ adapter.TypedAdapter = (*Adapter)(nil)
