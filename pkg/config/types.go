// Package config holds the per-resource configuration records and the
// inheritance rules that fold project, directory and inline settings into
// a single resolved config per node.
package config

import (
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// Hook is a single pre- or post-hook statement.
type Hook struct {
	SQL         string `yaml:"sql"`
	Transaction bool   `yaml:"transaction"`
}

// Hooks is an ordered list of hooks. In project files it may be written as a
// string, a list of strings, a {sql, transaction} mapping or a list of those.
type Hooks []Hook

// SQL returns the hook statements in order.
func (h Hooks) SQL() []string {
	out := make([]string, 0, len(h))
	for _, hook := range h {
		out = append(out, hook.SQL)
	}
	return out
}

// StringList is a list of strings that may be written as a single string.
type StringList []string

// Quoting is the configurable quoting of relation components.
type Quoting struct {
	Database            *bool `yaml:"database,omitempty"`
	Schema              *bool `yaml:"schema,omitempty"`
	Identifier          *bool `yaml:"identifier,omitempty"`
	SnowflakeIgnoreCase *bool `yaml:"snowflake_ignore_case,omitempty"`
}

// IsDefault reports whether no component has been configured.
func (q *Quoting) IsDefault() bool {
	return q == nil || (q.Database == nil && q.Schema == nil && q.Identifier == nil)
}

// Resolve fills unset components from defaults.
func (q *Quoting) Resolve(defaults core.Policy) core.Policy {
	if q == nil {
		return defaults
	}
	out := defaults
	if q.Database != nil {
		out.Database = *q.Database
	}
	if q.Schema != nil {
		out.Schema = *q.Schema
	}
	if q.Identifier != nil {
		out.Identifier = *q.Identifier
	}
	return out
}

// PersistDocs controls persisting descriptions as warehouse comments.
type PersistDocs struct {
	Relation *bool `yaml:"relation,omitempty"`
	Columns  *bool `yaml:"columns,omitempty"`
}

// Docs controls how a node appears in generated documentation.
type Docs struct {
	Show      *bool   `yaml:"show,omitempty"`
	NodeColor *string `yaml:"node_color,omitempty"`
}

// Contract configures model contracts.
type Contract struct {
	Enforced   *bool `yaml:"enforced,omitempty"`
	AliasTypes *bool `yaml:"alias_types,omitempty"`
}

// FreshnessThreshold is a "count period" pair such as 12 hours.
type FreshnessThreshold struct {
	Count  *int    `yaml:"count,omitempty"`
	Period *string `yaml:"period,omitempty"`
}

// FreshnessRules holds source freshness thresholds.
type FreshnessRules struct {
	WarnAfter  *FreshnessThreshold `yaml:"warn_after,omitempty"`
	ErrorAfter *FreshnessThreshold `yaml:"error_after,omitempty"`
	Filter     *string             `yaml:"filter,omitempty"`
}

// ModelFreshness configures when a model is considered stale.
type ModelFreshness struct {
	BuildAfter *BuildAfter `yaml:"build_after,omitempty"`
}

// BuildAfter is the model freshness threshold.
type BuildAfter struct {
	Count     *int    `yaml:"count,omitempty"`
	Period    *string `yaml:"period,omitempty"`
	UpdatesOn *string `yaml:"updates_on,omitempty"`
}

// SnapshotMetaColumnNames overrides the names of snapshot bookkeeping columns.
type SnapshotMetaColumnNames struct {
	DbtValidTo   *string `yaml:"dbt_valid_to,omitempty"`
	DbtValidFrom *string `yaml:"dbt_valid_from,omitempty"`
	DbtScdID     *string `yaml:"dbt_scd_id,omitempty"`
	DbtUpdatedAt *string `yaml:"dbt_updated_at,omitempty"`
	DbtIsDeleted *string `yaml:"dbt_is_deleted,omitempty"`
}

// Overrides returns the configured overrides keyed by default column name.
func (n *SnapshotMetaColumnNames) Overrides() map[string]string {
	out := map[string]string{}
	if n == nil {
		return out
	}
	set := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	set("dbt_valid_to", n.DbtValidTo)
	set("dbt_valid_from", n.DbtValidFrom)
	set("dbt_scd_id", n.DbtScdID)
	set("dbt_updated_at", n.DbtUpdatedAt)
	set("dbt_is_deleted", n.DbtIsDeleted)
	return out
}

// IsMicrobatch reports whether an incremental strategy selects microbatch.
func IsMicrobatch(strategy *string) bool {
	return strategy != nil && strings.EqualFold(*strategy, core.StrategyMicrobatch)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
