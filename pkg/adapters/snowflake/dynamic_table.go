package snowflake

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
)

// TargetLag is how far a dynamic table may fall behind its sources:
// either downstream or a count of time units.
type TargetLag struct {
	Downstream bool
	Count      uint32
	// Interval is one of seconds, minutes, hours, days.
	Interval string
}

// String renders the lag as Snowflake accepts it.
func (l TargetLag) String() string {
	if l.Downstream {
		return "downstream"
	}
	return fmt.Sprintf("%d %s", l.Count, l.Interval)
}

// ParseTargetLag parses "downstream" or "<n> <unit>".
func ParseTargetLag(s string) (TargetLag, error) {
	if strings.EqualFold(s, "downstream") {
		return TargetLag{Downstream: true}, nil
	}
	parts := strings.Fields(s)
	if len(parts) == 2 {
		n, err := strconv.ParseUint(parts[0], 10, 32)
		if interval, ok := lagInterval(parts[1]); err == nil && ok {
			return TargetLag{Count: uint32(n), Interval: interval}, nil
		}
	}
	return TargetLag{}, core.ConfigurationError("Unsupported target lag: %s", s)
}

func lagInterval(s string) (string, bool) {
	switch strings.ToLower(s) {
	case "second", "seconds":
		return "seconds", true
	case "minute", "minutes":
		return "minutes", true
	case "hour", "hours":
		return "hours", true
	case "day", "days":
		return "days", true
	}
	return "", false
}

// RefreshMode is the refresh mode of a dynamic table.
type RefreshMode string

// Refresh modes.
const (
	RefreshAuto        RefreshMode = "AUTO"
	RefreshFull        RefreshMode = "FULL"
	RefreshIncremental RefreshMode = "INCREMENTAL"
)

// ParseRefreshMode parses a refresh mode, ignoring case.
func ParseRefreshMode(s string) (RefreshMode, error) {
	switch m := RefreshMode(strings.ToUpper(s)); m {
	case RefreshAuto, RefreshFull, RefreshIncremental:
		return m, nil
	}
	return "", core.ConfigurationError("Unsupported refresh mode: %s", s)
}

// Initialize is when a dynamic table is first populated.
type Initialize string

// Initialize behaviors.
const (
	InitializeOnCreate   Initialize = "ON_CREATE"
	InitializeOnSchedule Initialize = "ON_SCHEDULE"
)

// ParseInitialize parses an initialize behavior, ignoring case.
func ParseInitialize(s string) (Initialize, error) {
	switch i := Initialize(strings.ToUpper(s)); i {
	case InitializeOnCreate, InitializeOnSchedule:
		return i, nil
	}
	return "", core.ConfigurationError("Unsupported initialize type: %s", s)
}

// DynamicTableConfig is the configuration of a Snowflake dynamic table.
type DynamicTableConfig struct {
	TableName          string
	SchemaName         string
	DatabaseName       string
	TargetLag          TargetLag
	SnowflakeWarehouse string
	RefreshMode        RefreshMode
	Initialize         Initialize
	RowAccessPolicy    *string
	TableTag           *string
}

// DynamicTableConfigFromModel reads the dynamic table settings of a model.
// target_lag and snowflake_warehouse are required; unparseable optional
// settings fall back to their defaults.
func DynamicTableConfigFromModel(m *nodes.Model) (*DynamicTableConfig, error) {
	sf := m.Config.SnowflakeConfig
	if sf.TargetLag == nil {
		return nil, core.ConfigurationError("Failed to get required field target_lag from dynamic_table config.")
	}
	lag, err := ParseTargetLag(*sf.TargetLag)
	if err != nil {
		return nil, err
	}
	if sf.SnowflakeWarehouse == nil {
		return nil, core.ConfigurationError("Failed to get required field snowflake_warehouse from dynamic_table config.")
	}

	cfg := &DynamicTableConfig{
		TableName:          m.Name,
		SchemaName:         m.Schema,
		DatabaseName:       m.Database,
		TargetLag:          lag,
		SnowflakeWarehouse: *sf.SnowflakeWarehouse,
		RefreshMode:        RefreshAuto,
		Initialize:         InitializeOnCreate,
		RowAccessPolicy:    sf.RowAccessPolicy,
		TableTag:           sf.TableTag,
	}
	if sf.RefreshMode != nil {
		if mode, err := ParseRefreshMode(*sf.RefreshMode); err == nil {
			cfg.RefreshMode = mode
		}
	}
	if sf.Initialize != nil {
		if ini, err := ParseInitialize(*sf.Initialize); err == nil {
			cfg.Initialize = ini
		}
	}
	return cfg, nil
}

// DynamicTableConfigFromDescribe reads the result of show dynamic tables.
// Initialize, row access policy and tags cannot be queried and keep their
// defaults.
func DynamicTableConfigFromDescribe(t *adapter.Table) (*DynamicTableConfig, error) {
	if t == nil || t.Len() == 0 {
		return nil, core.ConfigurationError("dynamic_table describe table is empty")
	}
	get := func(col string) (string, error) {
		i, ok := t.ColumnIndexFold(col)
		if !ok {
			return "", core.ConfigurationError("Describe dynamic_table is missing %s.", col)
		}
		if t.Len() != 1 {
			return "", core.ConfigurationError("Describe dynamic_table returned an unexpected number of values for %s.", col)
		}
		return fmt.Sprint(t.Rows[0][i]), nil
	}

	if _, err := get("text"); err != nil {
		return nil, err
	}
	cfg := &DynamicTableConfig{Initialize: InitializeOnCreate}
	var err error
	if cfg.TableName, err = get("name"); err != nil {
		return nil, err
	}
	if cfg.SchemaName, err = get("schema_name"); err != nil {
		return nil, err
	}
	if cfg.DatabaseName, err = get("database_name"); err != nil {
		return nil, err
	}
	if cfg.SnowflakeWarehouse, err = get("warehouse"); err != nil {
		return nil, err
	}

	lag, err := get("target_lag")
	if err != nil {
		return nil, err
	}
	if cfg.TargetLag, err = ParseTargetLag(lag); err != nil {
		return nil, err
	}
	mode, err := get("refresh_mode")
	if err != nil {
		return nil, err
	}
	if cfg.RefreshMode, err = ParseRefreshMode(mode); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DynamicTableChangeset lists the settings that differ between an existing
// dynamic table and its model. A nil field is unchanged.
type DynamicTableChangeset struct {
	TargetLag          *TargetLag
	SnowflakeWarehouse *string
	RefreshMode        *RefreshMode
}

// NewChangeset compares the existing configuration with the desired one.
// Warehouses compare case-insensitively, and a desired refresh mode of AUTO
// never counts as a change.
func NewChangeset(old, desired *DynamicTableConfig) *DynamicTableChangeset {
	cs := &DynamicTableChangeset{}
	if old.TargetLag != desired.TargetLag {
		lag := desired.TargetLag
		cs.TargetLag = &lag
	}
	if !strings.EqualFold(old.SnowflakeWarehouse, desired.SnowflakeWarehouse) {
		wh := desired.SnowflakeWarehouse
		cs.SnowflakeWarehouse = &wh
	}
	if desired.RefreshMode != RefreshAuto && old.RefreshMode != desired.RefreshMode {
		mode := desired.RefreshMode
		cs.RefreshMode = &mode
	}
	return cs
}

// HasChanges reports whether any setting differs.
func (c *DynamicTableChangeset) HasChanges() bool {
	return c.TargetLag != nil || c.SnowflakeWarehouse != nil || c.RefreshMode != nil
}

// RequiresFullRefresh reports whether the table must be rebuilt. Lag and
// warehouse changes apply in place; a refresh mode change does not.
func (c *DynamicTableChangeset) RequiresFullRefresh() bool {
	return c.RefreshMode != nil
}
