package relation

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

const snowflakeOnly = "Only available for snowflake"

func (r *Relation) requireSnowflake(op string) error {
	if r.flavor.Name != Snowflake.Name {
		return core.NotImplemented(op, snowflakeOnly)
	}
	return nil
}

// NeedsToDrop reports whether old must be dropped before r can be built. An
// existing view has to go before a table takes its name.
func (r *Relation) NeedsToDrop(old *Relation) (bool, error) {
	if err := r.requireSnowflake("needs_to_drop"); err != nil {
		return false, err
	}
	if old == nil || old.flavor.Name != Snowflake.Name {
		return false, nil
	}
	return !old.IsTable(), nil
}

// DDLPrefixForCreate returns one of "temporary", "iceberg", "transient" or "".
// Temporary wins over everything; iceberg tables are never transient and
// tables are transient unless configured otherwise.
func (r *Relation) DDLPrefixForCreate(cfg *config.ModelConfig, temporary bool, logger *slog.Logger) (string, error) {
	if err := r.requireSnowflake("get_ddl_prefix_for_create"); err != nil {
		return "", err
	}
	if temporary {
		return "temporary", nil
	}
	transient := cfg.Transient
	if cfg.TableFormat != nil && strings.EqualFold(*cfg.TableFormat, string(FormatIceberg)) {
		if transient != nil && *transient && logger != nil {
			logger.Warn("iceberg format relations cannot be transient, ignoring 'transient'",
				slog.String("relation", strings.Join([]string{r.Database, r.Schema, r.Identifier}, ".")))
		}
		return "iceberg", nil
	}
	if transient == nil || *transient {
		return "transient", nil
	}
	return "", nil
}

// DDLPrefixForAlter returns "iceberg" for iceberg tables and "" otherwise.
func (r *Relation) DDLPrefixForAlter() (string, error) {
	if err := r.requireSnowflake("get_ddl_prefix_for_alter"); err != nil {
		return "", err
	}
	if r.IsIceberg() {
		return "iceberg", nil
	}
	return "", nil
}

// IcebergDDLOptions renders the external volume, catalog and base location
// clauses of an iceberg CREATE statement.
func (r *Relation) IcebergDDLOptions(cfg *config.ModelConfig) (string, error) {
	if err := r.requireSnowflake("get_iceberg_ddl_options"); err != nil {
		return "", err
	}
	if cfg.ExternalVolume == nil || *cfg.ExternalVolume == "" {
		return "", core.ConfigurationError("external_volume is required")
	}

	base := "_dbt"
	if cfg.BaseLocationRoot != nil {
		base = *cfg.BaseLocationRoot
	}
	base += fmt.Sprintf("/%s/%s", r.Schema, r.Identifier)
	if cfg.BaseLocationSubpath != nil {
		base += "/" + *cfg.BaseLocationSubpath
	}

	lines := []string{
		"",
		fmt.Sprintf("external_volume = '%s'", *cfg.ExternalVolume),
		"catalog = 'snowflake'",
		fmt.Sprintf("base_location = '%s'", base),
	}
	pad := strings.Repeat(" ", 10)
	for i, line := range lines {
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n"), nil
}
