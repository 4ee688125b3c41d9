// Package databricks provides the Databricks adapter.
package databricks

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// Adapter implements adapter.TypedAdapter for Databricks. The catalog is the
// relation database.
type Adapter struct {
	*adapter.SQLAdapter
	cfg adapter.Config

	mu  sync.Mutex
	dbr *version
}

// New creates a Databricks adapter. Unless the profile sets a dsn, one is
// built from host, http_path, token, catalog and schema.
func New(cfg adapter.Config, logger *slog.Logger) *Adapter {
	a := &Adapter{
		SQLAdapter: adapter.NewSQLAdapter(relation.Databricks, logger),
		cfg:        cfg,
	}
	a.Driver = "databricks"
	a.DSN = dsn(cfg)
	a.Split = adapter.SplitOptions{Backticks: true, BackslashEscapes: true}
	a.Types[adapter.KindText] = "string"
	a.Types[adapter.KindInteger] = "bigint"
	a.Types[adapter.KindNumber] = "double"
	a.Types[adapter.KindDateTime] = "timestamp"
	a.Bind(a)
	return a
}

func dsn(cfg adapter.Config) string {
	if v, ok := cfg.Param("dsn"); ok {
		return v
	}
	token, _ := cfg.Param("token")
	if token == "" {
		token = cfg.Password
	}
	httpPath, _ := cfg.Param("http_path")
	port := cfg.Port
	if port == 0 {
		port = 443
	}
	catalog := cfg.Database
	if v, ok := cfg.Param("catalog"); ok {
		catalog = v
	}

	q := url.Values{}
	if catalog != "" {
		q.Set("catalog", catalog)
	}
	if cfg.Schema != "" {
		q.Set("schema", cfg.Schema)
	}
	out := fmt.Sprintf("token:%s@%s:%d/%s", token, cfg.Host, port, strings.TrimPrefix(httpPath, "/"))
	if len(q) > 0 {
		out += "?" + q.Encode()
	}
	return out
}

var strategies = []string{
	core.StrategyAppend,
	core.StrategyMerge,
	core.StrategyInsertOverwrite,
	core.StrategyReplaceWhere,
	core.StrategyMicrobatch,
}

// ValidIncrementalStrategies implements adapter.TypedAdapter.
func (a *Adapter) ValidIncrementalStrategies() []string {
	return append([]string(nil), strategies...)
}

// ValidIncrementalStrategiesAsValues returns the strategies for templates.
func (a *Adapter) ValidIncrementalStrategiesAsValues() ([]string, error) {
	return a.ValidIncrementalStrategies(), nil
}

// ComputeExternalPath returns the storage location of an external table:
// location_root joined to the identifier, or to catalog, schema and
// identifier when include_full_name_in_path is set. Incremental builds
// write next to it with a _tmp suffix.
func (a *Adapter) ComputeExternalPath(cfg *config.ModelConfig, model *nodes.Model, isIncremental bool) (string, error) {
	if cfg == nil && model != nil {
		cfg = &model.Config
	}
	if cfg == nil || cfg.LocationRoot == nil || *cfg.LocationRoot == "" {
		return "", core.ConfigurationError("location_root is required for external tables.")
	}
	if model == nil {
		return "", core.InvalidOperationError("compute_external_path needs a model")
	}
	identifier := model.Alias
	if identifier == "" {
		identifier = model.Name
	}

	var p string
	if cfg.IncludeFullNameInPath != nil && *cfg.IncludeFullNameInPath {
		p = joinLocation(*cfg.LocationRoot, model.Database, model.Schema, identifier)
	} else {
		p = joinLocation(*cfg.LocationRoot, identifier)
	}
	if isIncremental {
		p += "_tmp"
	}
	return p, nil
}

// joinLocation joins path elements onto a root that may carry a URL scheme
// such as s3:// or abfss://.
func joinLocation(root string, elems ...string) string {
	scheme := ""
	if i := strings.Index(root, "://"); i >= 0 {
		scheme, root = root[:i+3], root[i+3:]
	}
	return scheme + path.Join(append([]string{root}, elems...)...)
}

// Iceberg table properties set on UniForm tables.
const (
	PropIcebergCompat   = "delta.enableIcebergCompatV2"
	PropUniversalFormat = "delta.universalFormat.enabledFormats"
	TableFormatIceberg  = "iceberg"
)

// UpdateTblpropertiesForIceberg returns props, or the model's tblproperties
// when props is nil, with the UniForm properties added for iceberg tables.
// Iceberg is only supported for tables, incremental models and snapshots.
func (a *Adapter) UpdateTblpropertiesForIceberg(cfg *config.ModelConfig, props map[string]any) (map[string]any, error) {
	out := make(map[string]any)
	src := props
	if src == nil && cfg != nil {
		src = cfg.TblProperties
	}
	for k, v := range src {
		out[k] = v
	}
	if cfg == nil || cfg.TableFormat == nil || !strings.EqualFold(*cfg.TableFormat, TableFormatIceberg) {
		return out, nil
	}

	materialized := core.MaterializationTable
	if cfg.Materialized != nil {
		materialized = *cfg.Materialized
	}
	switch materialized {
	case core.MaterializationTable, core.MaterializationIncremental, core.MaterializationSnapshot:
	default:
		return nil, core.UnsupportedFeatureError("Iceberg is currently only supported for materialized = table, incremental or snapshot, not %s", materialized)
	}
	out[PropIcebergCompat] = "true"
	out[PropUniversalFormat] = TableFormatIceberg
	return out, nil
}

var _ adapter.TypedAdapter = (*Adapter)(nil)
