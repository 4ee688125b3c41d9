// Package duckdb provides the DuckDB adapter.
package duckdb

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements adapter.TypedAdapter for DuckDB.
type Adapter struct {
	*adapter.SQLAdapter
	Params *Params
}

// New creates a DuckDB adapter. It does not open the database.
// Use ":memory:" as the path for an in-memory database.
func New(cfg adapter.Config, logger *slog.Logger) (*Adapter, error) {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return nil, err
	}
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a := &Adapter{SQLAdapter: adapter.NewSQLAdapter(relation.DuckDB, logger), Params: params}
	a.Driver = "duckdb"
	a.DSN = path
	a.Split = adapter.SplitOptions{DollarQuotes: true}
	a.Types[adapter.KindNumber] = "double"
	a.Types[adapter.KindDateTime] = "timestamp"
	a.Bind(a)
	return a, nil
}

// Open opens the database, then installs extensions, applies settings and
// creates secrets.
func (a *Adapter) Open(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}
	if err := a.SQLAdapter.Open(ctx); err != nil {
		return err
	}
	if err := a.configure(ctx); err != nil {
		_ = a.Close()
		return err
	}
	return nil
}

// NewConnection implements adapter.Core.
func (a *Adapter) NewConnection(ctx context.Context) (adapter.Connection, error) {
	if err := a.Open(ctx); err != nil {
		return nil, err
	}
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

func (a *Adapter) configure(ctx context.Context) error {
	if a.Params == nil {
		return nil
	}
	for _, ext := range a.Params.Extensions {
		a.Logger.Debug("loading duckdb extension", slog.String("extension", ext))
		stmt := fmt.Sprintf("INSTALL %s; LOAD %s", ext, ext)
		if _, _, err := a.Execute(ctx, a.DB, adapter.Query(stmt), adapter.ExecOptions{}); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	keys := make([]string, 0, len(a.Params.Settings))
	for k := range a.Params.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmt := fmt.Sprintf("SET GLOBAL %s = %s", k, quoteLiteral(a.Params.Settings[k]))
		if _, _, err := a.Execute(ctx, a.DB, adapter.Query(stmt), adapter.ExecOptions{}); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}

	for _, s := range a.Params.Secrets {
		if _, _, err := a.Execute(ctx, a.DB, adapter.Query(buildCreateSecretSQL(s)), adapter.ExecOptions{}); err != nil {
			return fmt.Errorf("failed to create %s secret: %w", s.Type, err)
		}
	}
	return nil
}

// buildCreateSecretSQL renders a CREATE SECRET statement.
func buildCreateSecretSQL(s SecretConfig) string {
	opts := []string{"TYPE " + s.Type}
	if s.Provider != "" {
		opts = append(opts, "PROVIDER "+s.Provider)
	}
	if s.Region != "" {
		opts = append(opts, "REGION "+quoteLiteral(s.Region))
	}
	switch scope := s.Scope.(type) {
	case string:
		if scope != "" {
			opts = append(opts, "SCOPE "+quoteLiteral(scope))
		}
	case []string:
		opts = append(opts, "SCOPE "+quoteList(scope))
	case []any:
		items := make([]string, len(scope))
		for i, v := range scope {
			items[i] = fmt.Sprint(v)
		}
		opts = append(opts, "SCOPE "+quoteList(items))
	}
	if s.KeyID != "" {
		opts = append(opts, "KEY_ID "+quoteLiteral(s.KeyID))
	}
	if s.Secret != "" {
		opts = append(opts, "SECRET "+quoteLiteral(s.Secret))
	}
	if s.Endpoint != "" {
		opts = append(opts, "ENDPOINT "+quoteLiteral(s.Endpoint))
	}
	if s.URLStyle != "" {
		opts = append(opts, "URL_STYLE "+quoteLiteral(s.URLStyle))
	}
	if s.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}
	return "CREATE SECRET (\n    " + strings.Join(opts, ",\n    ") + "\n)"
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = quoteLiteral(s)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// ValidIncrementalStrategies lists the supported incremental strategies.
func (a *Adapter) ValidIncrementalStrategies() []string {
	return []string{core.StrategyAppend, core.StrategyDeleteInsert, core.StrategyMerge, core.StrategyMicrobatch}
}

// RenameRelation renames a table or view within its schema.
func (a *Adapter) RenameRelation(ctx context.Context, conn adapter.Connection, from, to *relation.Relation) error {
	kind := "TABLE"
	if from.IsView() {
		kind = "VIEW"
	}
	stmt := fmt.Sprintf("ALTER %s %s RENAME TO %s", kind, from.Render(), to.Quoted(to.Identifier))
	_, _, err := a.Execute(ctx, conn, adapter.Query(stmt), adapter.ExecOptions{})
	return err
}

// LoadSeed loads a CSV file into rel, letting DuckDB infer the schema.
func (a *Adapter) LoadSeed(ctx context.Context, conn adapter.Connection, rel *relation.Relation, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s, header=true)",
		rel.Render(), quoteLiteral(absPath))
	if _, _, err := a.Execute(ctx, conn, adapter.Query(stmt), adapter.ExecOptions{}); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}
	return nil
}

var (
	_ adapter.TypedAdapter = (*Adapter)(nil)
	_ adapter.SeedLoader   = (*Adapter)(nil)
)
