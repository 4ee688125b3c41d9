// Package postgres provides the PostgreSQL adapter.
package postgres

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// Adapter implements adapter.TypedAdapter for PostgreSQL.
type Adapter struct {
	*adapter.SQLAdapter
	// Database is the database of the target; relations may not name another.
	Database string
}

// New creates a PostgreSQL adapter. It does not connect.
// If logger is nil, a discard logger is used.
func New(cfg adapter.Config, logger *slog.Logger) *Adapter {
	a := NewWithFlavor(relation.Postgres, cfg, 5432, logger)
	a.Bind(a)
	return a
}

// NewWithFlavor builds the adapter for a Postgres-compatible warehouse. The
// caller must Bind the outermost adapter.
func NewWithFlavor(f *relation.Flavor, cfg adapter.Config, defaultPort int, logger *slog.Logger) *Adapter {
	a := &Adapter{
		SQLAdapter: adapter.NewSQLAdapter(f, logger),
		Database:   cfg.Database,
	}
	a.Driver = "pgx"
	a.DSN = buildPostgresDSN(cfg, defaultPort)
	a.Split = adapter.SplitOptions{DollarQuotes: true}
	a.Types[adapter.KindNumber] = "numeric"
	a.Types[adapter.KindDateTime] = "timestamp without time zone"
	return a
}

// buildPostgresDSN constructs a key=value connection string.
func buildPostgresDSN(cfg adapter.Config, defaultPort int) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	} else if mode, ok := cfg.Param("sslmode"); ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if timeout, ok := cfg.Param("connect_timeout"); ok {
		dsn += fmt.Sprintf(" connect_timeout=%s", timeout)
	}
	if cfg.Schema != "" {
		dsn += fmt.Sprintf(" search_path=%s", cfg.Schema)
	}

	return dsn
}

// VerifyDatabase rejects references to a database other than the target's.
func (a *Adapter) VerifyDatabase(database string) error {
	if a.Database == "" || database == a.Database {
		return nil
	}
	if strings.Trim(database, `"`) == a.Database {
		return nil
	}
	return core.ConfigurationError("Cross-db references not allowed in adapter %s: Got %s, expected %s",
		a.AdapterType(), database, a.Database)
}

// RelationMaxNameLength returns the identifier length limit.
func (a *Adapter) RelationMaxNameLength() (int, error) {
	return a.Dialect.Identifiers.MaxLength, nil
}

// ValidIncrementalStrategies lists the supported incremental strategies.
func (a *Adapter) ValidIncrementalStrategies() []string {
	return []string{core.StrategyAppend, core.StrategyDeleteInsert, core.StrategyMerge, core.StrategyMicrobatch}
}

// RenameRelation renames a table or view within its schema.
func (a *Adapter) RenameRelation(ctx context.Context, conn adapter.Connection, from, to *relation.Relation) error {
	kind := "table"
	if from.IsView() {
		kind = "view"
	}
	stmt := fmt.Sprintf("alter %s %s rename to %s", kind, from.Render(), to.Quoted(to.Identifier))
	_, _, err := a.Execute(ctx, conn, adapter.Query(stmt), adapter.ExecOptions{})
	return err
}

// LoadSeed loads a CSV file into rel using COPY FROM STDIN.
// All columns are created as text.
func (a *Adapter) LoadSeed(ctx context.Context, conn adapter.Connection, rel *relation.Relation, path string) error {
	sqlConn, ok := conn.(*sql.Conn)
	if !ok {
		return core.UnsupportedFeatureError("seed loading needs a dedicated postgres session, got %T", conn)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	file, err := os.Open(absPath) //nolint:gosec // seed paths come from the project
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	headers, err := csv.NewReader(file).Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	if err := a.createTextTable(ctx, conn, rel, headers); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to reset file: %w", err)
	}

	copySQL := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", rel.Render())
	return sqlConn.Raw(func(driverConn any) error {
		pgxConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		_, err := pgxConn.Conn().PgConn().CopyFrom(ctx, file, copySQL)
		return err
	})
}

// createTextTable creates or replaces a table with all text columns.
func (a *Adapter) createTextTable(ctx context.Context, conn adapter.Connection, rel *relation.Relation, columns []string) error {
	colDefs := make([]string, len(columns))
	for i, col := range columns {
		colDefs[i] = fmt.Sprintf("%s text", a.Quote(sanitizeIdentifier(col)))
	}
	script := fmt.Sprintf("drop table if exists %s; create table %s (%s)",
		rel.Render(), rel.Render(), strings.Join(colDefs, ", "))
	_, _, err := a.Execute(ctx, conn, adapter.Query(script), adapter.ExecOptions{})
	return err
}

// sanitizeIdentifier turns a CSV header into a column name.
func sanitizeIdentifier(name string) string {
	safe := strings.TrimSpace(name)
	safe = strings.ReplaceAll(safe, " ", "_")
	return strings.ReplaceAll(safe, "-", "_")
}

var (
	_ adapter.TypedAdapter = (*Adapter)(nil)
	_ adapter.SeedLoader   = (*Adapter)(nil)
)
