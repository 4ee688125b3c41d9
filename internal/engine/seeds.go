package engine

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/leapforge/internal/macro"
	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// seedBatchSize is the number of rows per insert statement.
const seedBatchSize = 500

// seed replaces the seed's table with the contents of its CSV file.
// Backends with a bulk loader are used unless the seed overrides column
// types or the delimiter.
func (mt *materializer) seed(ctx context.Context, s *nodes.Seed, rel *relation.Relation, exec *macro.Executor) (outcome, error) {
	if err := mt.ensureSchema(ctx, exec, rel); err != nil {
		return outcome{}, err
	}
	if err := mt.hooks(ctx, exec, s, s.Config.PreHook, "pre-hook"); err != nil {
		return outcome{}, err
	}
	out, err := mt.loadSeed(ctx, s, rel, exec)
	if err != nil {
		return outcome{}, err
	}
	if err := mt.hooks(ctx, exec, s, s.Config.PostHook, "post-hook"); err != nil {
		return outcome{}, err
	}
	return out, nil
}

func (mt *materializer) loadSeed(ctx context.Context, s *nodes.Seed, rel *relation.Relation, exec *macro.Executor) (outcome, error) {
	path := filepath.Join(s.RootPath, filepath.FromSlash(s.Path))
	if loader, ok := mt.e.adapter.(adapter.SeedLoader); ok && len(s.Config.ColumnTypes) == 0 && s.Config.Delimiter == nil {
		if err := loader.LoadSeed(ctx, mt.conn, rel, path); err != nil {
			return outcome{}, fmt.Errorf("failed to load seed %s: %w", s.UniqueID, err)
		}
		n := mt.countRelation(ctx, s.UniqueID, rel)
		return outcome{rows: n, message: fmt.Sprintf("INSERT %d", n)}, nil
	}

	table, err := readSeed(path, s.Config.Delimiter)
	if err != nil {
		return outcome{}, fmt.Errorf("failed to read seed %s: %w", s.UniqueID, err)
	}

	old, err := mt.existing(ctx, rel)
	if err != nil {
		return outcome{}, err
	}
	if old != nil {
		if err := mt.e.adapter.DropRelation(ctx, exec, old); err != nil {
			return outcome{}, err
		}
	}

	a := mt.e.adapter
	defs := make([]string, len(table.Columns))
	quoted := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		typ, ok := s.Config.ColumnTypes[col]
		if !ok {
			if typ, err = a.ConvertType(table, i); err != nil {
				return outcome{}, fmt.Errorf("seed %s column %s: %w", s.UniqueID, col, err)
			}
		}
		quoted[i] = a.QuoteSeedColumn(col, s.Config.QuoteColumns)
		defs[i] = quoted[i] + " " + typ
	}

	create := fmt.Sprintf("create table %s (%s)", rel.Render(), strings.Join(defs, ", "))
	if _, _, err := a.Execute(ctx, mt.conn, adapter.Query(create).WithNode(s.UniqueID), adapter.ExecOptions{}); err != nil {
		return outcome{}, err
	}

	for start := 0; start < len(table.Rows); start += seedBatchSize {
		end := min(start+seedBatchSize, len(table.Rows))
		stmt := insertStatement(rel, quoted, table.Rows[start:end])
		if _, _, err := a.Execute(ctx, mt.conn, adapter.Query(stmt).WithNode(s.UniqueID), adapter.ExecOptions{}); err != nil {
			return outcome{}, err
		}
	}
	n := int64(len(table.Rows))
	return outcome{rows: n, message: fmt.Sprintf("INSERT %d", n)}, nil
}

func (mt *materializer) countRelation(ctx context.Context, nodeID string, rel *relation.Relation) int64 {
	_, table, err := mt.e.adapter.Execute(ctx, mt.conn,
		adapter.Query("select count(*) from "+rel.Render()).WithNode(nodeID),
		adapter.ExecOptions{Fetch: true})
	if err != nil || table == nil || len(table.Rows) == 0 || len(table.Rows[0]) == 0 {
		return 0
	}
	return toInt64(table.Rows[0][0])
}

// readSeed parses a CSV file with a header row. Empty fields are nulls.
func readSeed(path string, delimiter *string) (*adapter.Table, error) {
	f, err := os.Open(path) //nolint:gosec // seed paths come from the project scan
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	if delimiter != nil && *delimiter != "" {
		d, size := utf8.DecodeRuneInString(*delimiter)
		if size != len(*delimiter) {
			return nil, core.ConfigurationError("seed delimiter must be a single character, got %q", *delimiter)
		}
		r.Comma = d
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.ConfigurationError("seed file %s is empty", path)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	rows := make([][]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]any, len(rec))
		for i, v := range rec {
			if v == "" {
				row[i] = nil
			} else {
				row[i] = v
			}
		}
		rows = append(rows, row)
	}
	return adapter.NewTable(header, rows), nil
}

func insertStatement(rel *relation.Relation, columns []string, rows [][]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "insert into %s (%s) values\n", rel.Render(), strings.Join(columns, ", "))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(sqlLiteral(v))
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

func sqlLiteral(v any) string {
	if v == nil {
		return "null"
	}
	return "'" + strings.ReplaceAll(fmt.Sprint(v), "'", "''") + "'"
}
