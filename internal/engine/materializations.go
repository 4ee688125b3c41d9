package engine

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/leapstack-labs/leapforge/internal/macro"
	"github.com/leapstack-labs/leapforge/internal/template"
	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// tmpSuffix names the staging table of an incremental build.
const tmpSuffix = "__dbt_tmp"

// Schema change policies of incremental models.
const (
	onSchemaChangeIgnore = "ignore"
	onSchemaChangeFail   = "fail"
	onSchemaChangeAppend = "append_new_columns"
	onSchemaChangeSync   = "sync_all_columns"
)

// outcome is what building one node did.
type outcome struct {
	rows    int64
	message string
}

// schemaSet creates each schema at most once per run. Callers racing for
// the same schema wait for the first one to finish.
type schemaSet struct {
	mu   sync.Mutex
	done map[string]*schemaOnce
}

type schemaOnce struct {
	once sync.Once
	err  error
}

func (s *schemaSet) ensure(key string, create func() error) error {
	s.mu.Lock()
	if s.done == nil {
		s.done = make(map[string]*schemaOnce)
	}
	o, ok := s.done[key]
	if !ok {
		o = &schemaOnce{}
		s.done[key] = o
	}
	s.mu.Unlock()
	o.once.Do(func() { o.err = create() })
	return o.err
}

// materializer builds one node on one connection.
type materializer struct {
	e       *Engine
	conn    adapter.Connection
	schemas *schemaSet
}

func (mt *materializer) exec(ctx context.Context, c *compiled, sql string) (*adapter.Response, error) {
	resp, _, err := mt.e.adapter.Execute(ctx, mt.conn, adapter.Query(sql).WithNode(c.model.UniqueID), adapter.ExecOptions{})
	return resp, err
}

func (mt *materializer) macro(ctx context.Context, c *compiled, name string, args ...any) (any, error) {
	return c.exec.ExecuteMacro(ctx, name, args, nil)
}

// ensureSchema creates the schema of rel once per run.
func (mt *materializer) ensureSchema(ctx context.Context, exec adapter.MacroExecutor, rel *relation.Relation) error {
	return mt.schemas.ensure(rel.Database+"."+rel.Schema, func() error {
		_, err := exec.ExecuteMacro(ctx, "create_schema", []any{rel}, nil)
		return err
	})
}

// hooks renders and runs each hook in the node's context.
func (mt *materializer) hooks(ctx context.Context, exec *macro.Executor, n nodes.Node, hooks config.Hooks, kind string) error {
	c := n.Common()
	for i, sql := range hooks.SQL() {
		rendered, err := template.RenderContext(ctx, sql, fmt.Sprintf("%s[%s %d]", c.Path, kind, i), exec.Context())
		if err != nil {
			return fmt.Errorf("%s %d: %w", kind, i, err)
		}
		qc := adapter.Query(rendered).WithNode(c.UniqueID)
		if _, _, err := mt.e.adapter.Execute(ctx, mt.conn, qc, adapter.ExecOptions{}); err != nil {
			return fmt.Errorf("%s %d: %w", kind, i, err)
		}
	}
	return nil
}

// existing returns the relation currently at c's location, or nil.
func (mt *materializer) existing(ctx context.Context, rel *relation.Relation) (*relation.Relation, error) {
	return mt.e.adapter.GetRelation(ctx, mt.conn, rel.Database, rel.Schema, rel.Identifier)
}

func (mt *materializer) dropIfExists(ctx context.Context, c *compiled, rel *relation.Relation) error {
	old, err := mt.existing(ctx, rel)
	if err != nil || old == nil {
		return err
	}
	return mt.e.adapter.DropRelation(ctx, c.exec, old)
}

// model builds a compiled model according to its materialization.
func (mt *materializer) model(ctx context.Context, c *compiled, incremental bool) (outcome, error) {
	m := c.model
	if err := mt.ensureSchema(ctx, c.exec, c.relation); err != nil {
		return outcome{}, err
	}
	if err := mt.hooks(ctx, c.exec, m, m.Config.PreHook, "pre-hook"); err != nil {
		return outcome{}, err
	}

	var (
		out outcome
		err error
	)
	switch mat := m.Materialization(); mat {
	case core.MaterializationView:
		out, err = mt.view(ctx, c)
	case core.MaterializationTable:
		out, err = mt.table(ctx, c)
	case core.MaterializationIncremental:
		if incremental {
			out, err = mt.incremental(ctx, c)
		} else {
			out, err = mt.table(ctx, c)
		}
	default:
		err = core.UnsupportedFeatureError("%s: materialization %q is not supported", m.UniqueID, mat)
	}
	if err != nil {
		return outcome{}, err
	}

	if err := mt.hooks(ctx, c.exec, m, m.Config.PostHook, "post-hook"); err != nil {
		return outcome{}, err
	}
	return out, nil
}

func (mt *materializer) view(ctx context.Context, c *compiled) (outcome, error) {
	if err := mt.dropIfExists(ctx, c, c.relation); err != nil {
		return outcome{}, err
	}
	if _, err := mt.macro(ctx, c, "create_view_as", c.relation, c.sql); err != nil {
		return outcome{}, err
	}
	return outcome{message: "CREATE VIEW"}, nil
}

func (mt *materializer) table(ctx context.Context, c *compiled) (outcome, error) {
	if err := mt.dropIfExists(ctx, c, c.relation); err != nil {
		return outcome{}, err
	}
	if _, err := mt.macro(ctx, c, "create_table_as", c.relation, c.sql); err != nil {
		return outcome{}, err
	}
	n := mt.countRelation(ctx, c.model.UniqueID, c.relation)
	return outcome{rows: n, message: "SELECT " + strconv.FormatInt(n, 10)}, nil
}

// strategy picks the incremental strategy of c and checks the adapter
// supports it.
func (mt *materializer) strategy(c *compiled) (string, error) {
	m := c.model
	if err := m.WarnOnMicrobatch(); err != nil {
		return "", err
	}
	valid := mt.e.adapter.ValidIncrementalStrategies()
	strategy := m.IncrementalStrategy()
	if strategy == "" {
		strategy = core.StrategyAppend
		if len(m.Config.UniqueKey) > 0 {
			strategy = core.StrategyDeleteInsert
			if !slices.Contains(valid, strategy) && slices.Contains(valid, core.StrategyMerge) {
				strategy = core.StrategyMerge
			}
		}
	}
	if !slices.Contains(valid, strategy) {
		return "", core.ConfigurationError("%s: incremental strategy %q is not supported by %s; valid strategies are %v",
			m.UniqueID, strategy, mt.e.adapter.AdapterType(), valid)
	}
	if strategy != core.StrategyAppend && len(m.Config.UniqueKey) == 0 {
		return "", core.ConfigurationError("%s: incremental strategy %q requires a unique_key", m.UniqueID, strategy)
	}
	return strategy, nil
}

func (mt *materializer) incremental(ctx context.Context, c *compiled) (outcome, error) {
	m := c.model
	strategy, err := mt.strategy(c)
	if err != nil {
		return outcome{}, err
	}

	tmp, err := relation.New(mt.e.adapter.Flavor(), c.relation.Database, c.relation.Schema,
		c.relation.Identifier+tmpSuffix, relation.TypeTable, c.relation.Quote)
	if err != nil {
		return outcome{}, err
	}
	if err := mt.dropIfExists(ctx, c, tmp); err != nil {
		return outcome{}, err
	}
	if _, err := mt.macro(ctx, c, "create_table_as", tmp, c.sql); err != nil {
		return outcome{}, err
	}
	defer func() {
		if err := mt.e.adapter.DropRelation(ctx, c.exec, tmp); err != nil {
			mt.e.logger.Warn("failed to drop temporary relation", "relation", tmp.Render(), "error", err)
		}
	}()

	columns, err := mt.incrementalColumns(ctx, c, tmp)
	if err != nil {
		return outcome{}, err
	}

	var macroName string
	args := []any{c.relation, tmp}
	switch strategy {
	case core.StrategyAppend:
		macroName = "get_append_sql"
	case core.StrategyDeleteInsert:
		macroName = "get_delete_insert_sql"
		args = append(args, []string(m.Config.UniqueKey))
	case core.StrategyMerge:
		macroName = "get_merge_sql"
		args = append(args, []string(m.Config.UniqueKey))
	default:
		return outcome{}, core.UnsupportedFeatureError("%s: incremental strategy %q is not implemented", m.UniqueID, strategy)
	}
	args = append(args, columns)

	sql, err := mt.macro(ctx, c, macroName, args...)
	if err != nil {
		return outcome{}, err
	}
	stmt, ok := sql.(string)
	if !ok {
		return outcome{}, core.InternalError("%s returned %T, want a SQL string", macroName, sql)
	}
	resp, err := mt.exec(ctx, c, stmt)
	if err != nil {
		return outcome{}, err
	}
	out := outcome{message: strategy}
	if resp != nil {
		out.rows = resp.RowsAffected
		out.message = fmt.Sprintf("%s %d", strategy, resp.RowsAffected)
	}
	return out, nil
}

// incrementalColumns applies on_schema_change and returns the columns to
// copy from tmp into the target.
func (mt *materializer) incrementalColumns(ctx context.Context, c *compiled, tmp *relation.Relation) ([]string, error) {
	a := mt.e.adapter
	source, err := a.GetColumnsInRelation(ctx, mt.conn, tmp)
	if err != nil {
		return nil, err
	}
	missing, err := a.GetMissingColumns(ctx, mt.conn, tmp, c.relation)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(source))
	for _, col := range source {
		names = append(names, col.Name)
	}
	if len(missing) == 0 {
		return names, nil
	}

	policy := onSchemaChangeIgnore
	if c.model.Config.OnSchemaChange != nil {
		policy = *c.model.Config.OnSchemaChange
	}
	switch policy {
	case onSchemaChangeIgnore:
		keep := names[:0]
		for _, name := range names {
			if !slices.ContainsFunc(missing, func(col adapter.Column) bool { return col.Name == name }) {
				keep = append(keep, name)
			}
		}
		return keep, nil
	case onSchemaChangeFail:
		return nil, core.ConfigurationError(
			"%s: the source and target schemas of this incremental model are out of sync; new columns: %v",
			c.model.UniqueID, columnNames(missing))
	case onSchemaChangeAppend, onSchemaChangeSync:
		pairs := make([]any, len(missing))
		for i, col := range missing {
			pairs[i] = []any{col.Name, col.DataType()}
		}
		if _, err := mt.macro(ctx, c, "alter_relation_add_columns", c.relation, pairs); err != nil {
			return nil, err
		}
		return names, nil
	default:
		return nil, core.ConfigurationError("%s: invalid on_schema_change %q", c.model.UniqueID, policy)
	}
}

func columnNames(cols []adapter.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		i, _ := strconv.ParseInt(string(n), 10, 64)
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
