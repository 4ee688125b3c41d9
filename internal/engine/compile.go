package engine

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapforge/internal/macro"
	lfstarlark "github.com/leapstack-labs/leapforge/internal/starlark"
	"github.com/leapstack-labs/leapforge/internal/template"
	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"github.com/leapstack-labs/leapforge/pkg/relation"
	"gopkg.in/yaml.v3"
)

// compiled is a model rendered for one build.
type compiled struct {
	model    *nodes.Model
	relation *relation.Relation
	sql      string
	// exec runs materialization macros in the model's context.
	exec *macro.Executor
}

// Compile renders the SQL of a model by name or unique_id, with the
// ephemeral models it references inlined as CTEs. Adapter calls made by
// the template fail since no connection is open.
func (e *Engine) Compile(ctx context.Context, name string) (string, error) {
	if err := e.ensureLoaded(); err != nil {
		return "", err
	}
	n, ok := e.byName[name]
	if !ok {
		if n, ok = e.nodes.Get(name); !ok {
			return "", core.InvalidOperationError("no model named %q", name)
		}
	}
	m, ok := n.(*nodes.Model)
	if !ok {
		return "", core.InvalidOperationError("%s is a %s and has no SQL to compile", n.Common().UniqueID, n.ResourceType())
	}
	c, err := e.compile(ctx, m, nil, lfstarlark.RunInfo{})
	if err != nil {
		return "", err
	}
	return c.sql, nil
}

func (e *Engine) compile(ctx context.Context, m *nodes.Model, conn adapter.Connection, run lfstarlark.RunInfo) (*compiled, error) {
	rel, err := e.project.Relation(m)
	if err != nil {
		return nil, err
	}
	cfg, err := configMap(m.Config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.UniqueID, err)
	}
	if _, ok := cfg["materialized"]; !ok {
		cfg["materialized"] = m.Materialization()
	}

	refs := &refResolver{e: e, node: m}
	ectx, err := lfstarlark.NewContext(cfg, e.target,
		lfstarlark.WithThis(rel),
		lfstarlark.WithNode(lfstarlark.NodeInfo{UniqueID: m.UniqueID, Path: m.Path}),
		lfstarlark.WithAdapter(lfstarlark.NewAdapter(e.adapter, conn)),
		lfstarlark.WithVars(e.cfg.Vars),
		lfstarlark.WithLogger(e.logger),
		lfstarlark.WithRefs(refs),
		lfstarlark.WithRun(run),
	)
	if err != nil {
		return nil, err
	}
	exec, err := macro.NewExecutor(e.macros, ectx)
	if err != nil {
		return nil, err
	}

	sql, err := template.RenderContext(ctx, m.RawCode, m.Path, exec.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", m.UniqueID, err)
	}

	if len(refs.ephemerals) > 0 {
		ctes := make([]cte, 0, len(refs.ephemerals))
		for _, eph := range refs.ephemerals {
			inner, err := e.compile(ctx, eph, conn, run)
			if err != nil {
				return nil, err
			}
			ctes = append(ctes, cte{name: relation.CTEPrefix + eph.Alias, sql: inner.sql})
		}
		sql = injectCTEs(sql, ctes)
	}
	return &compiled{model: m, relation: rel, sql: sql, exec: exec}, nil
}

// seedContext returns the relation of a seed and an executor for the
// macros that build it.
func (e *Engine) seedContext(s *nodes.Seed, conn adapter.Connection, run lfstarlark.RunInfo) (*relation.Relation, *macro.Executor, error) {
	rel, err := e.project.Relation(s)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := configMap(s.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", s.UniqueID, err)
	}
	if _, ok := cfg["materialized"]; !ok {
		cfg["materialized"] = s.Materialization()
	}
	ectx, err := lfstarlark.NewContext(cfg, e.target,
		lfstarlark.WithThis(rel),
		lfstarlark.WithNode(lfstarlark.NodeInfo{UniqueID: s.UniqueID, Path: s.Path}),
		lfstarlark.WithAdapter(lfstarlark.NewAdapter(e.adapter, conn)),
		lfstarlark.WithVars(e.cfg.Vars),
		lfstarlark.WithLogger(e.logger),
		lfstarlark.WithRun(run),
	)
	if err != nil {
		return nil, nil, err
	}
	exec, err := macro.NewExecutor(e.macros, ectx)
	if err != nil {
		return nil, nil, err
	}
	return rel, exec, nil
}

// configMap exposes a resolved config to templates under its YAML keys.
func configMap(cfg any) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	out := make(map[string]any)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return out, nil
}

type cte struct {
	name string
	sql  string
}

var leadingWith = regexp.MustCompile(`(?is)^\s*with\s+`)

// injectCTEs prepends ctes to sql, joining an existing WITH clause.
func injectCTEs(sql string, ctes []cte) string {
	parts := make([]string, len(ctes))
	for i, c := range ctes {
		parts[i] = fmt.Sprintf("%s as (\n%s\n)", c.name, strings.TrimSpace(c.sql))
	}
	prefix := "with " + strings.Join(parts, ",\n")
	if loc := leadingWith.FindStringIndex(sql); loc != nil {
		return prefix + ",\n" + sql[loc[1]:]
	}
	return prefix + "\n" + strings.TrimLeft(sql, " \t\r\n")
}

// refResolver backs ref() and source() for one model.
type refResolver struct {
	e    *Engine
	node *nodes.Model
	// ephemerals are the ephemeral models referenced so far, in call order.
	ephemerals []*nodes.Model
}

var _ lfstarlark.RefResolver = (*refResolver)(nil)

func (r *refResolver) Ref(pkg, name, version string) (*relation.Relation, error) {
	if pkg != "" && pkg != r.e.cfg.ProjectName {
		return nil, core.ConfigurationError("%s references %s.%s, but package %q is not installed", r.node.UniqueID, pkg, name, pkg)
	}
	if version != "" {
		return nil, core.UnsupportedFeatureError("%s references version %s of %s, but versioned models are not supported", r.node.UniqueID, version, name)
	}
	target, ok := r.e.byName[name]
	if !ok {
		return nil, core.ConfigurationError("%s depends on a node named '%s' which was not found", r.node.UniqueID, name)
	}
	id := target.Common().UniqueID
	if !slices.Contains(r.node.DependsOn.Nodes, id) {
		return nil, core.ConfigurationError(
			"%s: ref('%s') was not found among the node's dependencies; ref() arguments must be string literals", r.node.UniqueID, name)
	}
	if !target.Enabled() {
		return nil, core.ConfigurationError("%s depends on disabled node %s", r.node.UniqueID, id)
	}

	if m, ok := target.(*nodes.Model); ok && m.Materialization() == core.MaterializationEphemeral {
		if !slices.Contains(r.ephemerals, m) {
			r.ephemerals = append(r.ephemerals, m)
		}
	}
	return r.e.project.Relation(target)
}

// Source places source tables in the target database under a schema named
// after the source.
func (r *refResolver) Source(sourceName, tableName string) (*relation.Relation, error) {
	f := r.e.adapter.Flavor()
	return relation.New(f, r.e.target.Database, sourceName, tableName, relation.TypeTable, f.DefaultQuote)
}
