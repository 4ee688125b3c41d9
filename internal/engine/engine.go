// Package engine compiles and builds project nodes against a warehouse.
// It loads the project, orders nodes on the dependency graph, compares them
// with the state store and executes each level concurrently.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/leapstack-labs/leapforge/internal/config"
	"github.com/leapstack-labs/leapforge/internal/dag"
	"github.com/leapstack-labs/leapforge/internal/loader"
	"github.com/leapstack-labs/leapforge/internal/macro"
	lfstarlark "github.com/leapstack-labs/leapforge/internal/starlark"
	"github.com/leapstack-labs/leapforge/internal/state"
	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"go.uber.org/multierr"
)

// Options configures an engine.
type Options struct {
	Config *config.Config
	// Adapter replaces the adapter built from the active target.
	Adapter adapter.TypedAdapter
	// Store replaces the SQLite store at Config.StatePath. The engine does
	// not close a store it was given.
	Store  state.Store
	Logger *slog.Logger
}

// Engine builds the nodes of one project.
type Engine struct {
	cfg       *config.Config
	adapter   adapter.TypedAdapter
	store     state.Store
	ownsStore bool
	macros    *macro.Registry
	project   *loader.Project
	target    *lfstarlark.TargetInfo
	logger    *slog.Logger

	nodes  *nodes.Nodes
	graph  *dag.Graph
	byName map[string]nodes.Node
}

// New creates an engine. The warehouse is not contacted until a run.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	target, err := cfg.TargetInfo()
	if err != nil {
		return nil, err
	}

	a := opts.Adapter
	if a == nil {
		acfg, err := cfg.AdapterConfig()
		if err != nil {
			return nil, err
		}
		a, err = adapter.NewAdapter(acfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create adapter: %w", err)
		}
	}

	registry, err := macro.LoadWithBuiltins(cfg.MacrosPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load macros: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		adapter: a,
		store:   opts.Store,
		macros:  registry,
		target:  target,
		logger:  logger,
		project: &loader.Project{
			Name:            cfg.ProjectName,
			ModelsPath:      cfg.ModelsPath,
			SeedsPath:       cfg.SeedsPath,
			Models:          cfg.Models,
			Seeds:           cfg.Seeds,
			Database:        target.Database,
			Schema:          target.Schema,
			Flavor:          a.Flavor(),
			MacroNamespaces: registry.Namespaces(),
			Logger:          logger,
		},
	}
	if e.store == nil {
		store, err := state.OpenStore(ctx, cfg.StatePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		e.store, e.ownsStore = store, true
	}

	logger.Debug("engine initialized",
		slog.String("project", cfg.ProjectName),
		slog.String("adapter", a.AdapterType()),
		slog.String("target", cfg.TargetName))
	return e, nil
}

// Load scans the project and builds the dependency graph. It runs on first
// use and can be called again to pick up file changes.
func (e *Engine) Load() error {
	ns, err := e.project.Load()
	if err != nil {
		return err
	}
	graph, err := dag.Build(ns)
	if err != nil {
		return err
	}
	byName := make(map[string]nodes.Node, ns.Len())
	for _, n := range ns.Values() {
		byName[n.Common().Name] = n
	}
	e.nodes, e.graph, e.byName = ns, graph, byName
	return nil
}

func (e *Engine) ensureLoaded() error {
	if e.graph != nil {
		return nil
	}
	return e.Load()
}

// Nodes returns the loaded nodes.
func (e *Engine) Nodes() (*nodes.Nodes, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	return e.nodes, nil
}

// Graph returns the dependency graph of the enabled nodes.
func (e *Engine) Graph() (*dag.Graph, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	return e.graph, nil
}

// Adapter returns the warehouse adapter.
func (e *Engine) Adapter() adapter.TypedAdapter { return e.adapter }

// Store returns the state store.
func (e *Engine) Store() state.Store { return e.store }

// Close releases the adapter and the state store the engine opened.
func (e *Engine) Close() error {
	var errs error
	if c, ok := e.adapter.(io.Closer); ok {
		errs = multierr.Append(errs, c.Close())
	}
	if e.ownsStore {
		errs = multierr.Append(errs, e.store.Close())
	}
	return errs
}
