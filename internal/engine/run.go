package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	lfstarlark "github.com/leapstack-labs/leapforge/internal/starlark"
	"github.com/leapstack-labs/leapforge/internal/state"
	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// RunOptions selects what a run builds.
type RunOptions struct {
	// Select holds node selectors; empty builds every enabled node.
	Select []string
	// FullRefresh rebuilds incremental models from scratch unless the
	// model sets full_refresh itself.
	FullRefresh bool
	// Changed limits the run to new and changed nodes and their descendants.
	Changed bool
	// Threads overrides the configured thread count.
	Threads int
}

// NodeResult is the outcome of one node in a run.
type NodeResult struct {
	UniqueID     string
	Name         string
	ResourceType string
	Materialized string
	Status       state.NodeRunStatus
	Message      string
	RowsAffected int64
	Duration     time.Duration
	Err          error
}

// RunResult is the outcome of a run. Nodes are in build order.
type RunResult struct {
	Run      *state.Run
	Nodes    []NodeResult
	Duration time.Duration
}

// Counts returns the number of node results per status.
func (r *RunResult) Counts() map[state.NodeRunStatus]int {
	out := make(map[state.NodeRunStatus]int)
	for _, n := range r.Nodes {
		out[n.Status]++
	}
	return out
}

// Run builds the selected nodes level by level. Nodes within a level run
// concurrently, each on its own connection. A failed node skips every node
// downstream of it; the rest of the run continues. The returned error
// aggregates every node failure.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}

	ids, err := e.graph.Select(opts.Select)
	if err != nil {
		return nil, err
	}
	if opts.Changed {
		plan, err := e.Plan(ctx)
		if err != nil {
			return nil, err
		}
		affected := e.graph.Downstream(plan.Changed()...)
		ids = slices.DeleteFunc(ids, func(id string) bool { return !slices.Contains(affected, id) })
	}
	levels, err := e.graph.Subgraph(ids).Levels()
	if err != nil {
		return nil, err
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = e.cfg.Threads
	}
	if threads <= 0 {
		threads = 1
	}

	lfstarlark.UsedEnvVars().Reset()
	run, err := e.store.CreateRun(ctx, e.cfg.TargetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	logger := e.logger.With(slog.String("run_id", run.ID))
	logger.Info("starting run", slog.Int("nodes", len(ids)), slog.Int("threads", threads))

	s := &scheduler{
		e:       e,
		run:     run,
		opts:    opts,
		logger:  logger,
		pool:    newConnPool(e.adapter, threads),
		schemas: &schemaSet{},
		failed:  make(map[string]bool),
	}
	defer func() {
		if err := s.pool.close(); err != nil {
			logger.Warn("failed to close connections", slog.Any("error", err))
		}
	}()

	var errs error
	for _, level := range levels {
		results := make([]NodeResult, len(level))
		g := new(errgroup.Group)
		g.SetLimit(threads)
		for i, id := range level {
			n, _ := e.graph.Node(id)
			if reason := s.skipReason(ctx, id); reason != "" {
				results[i] = skipped(n, reason)
				continue
			}
			g.Go(func() error {
				results[i] = s.build(ctx, n)
				return nil
			})
		}
		_ = g.Wait()

		for _, res := range results {
			if res.Status != state.NodeRunStatusSuccess {
				s.failed[res.UniqueID] = true
			}
			if res.Err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", res.UniqueID, res.Err))
			}
			errs = multierr.Append(errs, s.record(ctx, res))
		}
		s.results = append(s.results, results...)
	}

	status := state.RunStatusCompleted
	var msg string
	switch {
	case ctx.Err() != nil:
		status, msg = state.RunStatusCancelled, ctx.Err().Error()
	case errs != nil:
		status = state.RunStatusFailed
		msg = fmt.Sprintf("%d node(s) failed", len(multierr.Errors(errs)))
	}
	store := context.WithoutCancel(ctx)
	if err := e.store.CompleteRun(store, run.ID, status, msg); err != nil {
		errs = multierr.Append(errs, err)
	}
	if updated, err := e.store.GetRun(store, run.ID); err == nil && updated != nil {
		run = updated
	}

	result := &RunResult{Run: run, Nodes: s.results, Duration: time.Since(start)}
	logger.Info("run finished", slog.String("status", string(status)), slog.Duration("duration", result.Duration))
	if ctx.Err() != nil {
		errs = multierr.Append(errs, ctx.Err())
	}
	return result, errs
}

// scheduler holds the state of one run. failed and results are only
// touched between levels.
type scheduler struct {
	e       *Engine
	run     *state.Run
	opts    RunOptions
	logger  *slog.Logger
	pool    *connPool
	schemas *schemaSet

	failed  map[string]bool
	results []NodeResult
}

func (s *scheduler) skipReason(ctx context.Context, id string) string {
	if ctx.Err() != nil {
		return "run cancelled"
	}
	for _, parent := range s.e.graph.Parents(id) {
		if s.failed[parent] {
			return "skipped because " + parent + " did not build"
		}
	}
	return ""
}

func skipped(n nodes.Node, reason string) NodeResult {
	return NodeResult{
		UniqueID:     n.Common().UniqueID,
		Name:         n.Common().Name,
		ResourceType: string(n.ResourceType()),
		Materialized: n.Materialization(),
		Status:       state.NodeRunStatusSkipped,
		Message:      reason,
	}
}

// build runs one node and never returns an error; failures are reported in
// the result.
func (s *scheduler) build(ctx context.Context, n nodes.Node) NodeResult {
	start := time.Now()
	res := skipped(n, "")
	out, err := s.buildNode(ctx, n)
	res.Duration = time.Since(start)
	if err != nil {
		// Failure messages are stored and printed; mask env_var values in them.
		msg := lfstarlark.UsedEnvVars().Redact(err.Error())
		res.Status, res.Err, res.Message = state.NodeRunStatusFailed, err, msg
		s.logger.Error("node failed", slog.String("node", res.UniqueID), slog.String("error", msg))
		return res
	}
	res.Status, res.Message, res.RowsAffected = state.NodeRunStatusSuccess, out.message, out.rows
	s.logger.Info("node built", slog.String("node", res.UniqueID),
		slog.String("message", out.message), slog.Duration("duration", res.Duration))
	return res
}

func (s *scheduler) buildNode(ctx context.Context, n nodes.Node) (outcome, error) {
	conn, err := s.pool.get(ctx)
	if err != nil {
		return outcome{}, err
	}
	defer s.pool.put(conn)
	mt := &materializer{e: s.e, conn: conn, schemas: s.schemas}

	switch n := n.(type) {
	case *nodes.Model:
		return s.buildModel(ctx, mt, n)
	case *nodes.Seed:
		rel, exec, err := s.e.seedContext(n, conn, lfstarlark.RunInfo{InvocationID: s.run.ID, FullRefresh: s.opts.FullRefresh})
		if err != nil {
			return outcome{}, err
		}
		return mt.seed(ctx, n, rel, exec)
	default:
		return outcome{}, core.UnsupportedFeatureError("%s: building %s nodes is not supported", n.Common().UniqueID, n.ResourceType())
	}
}

func (s *scheduler) buildModel(ctx context.Context, mt *materializer, m *nodes.Model) (outcome, error) {
	if err := m.Config.Validate(); err != nil {
		return outcome{}, err
	}
	fullRefresh := s.opts.FullRefresh
	if m.Config.FullRefresh != nil {
		fullRefresh = *m.Config.FullRefresh
	}
	run := lfstarlark.RunInfo{InvocationID: s.run.ID, FullRefresh: fullRefresh}

	mat := m.Materialization()
	if mat == core.MaterializationIncremental && !fullRefresh {
		rel, err := s.e.project.Relation(m)
		if err != nil {
			return outcome{}, err
		}
		existing, err := mt.existing(ctx, rel)
		if err != nil {
			return outcome{}, err
		}
		run.Incremental = existing != nil && !existing.IsView()
	}

	c, err := s.e.compile(ctx, m, mt.conn, run)
	if err != nil {
		return outcome{}, err
	}
	if mat == core.MaterializationEphemeral {
		return outcome{message: "EPHEMERAL"}, nil
	}
	return mt.model(ctx, c, run.Incremental)
}

// record stores a node result and, on success, the node's new state.
func (s *scheduler) record(ctx context.Context, res NodeResult) error {
	ctx = context.WithoutCancel(ctx)
	nr := &state.NodeRun{
		RunID:        s.run.ID,
		UniqueID:     res.UniqueID,
		Status:       res.Status,
		Message:      res.Message,
		RowsAffected: res.RowsAffected,
		StartedAt:    time.Now().Add(-res.Duration),
		Duration:     res.Duration,
	}
	if res.Err != nil {
		nr.Error = res.Message
	}
	if err := s.e.store.RecordNodeRun(ctx, nr); err != nil {
		return err
	}
	if res.Status != state.NodeRunStatusSuccess {
		return nil
	}

	n, ok := s.e.graph.Node(res.UniqueID)
	if !ok {
		return nil
	}
	entry, err := newPlanEntry(n)
	if err != nil {
		return err
	}
	return s.e.store.PutNodeState(ctx, &state.NodeState{
		UniqueID:     entry.UniqueID,
		ResourceType: entry.ResourceType,
		Checksum:     entry.checksum,
		ConfigHash:   entry.configHash,
		Materialized: entry.Materialized,
		RunID:        s.run.ID,
		UpdatedAt:    time.Now().UTC(),
	})
}

// connPool hands each worker its own connection and reuses them across
// levels.
type connPool struct {
	adapter adapter.TypedAdapter
	idle    chan adapter.Connection

	mu  sync.Mutex
	all []adapter.Connection
}

func newConnPool(a adapter.TypedAdapter, size int) *connPool {
	return &connPool{adapter: a, idle: make(chan adapter.Connection, size)}
}

func (p *connPool) get(ctx context.Context) (adapter.Connection, error) {
	select {
	case conn := <-p.idle:
		return conn, nil
	default:
	}
	conn, err := p.adapter.NewConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	p.mu.Lock()
	p.all = append(p.all, conn)
	p.mu.Unlock()
	return conn, nil
}

func (p *connPool) put(conn adapter.Connection) {
	select {
	case p.idle <- conn:
	default:
		// More connections than workers only happens if get raced; close
		// the extra one now.
		_ = conn.Close()
		p.mu.Lock()
		p.all = slices.DeleteFunc(p.all, func(c adapter.Connection) bool { return c == conn })
		p.mu.Unlock()
	}
}

func (p *connPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs error
	for _, conn := range p.all {
		errs = multierr.Append(errs, conn.Close())
	}
	p.all = nil
	return errs
}
