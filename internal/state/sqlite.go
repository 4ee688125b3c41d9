package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteStore implements Store on a SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite state store instance.
// If logger is nil, a discard logger is used.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// OpenStore opens path, creating parent directories, and migrates it.
func OpenStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps in-memory databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.logger.Debug("opened state store", slog.String("path", path))
	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database handle.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func generateID() string {
	return uuid.New().String()
}

// --- Run operations ---

// CreateRun creates a new run in the running state.
func (s *SQLiteStore) CreateRun(ctx context.Context, target string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Target:    target,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("target", target))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, target, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Target, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

const runColumns = `id, target, status, started_at, completed_at, error`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetLatestRun retrieves the most recent run for a target, or nil when the
// target has never run.
func (s *SQLiteStore) GetLatestRun(ctx context.Context, target string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE target = ? ORDER BY started_at DESC LIMIT 1`, target))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to limit, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var (
		status      string
		completedAt sql.NullTime
		errMsg      sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Target, &status, &run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return run, nil
}

// --- Node run operations ---

// RecordNodeRun stores the outcome of one node. Recording the same node
// twice in a run replaces the earlier row.
func (s *SQLiteStore) RecordNodeRun(ctx context.Context, nr *NodeRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	var errorPtr *string
	if nr.Error != "" {
		errorPtr = &nr.Error
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO node_runs (run_id, unique_id, status, message, rows_affected, started_at, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nr.RunID, nr.UniqueID, string(nr.Status), nr.Message, nr.RowsAffected,
		nr.StartedAt.UTC(), nr.Duration.Milliseconds(), errorPtr,
	)
	if err != nil {
		return fmt.Errorf("failed to record node run %s: %w", nr.UniqueID, err)
	}
	return nil
}

// ListNodeRuns returns the node runs of a run ordered by start time.
func (s *SQLiteStore) ListNodeRuns(ctx context.Context, runID string) ([]*NodeRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, unique_id, status, message, rows_affected, started_at, duration_ms, error
		 FROM node_runs WHERE run_id = ? ORDER BY started_at, unique_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node runs: %w", err)
	}
	defer rows.Close()

	var out []*NodeRun
	for rows.Next() {
		nr := &NodeRun{}
		var (
			status string
			ms     int64
			errMsg sql.NullString
		)
		if err := rows.Scan(&nr.RunID, &nr.UniqueID, &status, &nr.Message, &nr.RowsAffected, &nr.StartedAt, &ms, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan node run: %w", err)
		}
		nr.Status = NodeRunStatus(status)
		nr.Duration = time.Duration(ms) * time.Millisecond
		nr.Error = errMsg.String
		out = append(out, nr)
	}
	return out, rows.Err()
}

// --- Node state operations ---

const nodeStateColumns = `unique_id, resource_type, checksum, config_hash, materialized, run_id, updated_at`

// GetNodeState returns the stored state of a node, or nil when the node has
// never been built.
func (s *SQLiteStore) GetNodeState(ctx context.Context, uniqueID string) (*NodeState, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	ns, err := scanNodeState(s.db.QueryRowContext(ctx,
		`SELECT `+nodeStateColumns+` FROM node_state WHERE unique_id = ?`, uniqueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node state: %w", err)
	}
	return ns, nil
}

// ListNodeStates returns every stored node state keyed by unique id.
func (s *SQLiteStore) ListNodeStates(ctx context.Context) (map[string]*NodeState, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeStateColumns+` FROM node_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to list node states: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*NodeState)
	for rows.Next() {
		ns, err := scanNodeState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node state: %w", err)
		}
		out[ns.UniqueID] = ns
	}
	return out, rows.Err()
}

// PutNodeState inserts or replaces the state of a node. UpdatedAt is set
// when zero.
func (s *SQLiteStore) PutNodeState(ctx context.Context, ns *NodeState) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if ns.UniqueID == "" {
		return fmt.Errorf("node state requires a unique id")
	}
	if ns.UpdatedAt.IsZero() {
		ns.UpdatedAt = time.Now().UTC()
	}
	var runID *string
	if ns.RunID != "" {
		runID = &ns.RunID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO node_state (`+nodeStateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (unique_id) DO UPDATE SET
		   resource_type = excluded.resource_type,
		   checksum = excluded.checksum,
		   config_hash = excluded.config_hash,
		   materialized = excluded.materialized,
		   run_id = excluded.run_id,
		   updated_at = excluded.updated_at`,
		ns.UniqueID, ns.ResourceType, ns.Checksum, ns.ConfigHash, ns.Materialized, runID, ns.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save node state %s: %w", ns.UniqueID, err)
	}
	return nil
}

// DeleteNodeState forgets a node. Deleting an unknown node is not an error.
func (s *SQLiteStore) DeleteNodeState(ctx context.Context, uniqueID string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM node_state WHERE unique_id = ?`, uniqueID); err != nil {
		return fmt.Errorf("failed to delete node state: %w", err)
	}
	return nil
}

func scanNodeState(row scanner) (*NodeState, error) {
	ns := &NodeState{}
	var runID sql.NullString
	if err := row.Scan(&ns.UniqueID, &ns.ResourceType, &ns.Checksum, &ns.ConfigHash, &ns.Materialized, &runID, &ns.UpdatedAt); err != nil {
		return nil, err
	}
	ns.RunID = runID.String
	return ns, nil
}
