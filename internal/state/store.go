// Package state persists what the last successful build of each node looked
// like so plans can tell new, changed and unchanged nodes apart.
package state

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// NodeRunStatus is the outcome of one node within a run.
type NodeRunStatus string

// Node run statuses.
const (
	NodeRunStatusSuccess NodeRunStatus = "success"
	NodeRunStatusFailed  NodeRunStatus = "failed"
	NodeRunStatusSkipped NodeRunStatus = "skipped"
)

// Run is one invocation of the scheduler.
type Run struct {
	ID          string
	Target      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// NodeState is the last successfully built version of a node.
type NodeState struct {
	UniqueID     string
	ResourceType string
	Checksum     string
	ConfigHash   string
	Materialized string
	RunID        string
	UpdatedAt    time.Time
}

// NodeRun records one node execution within a run.
type NodeRun struct {
	RunID        string
	UniqueID     string
	Status       NodeRunStatus
	Message      string
	RowsAffected int64
	StartedAt    time.Time
	Duration     time.Duration
	Error        string
}

// Store is the persistence interface used by the planner and scheduler.
type Store interface {
	CreateRun(ctx context.Context, target string) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	GetLatestRun(ctx context.Context, target string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	RecordNodeRun(ctx context.Context, nr *NodeRun) error
	ListNodeRuns(ctx context.Context, runID string) ([]*NodeRun, error)

	GetNodeState(ctx context.Context, uniqueID string) (*NodeState, error)
	ListNodeStates(ctx context.Context) (map[string]*NodeState, error)
	PutNodeState(ctx context.Context, ns *NodeState) error
	DeleteNodeState(ctx context.Context, uniqueID string) error

	Close() error
}
