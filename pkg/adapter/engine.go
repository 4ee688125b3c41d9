package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Engine runs a single statement against a connection.
type Engine interface {
	// ExecuteStatement runs sql, retrying transient failures up to retries
	// more times. When fetch is set the result rows are returned.
	ExecuteStatement(ctx context.Context, conn Connection, sql string, retries uint64, fetch bool, limit int) (*Response, *Table, error)
}

// RetryEngine is an Engine backed by exponential backoff.
type RetryEngine struct {
	// Base is the first backoff delay.
	Base time.Duration
	// Cap bounds a single delay.
	Cap    time.Duration
	Logger *slog.Logger
}

// DefaultBackoff is the first retry delay of a RetryEngine with no Base.
const DefaultBackoff = 200 * time.Millisecond

// NewRetryEngine creates an engine with default delays.
func NewRetryEngine(logger *slog.Logger) *RetryEngine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RetryEngine{Base: DefaultBackoff, Cap: 5 * time.Second, Logger: logger}
}

func (e *RetryEngine) backoff(retries uint64) retry.Backoff {
	base := e.Base
	if base <= 0 {
		base = DefaultBackoff
	}
	b := retry.NewExponential(base)
	if e.Cap > 0 {
		b = retry.WithCappedDuration(e.Cap, b)
	}
	return retry.WithMaxRetries(retries, b)
}

// ExecuteStatement implements Engine.
func (e *RetryEngine) ExecuteStatement(ctx context.Context, conn Connection, sql string, retries uint64, fetch bool, limit int) (*Response, *Table, error) {
	if conn == nil {
		return nil, nil, fmt.Errorf("database connection not established")
	}

	var (
		resp  *Response
		table *Table
	)
	attempt := 0
	err := retry.Do(ctx, e.backoff(retries), func(ctx context.Context) error {
		attempt++
		var err error
		resp, table, err = runStatement(ctx, conn, sql, fetch, limit)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if e.Logger != nil {
			e.Logger.Debug("statement failed", slog.Int("attempt", attempt), slog.String("error", err.Error()))
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, table, nil
}

func runStatement(ctx context.Context, conn Connection, sql string, fetch bool, limit int) (*Response, *Table, error) {
	if fetch {
		//nolint:rowserrcheck // ReadTable checks rows.Err
		rows, err := conn.QueryContext(ctx, sql)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to execute query: %w", err)
		}
		table, err := ReadTable(rows, limit)
		if err != nil {
			return nil, nil, err
		}
		return selectResponse(int64(table.Len())), table, nil
	}

	res, err := conn.ExecContext(ctx, sql)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute SQL: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = 0
	}
	return selectResponse(n), EmptyTable(), nil
}

func selectResponse(n int64) *Response {
	return &Response{Message: fmt.Sprintf("SELECT %d", n), Code: "SELECT", RowsAffected: n}
}
