// Package duckdb provides the DuckDB adapter.
//
// This file registers the adapter with the adapter registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/leapforge/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(cfg adapter.Config, logger *slog.Logger) (adapter.TypedAdapter, error) {
		a, err := New(cfg, logger)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
}
