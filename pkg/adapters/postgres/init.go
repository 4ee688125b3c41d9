// Package postgres provides the PostgreSQL adapter.
//
// This file registers the adapter with the adapter registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/leapforge/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(cfg adapter.Config, logger *slog.Logger) (adapter.TypedAdapter, error) {
		return New(cfg, logger), nil
	})
}
