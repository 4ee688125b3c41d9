package bigquery

import (
	"log/slog"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
)

// Import this package with a blank identifier to register the adapter. No
// bigquery database/sql driver is linked in; register one under the name
// "bigquery" for live connections.
func init() {
	adapter.Register("bigquery", func(cfg adapter.Config, logger *slog.Logger) (adapter.TypedAdapter, error) {
		return New(cfg, logger), nil
	})
}
