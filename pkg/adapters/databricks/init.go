package databricks

import (
	"log/slog"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
)

// Import this package with a blank identifier to register the adapter. No
// databricks database/sql driver is linked in; register one under the name
// "databricks" for live connections.
func init() {
	adapter.Register("databricks", func(cfg adapter.Config, logger *slog.Logger) (adapter.TypedAdapter, error) {
		return New(cfg, logger), nil
	})
}
