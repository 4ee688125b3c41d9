package snowflake

import (
	"log/slog"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
)

// Import this package with a blank identifier to register the adapter. The
// snowflake database/sql driver is not linked in; a binary that needs live
// connections must register one under the name "snowflake".
func init() {
	adapter.Register("snowflake", func(cfg adapter.Config, logger *slog.Logger) (adapter.TypedAdapter, error) {
		return New(cfg, logger), nil
	})
}
