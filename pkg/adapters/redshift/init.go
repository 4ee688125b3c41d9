package redshift

import (
	"log/slog"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
)

func init() {
	adapter.Register("redshift", func(cfg adapter.Config, logger *slog.Logger) (adapter.TypedAdapter, error) {
		return New(cfg, logger), nil
	})
}
