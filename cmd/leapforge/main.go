// Package main is the leapforge command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapforge/internal/cli"

	_ "github.com/leapstack-labs/leapforge/pkg/adapters/bigquery"
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/databricks"
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/redshift"
	_ "github.com/leapstack-labs/leapforge/pkg/adapters/snowflake"
	_ "github.com/leapstack-labs/leapforge/pkg/auth/snowflake"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
