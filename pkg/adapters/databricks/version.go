package databricks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// version is a Databricks Runtime version. SQL warehouses report none and
// track the latest runtime.
type version struct {
	major, minor int
	latest       bool
}

func (v version) compare(major, minor int) int {
	switch {
	case v.latest:
		return 1
	case v.major != major:
		return sign(v.major - major)
	default:
		return sign(v.minor - minor)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// ParseDBRVersion parses versions such as "13.3" or
// "14.3.x-scala2.12". An empty string is the latest runtime.
func ParseDBRVersion(s string) (version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return version{latest: true}, nil
	}
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return version{}, core.InvalidOperationError("invalid Databricks Runtime version: %s", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return version{}, core.InvalidOperationError("invalid Databricks Runtime version: %s", s)
	}
	minorText := parts[1]
	if minorText == "x" {
		return version{major: major, minor: 1 << 30}, nil
	}
	minor, err := strconv.Atoi(minorText)
	if err != nil {
		return version{}, core.InvalidOperationError("invalid Databricks Runtime version: %s", s)
	}
	return version{major: major, minor: minor}, nil
}

// CompareDBRVersion compares the connected runtime to major.minor and
// returns -1, 0 or 1. The runtime version is read once per adapter.
func (a *Adapter) CompareDBRVersion(ctx context.Context, conn adapter.Connection, major, minor int) (int, error) {
	v, err := a.runtimeVersion(ctx, conn)
	if err != nil {
		return 0, err
	}
	return v.compare(major, minor), nil
}

func (a *Adapter) runtimeVersion(ctx context.Context, conn adapter.Connection) (version, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dbr != nil {
		return *a.dbr, nil
	}

	_, table, err := a.Execute(ctx, conn, adapter.Query("select current_version().dbr_version"), adapter.ExecOptions{Fetch: true})
	if err != nil {
		return version{}, fmt.Errorf("failed to read Databricks Runtime version: %w", err)
	}
	var raw string
	if table.Len() > 0 && len(table.Rows[0]) > 0 && table.Rows[0][0] != nil {
		raw = fmt.Sprint(table.Rows[0][0])
	}
	v, err := ParseDBRVersion(raw)
	if err != nil {
		return version{}, err
	}
	a.dbr = &v
	return v, nil
}
