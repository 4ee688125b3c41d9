package relation

import (
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// PlaceholderStyle is how a warehouse spells bind parameters.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for every parameter.
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, ...
	PlaceholderDollar
)

// Flavor is the per-warehouse shape of a relation: how components are
// quoted and normalized and which relation types support rename/replace.
// Flavors are pure data and never talk to a database.
type Flavor struct {
	Name          string
	DefaultSchema string
	Identifiers   core.IdentifierConfig
	Placeholder   PlaceholderStyle

	// DefaultInclude is the include policy new relations start with.
	DefaultInclude core.Policy
	// DefaultQuote is the quote policy used when the project configures none.
	DefaultQuote core.Policy

	Renamable   []Type
	Replaceable []Type
}

// FormatPlaceholder returns the nth (1-based) bind parameter.
func (f *Flavor) FormatPlaceholder(n int) string {
	if f.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// CanRename reports whether relations of type t can be renamed.
func (f *Flavor) CanRename(t Type) bool { return slices.Contains(f.Renamable, t) }

// CanReplace reports whether relations of type t can be replaced in place.
func (f *Flavor) CanReplace(t Type) bool { return slices.Contains(f.Replaceable, t) }

var (
	flavorsMu sync.RWMutex
	flavors   = make(map[string]*Flavor)
)

// Register adds a flavor to the registry, replacing one with the same name.
func Register(f *Flavor) {
	flavorsMu.Lock()
	defer flavorsMu.Unlock()
	flavors[strings.ToLower(f.Name)] = f
}

// Lookup returns a registered flavor by adapter type.
func Lookup(name string) (*Flavor, bool) {
	flavorsMu.RLock()
	defer flavorsMu.RUnlock()
	f, ok := flavors[strings.ToLower(name)]
	return f, ok
}

// Flavors returns all registered flavor names (sorted).
func Flavors() []string {
	flavorsMu.RLock()
	defer flavorsMu.RUnlock()
	names := make([]string, 0, len(flavors))
	for name := range flavors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var tableOrView = []Type{TypeTable, TypeView}

// Built-in flavors.
var (
	Postgres = &Flavor{
		Name:           "postgres",
		DefaultSchema:  "public",
		Identifiers:    core.IdentifierConfig{Quote: `"`, Normalization: core.NormLowercase, MaxLength: 63},
		Placeholder:    PlaceholderDollar,
		DefaultInclude: core.AllTrue(),
		DefaultQuote:   core.AllTrue(),
		Renamable:      tableOrView,
		Replaceable:    tableOrView,
	}

	Redshift = &Flavor{
		Name:           "redshift",
		DefaultSchema:  "public",
		Identifiers:    core.IdentifierConfig{Quote: `"`, Normalization: core.NormLowercase, MaxLength: 127},
		Placeholder:    PlaceholderDollar,
		DefaultInclude: core.AllTrue(),
		DefaultQuote:   core.AllTrue(),
		Renamable:      tableOrView,
		Replaceable:    tableOrView,
	}

	Snowflake = &Flavor{
		Name:           "snowflake",
		DefaultSchema:  "PUBLIC",
		Identifiers:    core.IdentifierConfig{Quote: `"`, Normalization: core.NormUppercase},
		Placeholder:    PlaceholderQuestion,
		DefaultInclude: core.AllTrue(),
		DefaultQuote:   core.AllFalse(),
		Renamable:      tableOrView,
		Replaceable:    tableOrView,
	}

	BigQuery = &Flavor{
		Name:           "bigquery",
		DefaultSchema:  "",
		Identifiers:    core.IdentifierConfig{Quote: "`", Normalization: core.NormCaseSensitive},
		Placeholder:    PlaceholderQuestion,
		DefaultInclude: core.AllTrue(),
		DefaultQuote:   core.AllTrue(),
		Renamable:      []Type{TypeTable},
		Replaceable:    tableOrView,
	}

	Databricks = &Flavor{
		Name:           "databricks",
		DefaultSchema:  "default",
		Identifiers:    core.IdentifierConfig{Quote: "`", Normalization: core.NormLowercase},
		Placeholder:    PlaceholderQuestion,
		DefaultInclude: core.AllTrue(),
		DefaultQuote:   core.AllTrue(),
		Renamable:      tableOrView,
		Replaceable:    tableOrView,
	}

	DuckDB = &Flavor{
		Name:           "duckdb",
		DefaultSchema:  "main",
		Identifiers:    core.IdentifierConfig{Quote: `"`, Normalization: core.NormLowercase},
		Placeholder:    PlaceholderQuestion,
		DefaultInclude: core.AllTrue(),
		DefaultQuote:   core.AllTrue(),
		Renamable:      tableOrView,
		Replaceable:    tableOrView,
	}
)

func init() {
	for _, f := range []*Flavor{Postgres, Redshift, Snowflake, BigQuery, Databricks, DuckDB} {
		Register(f)
	}
}
