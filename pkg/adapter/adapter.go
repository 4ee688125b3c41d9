// Package adapter defines the contract every warehouse backend implements.
//
// The contract has three tiers. Core holds the operations a backend must
// provide itself. Base supplies cross-backend defaults for everything else
// and calls back into the concrete backend, so an override of a Core method
// is seen by every default built on it. Operations that only make sense for
// one warehouse default to a core.KindNotImplementedForBackend error naming
// the backends that support them; callers branch on core.IsNotImplemented.
//
// Concrete backends live in pkg/adapters and register themselves in init().
package adapter

import (
	"context"
	"database/sql"
	"time"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// Connection is an open warehouse session. *sql.Conn and *sql.DB satisfy it.
// A connection must not be shared by concurrent calls.
type Connection interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// MacroExecutor calls a user or project macro by name in the current
// evaluation.
type MacroExecutor interface {
	ExecuteMacro(ctx context.Context, name string, args []any, kwargs map[string]any) (any, error)
}

// QueryContext carries the statement text and the node it belongs to.
// A nil SQL is a bug in the caller.
type QueryContext struct {
	SQL    *string
	NodeID string
	Desc   string
}

// Query returns a context for sql.
func Query(sql string) QueryContext { return QueryContext{SQL: &sql} }

// WithNode returns a copy attributed to a node.
func (q QueryContext) WithNode(id string) QueryContext {
	q.NodeID = id
	return q
}

// ExecOptions controls one execute call.
type ExecOptions struct {
	AutoBegin bool
	// Fetch returns the rows of the last statement.
	Fetch bool
	// Limit caps the fetched rows. Zero means no limit.
	Limit int
}

// Response describes the outcome of the last executed statement.
type Response struct {
	Message      string `json:"_message"`
	Code         string `json:"code"`
	RowsAffected int64  `json:"rows_affected"`
	QueryID      string `json:"query_id,omitempty"`
}

// ConstraintSupport is how a backend treats a constraint type.
type ConstraintSupport int

// Constraint support levels.
const (
	NotSupported ConstraintSupport = iota
	NotEnforced
	Enforced
)

// String returns the string representation of the support level.
func (s ConstraintSupport) String() string {
	switch s {
	case Enforced:
		return "enforced"
	case NotEnforced:
		return "not_enforced"
	default:
		return "not_supported"
	}
}

// BehaviorFlag is an opt-in behavior change a backend exposes.
type BehaviorFlag struct {
	Name        string `json:"name"`
	Default     bool   `json:"default"`
	Description string `json:"description,omitempty"`
	DocsURL     string `json:"docs_url,omitempty"`
}

// FreshnessKey identifies a source relation in a metadata freshness batch.
// Both parts are lowercased.
type FreshnessKey struct {
	Identifier string
	Schema     string
}

// PartitionConfig is a normalized BigQuery partition_by setting.
type PartitionConfig struct {
	Field                     string          `json:"field"`
	DataType                  string          `json:"data_type"`
	Granularity               string          `json:"granularity"`
	Range                     *PartitionRange `json:"range,omitempty"`
	TimeIngestionPartitioning bool            `json:"time_ingestion_partitioning"`
	CopyPartitions            bool            `json:"copy_partitions"`
}

// PartitionRange bounds an integer range partitioning.
type PartitionRange struct {
	Start    int64 `json:"start"`
	End      int64 `json:"end"`
	Interval int64 `json:"interval"`
}

// Core is the set of operations with no cross-backend default.
type Core interface {
	// AdapterType is the registry name of the backend, e.g. "postgres".
	AdapterType() string
	// Flavor describes quoting, casing and identifier limits.
	Flavor() *relation.Flavor

	NewConnection(ctx context.Context) (Connection, error)
	// SplitStatements breaks a script into individual statements.
	SplitStatements(sql string) []string
	Execute(ctx context.Context, conn Connection, qc QueryContext, opts ExecOptions) (*Response, *Table, error)
	AddQuery(ctx context.Context, conn Connection, qc QueryContext, autoBegin, abridgeSQLLog bool) error

	Quote(identifier string) string
	GetResolvedQuoting() core.Policy

	ListSchemas(ctx context.Context, conn Connection, database string) ([]string, error)
	// GetRelation returns nil without error when the relation does not exist.
	GetRelation(ctx context.Context, conn Connection, database, schema, identifier string) (*relation.Relation, error)
	GetColumnsInRelation(ctx context.Context, conn Connection, rel *relation.Relation) ([]Column, error)
	GetColumnSchemaFromQuery(ctx context.Context, conn Connection, qc QueryContext) ([]Column, error)
	// ColumnsFromSchema converts driver column metadata to columns.
	ColumnsFromSchema(types []*sql.ColumnType) ([]Column, error)

	// ConvertTypeInner maps an inferred seed column type to a warehouse type.
	ConvertTypeInner(t DataKind) (string, error)
}

// TypedAdapter is the full contract generic materialization code programs
// against. Embed *Base in a backend to get every non-Core operation.
type TypedAdapter interface {
	Core

	ExecuteWithNewConnection(ctx context.Context, qc QueryContext, opts ExecOptions) (*Response, *Table, error)

	DropRelation(ctx context.Context, m MacroExecutor, rel *relation.Relation) error
	TruncateRelation(ctx context.Context, m MacroExecutor, rel *relation.Relation) error
	RenameRelation(ctx context.Context, conn Connection, from, to *relation.Relation) error
	CheckSchemaExistsMacro() (pkg, name string)

	GetMissingColumns(ctx context.Context, conn Connection, source, target *relation.Relation) ([]Column, error)
	ExpandTargetColumnTypes(ctx context.Context, conn Connection, m MacroExecutor, from, to *relation.Relation) error

	QuoteAsConfigured(identifier string, component core.ComponentName) string
	QuoteSeedColumn(column string, quote *bool) string
	ConvertType(t *Table, col int) (string, error)

	RenderRawColumnsConstraints(columns map[string]core.ColumnDef) []string
	RenderColumnConstraint(c core.Constraint) (string, bool)
	RenderRawModelConstraints(constraints []core.Constraint) []string
	RenderModelConstraint(c core.Constraint) (string, bool)
	GetConstraintSupport(t core.ConstraintType) ConstraintSupport

	StandardizeGrantsDict(grants *Table) (map[string][]string, error)
	CalculateFreshnessFromMetadataBatch(ctx context.Context, m MacroExecutor, sources []*relation.Relation) (map[FreshnessKey]time.Time, error)

	GetHardDeletesBehavior(cfg *config.SnapshotConfig) (string, error)
	AssertValidSnapshotTargetGivenStrategy(ctx context.Context, conn Connection, rel *relation.Relation, columnNames map[string]string, hardDeletes string) error

	ValidIncrementalStrategies() []string
	Behavior() []BehaviorFlag
	GenerateUniqueTemporaryTableSuffix(initial string) (string, error)

	BigQueryOperations
	PostgresOperations
	DatabricksOperations
}

// BigQueryOperations only BigQuery implements.
type BigQueryOperations interface {
	UpdateColumnsDescriptions(ctx context.Context, conn Connection, rel *relation.Relation, columns map[string]core.ColumnDef) error
	NestColumnDataTypes(columns map[string]core.ColumnDef) (map[string]core.ColumnDef, error)
	GrantAccessTo(ctx context.Context, conn Connection, entity *relation.Relation, entityType, role string, target map[string]string) error
	GetDatasetLocation(ctx context.Context, conn Connection, rel *relation.Relation) (string, error)
	UpdateTableDescription(ctx context.Context, conn Connection, database, schema, identifier, description string) error
	AlterTableAddColumns(ctx context.Context, conn Connection, rel *relation.Relation, columns []Column) error
	GetColumnsInSelectSQL(ctx context.Context, conn Connection, sql string) ([]Column, error)
	IsReplaceable(ctx context.Context, conn Connection, rel *relation.Relation, partition *PartitionConfig, clusterBy []string) (bool, error)
	ParsePartitionBy(raw *config.BigQueryPartitionBy) (*PartitionConfig, error)
	GetTableOptions(cfg *config.ModelConfig, temporary bool) (map[string]string, error)
	GetViewOptions(cfg *config.ModelConfig) (map[string]string, error)
	AddTimeIngestionPartitionColumn(partition *PartitionConfig, columns []Column) ([]Column, error)
	ListRelationsWithoutCaching(ctx context.Context, conn Connection, schema *relation.Relation) ([]*relation.Relation, error)
	CopyTable(ctx context.Context, conn Connection, src, dst *relation.Relation, materialization string) error
	DescribeRelation(ctx context.Context, conn Connection, rel *relation.Relation) (map[string]any, error)
}

// PostgresOperations only Postgres and Redshift implement.
type PostgresOperations interface {
	VerifyDatabase(database string) error
	RelationMaxNameLength() (int, error)
}

// DatabricksOperations only Databricks implements.
type DatabricksOperations interface {
	CompareDBRVersion(ctx context.Context, conn Connection, major, minor int) (int, error)
	ComputeExternalPath(cfg *config.ModelConfig, model *nodes.Model, isIncremental bool) (string, error)
	UpdateTblpropertiesForIceberg(cfg *config.ModelConfig, props map[string]any) (map[string]any, error)
	GetRelationConfig(ctx context.Context, conn Connection, rel *relation.Relation) (map[string]any, error)
	GetConfigFromModel(model *nodes.Model) (map[string]any, error)
	ValidIncrementalStrategiesAsValues() ([]string, error)
}

// SeedLoader is implemented by backends that bulk load seed files into a
// relation, replacing its contents.
type SeedLoader interface {
	LoadSeed(ctx context.Context, conn Connection, rel *relation.Relation, path string) error
}
