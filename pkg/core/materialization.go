package core

// Materialization constants for node types.
const (
	MaterializationTable            = "table"
	MaterializationView             = "view"
	MaterializationIncremental      = "incremental"
	MaterializationEphemeral        = "ephemeral"
	MaterializationMaterializedView = "materialized_view"
	MaterializationDynamicTable     = "dynamic_table"
	MaterializationStreamingTable   = "streaming_table"
	MaterializationSeed             = "seed"
	MaterializationSnapshot         = "snapshot"
	MaterializationTest             = "test"
	MaterializationUnit             = "unit"
)

// Incremental strategies.
const (
	StrategyAppend           = "append"
	StrategyMerge            = "merge"
	StrategyDeleteInsert     = "delete+insert"
	StrategyInsertOverwrite  = "insert_overwrite"
	StrategyReplaceWhere     = "replace_where"
	StrategyMicrobatch       = "microbatch"
)

// IntrospectionKind records whether compiling a node needed live warehouse
// queries.
type IntrospectionKind int

const (
	// IntrospectionNone means the node compiled from static inputs only.
	IntrospectionNone IntrospectionKind = iota
	// IntrospectionExecute means compilation ran statements.
	IntrospectionExecute
	// IntrospectionUpstreamSchema means compilation read upstream column schemas.
	IntrospectionUpstreamSchema
	// IntrospectionInternalSchema means compilation read the node's own schema.
	IntrospectionInternalSchema
	// IntrospectionExternalSchema means compilation read schemas outside the project.
	IntrospectionExternalSchema
	// IntrospectionThis means compilation inspected the node's own relation.
	IntrospectionThis
	// IntrospectionUnknown means compilation introspected in an untracked way.
	IntrospectionUnknown
)

// String returns the string representation of the kind.
func (k IntrospectionKind) String() string {
	switch k {
	case IntrospectionNone:
		return "none"
	case IntrospectionExecute:
		return "execute"
	case IntrospectionUpstreamSchema:
		return "upstream_schema"
	case IntrospectionInternalSchema:
		return "internal_schema"
	case IntrospectionExternalSchema:
		return "external_schema"
	case IntrospectionThis:
		return "this"
	default:
		return "unknown"
	}
}

// StaticAnalysis modes for a node.
const (
	StaticAnalysisOn       = "on"
	StaticAnalysisOff      = "off"
	StaticAnalysisUnsafe   = "unsafe"
	StaticAnalysisBaseline = "baseline"
)
