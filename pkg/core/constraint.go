package core

// ConstraintType is the kind of a column or model constraint.
type ConstraintType string

// Constraint types.
const (
	ConstraintCheck      ConstraintType = "check"
	ConstraintNotNull    ConstraintType = "not_null"
	ConstraintUnique     ConstraintType = "unique"
	ConstraintPrimaryKey ConstraintType = "primary_key"
	ConstraintForeignKey ConstraintType = "foreign_key"
	ConstraintCustom     ConstraintType = "custom"
)

// Constraint is a constraint declared on a column or on a model.
type Constraint struct {
	Type       ConstraintType `json:"type" yaml:"type" mapstructure:"type"`
	Name       string         `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Expression string         `json:"expression,omitempty" yaml:"expression,omitempty" mapstructure:"expression"`
	Warn       *bool          `json:"warn_unenforced,omitempty" yaml:"warn_unenforced,omitempty" mapstructure:"warn_unenforced"`
	// Columns applies to model-level constraints.
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty" mapstructure:"columns"`
	// To and ToColumns describe the referenced relation of a foreign key.
	To        string   `json:"to,omitempty" yaml:"to,omitempty" mapstructure:"to"`
	ToColumns []string `json:"to_columns,omitempty" yaml:"to_columns,omitempty" mapstructure:"to_columns"`
}

// ColumnDef is the declared metadata of a node column.
type ColumnDef struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	DataType    string         `json:"data_type,omitempty" yaml:"data_type,omitempty" mapstructure:"data_type"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Constraints []Constraint   `json:"constraints,omitempty" yaml:"constraints,omitempty" mapstructure:"constraints"`
	Meta        map[string]any `json:"meta,omitempty" yaml:"meta,omitempty" mapstructure:"meta"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty" mapstructure:"tags"`
	Quote       *bool          `json:"quote,omitempty" yaml:"quote,omitempty" mapstructure:"quote"`
}
