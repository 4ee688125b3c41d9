// Package template renders model SQL. {{ expr }} inserts the value of a
// Starlark expression, {* stmt *} opens or closes a for/if block and
// {# text #} is a comment dropped from the output.
package template

// Position is a 1-based line and column in a model file.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is one element of a parsed template. The set of node types is closed.
type Node interface {
	Pos() Position
	node()
}

type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode is SQL copied to the output verbatim.
type TextNode struct {
	nodeBase
	Text string
}

// ExprNode is the Starlark source between {{ and }}.
type ExprNode struct {
	nodeBase
	Expr string
}

// StmtKind classifies a {* stmt *}.
type StmtKind int

// Statement kinds. StmtUnknown is never produced by a successful parse.
const (
	StmtUnknown StmtKind = iota
	StmtFor
	StmtEndFor
	StmtIf
	StmtElif
	StmtElse
	StmtEndIf
)

var stmtKindNames = [...]string{
	StmtUnknown: "unknown",
	StmtFor:     "for",
	StmtEndFor:  "endfor",
	StmtIf:      "if",
	StmtElif:    "elif",
	StmtElse:    "else",
	StmtEndIf:   "endif",
}

func (k StmtKind) String() string {
	if k < 0 || int(k) >= len(stmtKindNames) {
		return "unknown"
	}
	return stmtKindNames[k]
}

// StmtNode is a classified {* stmt *} before blocks are assembled.
type StmtNode struct {
	nodeBase
	Kind    StmtKind
	Expr    string // if/elif condition or for iterable
	VarName string // for targets, comma separated
}

// ForBlock renders Body once per element of IterExpr with VarName bound.
type ForBlock struct {
	nodeBase
	VarName  string
	IterExpr string
	Body     []Node
}

// IfBlock renders the first branch whose condition is truthy, else Else.
type IfBlock struct {
	nodeBase
	Condition string
	Body      []Node
	ElseIfs   []Branch
	Else      []Node // nil when there is no else
}

// Branch is one elif of an IfBlock.
type Branch struct {
	Condition string
	Body      []Node
	pos       Position
}

// Pos returns the position of the elif statement.
func (b Branch) Pos() Position { return b.pos }

// Template is a parsed model file.
type Template struct {
	Nodes []Node
	File  string
}
