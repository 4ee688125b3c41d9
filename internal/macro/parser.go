package macro

import (
	"fmt"
	"strings"

	"go.starlark.net/syntax"
)

// ParsedFunction is a top-level public def found in a macro file without
// executing it.
type ParsedFunction struct {
	Name   string
	Params []string // "x", "x=None", "*args", "**kwargs"
	Doc    string
	Line   int
}

// Signature renders the function as name(params...).
func (f *ParsedFunction) Signature() string {
	return f.Name + "(" + strings.Join(f.Params, ", ") + ")"
}

// scanFunctions lists the public top-level functions of a macro file in
// declaration order. Names starting with an underscore are private.
func scanFunctions(filename string, content []byte) ([]*ParsedFunction, error) {
	f, err := syntax.Parse(filename, content, 0)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}
	var fns []*ParsedFunction
	for _, stmt := range f.Stmts {
		def, ok := stmt.(*syntax.DefStmt)
		if !ok || strings.HasPrefix(def.Name.Name, "_") {
			continue
		}
		fns = append(fns, &ParsedFunction{
			Name:   def.Name.Name,
			Params: paramStrings(def.Params),
			Doc:    docstring(def.Body),
			Line:   int(def.Name.NamePos.Line),
		})
	}
	return fns, nil
}

func paramStrings(params []syntax.Expr) []string {
	out := make([]string, 0, len(params))
	for _, param := range params {
		switch p := param.(type) {
		case *syntax.Ident:
			out = append(out, p.Name)
		case *syntax.BinaryExpr:
			if id, ok := p.X.(*syntax.Ident); ok && p.Op == syntax.EQ {
				out = append(out, id.Name+"="+defaultString(p.Y))
			}
		case *syntax.UnaryExpr:
			// A bare * separates keyword-only params and has no name.
			id, ok := p.X.(*syntax.Ident)
			if !ok {
				out = append(out, "*")
				continue
			}
			prefix := "*"
			if p.Op == syntax.STARSTAR {
				prefix = "**"
			}
			out = append(out, prefix+id.Name)
		}
	}
	return out
}

func docstring(body []syntax.Stmt) string {
	if len(body) == 0 {
		return ""
	}
	expr, ok := body[0].(*syntax.ExprStmt)
	if !ok {
		return ""
	}
	lit, ok := expr.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}
	s, _ := lit.Value.(string)
	return strings.TrimSpace(s)
}

// defaultString abbreviates a default value: literals and names verbatim,
// containers as their empty form.
func defaultString(e syntax.Expr) string {
	switch v := e.(type) {
	case *syntax.Literal:
		return v.Raw
	case *syntax.Ident:
		return v.Name
	case *syntax.ListExpr:
		return "[]"
	case *syntax.DictExpr:
		return "{}"
	case *syntax.TupleExpr:
		return "()"
	case *syntax.UnaryExpr:
		if v.Op == syntax.MINUS {
			return "-" + defaultString(v.X)
		}
		return defaultString(v.X)
	}
	return "..."
}
