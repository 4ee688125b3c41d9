package template

import (
	"regexp"
	"strings"
)

var (
	forPattern  = regexp.MustCompile(`^for\s+([A-Za-z_][A-Za-z0-9_]*(?:\s*,\s*[A-Za-z_][A-Za-z0-9_]*)*)\s+in\s+(.+?)\s*:?$`)
	ifPattern   = regexp.MustCompile(`^if\s+(.+?)\s*:?$`)
	elifPattern = regexp.MustCompile(`^elif\s+(.+?)\s*:?$`)
	elsePattern = regexp.MustCompile(`^else\s*:?$`)
)

// ParseString tokenizes and parses a template.
func ParseString(input, file string) (*Template, error) {
	tokens, err := NewLexer(input, file).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	nodes, end, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	if end != nil {
		return nil, NewUnmatchedBlockError(end.Pos(), end.Kind)
	}
	return &Template{Nodes: nodes, File: file}, nil
}

type parser struct {
	tokens []Token
	pos    int
}

// parseUntil collects nodes until EOF or a statement that closes or
// continues an enclosing block, which is returned.
func (p *parser) parseUntil() ([]Node, *StmtNode, error) {
	var nodes []Node
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++

		switch tok.Type {
		case TokenEOF:
			return nodes, nil, nil
		case TokenComment:
			continue
		case TokenText:
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})
		case TokenExpr:
			nodes = append(nodes, &ExprNode{nodeBase: nodeBase{pos: tok.Pos}, Expr: tok.Value})
		case TokenStmt:
			stmt, err := parseStmt(tok)
			if err != nil {
				return nil, nil, err
			}
			switch stmt.Kind {
			case StmtFor:
				block, err := p.parseFor(stmt)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			case StmtIf:
				block, err := p.parseIf(stmt)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			default:
				return nodes, stmt, nil
			}
		}
	}
	return nodes, nil, nil
}

func (p *parser) parseFor(stmt *StmtNode) (*ForBlock, error) {
	body, end, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	if end == nil {
		return nil, NewUnmatchedBlockError(stmt.Pos(), StmtFor)
	}
	if end.Kind != StmtEndFor {
		return nil, NewUnmatchedBlockError(end.Pos(), end.Kind)
	}
	return &ForBlock{nodeBase: stmt.nodeBase, VarName: stmt.VarName, IterExpr: stmt.Expr, Body: body}, nil
}

func (p *parser) parseIf(stmt *StmtNode) (*IfBlock, error) {
	block := &IfBlock{nodeBase: stmt.nodeBase, Condition: stmt.Expr}
	body, end, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	block.Body = body

	for {
		if end == nil {
			return nil, NewUnmatchedBlockError(stmt.Pos(), StmtIf)
		}
		switch end.Kind {
		case StmtEndIf:
			return block, nil
		case StmtElif:
			if block.Else != nil {
				return nil, NewParseError(end.Pos(), "'elif' after 'else'")
			}
			branch := Branch{Condition: end.Expr, pos: end.Pos()}
			branch.Body, end, err = p.parseUntil()
			if err != nil {
				return nil, err
			}
			block.ElseIfs = append(block.ElseIfs, branch)
		case StmtElse:
			if block.Else != nil {
				return nil, NewParseError(end.Pos(), "duplicate 'else'")
			}
			var elseBody []Node
			elseBody, end, err = p.parseUntil()
			if err != nil {
				return nil, err
			}
			if elseBody == nil {
				elseBody = []Node{}
			}
			block.Else = elseBody
		default:
			return nil, NewUnmatchedBlockError(end.Pos(), end.Kind)
		}
	}
}

// parseStmt classifies the body of a {* *} block.
func parseStmt(tok Token) (*StmtNode, error) {
	s := strings.TrimSpace(tok.Value)
	stmt := &StmtNode{nodeBase: nodeBase{pos: tok.Pos}}

	switch {
	case s == "endfor":
		stmt.Kind = StmtEndFor
	case s == "endif":
		stmt.Kind = StmtEndIf
	case elsePattern.MatchString(s):
		stmt.Kind = StmtElse
	case strings.HasPrefix(s, "for "):
		m := forPattern.FindStringSubmatch(s)
		if m == nil {
			return nil, NewParseErrorf(tok.Pos, "invalid for statement: %q", s)
		}
		stmt.Kind, stmt.VarName, stmt.Expr = StmtFor, m[1], m[2]
	case strings.HasPrefix(s, "elif "):
		m := elifPattern.FindStringSubmatch(s)
		if m == nil {
			return nil, NewParseErrorf(tok.Pos, "invalid elif statement: %q", s)
		}
		stmt.Kind, stmt.Expr = StmtElif, m[1]
	case strings.HasPrefix(s, "if "):
		m := ifPattern.FindStringSubmatch(s)
		if m == nil {
			return nil, NewParseErrorf(tok.Pos, "invalid if statement: %q", s)
		}
		stmt.Kind, stmt.Expr = StmtIf, m[1]
	default:
		return nil, NewParseErrorf(tok.Pos, "unknown statement: %q", s)
	}
	return stmt, nil
}
