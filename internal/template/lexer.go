package template

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template token types.
const (
	TokenText    TokenType = iota // Literal text (SQL)
	TokenExpr                     // Expression content (between {{ and }})
	TokenStmt                     // Statement content (between {* and *})
	TokenComment                  // Comment content (between {# and #})
	TokenEOF                      // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenExpr:
		return "EXPR"
	case TokenStmt:
		return "STMT"
	case TokenComment:
		return "COMMENT"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// delimiter pairs an opening and closing marker with the token it yields.
type delimiter struct {
	open, close string
	typ         TokenType
	unclosed    string
}

var delimiters = []delimiter{
	{open: "{{", close: "}}", typ: TokenExpr, unclosed: "unclosed expression: missing '}}'"},
	{open: "{*", close: "*}", typ: TokenStmt, unclosed: "unclosed statement: missing '*}'"},
	{open: "{#", close: "#}", typ: TokenComment, unclosed: "unclosed comment: missing '#}'"},
}

// Lexer tokenizes a template string.
type Lexer struct {
	input string
	file  string
	pos   int // byte offset
	line  int // 1-based
	col   int // 1-based
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{input: input, file: file, line: 1, col: 1}
}

// Tokenize converts the input into a slice of tokens ending in TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) next() (Token, error) {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}, nil
	}
	if d, ok := l.openDelimiter(); ok {
		return l.scanDelimited(d)
	}
	return l.scanText(), nil
}

func (l *Lexer) openDelimiter() (delimiter, bool) {
	for _, d := range delimiters {
		if strings.HasPrefix(l.input[l.pos:], d.open) {
			return d, true
		}
	}
	return delimiter{}, false
}

// scanText consumes literal text up to the next opening delimiter.
func (l *Lexer) scanText() Token {
	start, pos := l.pos, l.position()
	for l.pos < len(l.input) {
		if _, ok := l.openDelimiter(); ok {
			break
		}
		l.advance()
	}
	return Token{Type: TokenText, Value: l.input[start:l.pos], Pos: pos}
}

// scanDelimited consumes one delimited block. Expressions track brace depth
// so dict literals may contain "}}".
func (l *Lexer) scanDelimited(d delimiter) (Token, error) {
	pos := l.position()
	l.advanceN(len(d.open))
	start := l.pos
	depth := 0

	for l.pos < len(l.input) {
		if depth == 0 && strings.HasPrefix(l.input[l.pos:], d.close) {
			body := strings.TrimSpace(l.input[start:l.pos])
			l.advanceN(len(d.close))
			return Token{Type: d.typ, Value: body, Pos: pos}, nil
		}
		if d.typ == TokenExpr {
			switch l.peek() {
			case '{':
				depth++
			case '}':
				if depth > 0 {
					depth--
				}
			}
		}
		l.advance()
	}
	return Token{}, NewLexError(pos, d.unclosed)
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance moves one rune forward, tracking line and column.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) advanceN(n int) {
	for range n {
		l.advance()
	}
}

func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}
