package template

import "fmt"

// Error is implemented by every lexing, parsing and rendering failure so
// callers can report where in the model file it happened.
type Error interface {
	error
	Position() Position
}

// String renders the position as file:line:col, or line:col without a file.
func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

type located struct {
	pos Position
	msg string
}

func (l located) Position() Position { return l.pos }

func (l located) Error() string { return l.pos.String() + ": " + l.msg }

// LexError is an unterminated delimiter.
type LexError struct{ located }

// NewLexError returns a LexError at pos.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{located{pos, msg}}
}

// ParseError is a malformed statement or a badly nested block. Block is set
// when the error is about a block left open or closed without an opener.
type ParseError struct {
	located
	Block StmtKind
}

// NewParseError returns a ParseError at pos.
func NewParseError(pos Position, msg string) *ParseError {
	return &ParseError{located: located{pos, msg}}
}

// NewParseErrorf is NewParseError with a format string.
func NewParseErrorf(pos Position, format string, args ...any) *ParseError {
	return NewParseError(pos, fmt.Sprintf(format, args...))
}

var unmatchedMessages = map[StmtKind]string{
	StmtFor:    "unclosed 'for' block (missing 'endfor')",
	StmtIf:     "unclosed 'if' block (missing 'endif')",
	StmtEndFor: "'endfor' without matching 'for'",
	StmtEndIf:  "'endif' without matching 'if'",
	StmtElse:   "'else' without matching 'if'",
	StmtElif:   "'elif' without matching 'if'",
}

// NewUnmatchedBlockError reports a for/if left open, or a closing or
// branch statement with nothing to attach to.
func NewUnmatchedBlockError(pos Position, kind StmtKind) *ParseError {
	msg, ok := unmatchedMessages[kind]
	if !ok {
		msg = fmt.Sprintf("unmatched block: %s", kind)
	}
	return &ParseError{located: located{pos, msg}, Block: kind}
}

// RenderError is a failure while evaluating an expression or block. Cause
// holds the Starlark error when there is one.
type RenderError struct {
	located
	Cause error
}

// NewRenderError returns a RenderError at pos.
func NewRenderError(pos Position, msg string) *RenderError {
	return &RenderError{located: located{pos, msg}}
}

// NewRenderErrorf is NewRenderError with a format string.
func NewRenderErrorf(pos Position, format string, args ...any) *RenderError {
	return NewRenderError(pos, fmt.Sprintf(format, args...))
}

// WrapRenderError returns a RenderError at pos caused by err.
func WrapRenderError(pos Position, msg string, err error) *RenderError {
	return &RenderError{located: located{pos, msg}, Cause: err}
}

func (e *RenderError) Error() string {
	if e.Cause == nil {
		return e.located.Error()
	}
	return fmt.Sprintf("%s: %v", e.located.Error(), e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }
