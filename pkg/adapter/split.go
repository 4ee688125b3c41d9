package adapter

import (
	"strings"
)

// SplitOptions selects the lexical rules of a dialect.
type SplitOptions struct {
	// Backticks quote identifiers (BigQuery, Databricks).
	Backticks bool
	// DollarQuotes enables $$...$$ and $tag$...$tag$ bodies (Postgres, Snowflake).
	DollarQuotes bool
	// HashComments treats # as a line comment (BigQuery).
	HashComments bool
	// BackslashEscapes lets a backslash escape the next byte inside quotes.
	BackslashEscapes bool
}

// SplitStatements splits a script on top-level semicolons. Semicolons inside
// quotes, comments and dollar-quoted bodies do not split. Blank statements
// are dropped and the result is trimmed.
func SplitStatements(script string, opts SplitOptions) []string {
	var (
		out   []string
		start int
	)
	flush := func(end int) {
		if stmt := strings.TrimSpace(script[start:end]); stmt != "" && !onlyComments(stmt, opts) {
			out = append(out, stmt)
		}
	}

	for i := 0; i < len(script); {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || (c == '`' && opts.Backticks):
			i = skipQuoted(script, i, c, opts.BackslashEscapes)
		case c == '-' && strings.HasPrefix(script[i:], "--"), c == '#' && opts.HashComments:
			i = skipLine(script, i)
		case c == '/' && strings.HasPrefix(script[i:], "/*"):
			i = skipBlock(script, i)
		case c == '$' && opts.DollarQuotes:
			i = skipDollar(script, i)
		case c == ';':
			flush(i)
			i++
			start = i
		default:
			i++
		}
	}
	flush(len(script))
	return out
}

// skipQuoted returns the index after the closing quote. A doubled quote is
// an escaped quote.
func skipQuoted(s string, i int, q byte, backslash bool) int {
	for j := i + 1; j < len(s); j++ {
		switch {
		case backslash && s[j] == '\\':
			j++
		case s[j] == q:
			if j+1 < len(s) && s[j+1] == q {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(s)
}

func skipLine(s string, i int) int {
	if n := strings.IndexByte(s[i:], '\n'); n >= 0 {
		return i + n + 1
	}
	return len(s)
}

func skipBlock(s string, i int) int {
	if n := strings.Index(s[i+2:], "*/"); n >= 0 {
		return i + 2 + n + 2
	}
	return len(s)
}

// skipDollar handles $tag$ ... $tag$. A $ that does not open a valid tag is
// an ordinary byte, e.g. a positional parameter like $1.
func skipDollar(s string, i int) int {
	end := strings.IndexByte(s[i+1:], '$')
	if end < 0 {
		return i + 1
	}
	tag := s[i : i+1+end+1]
	for _, r := range tag[1 : len(tag)-1] {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return i + 1
		}
	}
	if len(tag) > 2 && tag[1] >= '0' && tag[1] <= '9' {
		return i + 1
	}
	body := i + len(tag)
	if n := strings.Index(s[body:], tag); n >= 0 {
		return body + n + len(tag)
	}
	return len(s)
}

func onlyComments(stmt string, opts SplitOptions) bool {
	for i := 0; i < len(stmt); {
		switch c := stmt[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && strings.HasPrefix(stmt[i:], "--"), c == '#' && opts.HashComments:
			i = skipLine(stmt, i)
		case c == '/' && strings.HasPrefix(stmt[i:], "/*"):
			i = skipBlock(stmt, i)
		default:
			return false
		}
	}
	return true
}
