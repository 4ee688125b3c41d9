package core

import "strings"

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (default SQL behavior).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase normalizes unquoted identifiers to uppercase (Snowflake).
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly.
	NormCaseSensitive
)

// IdentifierConfig defines how a warehouse quotes and normalizes identifiers.
type IdentifierConfig struct {
	Quote         string                // Quote character: " or `
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
	// MaxLength is the longest identifier the warehouse accepts. Zero means unlimited.
	MaxLength int
}

// QuoteIdentifier wraps name in the quote character, doubling embedded quotes.
func (c IdentifierConfig) QuoteIdentifier(name string) string {
	q := c.Quote
	if q == "" {
		q = `"`
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// Normalize applies the normalization strategy to an unquoted identifier.
func (c IdentifierConfig) Normalize(name string) string {
	switch c.Normalization {
	case NormUppercase:
		return strings.ToUpper(name)
	case NormCaseSensitive:
		return name
	default:
		return strings.ToLower(name)
	}
}
