package loader

import (
	"regexp"
	"slices"

	"github.com/leapstack-labs/leapforge/pkg/nodes"
)

var (
	refPattern = regexp.MustCompile(
		`\bref\s*\(\s*['"]([^'"]+)['"]\s*(?:,\s*['"]([^'"]+)['"]\s*)?(?:,\s*(?:v|version)\s*=\s*['"]?([\w.]+)['"]?\s*)?\)`)
	sourcePattern = regexp.MustCompile(`\bsource\s*\(\s*['"]([^'"]+)['"]\s*,\s*['"]([^'"]+)['"]\s*\)`)
	macroPattern  = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
)

// ExtractReferences returns the ref() calls with literal arguments in sql,
// in order of first appearance.
// e.g., SELECT * FROM {{ ref('stg_orders') }}
func ExtractReferences(sql string) []nodes.Ref {
	var refs []nodes.Ref
	for _, m := range refPattern.FindAllStringSubmatch(sql, -1) {
		ref := nodes.Ref{Name: m[1], Version: m[3]}
		if m[2] != "" {
			ref.Package, ref.Name = m[1], m[2]
		}
		if !slices.Contains(refs, ref) {
			refs = append(refs, ref)
		}
	}
	return refs
}

// ExtractSources returns the source() calls with literal arguments in sql.
func ExtractSources(sql string) []nodes.SourceRef {
	var sources []nodes.SourceRef
	for _, m := range sourcePattern.FindAllStringSubmatch(sql, -1) {
		src := nodes.SourceRef{SourceName: m[1], TableName: m[2]}
		if !slices.Contains(sources, src) {
			sources = append(sources, src)
		}
	}
	return sources
}

// ExtractMacroCalls returns "namespace.function" for each call into one of
// namespaces, sorted and deduplicated.
func ExtractMacroCalls(sql string, namespaces []string) []string {
	var calls []string
	for _, m := range macroPattern.FindAllStringSubmatch(sql, -1) {
		if !slices.Contains(namespaces, m[1]) {
			continue
		}
		call := m[1] + "." + m[2]
		if !slices.Contains(calls, call) {
			calls = append(calls, call)
		}
	}
	slices.Sort(calls)
	return calls
}
