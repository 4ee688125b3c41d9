// Package loader discovers the models and seeds of a project and turns them
// into nodes with resolved config and dependencies.
package loader

import (
	"fmt"
	"maps"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML block at the top of a model file. Keys other than
// name and description are inline config; a nested config mapping is
// flattened into the same set.
type Frontmatter struct {
	Name        string
	Description string
	Config      map[string]any
}

// FrontmatterResult holds the result of frontmatter extraction.
type FrontmatterResult struct {
	Frontmatter Frontmatter
	SQL         string // SQL content after frontmatter
	HasYAML     bool   // Whether frontmatter was found
	// Lines is the number of lines the frontmatter block occupied.
	Lines int
}

// frontmatterPattern matches /*--- ... ---*/ blocks
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/\s*`)

// ExtractFrontmatter splits a model file into its frontmatter and SQL.
func ExtractFrontmatter(content string) (*FrontmatterResult, error) {
	result := &FrontmatterResult{SQL: content}

	loc := frontmatterPattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return result, nil
	}
	result.HasYAML = true
	result.Lines = strings.Count(content[:loc[1]], "\n")
	result.SQL = content[loc[1]:]

	fm, err := parseFrontmatterYAML(content[loc[2]:loc[3]])
	if err != nil {
		return nil, err
	}
	result.Frontmatter = *fm
	return result, nil
}

func parseFrontmatterYAML(yamlContent string) (*Frontmatter, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &raw); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	fm := &Frontmatter{Config: make(map[string]any)}
	for key, value := range raw {
		switch key {
		case "name":
			s, ok := value.(string)
			if !ok {
				return nil, &FrontmatterParseError{Message: fmt.Sprintf("name must be a string, got %T", value)}
			}
			fm.Name = s
		case "description":
			fm.Description = fmt.Sprint(value)
		case "config":
			nested, ok := value.(map[string]any)
			if !ok {
				return nil, &FrontmatterParseError{Message: fmt.Sprintf("config must be a mapping, got %T", value)}
			}
			maps.Copy(fm.Config, nested)
		default:
			fm.Config[key] = value
		}
	}
	return fm, nil
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Line    int
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an error for unknown frontmatter fields.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown config %q in frontmatter, use \"meta\" for custom fields", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
