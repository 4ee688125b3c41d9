package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFrontmatter(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantYAML   bool
		wantName   string
		wantDesc   string
		wantConfig map[string]any
		wantSQL    string
	}{
		{
			name:    "no frontmatter",
			content: "select 1",
			wantSQL: "select 1",
		},
		{
			name: "top level config",
			content: `/*---
name: monthly_revenue
materialized: table
tags: [finance]
---*/

SELECT * FROM orders`,
			wantYAML:   true,
			wantName:   "monthly_revenue",
			wantConfig: map[string]any{"materialized": "table", "tags": []any{"finance"}},
			wantSQL:    "SELECT * FROM orders",
		},
		{
			name: "nested config block",
			content: `/*---
description: Revenue by month
config:
  materialized: incremental
  unique_key: id
---*/
select 2`,
			wantYAML:   true,
			wantDesc:   "Revenue by month",
			wantConfig: map[string]any{"materialized": "incremental", "unique_key": "id"},
			wantSQL:    "select 2",
		},
		{
			name:       "leading whitespace",
			content:    "\n  /*---\nschema: marts\n---*/\nselect 3",
			wantYAML:   true,
			wantConfig: map[string]any{"schema": "marts"},
			wantSQL:    "select 3",
		},
		{
			name:    "block not at start",
			content: "select 1\n/*---\nschema: x\n---*/",
			wantSQL: "select 1\n/*---\nschema: x\n---*/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFrontmatter(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.wantYAML, got.HasYAML)
			assert.Equal(t, tt.wantSQL, got.SQL)
			if !tt.wantYAML {
				return
			}
			assert.Equal(t, tt.wantName, got.Frontmatter.Name)
			assert.Equal(t, tt.wantDesc, got.Frontmatter.Description)
			assert.Equal(t, tt.wantConfig, got.Frontmatter.Config)
		})
	}
}

func TestExtractFrontmatter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{name: "invalid yaml", content: "/*---\nname: [unclosed\n---*/\nselect 1", wantMsg: "invalid YAML"},
		{name: "name not a string", content: "/*---\nname: [a, b]\n---*/\nselect 1", wantMsg: "name must be a string"},
		{name: "config not a mapping", content: "/*---\nconfig: table\n---*/\nselect 1", wantMsg: "config must be a mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractFrontmatter(tt.content)
			require.Error(t, err)
			var parseErr *FrontmatterParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestExtractFrontmatter_Lines(t *testing.T) {
	got, err := ExtractFrontmatter("/*---\nschema: x\n---*/\nselect 1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Lines)
}

func TestFrontmatterErrors_Format(t *testing.T) {
	assert.Equal(t, "models/a.sql:4: bad", (&FrontmatterParseError{File: "models/a.sql", Line: 4, Message: "bad"}).Error())
	assert.Equal(t, "models/a.sql: bad", (&FrontmatterParseError{File: "models/a.sql", Message: "bad"}).Error())
	assert.Equal(t, "bad", (&FrontmatterParseError{Message: "bad"}).Error())
	assert.Equal(t, `models/a.sql: unknown config "owner" in frontmatter, use "meta" for custom fields`,
		(&UnknownFieldError{File: "models/a.sql", Field: "owner"}).Error())
}
