package nodes

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

// CommonAttributes are shared by every node kind.
type CommonAttributes struct {
	UniqueID    string   `yaml:"unique_id"`
	Database    string   `yaml:"database"`
	Schema      string   `yaml:"schema"`
	Name        string   `yaml:"name"`
	PackageName string   `yaml:"package_name"`
	FQN         []string `yaml:"fqn"`
	Path        string   `yaml:"path"`
	PatchPath   string   `yaml:"patch_path,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// Checksum is a content hash used for change detection.
type Checksum struct {
	Name     string `yaml:"name"`
	Checksum string `yaml:"checksum"`
}

// ChecksumOf returns the sha256 checksum of code.
func ChecksumOf(code string) Checksum {
	sum := sha256.Sum256([]byte(code))
	return Checksum{Name: "sha256", Checksum: hex.EncodeToString(sum[:])}
}

// DependsOn lists upstream nodes and macros.
type DependsOn struct {
	Nodes  []string `yaml:"nodes,omitempty"`
	Macros []string `yaml:"macros,omitempty"`
}

// Ref is a ref() edge.
type Ref struct {
	Name    string `yaml:"name"`
	Package string `yaml:"package,omitempty"`
	Version string `yaml:"version,omitempty"`
}

// SourceRef is a source() edge.
type SourceRef struct {
	SourceName string `yaml:"source_name"`
	TableName  string `yaml:"table_name"`
}

// ContractInfo is the contract state of a node.
type ContractInfo struct {
	Enforced   bool   `yaml:"enforced"`
	AliasTypes bool   `yaml:"alias_types"`
	Checksum   string `yaml:"checksum,omitempty"`
}

// BaseAttributes are shared by every node kind that carries code.
type BaseAttributes struct {
	Alias        string                    `yaml:"alias"`
	RelationName string                    `yaml:"relation_name,omitempty"`
	CompiledPath string                    `yaml:"compiled_path,omitempty"`
	BuildPath    string                    `yaml:"build_path,omitempty"`
	Columns      map[string]core.ColumnDef `yaml:"columns,omitempty"`
	DependsOn    DependsOn                 `yaml:"depends_on"`
	Refs         []Ref                     `yaml:"refs,omitempty"`
	Sources      []SourceRef               `yaml:"sources,omitempty"`
	RawCode      string                    `yaml:"raw_code,omitempty"`
	CompiledCode string                    `yaml:"compiled_code,omitempty"`
	Checksum     Checksum                  `yaml:"checksum"`
	Contract     ContractInfo              `yaml:"contract"`
	CreatedAt    float64                   `yaml:"created_at,omitempty"`
}

// ColumnNames returns the declared column names in sorted order.
func (b *BaseAttributes) ColumnNames() []string {
	names := make([]string, 0, len(b.Columns))
	for name := range b.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdateChecksum recomputes the checksum from RawCode.
func (b *BaseAttributes) UpdateChecksum() {
	b.Checksum = ChecksumOf(b.RawCode)
}
