package loader

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
	"github.com/leapstack-labs/leapforge/pkg/relation"
	"go.uber.org/multierr"
)

// Project describes where a project's resources live and the target
// defaults their relations are placed in.
type Project struct {
	Name       string
	ModelsPath string
	SeedsPath  string

	// Models and Seeds are the project config trees for each kind.
	Models map[string]any
	Seeds  map[string]any

	Database string
	Schema   string
	Flavor   *relation.Flavor

	// MacroNamespaces are recorded in depends_on.macros when a model calls
	// into them.
	MacroNamespaces []string

	Logger *slog.Logger
}

// Load scans the models and seeds directories and returns the linked nodes.
// Every problem found is reported, not only the first.
func (p *Project) Load() (*nodes.Nodes, error) {
	if p.Flavor == nil {
		return nil, core.ConfigurationError("project %s has no relation flavor", p.Name)
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ns := nodes.New()
	var errs error
	names := make(map[string]string)
	add := func(n nodes.Node) {
		c := n.Common()
		if prev, ok := names[c.Name]; ok {
			errs = multierr.Append(errs, core.ConfigurationError(
				"found two resources with the name %q: %s and %s", c.Name, prev, c.Path))
			return
		}
		names[c.Name] = c.Path
		if err := nodes.ValidateIdentity(n); err != nil {
			errs = multierr.Append(errs, err)
			return
		}
		errs = multierr.Append(errs, ns.Add(n))
	}

	models, err := p.scanModels()
	errs = multierr.Append(errs, err)
	for _, m := range models {
		add(m)
	}
	seeds, err := p.scanSeeds()
	errs = multierr.Append(errs, err)
	for _, s := range seeds {
		add(s)
	}
	if errs != nil {
		return nil, errs
	}

	if err := p.link(ns); err != nil {
		return nil, err
	}
	logger.Debug("project loaded", "project", p.Name, "models", len(ns.Models), "seeds", len(ns.Seeds))
	return ns, nil
}

// walk returns the files under root with ext, sorted. A missing root holds
// no files.
func walk(root, ext string) ([]string, error) {
	if root == "" {
		return nil, nil
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	slices.Sort(files)
	return files, nil
}

// fqn returns [project, dirs..., name] for a file below root.
func (p *Project) fqn(root, path, name string) []string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	fqn := []string{p.Name}
	if err == nil && rel != "." {
		fqn = append(fqn, strings.Split(filepath.ToSlash(rel), "/")...)
	}
	return append(fqn, name)
}

func (p *Project) scanModels() ([]*nodes.Model, error) {
	files, err := walk(p.ModelsPath, ".sql")
	if err != nil {
		return nil, err
	}
	resolver := config.NewResolver(p.Models, config.ModelConfig{})

	var models []*nodes.Model
	var errs error
	for _, path := range files {
		m, err := p.parseModel(resolver, path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		models = append(models, m)
	}
	return models, errs
}

func (p *Project) parseModel(resolver *config.Resolver[config.ModelConfig], path string) (*nodes.Model, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path comes from the models walk
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	fm, err := ExtractFrontmatter(string(content))
	if err != nil {
		if pe, ok := err.(*FrontmatterParseError); ok {
			pe.File = path
		}
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if fm.Frontmatter.Name != "" {
		name = fm.Frontmatter.Name
	}

	inline := fm.Frontmatter.Config
	if len(inline) > 0 {
		layer, err := config.DecodeLayer[config.ModelConfig](inline)
		if err != nil {
			return nil, &FrontmatterParseError{File: path, Message: err.Error()}
		}
		if len(layer.Unknown) > 0 {
			return nil, &UnknownFieldError{File: path, Field: layer.Unknown[0]}
		}
	}

	fqn := p.fqn(p.ModelsPath, path, name)
	cfg, err := resolver.Resolve(fqn, inline)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rel := p.relPath(p.ModelsPath, path)
	m := &nodes.Model{
		CommonAttributes: nodes.CommonAttributes{
			UniqueID:    nodes.UniqueID(nodes.ResourceModel, p.Name, name, ""),
			Database:    p.database(cfg.Database),
			Schema:      p.schema(cfg.Schema),
			Name:        name,
			PackageName: p.Name,
			FQN:         fqn,
			Path:        rel,
			Description: fm.Frontmatter.Description,
		},
		BaseAttributes: nodes.BaseAttributes{
			Alias:     alias(cfg.Alias, name),
			RawCode:   fm.SQL,
			Refs:      ExtractReferences(fm.SQL),
			Sources:   ExtractSources(fm.SQL),
			DependsOn: nodes.DependsOn{Macros: ExtractMacroCalls(fm.SQL, p.MacroNamespaces)},
		},
		Config:  cfg,
		Quoting: cfg.Quoting.Resolve(p.Flavor.DefaultQuote),
	}
	m.UpdateChecksum()
	if err := p.setRelationName(m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (p *Project) scanSeeds() ([]*nodes.Seed, error) {
	files, err := walk(p.SeedsPath, ".csv")
	if err != nil {
		return nil, err
	}
	resolver := config.NewResolver(p.Seeds, config.SeedConfig{})

	var seeds []*nodes.Seed
	var errs error
	for _, path := range files {
		content, err := os.ReadFile(path) //nolint:gosec // path comes from the seeds walk
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to read seed: %w", err))
			continue
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		fqn := p.fqn(p.SeedsPath, path, name)
		cfg, err := resolver.Resolve(fqn, nil)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		s := &nodes.Seed{
			CommonAttributes: nodes.CommonAttributes{
				UniqueID:    nodes.UniqueID(nodes.ResourceSeed, p.Name, name, ""),
				Database:    p.database(cfg.Database),
				Schema:      p.schema(cfg.Schema),
				Name:        name,
				PackageName: p.Name,
				FQN:         fqn,
				Path:        p.relPath(p.SeedsPath, path),
			},
			BaseAttributes: nodes.BaseAttributes{
				Alias:    alias(cfg.Alias, name),
				Checksum: nodes.ChecksumOf(string(content)),
			},
			Config:   cfg,
			RootPath: p.SeedsPath,
		}
		if err := p.setRelationName(s); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		seeds = append(seeds, s)
	}
	return seeds, errs
}

// link resolves refs to unique ids and fills depends_on.nodes.
func (p *Project) link(ns *nodes.Nodes) error {
	byName := make(map[string]string)
	for _, n := range ns.Values() {
		byName[n.Common().Name] = n.Common().UniqueID
	}

	var errs error
	for _, m := range ns.Models {
		deps := make([]string, 0, len(m.Refs))
		for _, ref := range m.Refs {
			if ref.Package != "" && ref.Package != p.Name {
				errs = multierr.Append(errs, core.ConfigurationError(
					"model %s depends on a node in package '%s' which is not the current project", m.UniqueID, ref.Package))
				continue
			}
			id, ok := byName[ref.Name]
			if !ok {
				errs = multierr.Append(errs, core.ConfigurationError(
					"model %s depends on a node named '%s' which was not found", m.UniqueID, ref.Name))
				continue
			}
			if id == m.UniqueID {
				errs = multierr.Append(errs, core.ConfigurationError("model %s references itself", m.UniqueID))
				continue
			}
			if !slices.Contains(deps, id) {
				deps = append(deps, id)
			}
		}
		slices.Sort(deps)
		m.DependsOn.Nodes = deps
	}
	return errs
}

// Relation returns the warehouse relation a node builds.
func (p *Project) Relation(n nodes.Node) (*relation.Relation, error) {
	c, b := n.Common(), n.Base()
	quote := p.Flavor.DefaultQuote
	if m, ok := n.(*nodes.Model); ok {
		quote = m.Quoting
	}
	if s, ok := n.(*nodes.Seed); ok {
		quote = s.Config.Quoting.Resolve(quote)
	}
	return relation.New(p.Flavor, c.Database, c.Schema, b.Alias, RelationType(n.Materialization()), quote)
}

func (p *Project) setRelationName(n nodes.Node) error {
	rel, err := p.Relation(n)
	if err != nil {
		return err
	}
	if rel.Type != relation.TypeEphemeral {
		n.Base().RelationName = rel.Render()
	}
	return nil
}

// RelationType maps a materialization to the relation type it creates.
func RelationType(materialized string) relation.Type {
	switch materialized {
	case core.MaterializationView:
		return relation.TypeView
	case core.MaterializationEphemeral:
		return relation.TypeEphemeral
	default:
		return relation.TypeTable
	}
}

// schema places a custom schema beside the target schema.
func (p *Project) schema(custom *string) string {
	if custom == nil || *custom == "" {
		return p.Schema
	}
	if p.Schema == "" {
		return *custom
	}
	return p.Schema + "_" + strings.TrimSpace(*custom)
}

func (p *Project) database(custom *string) string {
	if custom == nil || *custom == "" {
		return p.Database
	}
	return *custom
}

func (p *Project) relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func alias(configured *string, name string) string {
	if configured != nil && *configured != "" {
		return *configured
	}
	return name
}
