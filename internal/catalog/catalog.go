// Package catalog manages skills installed in a repository. Each skill lives
// in its own directory holding skill.yaml plus the generated SKILL.md,
// scripts and tests.
package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"

	"github.com/bartekus/vibe/internal/projection"
	"github.com/bartekus/vibe/internal/skilldocs"
	"github.com/bartekus/vibe/internal/skillspec"
)

// SpecFile is the specification document inside a skill directory.
const SpecFile = "skill.yaml"

// ErrNotFound is returned when no installed skill has the requested id.
var ErrNotFound = errors.New("skill not found")

// ErrInvalidID is returned for ids that fail the skill_id pattern. Such an
// id is never joined onto the catalog directory.
var ErrInvalidID = errors.New("invalid skill id")

// Entry describes an installed skill as advertised by its SKILL.md.
type Entry struct {
	ID           string   `json:"skill_id"`
	Description  string   `json:"description"`
	Invocation   string   `json:"invocation,omitempty"`
	RiskLevel    string   `json:"risk_level,omitempty"`
	AllowedTools []string `json:"allowed_tools,omitempty"`
	Directory    string   `json:"directory"`
	Files        []string `json:"files"`
}

// Catalog is a directory of installed skills, typically .vibe/skills.
type Catalog struct {
	dir string
}

// New returns a catalog rooted at dir.
func New(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Dir returns the catalog root.
func (c *Catalog) Dir() string { return c.dir }

// Install validates spec and writes it with its generated files to
// <dir>/<skill_id>/, replacing a previous installation of the same id.
func (c *Catalog) Install(spec *skillspec.Specification) (*Entry, error) {
	if err := skillspec.Validate(spec); err != nil {
		return nil, errors.Wrap(err, "invalid skill spec")
	}

	skillDir := filepath.Join(c.dir, spec.ID)
	data, err := skillspec.Marshal(spec)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode skill spec")
	}
	if err := projection.AtomicWrite(filepath.Join(skillDir, SpecFile), data); err != nil {
		return nil, errors.Wrap(err, "failed to write skill spec")
	}

	gen := &skilldocs.Generator{Spec: spec, OutDir: skillDir}
	if _, err := gen.Generate(); err != nil {
		return nil, errors.Wrap(err, "failed to generate skill files")
	}
	return c.loadEntry(skillDir)
}

// Discover lists installed skills sorted by id. Directories without a
// readable SKILL.md are skipped.
func (c *Catalog) Discover() ([]*Entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skills directory")
	}

	var out []*Entry
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		entry, err := c.loadEntry(filepath.Join(c.dir, de.Name()))
		if err != nil {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns the installed skill with the given id.
func (c *Catalog) Get(id string) (*Entry, error) {
	skillDir, err := c.skillDir(id)
	if err != nil {
		return nil, err
	}
	entry, err := c.loadEntry(skillDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	}
	return entry, err
}

// Load reads the specification of an installed skill.
func (c *Catalog) Load(id string) (*skillspec.Specification, error) {
	skillDir, err := c.skillDir(id)
	if err != nil {
		return nil, err
	}
	spec, err := skillspec.Load(filepath.Join(skillDir, SpecFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "%s", id)
		}
		return nil, err
	}
	return spec, nil
}

// Remove deletes an installed skill.
func (c *Catalog) Remove(id string) error {
	skillDir, err := c.skillDir(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(skillDir); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "%s", id)
		}
		return errors.Wrap(err, "failed to stat skill directory")
	}
	return errors.Wrap(os.RemoveAll(skillDir), "failed to remove skill directory")
}

func (c *Catalog) skillDir(id string) (string, error) {
	if !skillspec.ValidID(id) {
		return "", errors.Wrapf(ErrInvalidID, "%q", id)
	}
	return filepath.Join(c.dir, id), nil
}

func (c *Catalog) loadEntry(skillDir string) (*Entry, error) {
	content, err := os.ReadFile(filepath.Join(skillDir, skilldocs.SkillFile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, errors.New("missing frontmatter")
	}
	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)
	if name == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}

	entry := &Entry{
		ID:          name,
		Description: description,
		Directory:   skillDir,
	}
	entry.Invocation, _ = metaData["invocation"].(string)
	entry.RiskLevel, _ = metaData["risk-level"].(string)
	if tools, ok := metaData["allowed-tools"].([]interface{}); ok {
		for _, t := range tools {
			if s, ok := t.(string); ok {
				entry.AllowedTools = append(entry.AllowedTools, s)
			}
		}
	}

	entry.Files, err = listFiles(skillDir)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".vibe-tmp-") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list skill files")
	}
	sort.Strings(files)
	return files, nil
}
