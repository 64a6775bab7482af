// Package skills holds the built-in skills shipped with vibe. They are
// available without installation and serve as fallback golden paths.
package skills

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bartekus/vibe/internal/skillspec"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Registry lists the built-in skills in canonical (id) order.
var Registry = mustLoad()

func mustLoad() []*skillspec.Specification {
	specs, err := load()
	if err != nil {
		panic(err)
	}
	return specs
}

func load() ([]*skillspec.Specification, error) {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, err
	}
	specs := make([]*skillspec.Specification, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := builtinFS.ReadFile(path.Join("builtin", e.Name()))
		if err != nil {
			return nil, err
		}
		spec, err := skillspec.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("built-in skill %s: %w", e.Name(), err)
		}
		if err := skillspec.Validate(spec); err != nil {
			return nil, fmt.Errorf("built-in skill %s: %w", e.Name(), err)
		}
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs, nil
}

// Get returns a copy of the built-in skill with the given id.
func Get(id string) (*skillspec.Specification, bool) {
	for _, s := range Registry {
		if s.ID == id {
			data, err := skillspec.Marshal(s)
			if err != nil {
				return nil, false
			}
			cp, err := skillspec.Parse(data)
			if err != nil {
				return nil, false
			}
			return cp, true
		}
	}
	return nil, false
}

// IDs returns the ids of all built-in skills.
func IDs() []string {
	ids := make([]string, 0, len(Registry))
	for _, s := range Registry {
		ids = append(ids, s.ID)
	}
	return ids
}
