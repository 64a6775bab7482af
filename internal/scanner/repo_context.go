package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	maxRootFiles     = 50
	maxReadmePreview = 500
)

// Package is the part of package.json relevant to suggesting skills.
type Package struct {
	Name            string            `json:"name,omitempty"`
	Scripts         map[string]string `json:"scripts,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
}

// RepoContext summarizes a repository.
type RepoContext struct {
	Root          string   `json:"root"`
	FileCount     int      `json:"file_count"`
	RootFiles     []string `json:"files_preview"`
	Package       *Package `json:"package_json,omitempty"`
	ReadmePreview string   `json:"readme_preview,omitempty"`
}

// Context builds the RepoContext of the scanner's repository.
func (s *Scanner) Context(ctx context.Context) (*RepoContext, error) {
	files, err := s.Files(ctx)
	if err != nil {
		return nil, err
	}
	rc := &RepoContext{
		Root:      s.repoRoot,
		FileCount: len(files),
		RootFiles: rootEntries(files),
	}

	pkg, err := readPackage(filepath.Join(s.repoRoot, "package.json"))
	if err != nil {
		return nil, err
	}
	rc.Package = pkg

	for _, name := range []string{"README.md", "README", "readme.md"} {
		data, err := os.ReadFile(filepath.Join(s.repoRoot, name))
		if err == nil {
			rc.ReadmePreview = preview(string(data), maxReadmePreview)
			break
		}
	}
	return rc, nil
}

// rootEntries returns the distinct top-level names, directories suffixed with "/".
func rootEntries(files []string) []string {
	seen := make(map[string]bool)
	for _, f := range files {
		name := f
		if i := strings.IndexByte(f, '/'); i >= 0 {
			name = f[:i+1]
		}
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	if len(out) > maxRootFiles {
		out = out[:maxRootFiles]
	}
	return out
}

func readPackage(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &pkg, nil
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
