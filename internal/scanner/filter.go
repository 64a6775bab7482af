package scanner

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FilterOptions selects repository files with doublestar globs matched
// against slash-separated paths relative to the repository root.
type FilterOptions struct {
	// Exclude drops a path when a pattern matches the path itself or any
	// of its parent directories, so ".vibe" removes everything under it.
	Exclude []string
	// Include keeps only paths matching at least one pattern, e.g. "**/*.go".
	// Empty keeps everything.
	Include []string
}

// DefaultExcludes are never part of a repository summary: vibe's own state
// directory, VCS metadata and dependency or build output.
var DefaultExcludes = []string{
	".vibe",
	".git",
	"**/node_modules",
	"**/vendor",
	"**/dist",
	"**/build",
	"**/target",
	"**/.venv",
	"**/__pycache__",
}

// FilterFiles returns the paths selected by opts, sorted. The result is
// never nil.
func FilterFiles(paths []string, opts FilterOptions) []string {
	filtered := []string{}
	for _, p := range paths {
		if excluded(p, opts.Exclude) || !included(p, opts.Include) {
			continue
		}
		filtered = append(filtered, p)
	}
	sort.Strings(filtered)
	return filtered
}

// excluded checks p and each of its parent directories against patterns.
func excluded(p string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	for prefix := p; prefix != ""; {
		if matchAny(patterns, prefix) {
			return true
		}
		i := strings.LastIndexByte(prefix, '/')
		if i < 0 {
			break
		}
		prefix = prefix[:i]
	}
	return false
}

func included(p string, patterns []string) bool {
	return len(patterns) == 0 || matchAny(patterns, p)
}

// matchAny treats a malformed pattern as matching nothing.
func matchAny(patterns []string, name string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}
