// Package scanner lists repository files and summarizes a repository so that
// skills can be suggested for it.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Scanner provides access to the repository's files.
type Scanner struct {
	repoRoot string

	mu        sync.Mutex
	fileCache []string
}

// New creates a new Scanner for the given repository root.
func New(repoRoot string) *Scanner {
	return &Scanner{repoRoot: repoRoot}
}

// Root returns the repository root.
func (s *Scanner) Root() string { return s.repoRoot }

// Files returns the repository's files, caching the result for the instance
// lifetime. Inside a git work tree these are the tracked and untracked files
// not excluded by .gitignore; elsewhere the tree is walked. Either way paths
// under DefaultExcludes are dropped.
func (s *Scanner) Files(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fileCache != nil {
		return s.fileCache, nil
	}
	files, err := s.gitFiles(ctx)
	if err != nil {
		files, err = s.walkFiles(ctx)
		if err != nil {
			return nil, err
		}
	}
	s.fileCache = files
	return s.fileCache, nil
}

// FilesFiltered returns files matching the filter options.
func (s *Scanner) FilesFiltered(ctx context.Context, opts FilterOptions) ([]string, error) {
	all, err := s.Files(ctx)
	if err != nil {
		return nil, err
	}
	return FilterFiles(all, opts), nil
}

func (s *Scanner) gitFiles(ctx context.Context) ([]string, error) {
	// -z to avoid escaping issues
	cmd := exec.CommandContext(ctx, "git", "ls-files", "-z", "--cached", "--others", "--exclude-standard")
	cmd.Dir = s.repoRoot
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files failed: %w", err)
	}
	trimmed := strings.TrimSuffix(string(out), "\x00")
	if trimmed == "" {
		return []string{}, nil
	}
	return FilterFiles(strings.Split(trimmed, "\x00"), FilterOptions{Exclude: DefaultExcludes}), nil
}

func (s *Scanner) walkFiles(ctx context.Context) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(s.repoRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := filepath.Rel(s.repoRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			// Parents are already pruned, so the directory itself is enough.
			if rel != "." && matchAny(DefaultExcludes, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.repoRoot, err)
	}
	return FilterFiles(files, FilterOptions{Exclude: DefaultExcludes}), nil
}
