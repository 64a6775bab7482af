// SPDX-License-Identifier: AGPL-3.0-or-later

// Package guard inspects a skill specification against its own allowed_tools
// and allowed_paths declarations. The runner does not consult it; callers
// decide whether findings are advisory or block a run.
package guard

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"mvdan.cc/sh/v3/syntax"

	"github.com/bartekus/vibe/internal/skillspec"
)

// Kind classifies a Finding.
type Kind string

const (
	KindTool      Kind = "tool"
	KindDenied    Kind = "denied_path"
	KindWriteRoot Kind = "write_outside_roots"
	KindParse     Kind = "parse"
)

// Finding is one policy observation about a step.
type Finding struct {
	StepID string `json:"step_id"`
	Kind   Kind   `json:"kind"`
	Path   string `json:"path,omitempty"`
	Detail string `json:"detail"`
}

func (f Finding) Error() string {
	return fmt.Sprintf("step %s: %s", f.StepID, f.Detail)
}

// Check returns the findings for every step of spec, in step order.
func Check(spec *skillspec.Specification) []Finding {
	var out []Finding
	tools := make(map[string]bool, len(spec.AllowedTools))
	for _, t := range spec.AllowedTools {
		tools[strings.ToLower(strings.TrimSpace(t))] = true
	}

	var paths skillspec.AllowedPaths
	if spec.AllowedPaths != nil {
		paths = *spec.AllowedPaths
	}

	for _, st := range spec.Steps {
		if !tools[strings.ToLower(strings.TrimSpace(st.Tool))] {
			out = append(out, Finding{
				StepID: st.ID,
				Kind:   KindTool,
				Detail: fmt.Sprintf("tool %q is not in allowed_tools", st.Tool),
			})
		}
		if !st.IsExecutable() {
			continue
		}
		cmd := st.Command()
		if cmd == "" {
			continue
		}
		out = append(out, checkCommand(st.ID, cmd, paths)...)
	}
	return out
}

// Enforce returns every finding as one error, or nil.
func Enforce(spec *skillspec.Specification) error {
	var result *multierror.Error
	for _, f := range Check(spec) {
		result = multierror.Append(result, f)
	}
	return result.ErrorOrNil()
}

// Protected returns the files matched by any of globs, in input order.
func Protected(files, globs []string) []string {
	var out []string
	for _, f := range files {
		if _, ok := denied(f, globs); ok {
			out = append(out, f)
		}
	}
	return out
}

func checkCommand(stepID, cmd string, paths skillspec.AllowedPaths) []Finding {
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(cmd), "")
	if err != nil {
		return []Finding{{StepID: stepID, Kind: KindParse, Detail: fmt.Sprintf("cannot parse command: %v", err)}}
	}

	refs := collectRefs(file)
	var out []Finding
	for _, ref := range refs {
		if pattern, ok := denied(ref.path, paths.DenyGlobs); ok {
			out = append(out, Finding{
				StepID: stepID,
				Kind:   KindDenied,
				Path:   ref.path,
				Detail: fmt.Sprintf("%s matches deny glob %q", ref.path, pattern),
			})
			continue
		}
		if ref.write && len(paths.WriteRoots) > 0 && !underAnyRoot(ref.path, paths.WriteRoots) {
			out = append(out, Finding{
				StepID: stepID,
				Kind:   KindWriteRoot,
				Path:   ref.path,
				Detail: fmt.Sprintf("writes %s outside write_roots", ref.path),
			})
		}
	}
	return out
}

type pathRef struct {
	path  string
	write bool
}

func collectRefs(file *syntax.File) []pathRef {
	var refs []pathRef
	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.Redirect:
			if n.Word == nil {
				return true
			}
			target, ok := literal(n.Word)
			if !ok || target == "/dev/null" {
				return true
			}
			switch n.Op {
			case syntax.RdrOut, syntax.AppOut, syntax.ClbOut, syntax.RdrAll, syntax.AppAll, syntax.RdrInOut:
				refs = append(refs, pathRef{path: target, write: true})
			case syntax.RdrIn:
				refs = append(refs, pathRef{path: target})
			}
		case *syntax.CallExpr:
			for i, w := range n.Args {
				if i == 0 {
					continue
				}
				arg, ok := literal(w)
				if !ok || !looksLikePath(arg) {
					continue
				}
				refs = append(refs, pathRef{path: arg})
			}
		}
		return true
	})
	return refs
}

// literal returns the word's value when it has no expansions.
func literal(w *syntax.Word) (string, bool) {
	var b strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			b.WriteString(p.Value)
		case *syntax.SglQuoted:
			b.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return "", false
				}
				b.WriteString(lit.Value)
			}
		default:
			return "", false
		}
	}
	return b.String(), b.Len() > 0
}

func looksLikePath(s string) bool {
	if strings.HasPrefix(s, "-") || strings.Contains(s, "://") {
		return false
	}
	return strings.ContainsRune(s, '/') || strings.HasPrefix(s, ".")
}

// denied reports the first deny glob matching p or any of its parent
// directories. Relative globs also match at any depth.
func denied(p string, globs []string) (string, bool) {
	clean := path.Clean(filepath.ToSlash(p))
	clean = strings.TrimPrefix(clean, "./")
	candidates := []string{clean}
	for dir := path.Dir(clean); dir != "." && dir != "/"; dir = path.Dir(dir) {
		candidates = append(candidates, dir)
	}
	for _, g := range globs {
		g = strings.TrimPrefix(filepath.ToSlash(g), "./")
		patterns := []string{g}
		if !strings.HasPrefix(g, "/") && !strings.HasPrefix(g, "**/") {
			patterns = append(patterns, "**/"+g)
		}
		for _, c := range candidates {
			for _, pat := range patterns {
				if ok, _ := doublestar.Match(pat, c); ok {
					return g, true
				}
			}
		}
	}
	return "", false
}

func underAnyRoot(p string, roots []string) bool {
	target := path.Clean(filepath.ToSlash(p))
	for _, root := range roots {
		r := path.Clean(filepath.ToSlash(root))
		if path.IsAbs(r) != path.IsAbs(target) {
			continue
		}
		if r == "." && target != ".." && !strings.HasPrefix(target, "../") {
			return true
		}
		if target == r || strings.HasPrefix(target, strings.TrimSuffix(r, "/")+"/") {
			return true
		}
	}
	return false
}
