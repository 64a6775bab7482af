// SPDX-License-Identifier: AGPL-3.0-or-later

// Package skilldocs projects a skill specification onto the files installed
// next to it: SKILL.md, a replay script and a smoke test.
package skilldocs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/bartekus/vibe/internal/projection"
	"github.com/bartekus/vibe/internal/skillspec"
)

// Generated file paths, relative to the skill directory.
const (
	SkillFile  = "SKILL.md"
	RunScript  = "scripts/run.sh"
	SmokeTest  = "tests/smoke_test.sh"
	scriptMode = 0o755
)

// Frontmatter is the YAML header of SKILL.md.
type Frontmatter struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Invocation    string   `yaml:"invocation,omitempty"`
	UserInvocable bool     `yaml:"user-invocable"`
	AllowedTools  []string `yaml:"allowed-tools"`
	RiskLevel     string   `yaml:"risk-level,omitempty"`
}

// File is one generated artifact.
type File struct {
	Path    string
	Content string
	Mode    os.FileMode
}

// Generator renders the files of one skill.
type Generator struct {
	Spec   *skillspec.Specification
	OutDir string
}

// Render returns the generated files in a fixed order.
func (g *Generator) Render() ([]File, error) {
	skill, err := g.renderSkill()
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", SkillFile, err)
	}
	run, err := g.renderRunScript()
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", RunScript, err)
	}
	smoke, err := g.renderSmokeTest()
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", SmokeTest, err)
	}
	return []File{
		{Path: SkillFile, Content: skill, Mode: 0o644},
		{Path: RunScript, Content: run, Mode: scriptMode},
		{Path: SmokeTest, Content: smoke, Mode: scriptMode},
	}, nil
}

// Generate renders all files and writes them under OutDir.
func (g *Generator) Generate() ([]File, error) {
	files, err := g.Render()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := projection.AtomicWriteMode(filepath.Join(g.OutDir, filepath.FromSlash(f.Path)), []byte(f.Content), f.Mode); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (g *Generator) renderSkill() (string, error) {
	s := g.Spec
	fm, err := projection.RenderFrontmatter(Frontmatter{
		Name:          s.ID,
		Description:   s.Description,
		Invocation:    s.Invocation,
		UserInvocable: true,
		AllowedTools:  s.AllowedTools,
		RiskLevel:     string(s.RiskLevel),
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fm)
	b.WriteString("\n")
	b.WriteString(projection.RenderHeader(1, fmt.Sprintf("%s: %s", s.Invocation, s.Title)))

	b.WriteString(projection.RenderHeader(2, "Description"))
	b.WriteString(s.Description + "\n\n")

	b.WriteString(projection.RenderHeader(2, "Steps"))
	items := make([]string, 0, len(s.Steps))
	for _, st := range s.Steps {
		item := fmt.Sprintf("**%s** (`%s`)", st.Name, st.ID)
		if st.RequiresConfirmation {
			item += " - requires confirmation"
		}
		items = append(items, item)
	}
	b.WriteString(projection.RenderNumberedList(items))
	b.WriteString("\n")

	rows := make([][]string, 0, len(s.Steps))
	for _, st := range s.Steps {
		onFail := string(st.OnFail)
		if onFail == "" {
			onFail = string(skillspec.OnFailContinue)
		}
		rows = append(rows, []string{st.ID, st.Tool, codeSpan(st.ShellCommand()), onFail})
	}
	b.WriteString(projection.RenderTable([]string{"Step", "Tool", "Command", "On failure"}, rows))
	b.WriteString("\n")

	b.WriteString(projection.RenderHeader(2, "Safety"))
	b.WriteString(projection.RenderList(g.safetyItems()))

	if len(s.SuccessChecks) > 0 {
		b.WriteString("\n")
		b.WriteString(projection.RenderHeader(2, "Success checks"))
		checks := make([]string, 0, len(s.SuccessChecks))
		for _, c := range s.SuccessChecks {
			checks = append(checks, describeCheck(c))
		}
		b.WriteString(projection.RenderList(checks))
	}

	if s.NotesForHumans != "" {
		b.WriteString("\n")
		b.WriteString(projection.RenderHeader(2, "Notes"))
		b.WriteString(s.NotesForHumans + "\n")
	}
	return b.String(), nil
}

func (g *Generator) safetyItems() []string {
	s := g.Spec
	items := []string{
		"Risk level: " + string(s.RiskLevel),
		"Allowed tools: " + joinOrNone(s.AllowedTools),
	}
	if p := s.AllowedPaths; p != nil {
		items = append(items,
			"Read roots: "+joinOrNone(p.ReadRoots),
			"Write roots: "+joinOrNone(p.WriteRoots),
			"Denied paths: "+joinOrNone(p.DenyGlobs),
		)
	}
	var confirm []string
	for _, st := range s.StepsRequiringConfirmation() {
		confirm = append(confirm, st.ID)
	}
	if len(confirm) > 0 {
		items = append(items, "Requires confirmation before: "+strings.Join(confirm, ", "))
	}
	return items
}

func describeCheck(c skillspec.SuccessCheck) string {
	keys := projection.SortedKeys(c.Criteria)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c.Criteria[k]))
	}
	if len(parts) == 0 {
		return c.Type
	}
	return fmt.Sprintf("%s (%s)", c.Type, strings.Join(parts, ", "))
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

const runScriptHeader = `#!/usr/bin/env bash
# %s: %s
# Usage: run.sh [--repo DIR] [--dry-run]
set -uo pipefail

REPO="."
DRY_RUN=0
while [ $# -gt 0 ]; do
  case "$1" in
    --repo) REPO="$2"; shift 2 ;;
    --dry-run) DRY_RUN=1; shift ;;
    *) echo "unknown argument: $1" >&2; exit 2 ;;
  esac
done
cd "$REPO" || exit 1

overall=0

run_step() {
  local name="$1" on_fail="$2" cmd="$3"
  echo "▶ Step: $name"
  echo "\$ $cmd"
  if [ "$DRY_RUN" -eq 1 ]; then
    echo "[DRY_RUN] Command not executed"
    return 0
  fi
  DRY_RUN=false bash -c "$cmd"
  local rc=$?
  echo "Exit code: $rc"
  if [ "$rc" -ne 0 ]; then
    overall=1
    if [ "$on_fail" = "stop" ]; then
      echo "Step \"$name\" failed, stopping." >&2
      exit "$rc"
    fi
  fi
  return 0
}

`

func (g *Generator) renderRunScript() (string, error) {
	s := g.Spec
	var b strings.Builder
	fmt.Fprintf(&b, runScriptHeader, s.Invocation, oneLine(s.Title))

	for _, st := range s.Steps {
		name, err := shellQuote(st.Name)
		if err != nil {
			return "", err
		}
		onFail := string(st.OnFail)
		if onFail == "" {
			onFail = string(skillspec.OnFailContinue)
		}
		cmd, err := shellQuote(st.ShellCommand())
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "run_step %s %s %s\n", name, onFail, cmd)
	}
	b.WriteString("\nexit \"$overall\"\n")
	return b.String(), nil
}

const smokeTestHeader = `#!/usr/bin/env bash
# Smoke test for %s: replays the skill in dry-run mode and checks every step is announced.
set -euo pipefail

HERE="$(cd "$(dirname "${BASH_SOURCE[0]}")" && pwd)"
out="$(bash "$HERE/../scripts/run.sh" --repo "${1:-.}" --dry-run)"

expect() {
  if ! grep -qF -- "$1" <<<"$out"; then
    echo "missing: $1" >&2
    exit 1
  fi
}

`

func (g *Generator) renderSmokeTest() (string, error) {
	s := g.Spec
	var b strings.Builder
	fmt.Fprintf(&b, smokeTestHeader, s.Invocation)
	for _, st := range s.Steps {
		q, err := shellQuote("▶ Step: " + st.Name)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "expect %s\n", q)
	}
	fmt.Fprintf(&b, "\necho \"smoke test passed: %d steps\"\n", len(s.Steps))
	return b.String(), nil
}

func shellQuote(s string) (string, error) {
	return syntax.Quote(s, syntax.LangBash)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// codeSpan renders s as a single-line inline code span. The fence is one
// backtick longer than the longest backtick run inside s.
func codeSpan(s string) string {
	s = oneLine(s)
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	fence := strings.Repeat("`", longest+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		s = " " + s + " "
	}
	return fence + s + fence
}
