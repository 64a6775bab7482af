// SPDX-License-Identifier: AGPL-3.0-or-later
package skilldocs_test

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bartekus/vibe/internal/skilldocs"
	"github.com/bartekus/vibe/internal/skillspec"
)

func loadFixCI(t *testing.T) *skillspec.Specification {
	t.Helper()
	spec, err := skillspec.Load(filepath.Join("..", "skillspec", "testdata", "fix-ci.yaml"))
	require.NoError(t, err)
	return spec
}

func runBash(t *testing.T, dir string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command("bash", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return out.String(), exitErr.ExitCode()
	}
	require.NoError(t, err)
	return out.String(), 0
}

func TestGenerator_Render_SkillMarkdown(t *testing.T) {
	gen := &skilldocs.Generator{Spec: loadFixCI(t)}
	files, err := gen.Render()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, []string{skilldocs.SkillFile, skilldocs.RunScript, skilldocs.SmokeTest},
		[]string{files[0].Path, files[1].Path, files[2].Path})

	md := files[0].Content
	require.True(t, strings.HasPrefix(md, "---\n"))
	end := strings.Index(md[4:], "---\n")
	require.Positive(t, end)

	var fm skilldocs.Frontmatter
	require.NoError(t, yaml.Unmarshal([]byte(md[4:4+end]), &fm))
	assert.Equal(t, "fix-ci", fm.Name)
	assert.Equal(t, "/fix-ci", fm.Invocation)
	assert.True(t, fm.UserInvocable)
	assert.Equal(t, []string{"bash", "read_file", "write_file", "grep"}, fm.AllowedTools)

	assert.Contains(t, md, "# /fix-ci: Fix CI - Diagnose & Patch Failing Tests")
	assert.Contains(t, md, "1. **Run test suite to identify failures** (`run-tests`)")
	assert.Contains(t, md, "3. **Apply fix to the failing code** (`apply-patch`) - requires confirmation")
	assert.Contains(t, md, "- Denied paths: .env, .ssh/*, node_modules/*")
	assert.Contains(t, md, "- Requires confirmation before: apply-patch")
	assert.Contains(t, md, "- tests_pass (command=npm test)")
	assert.Contains(t, md, "## Notes")
}

func TestGenerator_Generate_WritesFiles(t *testing.T) {
	out := t.TempDir()
	gen := &skilldocs.Generator{Spec: loadFixCI(t), OutDir: out}
	_, err := gen.Generate()
	require.NoError(t, err)

	for _, p := range []string{skilldocs.SkillFile, skilldocs.RunScript, skilldocs.SmokeTest} {
		info, err := os.Stat(filepath.Join(out, p))
		require.NoError(t, err, p)
		if strings.HasSuffix(p, ".sh") {
			assert.Equal(t, os.FileMode(0o755), info.Mode().Perm(), p)
		}
	}
}

func TestGenerator_SmokeTestPassesInDryRun(t *testing.T) {
	out := t.TempDir()
	_, err := (&skilldocs.Generator{Spec: loadFixCI(t), OutDir: out}).Generate()
	require.NoError(t, err)

	repo := t.TempDir()
	output, code := runBash(t, out, skilldocs.SmokeTest, repo)
	assert.Equal(t, 0, code, output)
	assert.Contains(t, output, "smoke test passed: 5 steps")

	output, code = runBash(t, out, skilldocs.RunScript, "--repo", repo, "--dry-run")
	assert.Equal(t, 0, code, output)
	assert.Equal(t, 5, strings.Count(output, "[DRY_RUN] Command not executed"))
	assert.Contains(t, output, `$ sed -i.bak "s/return a - b/return a + b/g" src/math.js`)

	entries, err := os.ReadDir(repo)
	require.NoError(t, err)
	assert.Empty(t, entries, "dry run must not touch the repository")
}

func TestGenerator_RunScriptFailurePolicies(t *testing.T) {
	spec := &skillspec.Specification{
		ID:           "policies",
		Invocation:   "/policies",
		Title:        "Policies",
		Description:  "Exercises on_fail.",
		RiskLevel:    skillspec.RiskLow,
		AllowedTools: []string{"bash"},
		Steps: []skillspec.Step{
			{ID: "write", Name: "Write it's file", Tool: "bash", Args: map[string]any{"command": "echo one > out.txt"}},
			{ID: "soft", Name: "Soft fail", Tool: "bash", Args: map[string]any{"command": "exit 3"}, OnFail: skillspec.OnFailContinue},
			{ID: "hard", Name: "Hard fail", Tool: "bash", Args: map[string]any{"command": "echo $DRY_RUN; exit 4"}, OnFail: skillspec.OnFailStop},
			{ID: "never", Name: "Never", Tool: "bash", Args: map[string]any{"command": "echo never"}},
		},
	}
	out := t.TempDir()
	_, err := (&skilldocs.Generator{Spec: spec, OutDir: out}).Generate()
	require.NoError(t, err)

	repo := t.TempDir()
	output, code := runBash(t, out, skilldocs.RunScript, "--repo", repo)
	assert.Equal(t, 4, code, output)
	assert.Contains(t, output, "▶ Step: Write it's file")
	assert.Contains(t, output, "Exit code: 3")
	assert.Contains(t, output, "false\n")
	assert.Contains(t, output, `Step "Hard fail" failed, stopping.`)
	assert.NotContains(t, output, "▶ Step: Never")

	data, err := os.ReadFile(filepath.Join(repo, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(data))
}

func TestGenerator_PlaceholderCommands(t *testing.T) {
	spec := &skillspec.Specification{
		ID:           "placeholders",
		Invocation:   "/placeholders",
		Title:        "Placeholders",
		Description:  "Steps without commands.",
		RiskLevel:    skillspec.RiskLow,
		AllowedTools: []string{"bash", "read_file"},
		Steps: []skillspec.Step{
			{ID: "empty", Name: "Empty", Tool: "bash", Args: map[string]any{}},
			{ID: "read", Name: "Read", Tool: "read_file", Args: map[string]any{"path": "x"}},
		},
	}
	out := t.TempDir()
	_, err := (&skilldocs.Generator{Spec: spec, OutDir: out}).Generate()
	require.NoError(t, err)

	output, code := runBash(t, out, skilldocs.RunScript, "--repo", t.TempDir())
	assert.Equal(t, 0, code, output)
	assert.Contains(t, output, "No command defined for step empty")
	assert.Contains(t, output, "Tool read_file not supported, skipping step read")
}

func TestGenerator_Render_CommandTableStaysOnOneRow(t *testing.T) {
	spec := &skillspec.Specification{
		ID:           "table-cmds",
		Invocation:   "/table-cmds",
		Title:        "Table commands",
		Description:  "Commands that would break a table cell.",
		RiskLevel:    skillspec.RiskLow,
		AllowedTools: []string{"bash"},
		Steps: []skillspec.Step{
			{ID: "multi", Name: "Multi", Tool: "bash", Args: map[string]any{"command": "set -e\nmake build\nmake test\n"}},
			{ID: "tick", Name: "Tick", Tool: "bash", Args: map[string]any{"command": "echo `date` | tee out"}},
		},
	}
	files, err := (&skilldocs.Generator{Spec: spec}).Render()
	require.NoError(t, err)
	md := files[0].Content

	assert.Contains(t, md, "| multi | bash | `set -e make build make test` | continue |\n")
	assert.Contains(t, md, "| tick | bash | ``echo `date` \\| tee out`` | continue |\n")
	assert.NotContains(t, md, "make build\nmake test")
}
