// SPDX-License-Identifier: AGPL-3.0-or-later
package projection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out", "file.txt")

	require.NoError(t, AtomicWrite(target, []byte("hello world")))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestAtomicWriteMode_Overwrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "run.sh")

	require.NoError(t, AtomicWriteMode(target, []byte("old"), 0o644))
	require.NoError(t, AtomicWriteMode(target, []byte("#!/usr/bin/env bash\n"), 0o755))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "#!/usr/bin/env bash\n", string(got))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"b": 2, "a": 1, "c": 3}))
	assert.Empty(t, SortedKeys(map[string]string{}))
}

func TestRenderFrontmatter(t *testing.T) {
	out, err := RenderFrontmatter(map[string]any{"name": "fix-ci", "tools": []string{"bash"}})
	require.NoError(t, err)
	assert.Equal(t, "---\nname: fix-ci\ntools:\n  - bash\n---\n", out)
}

func TestRenderTable(t *testing.T) {
	got := RenderTable([]string{"Step", "Command"}, [][]string{{"a", "x | y"}})
	assert.Equal(t, "| Step | Command |\n| --- | --- |\n| a | x \\| y |\n", got)
}

func TestRenderLists(t *testing.T) {
	assert.Equal(t, "- a\n- b\n", RenderList([]string{"a", "b"}))
	assert.Equal(t, "1. a\n2. b\n", RenderNumberedList([]string{"a", "b"}))
	assert.Equal(t, "## Steps\n\n", RenderHeader(2, "Steps"))
}
