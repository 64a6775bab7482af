package projectroot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFind_NearestMarkerWins(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	pkg := filepath.Join(root, "web")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "package.json"), []byte("{}"), 0o644))

	got, err := Find(filepath.Join(pkg))
	require.NoError(t, err)
	assert.Equal(t, pkg, got)
}

func TestFindOr_FallsBackToStart(t *testing.T) {
	dir := t.TempDir()
	got, err := FindOr(dir)
	require.NoError(t, err)
	if _, findErr := Find(dir); findErr != nil {
		assert.Equal(t, dir, got)
	} else {
		assert.NotEmpty(t, got)
	}
}
