package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/vibe/internal/skillspec"
)

func specWith(paths *skillspec.AllowedPaths, steps ...skillspec.Step) *skillspec.Specification {
	return &skillspec.Specification{
		ID:           "guarded",
		AllowedTools: []string{"bash", "read_file"},
		AllowedPaths: paths,
		Steps:        steps,
	}
}

func bash(id, cmd string) skillspec.Step {
	return skillspec.Step{ID: id, Name: id, Tool: "bash", Args: map[string]any{"command": cmd}}
}

var fixCIPaths = &skillspec.AllowedPaths{
	ReadRoots:  []string{"."},
	WriteRoots: []string{"."},
	DenyGlobs:  []string{".env", ".ssh/*", "node_modules/*"},
}

func TestCheck_Clean(t *testing.T) {
	spec := specWith(fixCIPaths,
		bash("test", "npm test 2>&1 || true"),
		bash("patch", `sed -i.bak "s/return a - b/return a + b/g" src/math.js`),
		bash("log", "echo done >> build/out.log 2>/dev/null"),
		skillspec.Step{ID: "read", Name: "read", Tool: "read_file", Args: map[string]any{"path": ".env"}},
	)
	assert.Empty(t, Check(spec))
	assert.NoError(t, Enforce(spec))
}

func TestCheck_ToolNotAllowed(t *testing.T) {
	spec := specWith(nil, skillspec.Step{ID: "net", Name: "net", Tool: "http_get", Args: map[string]any{}})

	findings := Check(spec)
	require.Len(t, findings, 1)
	assert.Equal(t, KindTool, findings[0].Kind)
	assert.Equal(t, "net", findings[0].StepID)
	assert.Contains(t, findings[0].Error(), "http_get")
}

func TestCheck_DenyGlobs(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		path string
	}{
		{"read secret file", "cat .env", ".env"},
		{"nested secret file", "cat config/.env", "config/.env"},
		{"ssh key", "cp .ssh/id_rsa /tmp/key", ".ssh/id_rsa"},
		{"input redirect", "wc -l < ./.env", "./.env"},
		{"quoted path", `rm -rf "node_modules/left-pad"`, "node_modules/left-pad"},
		{"inside subshell", "(cd app && cat ../.env)", "../.env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := Check(specWith(fixCIPaths, bash("s", tt.cmd)))
			require.NotEmpty(t, findings)
			assert.Equal(t, KindDenied, findings[0].Kind)
			assert.Equal(t, tt.path, findings[0].Path)
		})
	}
}

func TestCheck_WriteRoots(t *testing.T) {
	paths := &skillspec.AllowedPaths{WriteRoots: []string{"src", "build"}}

	findings := Check(specWith(paths,
		bash("ok", "echo x > src/out.txt"),
		bash("abs", "echo x > /etc/motd"),
		bash("escape", "echo x >> ../other/file"),
		bash("sibling", "echo x &> srcfoo/log"),
	))
	require.Len(t, findings, 3)
	for _, f := range findings {
		assert.Equal(t, KindWriteRoot, f.Kind)
	}
	assert.Equal(t, []string{"abs", "escape", "sibling"}, []string{findings[0].StepID, findings[1].StepID, findings[2].StepID})
}

func TestCheck_DynamicPathsIgnored(t *testing.T) {
	paths := &skillspec.AllowedPaths{WriteRoots: []string{"."}, DenyGlobs: []string{".env"}}
	assert.Empty(t, Check(specWith(paths, bash("dyn", `cat "$HOME/.env" > "$OUT"`))))
}

func TestCheck_ParseError(t *testing.T) {
	findings := Check(specWith(nil, bash("bad", "echo 'unterminated")))
	require.Len(t, findings, 1)
	assert.Equal(t, KindParse, findings[0].Kind)
}

func TestEnforce_AggregatesFindings(t *testing.T) {
	spec := specWith(fixCIPaths, bash("a", "cat .env"), skillspec.Step{ID: "b", Name: "b", Tool: "curl", Args: map[string]any{}})

	err := Enforce(spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Contains(t, err.Error(), "step a")
	assert.Contains(t, err.Error(), "step b")
}

func TestUnderAnyRoot(t *testing.T) {
	assert.True(t, underAnyRoot("file.txt", []string{"."}))
	assert.True(t, underAnyRoot("./a/b", []string{"."}))
	assert.False(t, underAnyRoot("../a", []string{"."}))
	assert.False(t, underAnyRoot("/tmp/a", []string{"."}))
	assert.True(t, underAnyRoot("/tmp/a", []string{"/tmp"}))
	assert.True(t, underAnyRoot("src", []string{"src/"}))
	assert.False(t, underAnyRoot("srcx/a", []string{"src"}))
}

func TestProtected(t *testing.T) {
	files := []string{".env", "src/math.js", "config/.env", "node_modules/a/index.js", ".ssh/id_rsa"}
	assert.Equal(t,
		[]string{".env", "config/.env", "node_modules/a/index.js", ".ssh/id_rsa"},
		Protected(files, fixCIPaths.DenyGlobs))
	assert.Empty(t, Protected(files, nil))
}
