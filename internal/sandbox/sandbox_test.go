package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logTypes(logs []LogEntry) []LogType {
	out := make([]LogType, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Type)
	}
	return out
}

func TestRun_DryRunSpawnsNothing(t *testing.T) {
	dir := t.TempDir()
	sb := New(Options{})

	res := sb.Run(context.Background(), Request{
		Command: "touch created.txt",
		Dir:     dir,
		DryRun:  true,
	})

	assert.Equal(t, 0, res.ExitCode)
	assert.Empty(t, res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Equal(t, []LogType{LogCmd, LogInfo}, logTypes(res.Logs))
	assert.Equal(t, "$ touch created.txt", res.Logs[0].Message)
	assert.Contains(t, res.Logs[1].Message, "DRY_RUN")

	_, err := os.Stat(filepath.Join(dir, "created.txt"))
	assert.True(t, os.IsNotExist(err), "dry run must not execute the command")
}

func TestRun_Success(t *testing.T) {
	sb := New(Options{})

	res := sb.Run(context.Background(), Request{Command: "echo hello", Dir: t.TempDir()})

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Empty(t, res.Stderr)

	require.Equal(t, []LogType{LogCmd, LogStdout, LogExit}, logTypes(res.Logs))
	assert.Equal(t, "hello", res.Logs[1].Message)
	assert.Equal(t, "Exit code: 0", res.Logs[2].Message)
}

func TestRun_NonZeroExit(t *testing.T) {
	sb := New(Options{})

	res := sb.Run(context.Background(), Request{Command: "echo oops >&2; exit 3", Dir: t.TempDir()})

	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Contains(t, logTypes(res.Logs), LogStderr)
	assert.Equal(t, "Exit code: 3", res.Logs[len(res.Logs)-1].Message)
}

func TestRun_OneEntryPerChunk(t *testing.T) {
	sb := New(Options{})

	res := sb.Run(context.Background(), Request{Command: "echo first; sleep 0.3; echo second", Dir: t.TempDir()})

	var chunks []string
	for _, l := range res.Logs {
		if l.Type == LogStdout {
			chunks = append(chunks, l.Message)
		}
	}
	assert.Equal(t, []string{"first", "second"}, chunks)
	assert.Equal(t, "first\nsecond\n", res.Stdout)
}

func TestRun_WorkingDirectoryAndEnv(t *testing.T) {
	dir := t.TempDir()
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	sb := New(Options{Env: []string{"PATH=" + os.Getenv("PATH"), "DRY_RUN=true", "FOO=bar"}})
	res := sb.Run(context.Background(), Request{Command: `pwd -P; echo "$DRY_RUN $FOO"`, Dir: dir})

	require.Equal(t, 0, res.ExitCode, res.Stderr)
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, want, lines[0])
	assert.Equal(t, "false bar", lines[1])
}

func TestRun_Timeout(t *testing.T) {
	sb := New(Options{})

	start := time.Now()
	res := sb.Run(context.Background(), Request{
		Command: "echo started; sleep 5; echo late",
		Dir:     t.TempDir(),
		Timeout: 300 * time.Millisecond,
	})
	elapsed := time.Since(start)

	assert.Equal(t, ExitTimeout, res.ExitCode)
	assert.Less(t, elapsed, 3*time.Second)
	assert.NotContains(t, res.Stdout, "late")

	n := len(res.Logs)
	require.GreaterOrEqual(t, n, 3)
	assert.Equal(t, LogError, res.Logs[n-2].Type)
	assert.Equal(t, "[TIMEOUT] Command killed after 300ms", res.Logs[n-2].Message)
	assert.Equal(t, LogExit, res.Logs[n-1].Type)
	assert.Equal(t, "Exit code: 124", res.Logs[n-1].Message)
}

func TestRun_TimeoutIgnoresProcessExitCode(t *testing.T) {
	sb := New(Options{})

	res := sb.Run(context.Background(), Request{
		Command: "trap 'exit 0' TERM; sleep 5",
		Dir:     t.TempDir(),
		Timeout: 200 * time.Millisecond,
	})

	assert.Equal(t, ExitTimeout, res.ExitCode)
}

func TestRun_ContextCancelled(t *testing.T) {
	sb := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	res := sb.Run(ctx, Request{Command: "sleep 5", Dir: t.TempDir(), Timeout: 10 * time.Second})

	assert.Equal(t, ExitCancelled, res.ExitCode)
	n := len(res.Logs)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, LogError, res.Logs[n-2].Type)
	assert.Contains(t, res.Logs[n-2].Message, "[CANCELLED]")
}

func TestRun_SpawnFailure(t *testing.T) {
	sb := New(Options{Shell: filepath.Join(t.TempDir(), "no-such-shell")})

	res := sb.Run(context.Background(), Request{Command: "echo hi", Dir: t.TempDir()})

	assert.Equal(t, ExitSpawnFailure, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
	assert.Empty(t, res.Stdout)
	assert.Equal(t, []LogType{LogCmd, LogError}, logTypes(res.Logs))
	assert.Equal(t, res.Stderr, res.Logs[1].Message)
}

func TestRun_RedactsStreamedAndAggregateOutput(t *testing.T) {
	sb := New(Options{})

	res := sb.Run(context.Background(), Request{
		Command: "echo API_KEY=abc123def456; echo ghp_abcdef123 >&2",
		Dir:     t.TempDir(),
	})

	require.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "[REDACTED]\n", res.Stdout)
	assert.Equal(t, "[REDACTED]\n", res.Stderr)
	assert.Equal(t, "$ echo API_KEY=abc123def456; echo ghp_abcdef123 >&2", res.Logs[0].Message)
	for _, l := range res.Logs[1:] {
		assert.NotContains(t, l.Message, "abc123def456")
		assert.NotContains(t, l.Message, "ghp_abcdef123")
	}
}

func TestRun_RedactsKeywordInsideVariableName(t *testing.T) {
	sb := New(Options{})

	res := sb.Run(context.Background(), Request{
		Command: "echo PGPASSWORD=hunter2; echo clientSecret: s3cr3t",
		Dir:     t.TempDir(),
	})

	require.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "[REDACTED]\n[REDACTED]\n", res.Stdout)
	assert.NotContains(t, res.Stdout, "hunter2")
	for _, l := range res.Logs[1:] {
		assert.NotContains(t, l.Message, "hunter2")
		assert.NotContains(t, l.Message, "s3cr3t")
	}
}

func TestRun_OnLogObservesEveryEntry(t *testing.T) {
	sb := New(Options{})
	var seen []LogEntry

	res := sb.Run(context.Background(), Request{
		Command: "echo one",
		Dir:     t.TempDir(),
		OnLog:   func(e LogEntry) { seen = append(seen, e) },
	})

	assert.Equal(t, res.Logs, seen)
}

func TestRun_UsesInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sb := New(Options{Now: func() time.Time { return fixed }})

	res := sb.Run(context.Background(), Request{Command: "true", DryRun: true})

	for _, l := range res.Logs {
		assert.Equal(t, fixed, l.Time)
	}
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"B=2", "A=1", "broken"}, map[string]string{"A": "override", "C": "3"})
	assert.Equal(t, []string{"A=override", "B=2", "C=3"}, got)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil, nil))
	assert.Equal(t, 1, exitCode(nil, os.ErrNotExist))
}
