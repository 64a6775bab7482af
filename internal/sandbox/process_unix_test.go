//go:build unix

package sandbox

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// processGone reports whether pid no longer runs. Zombies awaiting reaping by
// init count as gone.
func processGone(pid int) bool {
	if err := syscall.Kill(pid, 0); err != nil {
		return true
	}
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	fields := strings.Fields(string(stat))
	return len(fields) > 2 && fields[2] == "Z"
}

func TestRun_TimeoutKillsProcessGroup(t *testing.T) {
	sb := New(Options{})

	res := sb.Run(context.Background(), Request{
		Command: "sleep 30 & echo CHILD:$!; wait",
		Dir:     t.TempDir(),
		Timeout: 500 * time.Millisecond,
	})
	require.Equal(t, ExitTimeout, res.ExitCode)

	line := strings.TrimSpace(res.Stdout)
	require.True(t, strings.HasPrefix(line, "CHILD:"), "unexpected stdout %q", res.Stdout)
	pid, err := strconv.Atoi(strings.TrimPrefix(line, "CHILD:"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return processGone(pid) }, 2*time.Second, 50*time.Millisecond,
		"background child %d survived the timeout", pid)
}

func TestSetProcessGroup(t *testing.T) {
	cmd := exec.Command("true")
	setProcessGroup(cmd)

	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
	assert.NotNil(t, cmd.Cancel)
}
