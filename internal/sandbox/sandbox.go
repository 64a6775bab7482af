// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sandbox runs a single shell command under a time budget, captures and
// redacts its output, and reports the outcome as a structured Result.
//
// Run never returns an error: spawn failures, timeouts, cancellation and
// non-zero exits are all encoded in the Result.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// DefaultTimeout is the per-command budget when a Request sets none.
	DefaultTimeout = 60 * time.Second
	// DefaultGracePeriod bounds how long Run waits for output pipes after the
	// process group has been killed.
	DefaultGracePeriod = 2 * time.Second

	// ExitTimeout is reported for commands killed by the timeout.
	ExitTimeout = 124
	// ExitCancelled is reported for commands killed because the caller's
	// context was cancelled.
	ExitCancelled = 130
	// ExitSpawnFailure is reported when the shell could not be started.
	ExitSpawnFailure = 1
)

// Options configure a Sandbox.
type Options struct {
	// Shell interprets commands as `<Shell> -c <command>`. Defaults to bash,
	// or sh when bash is not on PATH.
	Shell string
	// Env is the base environment. Defaults to os.Environ().
	Env []string
	// Now stamps log entries. Defaults to time.Now.
	Now func() time.Time
	// Redactor masks captured output. Defaults to DefaultSecretPatterns.
	Redactor *Redactor
	// GracePeriod is the teardown allowance after a kill.
	GracePeriod time.Duration
}

// Request describes one command invocation.
type Request struct {
	Command string
	Dir     string
	DryRun  bool
	Timeout time.Duration
	// OnLog, when set, observes every entry as it is recorded. It is called
	// with an internal lock held and must not block.
	OnLog func(LogEntry)
}

// Result is the outcome of one command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Logs     []LogEntry
	Duration time.Duration
}

// Sandbox executes commands.
type Sandbox struct {
	opts Options
}

// New creates a Sandbox, filling defaults for unset options.
func New(opts Options) *Sandbox {
	if opts.Shell == "" {
		opts.Shell = defaultShell()
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Redactor == nil {
		opts.Redactor = NewRedactor()
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	return &Sandbox{opts: opts}
}

func defaultShell() string {
	if _, err := exec.LookPath("bash"); err == nil {
		return "bash"
	}
	return "sh"
}

// Shell reports the interpreter commands are run with.
func (s *Sandbox) Shell() string { return s.opts.Shell }

type stopCause int32

const (
	causeNone stopCause = iota
	causeTimeout
	causeCancelled
)

// Run executes req and returns its Result. The call returns within
// req.Timeout plus the grace period.
func (s *Sandbox) Run(ctx context.Context, req Request) Result {
	rec := &recorder{now: s.opts.Now, onLog: req.OnLog}
	rec.add(LogCmd, "$ "+req.Command)

	if req.DryRun {
		rec.add(LogInfo, "[DRY_RUN] Command not executed")
		return Result{ExitCode: 0, Logs: rec.entries()}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.opts.Shell, "-c", req.Command)
	cmd.Dir = req.Dir
	cmd.Env = mergeEnv(s.opts.Env, map[string]string{"DRY_RUN": "false"})
	cmd.WaitDelay = s.opts.GracePeriod
	cmd.Stdout = &streamWriter{typ: LogStdout, rec: rec, redactor: s.opts.Redactor}
	cmd.Stderr = &streamWriter{typ: LogStderr, rec: rec, redactor: s.opts.Redactor}
	setProcessGroup(cmd)

	var cause atomic.Int32
	kill := cmd.Cancel
	cmd.Cancel = func() error {
		if ctx.Err() != nil {
			cause.Store(int32(causeCancelled))
		} else {
			cause.Store(int32(causeTimeout))
		}
		return kill()
	}

	start := s.opts.Now()
	if err := cmd.Start(); err != nil {
		rec.add(LogError, err.Error())
		return Result{
			ExitCode: ExitSpawnFailure,
			Stderr:   err.Error(),
			Logs:     rec.entries(),
			Duration: s.opts.Now().Sub(start),
		}
	}

	// Wait returns only after the copy goroutines have drained, so no output
	// entry can be recorded after the entries below.
	waitErr := cmd.Wait()

	var code int
	switch stopCause(cause.Load()) {
	case causeTimeout:
		rec.add(LogError, fmt.Sprintf("[TIMEOUT] Command killed after %dms", timeout.Milliseconds()))
		code = ExitTimeout
	case causeCancelled:
		rec.add(LogError, fmt.Sprintf("[CANCELLED] Command killed: %v", context.Cause(ctx)))
		code = ExitCancelled
	default:
		code = exitCode(cmd.ProcessState, waitErr)
	}
	rec.add(LogExit, fmt.Sprintf("Exit code: %d", code))

	stdout, stderr := rec.captured()
	return Result{
		ExitCode: code,
		Stdout:   s.opts.Redactor.Redact(stdout),
		Stderr:   s.opts.Redactor.Redact(stderr),
		Logs:     rec.entries(),
		Duration: s.opts.Now().Sub(start),
	}
}

func exitCode(state *os.ProcessState, err error) int {
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		if state != nil && state.ExitCode() >= 0 {
			return state.ExitCode()
		}
		if err == nil {
			return 0
		}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if c := exitErr.ExitCode(); c >= 0 {
			return c
		}
	}
	return 1
}

func mergeEnv(base []string, overlays ...map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overlays))
	for _, kv := range base {
		if idx := strings.Index(kv, "="); idx != -1 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			envMap[k] = v
		}
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
