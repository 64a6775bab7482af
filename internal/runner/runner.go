// Package runner executes a skill specification step by step through a
// sandbox and aggregates the outcome into a RunReport.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bartekus/vibe/internal/logger"
	"github.com/bartekus/vibe/internal/sandbox"
	"github.com/bartekus/vibe/internal/skillspec"
)

// ErrNothingToResume is returned by Resume when the last run did not stop early.
var ErrNothingToResume = errors.New("no stopped run to resume")

// Options configure a Runner.
type Options struct {
	// Timeout applies to every step. Zero means sandbox.DefaultTimeout.
	Timeout time.Duration
	// DryRun logs commands without executing them.
	DryRun bool
	// OnLog observes every entry as it is recorded, in order.
	OnLog func(sandbox.LogEntry)
	// Now stamps the runner's own entries. Defaults to time.Now.
	Now func() time.Time
}

// Runner manages the execution of skill steps.
type Runner struct {
	exec  Executor
	store *StateStore
	opts  Options
}

// NewRunner creates a runner. store may be nil, in which case no state is
// persisted and Resume is unavailable.
func NewRunner(exec Executor, store *StateStore, opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = sandbox.DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{exec: exec, store: store, opts: opts}
}

// Run executes every step of spec in order inside dir.
//
// Step failures never produce an error; they are reported through the
// RunReport. Errors are returned only for unusable input or when run state
// cannot be persisted, in which case the report is still returned.
func (r *Runner) Run(ctx context.Context, spec *skillspec.Specification, dir string) (*RunReport, error) {
	return r.RunFrom(ctx, spec, dir, 0)
}

// RunFrom executes spec starting at the step with index start.
func (r *Runner) RunFrom(ctx context.Context, spec *skillspec.Specification, dir string, start int) (*RunReport, error) {
	if spec == nil || len(spec.Steps) == 0 {
		return nil, errors.New("specification has no steps")
	}
	if start < 0 || start >= len(spec.Steps) {
		return nil, fmt.Errorf("start step %d out of range [0,%d)", start, len(spec.Steps))
	}
	if err := checkDir(dir); err != nil {
		return nil, err
	}

	report := r.executeSequence(ctx, spec, dir, start)

	// A dry run never touches run state, so it cannot clobber a resume point.
	if r.store != nil && !r.opts.DryRun {
		if err := r.store.WriteLastRun(summarize(report)); err != nil {
			return report, fmt.Errorf("writing last run: %w", err)
		}
		if err := r.store.WriteReport(report); err != nil {
			return report, fmt.Errorf("writing report: %w", err)
		}
	}
	return report, nil
}

// Resume re-runs spec from the step that stopped the last recorded run.
func (r *Runner) Resume(ctx context.Context, spec *skillspec.Specification, dir string) (*RunReport, error) {
	if r.store == nil {
		return nil, errors.New("resume requires a state store")
	}
	last, err := r.store.ReadLastRun()
	if err != nil {
		return nil, fmt.Errorf("loading last run: %w", err)
	}
	if last == nil || last.StoppedAt == "" {
		return nil, ErrNothingToResume
	}
	if last.SkillID != spec.ID {
		return nil, fmt.Errorf("last run was for skill %q, not %q", last.SkillID, spec.ID)
	}
	idx := spec.StepIndex(last.StoppedAt)
	if idx < 0 {
		return nil, fmt.Errorf("step %q from last run not found in skill %q", last.StoppedAt, spec.ID)
	}
	return r.RunFrom(ctx, spec, dir, idx)
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("working directory %s is not a directory", dir)
	}
	return nil
}

func (r *Runner) executeSequence(ctx context.Context, spec *skillspec.Specification, dir string, start int) *RunReport {
	log := logger.G(ctx).WithFields(logrus.Fields{"skill": spec.ID, "dry_run": r.opts.DryRun})

	report := &RunReport{
		SkillID:    spec.ID,
		DryRun:     r.opts.DryRun,
		StartStep:  start,
		TotalSteps: len(spec.Steps) - start,
		Results:    []ExecutionResult{},
		Logs:       []sandbox.LogEntry{},
		Success:    true,
		StartedAt:  r.opts.Now(),
	}
	emit := func(typ sandbox.LogType, msg string) {
		e := sandbox.LogEntry{Time: r.opts.Now(), Type: typ, Message: msg}
		report.Logs = append(report.Logs, e)
		if r.opts.OnLog != nil {
			r.opts.OnLog(e)
		}
	}

	for _, step := range spec.Steps[start:] {
		if err := ctx.Err(); err != nil {
			emit(sandbox.LogError, fmt.Sprintf("[CANCELLED] Run cancelled before step %q: %v", step.Name, context.Cause(ctx)))
			report.Cancelled = true
			report.StoppedAt = step.ID
			log.WithField("step", step.ID).Warn("run cancelled")
			break
		}

		emit(sandbox.LogStep, "▶ Step: "+step.Name)

		res := r.exec.Run(ctx, sandbox.Request{
			Command: step.ShellCommand(),
			Dir:     dir,
			DryRun:  r.opts.DryRun,
			Timeout: r.opts.Timeout,
			OnLog:   r.opts.OnLog,
		})
		report.Results = append(report.Results, ExecutionResult{
			StepID:     step.ID,
			ExitCode:   res.ExitCode,
			Stdout:     res.Stdout,
			Stderr:     res.Stderr,
			Logs:       res.Logs,
			DurationMS: res.Duration.Milliseconds(),
		})
		report.Logs = append(report.Logs, res.Logs...)

		stepLog := log.WithFields(logrus.Fields{"step": step.ID, "exit_code": res.ExitCode})
		if res.ExitCode == 0 {
			stepLog.Debug("step passed")
			continue
		}
		report.Success = false

		if res.ExitCode == sandbox.ExitCancelled && ctx.Err() != nil {
			emit(sandbox.LogError, fmt.Sprintf("Step %q cancelled, stopping.", step.Name))
			report.Cancelled = true
			report.StoppedAt = step.ID
			stepLog.Warn("run cancelled")
			break
		}

		switch step.OnFail {
		case skillspec.OnFailStop:
			emit(sandbox.LogError, fmt.Sprintf("Step %q failed, stopping.", step.Name))
			report.StoppedAt = step.ID
			stepLog.Info("step failed, stopping")
		case skillspec.OnFailFallback, skillspec.OnFailAskUser:
			stepLog.WithField("on_fail", step.OnFail).Warn("failure policy not implemented, continuing")
		default:
			stepLog.Info("step failed, continuing")
		}
		if report.StoppedAt != "" {
			break
		}
	}

	if report.Cancelled {
		report.Success = false
	}
	report.FinishedAt = r.opts.Now()
	return report
}
