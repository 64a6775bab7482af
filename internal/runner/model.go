package runner

import (
	"time"

	"github.com/bartekus/vibe/internal/sandbox"
)

// RunStatus summarizes a finished run in last-run.json.
type RunStatus string

const (
	StatusPass      RunStatus = "pass"
	StatusFail      RunStatus = "fail"
	StatusCancelled RunStatus = "cancelled"
)

// ExecutionResult is the outcome of one attempted step.
type ExecutionResult struct {
	StepID     string             `json:"step_id"`
	ExitCode   int                `json:"exit_code"`
	Stdout     string             `json:"stdout"`
	Stderr     string             `json:"stderr"`
	Logs       []sandbox.LogEntry `json:"logs"`
	DurationMS int64              `json:"duration_ms"`
}

// RunReport is the aggregate of a run. Results holds one entry per attempted
// step; steps after a stop are absent. Logs is the flattened log of the whole
// run, including the runner's own step and error entries.
type RunReport struct {
	SkillID    string             `json:"skill_id"`
	DryRun     bool               `json:"dry_run"`
	StartStep  int                `json:"start_step"`
	TotalSteps int                `json:"total_steps"`
	Results    []ExecutionResult  `json:"results"`
	Logs       []sandbox.LogEntry `json:"logs"`
	Success    bool               `json:"success"`
	StoppedAt  string             `json:"stopped_at,omitempty"`
	Cancelled  bool               `json:"cancelled,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Complete reports whether every scheduled step was attempted.
func (r *RunReport) Complete() bool {
	return len(r.Results) == r.TotalSteps
}

// AllStepsPassed reports whether the run attempted every scheduled step and
// each exited 0.
func (r *RunReport) AllStepsPassed() bool {
	return r.Success && r.Complete()
}

// Failed returns the ids of attempted steps that exited non-zero.
func (r *RunReport) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if res.ExitCode != 0 {
			out = append(out, res.StepID)
		}
	}
	return out
}

// LastRun represents the summary of the last execution.
// Matches .vibe/run/last-run.json schema.
type LastRun struct {
	SkillID   string    `json:"skill_id"`
	Status    RunStatus `json:"status"`
	DryRun    bool      `json:"dry_run"`
	Steps     []string  `json:"steps"`                // Ordered list of attempted steps
	Failed    []string  `json:"failed"`               // Attempted steps that exited non-zero
	StoppedAt string    `json:"stopped_at,omitempty"` // Step that halted the run, if any
}

func summarize(r *RunReport) LastRun {
	last := LastRun{
		SkillID:   r.SkillID,
		Status:    StatusPass,
		DryRun:    r.DryRun,
		Steps:     make([]string, 0, len(r.Results)),
		Failed:    r.Failed(),
		StoppedAt: r.StoppedAt,
	}
	for _, res := range r.Results {
		last.Steps = append(last.Steps, res.StepID)
	}
	switch {
	case r.Cancelled:
		last.Status = StatusCancelled
	case !r.Success:
		last.Status = StatusFail
	}
	return last
}
