// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Vibe - Vibe turns a described workflow into an executable skill: a declarative list of shell steps plus generated documentation and test scaffolding.
It installs skills into a repository and runs them with timeouts, secret redaction and per-step failure policies, producing a replayable log.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package skillspec provides the skill specification document: its types,
// loading, validation and JSON Schema.
package skillspec

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"mvdan.cc/sh/v3/syntax"
)

// RiskLevel is informational; it is surfaced to users but does not gate execution.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// FailPolicy controls what the runner does after a step exits non-zero.
type FailPolicy string

const (
	OnFailStop     FailPolicy = "stop"
	OnFailContinue FailPolicy = "continue"
	OnFailFallback FailPolicy = "fallback"
	OnFailAskUser  FailPolicy = "ask_user"
)

// ToolBash is the only tool the runner executes.
const ToolBash = "bash"

// SuccessCheck types accepted in success_checks.
const (
	CheckTestsPass    = "tests_pass"
	CheckCommandExit0 = "command_exit_0"
	CheckFileContains = "file_contains"
	CheckDiffNonempty = "diff_nonempty"
)

// Specification is a skill: ordered steps plus metadata. Fields the runner does
// not interpret are carried through unchanged.
type Specification struct {
	ID             string         `yaml:"skill_id" json:"skill_id"`
	Invocation     string         `yaml:"invocation" json:"invocation"`
	Title          string         `yaml:"title" json:"title"`
	Description    string         `yaml:"description" json:"description"`
	RiskLevel      RiskLevel      `yaml:"risk_level" json:"risk_level" jsonschema:"enum=low,enum=medium,enum=high"`
	AllowedTools   []string       `yaml:"allowed_tools" json:"allowed_tools"`
	AllowedPaths   *AllowedPaths  `yaml:"allowed_paths,omitempty" json:"allowed_paths,omitempty"`
	Steps          []Step         `yaml:"steps" json:"steps" jsonschema:"minItems=1"`
	SuccessChecks  []SuccessCheck `yaml:"success_checks,omitempty" json:"success_checks,omitempty"`
	FallbackPlan   *FallbackPlan  `yaml:"fallback_plan,omitempty" json:"fallback_plan,omitempty"`
	NotesForHumans string         `yaml:"notes_for_humans,omitempty" json:"notes_for_humans,omitempty"`
}

// AllowedPaths is advisory metadata; see package guard for checks against it.
type AllowedPaths struct {
	ReadRoots  []string `yaml:"read_roots,omitempty" json:"read_roots,omitempty"`
	WriteRoots []string `yaml:"write_roots,omitempty" json:"write_roots,omitempty"`
	DenyGlobs  []string `yaml:"deny_globs,omitempty" json:"deny_globs,omitempty"`
}

// Step is one unit of work, mapped to exactly one shell command.
type Step struct {
	ID                   string         `yaml:"step_id" json:"step_id"`
	Name                 string         `yaml:"name" json:"name"`
	Tool                 string         `yaml:"tool" json:"tool"`
	Args                 map[string]any `yaml:"args" json:"args"`
	RequiresConfirmation bool           `yaml:"requires_confirmation,omitempty" json:"requires_confirmation,omitempty"`
	OnFail               FailPolicy     `yaml:"on_fail,omitempty" json:"on_fail,omitempty" jsonschema:"enum=stop,enum=continue,enum=fallback,enum=ask_user"`
}

// CommandArgs is the typed view of a bash step's args.
type CommandArgs struct {
	Command string `mapstructure:"command"`
}

// CommandArgs decodes the step's args. Unknown keys are ignored.
func (s Step) CommandArgs() (CommandArgs, error) {
	var a CommandArgs
	if len(s.Args) == 0 {
		return a, nil
	}
	err := mapstructure.Decode(s.Args, &a)
	return a, err
}

// Command returns args.command, or "" when it is absent, blank or not a string.
func (s Step) Command() string {
	a, err := s.CommandArgs()
	if err != nil || strings.TrimSpace(a.Command) == "" {
		return ""
	}
	return a.Command
}

// IsExecutable reports whether the runner can run the step's tool.
func (s Step) IsExecutable() bool {
	return strings.EqualFold(strings.TrimSpace(s.Tool), ToolBash)
}

// ShellCommand returns the command a sandbox runs for the step. Steps without
// a command, or with a tool other than bash, run a placeholder echo.
func (s Step) ShellCommand() string {
	if !s.IsExecutable() {
		msg := fmt.Sprintf("Tool %s not supported, skipping step %s", s.Tool, s.ID)
		q, err := syntax.Quote(msg, syntax.LangBash)
		if err != nil {
			q = "'unsupported tool'"
		}
		return "echo " + q
	}
	if cmd := s.Command(); cmd != "" {
		return cmd
	}
	return fmt.Sprintf("echo \"No command defined for step %s\"", s.ID)
}

// SuccessCheck is carried through; the runner does not interpret it.
type SuccessCheck struct {
	Type     string         `yaml:"type" json:"type" jsonschema:"enum=tests_pass,enum=command_exit_0,enum=file_contains,enum=diff_nonempty"`
	Criteria map[string]any `yaml:"criteria" json:"criteria"`
}

// FallbackPlan names a static specification to use when generation fails.
type FallbackPlan struct {
	UseGoldenPath bool   `yaml:"use_golden_path,omitempty" json:"use_golden_path,omitempty"`
	GoldenPathID  string `yaml:"golden_path_id,omitempty" json:"golden_path_id,omitempty"`
}

// StepsRequiringConfirmation returns the steps flagged requires_confirmation.
func (s *Specification) StepsRequiringConfirmation() []Step {
	var out []Step
	for _, st := range s.Steps {
		if st.RequiresConfirmation {
			out = append(out, st)
		}
	}
	return out
}

// StepIndex returns the position of the step with the given id, or -1.
func (s *Specification) StepIndex(stepID string) int {
	for i, st := range s.Steps {
		if st.ID == stepID {
			return i
		}
	}
	return -1
}
