// SPDX-License-Identifier: AGPL-3.0-or-later

package skillspec

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
)

var (
	skillIDPattern    = regexp.MustCompile(`^[a-z0-9-]{3,64}$`)
	invocationPattern = regexp.MustCompile(`^/[a-z0-9-]{2,32}$`)
)

// ValidID reports whether id is an acceptable skill_id. Valid ids are
// also safe to use as a single path segment.
func ValidID(id string) bool {
	return skillIDPattern.MatchString(id)
}

const (
	maxTitleLen       = 80
	maxDescriptionLen = 500
	maxStepNameLen    = 120
)

// Validate checks the document shape and reports every violation at once.
// The runner assumes a specification has passed Validate.
func Validate(spec *Specification) error {
	if spec == nil {
		return fmt.Errorf("specification is nil")
	}

	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if !ValidID(spec.ID) {
		add("skill_id %q must match %s", spec.ID, skillIDPattern)
	}
	if !invocationPattern.MatchString(spec.Invocation) {
		add("invocation %q must match %s", spec.Invocation, invocationPattern)
	}
	if spec.Title == "" {
		add("title is required")
	} else if utf8.RuneCountInString(spec.Title) > maxTitleLen {
		add("title must be at most %d characters", maxTitleLen)
	}
	if spec.Description == "" {
		add("description is required")
	} else if utf8.RuneCountInString(spec.Description) > maxDescriptionLen {
		add("description must be at most %d characters", maxDescriptionLen)
	}

	switch spec.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		add("risk_level %q must be one of low, medium, high", spec.RiskLevel)
	}

	if spec.AllowedTools == nil {
		add("allowed_tools is required")
	}

	if len(spec.Steps) == 0 {
		add("steps must contain at least one step")
	}
	seen := make(map[string]int, len(spec.Steps))
	for i, st := range spec.Steps {
		at := fmt.Sprintf("steps[%d]", i)
		if st.ID == "" {
			add("%s.step_id is required", at)
		} else if prev, dup := seen[st.ID]; dup {
			add("%s.step_id %q duplicates steps[%d]", at, st.ID, prev)
		} else {
			seen[st.ID] = i
		}
		if st.Name == "" {
			add("%s.name is required", at)
		} else if utf8.RuneCountInString(st.Name) > maxStepNameLen {
			add("%s.name must be at most %d characters", at, maxStepNameLen)
		}
		if st.Tool == "" {
			add("%s.tool is required", at)
		}
		if st.Args == nil {
			add("%s.args is required", at)
		}
		switch st.OnFail {
		case "", OnFailStop, OnFailContinue, OnFailFallback, OnFailAskUser:
		default:
			add("%s.on_fail %q must be one of stop, continue, fallback, ask_user", at, st.OnFail)
		}
	}

	for i, c := range spec.SuccessChecks {
		switch c.Type {
		case CheckTestsPass, CheckCommandExit0, CheckFileContains, CheckDiffNonempty:
		default:
			add("success_checks[%d].type %q is not supported", i, c.Type)
		}
		if c.Criteria == nil {
			add("success_checks[%d].criteria is required", i)
		}
	}

	return result.ErrorOrNil()
}
