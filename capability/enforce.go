// Package capability applies a host license's job policy to a drafted job.
// Enforce is pure: it validates and normalizes but never contacts nfcd.
package capability

import (
	"fmt"
	"math"
	"strings"

	"github.com/taglme/console/license"
)

// Step is one command of a job
type Step struct {
	Command string `json:"command" yaml:"command"`
	Params  any    `json:"params,omitempty" yaml:"params,omitempty"`
}

// Draft is the job as the user entered it. Repeat is raw input and may be
// negative, fractional or non-finite.
type Draft struct {
	Repeat float64
	Steps  []Step
}

// Job is a normalized draft
type Job struct {
	Repeat int
	Steps  []Step
}

// Result is the outcome of Enforce. Reason is set only when rejected.
type Result struct {
	Accepted bool
	Job      Job
	Warnings []string
	Reason   string
}

// Enforce validates draft against policy. A nil policy accepts any normalized draft.
// Rules run in a fixed order and later rules see values clamped by earlier ones.
func Enforce(policy *license.AccessPolicy, draft Draft) Result {
	job := Job{
		Repeat: normalizeRepeat(draft.Repeat),
		Steps:  make([]Step, len(draft.Steps)),
	}
	copy(job.Steps, draft.Steps)

	if policy == nil {
		return Result{Accepted: true, Job: job}
	}

	var warnings []string

	if policy.MultistepDenied() && len(job.Steps) > 1 {
		return rejected(job, "This host license does not allow multi-step jobs.")
	}

	if policy.RepeatDenied() && job.Repeat > 1 {
		job.Repeat = 1
		warnings = append(warnings, "Repeat is not allowed on this host license. Set to 1.")
	}

	if limit := policy.MaxRepeat(); limit > 0 && job.Repeat > limit {
		job.Repeat = limit
		warnings = append(warnings, fmt.Sprintf("Repeat is limited by license. Clamped to %d.", limit))
	}

	if limit := policy.MaxSteps(); limit > 0 && len(job.Steps) > limit {
		return rejected(job, fmt.Sprintf("This host license limits job steps to %d.", limit))
	}

	if scopes := policy.CommandScopes(); len(scopes) > 0 {
		if denied := deniedCommands(scopes, job.Steps); len(denied) > 0 {
			return rejected(job, fmt.Sprintf("This host license does not allow command(s): %s.", strings.Join(denied, ", ")))
		}
	}

	return Result{Accepted: true, Job: job, Warnings: warnings}
}

func rejected(job Job, reason string) Result {
	return Result{Job: job, Reason: reason}
}

// normalizeRepeat truncates toward zero and floors at 0; NaN and infinities become 0
func normalizeRepeat(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	t := math.Trunc(v)
	if t > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(t)
}

// deniedCommands lists commands absent from scopes, distinct and in first-seen order.
// A command is allowed when listed verbatim or as "command:<name>".
func deniedCommands(scopes []string, steps []Step) []string {
	allowed := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		allowed[s] = struct{}{}
	}

	var denied []string
	seen := make(map[string]struct{})
	for _, step := range steps {
		cmd := step.Command
		if _, ok := allowed[cmd]; ok {
			continue
		}
		if _, ok := allowed["command:"+cmd]; ok {
			continue
		}
		if _, dup := seen[cmd]; dup {
			continue
		}
		seen[cmd] = struct{}{}
		denied = append(denied, cmd)
	}
	return denied
}
