package capability

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taglme/console/internal/util"
	"github.com/taglme/console/license"
)

func steps(cmds ...string) []Step {
	out := make([]Step, len(cmds))
	for i, c := range cmds {
		out[i] = Step{Command: c, Params: map[string]any{"n": i}}
	}
	return out
}

func TestEnforceNilPolicyNormalizesOnly(t *testing.T) {
	res := Enforce(nil, Draft{Repeat: 7.9, Steps: steps("a", "b", "c")})
	require.True(t, res.Accepted)
	assert.Equal(t, 7, res.Job.Repeat)
	assert.Len(t, res.Job.Steps, 3)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Reason)
}

func TestEnforceNormalizesRepeat(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{in: -3, want: 0},
		{in: 0, want: 0},
		{in: 0.99, want: 0},
		{in: 2.5, want: 2},
		{in: -0.5, want: 0},
		{in: math.NaN(), want: 0},
		{in: math.Inf(1), want: 0},
		{in: math.Inf(-1), want: 0},
	}
	for _, tt := range tests {
		res := Enforce(&license.AccessPolicy{}, Draft{Repeat: tt.in})
		require.True(t, res.Accepted)
		assert.Equal(t, tt.want, res.Job.Repeat, "repeat %v", tt.in)
	}
}

func TestEnforceRules(t *testing.T) {
	tests := []struct {
		name     string
		policy   *license.AccessPolicy
		draft    Draft
		accepted bool
		repeat   int
		warnings []string
		reason   string
	}{
		{
			name:   "multistep denied",
			policy: &license.AccessPolicy{JobCapabilities: &license.JobCapabilities{AllowMultistep: util.Ptr(false)}},
			draft:  Draft{Repeat: 1, Steps: steps("a", "b")},
			reason: "This host license does not allow multi-step jobs.",
		},
		{
			name:     "multistep denied single step ok",
			policy:   &license.AccessPolicy{JobCapabilities: &license.JobCapabilities{AllowMultistep: util.Ptr(false)}},
			draft:    Draft{Repeat: 1, Steps: steps("a")},
			accepted: true,
			repeat:   1,
		},
		{
			name:     "repeat denied sets one",
			policy:   &license.AccessPolicy{JobCapabilities: &license.JobCapabilities{AllowRepeat: util.Ptr(false)}},
			draft:    Draft{Repeat: 5, Steps: steps("a")},
			accepted: true,
			repeat:   1,
			warnings: []string{"Repeat is not allowed on this host license. Set to 1."},
		},
		{
			name:     "repeat denied leaves zero alone",
			policy:   &license.AccessPolicy{JobCapabilities: &license.JobCapabilities{AllowRepeat: util.Ptr(false)}},
			draft:    Draft{Repeat: 0, Steps: steps("a")},
			accepted: true,
			repeat:   0,
		},
		{
			name:     "max repeat clamps",
			policy:   &license.AccessPolicy{Constraints: &license.JobConstraints{MaxRepeat: util.Ptr(3)}},
			draft:    Draft{Repeat: 10, Steps: steps("a")},
			accepted: true,
			repeat:   3,
			warnings: []string{"Repeat is limited by license. Clamped to 3."},
		},
		{
			name:     "zero max repeat is unlimited",
			policy:   &license.AccessPolicy{Constraints: &license.JobConstraints{MaxRepeat: util.Ptr(0)}},
			draft:    Draft{Repeat: 10, Steps: steps("a")},
			accepted: true,
			repeat:   10,
		},
		{
			name: "repeat denied then max repeat sees clamped value",
			policy: &license.AccessPolicy{
				JobCapabilities: &license.JobCapabilities{AllowRepeat: util.Ptr(false)},
				Constraints:     &license.JobConstraints{MaxRepeat: util.Ptr(1)},
			},
			draft:    Draft{Repeat: 4, Steps: steps("a")},
			accepted: true,
			repeat:   1,
			warnings: []string{"Repeat is not allowed on this host license. Set to 1."},
		},
		{
			name:   "max steps rejects",
			policy: &license.AccessPolicy{Constraints: &license.JobConstraints{MaxSteps: util.Ptr(2)}},
			draft:  Draft{Repeat: 1, Steps: steps("a", "b", "c")},
			repeat: 1,
			reason: "This host license limits job steps to 2.",
		},
		{
			name:     "max steps at limit",
			policy:   &license.AccessPolicy{Constraints: &license.JobConstraints{MaxSteps: util.Ptr(2)}},
			draft:    Draft{Repeat: 1, Steps: steps("a", "b")},
			accepted: true,
			repeat:   1,
		},
		{
			name:     "command allowed verbatim or prefixed",
			policy:   &license.AccessPolicy{Constraints: &license.JobConstraints{AllowedCommandScopes: []string{"get_tags", "command:write_ndef"}}},
			draft:    Draft{Repeat: 1, Steps: steps("get_tags", "write_ndef")},
			accepted: true,
			repeat:   1,
		},
		{
			name:   "commands denied distinct in order",
			policy: &license.AccessPolicy{Constraints: &license.JobConstraints{AllowedCommandScopes: []string{"get_tags"}}},
			draft:  Draft{Repeat: 1, Steps: steps("lock", "get_tags", "format", "lock")},
			repeat: 1,
			reason: "This host license does not allow command(s): lock, format.",
		},
		{
			name:     "empty command scopes allow everything",
			policy:   &license.AccessPolicy{Constraints: &license.JobConstraints{AllowedCommandScopes: []string{}}},
			draft:    Draft{Repeat: 1, Steps: steps("lock")},
			accepted: true,
			repeat:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Enforce(tt.policy, tt.draft)
			assert.Equal(t, tt.accepted, res.Accepted)
			assert.Equal(t, tt.reason, res.Reason)
			if tt.accepted {
				assert.Equal(t, tt.repeat, res.Job.Repeat)
				assert.Equal(t, tt.warnings, res.Warnings)
			}
		})
	}
}

func TestEnforceMultistepBeforeMaxSteps(t *testing.T) {
	policy := &license.AccessPolicy{
		JobCapabilities: &license.JobCapabilities{AllowMultistep: util.Ptr(false)},
		Constraints:     &license.JobConstraints{MaxSteps: util.Ptr(1), AllowedCommandScopes: []string{"x"}},
	}
	res := Enforce(policy, Draft{Repeat: 1, Steps: steps("a", "b")})
	assert.False(t, res.Accepted)
	assert.Equal(t, "This host license does not allow multi-step jobs.", res.Reason)
}

func TestEnforceNeverDropsSteps(t *testing.T) {
	policy := &license.AccessPolicy{Constraints: &license.JobConstraints{MaxSteps: util.Ptr(1)}}
	draft := Draft{Repeat: 1, Steps: steps("a", "b")}
	res := Enforce(policy, draft)
	assert.False(t, res.Accepted)
	assert.Len(t, res.Job.Steps, 2)
}

func TestEnforcePassesParamsThrough(t *testing.T) {
	params := map[string]any{"text": "hello", "nested": map[string]any{"a": 1}}
	res := Enforce(&license.AccessPolicy{}, Draft{Repeat: 1, Steps: []Step{{Command: "write_ndef", Params: params}}})
	require.True(t, res.Accepted)
	assert.Equal(t, params, res.Job.Steps[0].Params)
}

func TestEnforceIsIdempotent(t *testing.T) {
	policy := &license.AccessPolicy{
		JobCapabilities: &license.JobCapabilities{AllowRepeat: util.Ptr(true)},
		Constraints:     &license.JobConstraints{MaxRepeat: util.Ptr(4), MaxSteps: util.Ptr(3)},
	}
	first := Enforce(policy, Draft{Repeat: 9.7, Steps: steps("a", "b")})
	require.True(t, first.Accepted)

	second := Enforce(policy, Draft{Repeat: float64(first.Job.Repeat), Steps: first.Job.Steps})
	require.True(t, second.Accepted)
	assert.Equal(t, first.Job, second.Job)
	assert.Empty(t, second.Warnings)
}

func TestEnforceDoesNotMutateDraft(t *testing.T) {
	draft := Draft{Repeat: 3, Steps: steps("a")}
	res := Enforce(nil, draft)
	res.Job.Steps[0].Command = "changed"
	assert.Equal(t, "a", draft.Steps[0].Command)
}
