package license

import (
	"encoding/json"

	"github.com/taglme/console/errors"
)

// Scopes checked by the console before optional side effects
const (
	ScopeJobDelete = "job:delete"
)

// AccessPolicy is the nfcd access policy of the host license.
// A nil policy means unrestricted.
type AccessPolicy struct {
	JobCapabilities *JobCapabilities `json:"job_capabilities,omitempty"`
	Constraints     *JobConstraints  `json:"create_job_constraints,omitempty"`
	AllowedScopes   []string         `json:"allowed_scopes,omitempty"`
	RateLimit       *RateLimit       `json:"create_job_rate_limit,omitempty"`
}

// JobCapabilities toggles job features. An absent flag allows the feature.
type JobCapabilities struct {
	AllowMultistep *bool `json:"allow_multistep,omitempty"`
	AllowRepeat    *bool `json:"allow_repeat,omitempty"`
	AllowBatch     *bool `json:"allow_batch,omitempty"`
}

// JobConstraints bounds job shape. Zero or absent limits are unlimited.
type JobConstraints struct {
	MaxRepeat            *int     `json:"max_repeat,omitempty"`
	MaxSteps             *int     `json:"max_steps,omitempty"`
	AllowedCommandScopes []string `json:"allowed_command_scopes,omitempty"`
	AllowedScopes        []string `json:"allowed_scopes,omitempty"`
}

// RateLimit configures client-side submission throttling
type RateLimit struct {
	MinIntervalMs *int64 `json:"min_interval_ms,omitempty"`
	WindowMs      *int64 `json:"window_ms,omitempty"`
	MaxInWindow   *int64 `json:"max_in_window,omitempty"`
}

// Denies reports whether a capability flag is explicitly false
func Denies(flag *bool) bool {
	return flag != nil && !*flag
}

// MultistepDenied reports allow_multistep == false
func (p *AccessPolicy) MultistepDenied() bool {
	return p != nil && p.JobCapabilities != nil && Denies(p.JobCapabilities.AllowMultistep)
}

// RepeatDenied reports allow_repeat == false
func (p *AccessPolicy) RepeatDenied() bool {
	return p != nil && p.JobCapabilities != nil && Denies(p.JobCapabilities.AllowRepeat)
}

// MaxRepeat returns the positive repeat limit, or 0 when unlimited
func (p *AccessPolicy) MaxRepeat() int {
	if p == nil || p.Constraints == nil || p.Constraints.MaxRepeat == nil || *p.Constraints.MaxRepeat <= 0 {
		return 0
	}
	return *p.Constraints.MaxRepeat
}

// MaxSteps returns the positive step limit, or 0 when unlimited
func (p *AccessPolicy) MaxSteps() int {
	if p == nil || p.Constraints == nil || p.Constraints.MaxSteps == nil || *p.Constraints.MaxSteps <= 0 {
		return 0
	}
	return *p.Constraints.MaxSteps
}

// CommandScopes returns the command allowlist; empty means any command
func (p *AccessPolicy) CommandScopes() []string {
	if p == nil || p.Constraints == nil {
		return nil
	}
	return p.Constraints.AllowedCommandScopes
}

// Scopes returns the granted scopes, nil-safe
func (p *AccessPolicy) Scopes() []string {
	if p == nil {
		return nil
	}
	return p.AllowedScopes
}

// Limits returns the rate limit configuration, nil-safe
func (p *AccessPolicy) Limits() *RateLimit {
	if p == nil {
		return nil
	}
	return p.RateLimit
}

// FromNFCDPolicy decodes the nfcd entry of a license's policies.
// allowed_scopes falls back to create_job_constraints.allowed_scopes.
// An empty or null policy yields an empty (restrictive of nothing) policy.
func FromNFCDPolicy(raw json.RawMessage) (*AccessPolicy, error) {
	policy := &AccessPolicy{}
	if len(raw) == 0 || string(raw) == "null" {
		policy.AllowedScopes = []string{}
		return policy, nil
	}
	if err := json.Unmarshal(raw, policy); err != nil {
		return nil, errors.Wrap(err, "failed to decode nfcd access policy")
	}
	if policy.AllowedScopes == nil {
		if policy.Constraints != nil && policy.Constraints.AllowedScopes != nil {
			policy.AllowedScopes = policy.Constraints.AllowedScopes
		} else {
			policy.AllowedScopes = []string{}
		}
	}
	return policy, nil
}
