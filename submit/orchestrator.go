// Package submit runs the job submission pipeline: license enforcement,
// client-side rate limiting, optional queue pre-clear, then the nfcd call.
package submit

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taglme/console/capability"
	"github.com/taglme/console/errors"
	"github.com/taglme/console/license"
	"github.com/taglme/console/logger"
	"github.com/taglme/console/nfc"
	"github.com/taglme/console/ratelimit"
)

// DefaultExpireAfter is the job expiry sent when Params leaves it unset
const DefaultExpireAfter = 60 * time.Second

// Queue is the part of the nfcd job queue used for submission
type Queue interface {
	Add(ctx context.Context, adapterID string, job nfc.NewJob) (nfc.AddResult, error)
	DeleteAll(ctx context.Context, adapterID string) error
}

// Outcome of a submission that did not fail in transport
type Outcome string

const (
	Submitted       Outcome = "submitted"
	BlockedByPolicy Outcome = "blocked_by_policy"
	RateLimited     Outcome = "rate_limited"
)

// Params describes one submission
type Params struct {
	AdapterID   string
	JobName     string
	ExpireAfter time.Duration
	Draft       capability.Draft
	Policy      *license.AccessPolicy
	// OnWarning receives each enforcement warning before the job is sent
	OnWarning func(warning string)
}

// Result of Submit. Policy rejections and rate limits are results, not errors.
type Result struct {
	Outcome     Outcome
	JobID       string
	Reason      string
	WaitSeconds int64
	Warnings    []string
	Job         capability.Job
}

// Err converts a blocked result into an error carrying the matching sentinel
func (r Result) Err() error {
	switch r.Outcome {
	case BlockedByPolicy:
		return errors.NewPolicyRejection(r.Reason)
	case RateLimited:
		return errors.NewRateLimited(r.WaitSeconds, r.Reason)
	default:
		return nil
	}
}

// Options configures an Orchestrator
type Options struct {
	Queue   Queue
	Limiter *ratelimit.Limiter
	// IgnoreHostLicense disables client-side enforcement and rate limiting.
	// nfcd still applies its own checks.
	IgnoreHostLicense bool
	Logger            *zap.SugaredLogger
}

// Orchestrator submits jobs for one session
type Orchestrator struct {
	queue   Queue
	limiter *ratelimit.Limiter
	bypass  atomic.Bool
	logger  *zap.SugaredLogger
}

// NewOrchestrator creates an orchestrator. A nil limiter gets a fresh one.
func NewOrchestrator(opts Options) *Orchestrator {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}
	o := &Orchestrator{
		queue:   opts.Queue,
		limiter: limiter,
		logger:  log.Named("submit"),
	}
	o.bypass.Store(opts.IgnoreHostLicense)
	return o
}

// SetIgnoreHostLicense toggles the enforcement bypass
func (o *Orchestrator) SetIgnoreHostLicense(ignore bool) {
	o.bypass.Store(ignore)
}

// IgnoresHostLicense reports whether enforcement is bypassed
func (o *Orchestrator) IgnoresHostLicense() bool {
	return o.bypass.Load()
}

// Submit runs the pipeline. Each stage short-circuits:
// enforcement, rate limit check, queue pre-clear (with job:delete), add, record.
// Only transport failures are returned as errors.
func (o *Orchestrator) Submit(ctx context.Context, p Params) (Result, error) {
	bypass := o.bypass.Load()
	log := logger.FromContext(ctx, o.logger).With(logger.FieldAdapterID, p.AdapterID, logger.FieldJobName, p.JobName)

	effective := p.Policy
	if bypass {
		effective = nil
		log.Debugw("Host license enforcement bypassed")
	}

	enforced := capability.Enforce(effective, p.Draft)
	if !enforced.Accepted {
		log.Infow("Job blocked by host license", logger.FieldReason, enforced.Reason)
		return Result{Outcome: BlockedByPolicy, Reason: enforced.Reason, Job: enforced.Job}, nil
	}
	for _, w := range enforced.Warnings {
		log.Warnw("Job adjusted by host license", logger.FieldWarning, w)
		if p.OnWarning != nil {
			p.OnWarning(w)
		}
	}

	if !bypass {
		decision := o.limiter.Check(p.Policy.Limits(), o.limiter.Now())
		if !decision.OK {
			wait := waitSeconds(decision.Wait)
			log.Infow("Job submission rate limited", logger.FieldReason, string(decision.Reason), logger.FieldWaitMS, decision.Wait.Milliseconds())
			return Result{
				Outcome:     RateLimited,
				Reason:      string(decision.Reason),
				WaitSeconds: wait,
				Warnings:    enforced.Warnings,
				Job:         enforced.Job,
			}, nil
		}
	}

	expire := p.ExpireAfter
	if expire <= 0 {
		expire = DefaultExpireAfter
	}
	job := nfc.NewJob{
		JobName:     p.JobName,
		Repeat:      enforced.Job.Repeat,
		ExpireAfter: int(expire / time.Second),
		Steps:       toJobSteps(enforced.Job.Steps),
	}

	if license.HasScope(p.Policy.Scopes(), license.ScopeJobDelete) {
		if err := o.queue.DeleteAll(ctx, p.AdapterID); err != nil {
			log.Warnw("Failed to clear job queue before submit", logger.FieldError, errors.Mark(err, errors.ErrBestEffort))
		}
	}

	created, err := o.queue.Add(ctx, p.AdapterID, job)
	if err != nil {
		err = errors.WrapTransport(err, "failed to submit job")
		return Result{}, errors.WithDetailf(err, "adapter=%s job_name=%s", p.AdapterID, p.JobName)
	}

	if !bypass {
		o.limiter.Record(o.limiter.Now())
	}

	log.Infow("Job submitted", logger.FieldJobID, created.JobID, "repeat", job.Repeat, "steps", len(job.Steps))
	return Result{
		Outcome:  Submitted,
		JobID:    created.JobID,
		Warnings: enforced.Warnings,
		Job:      enforced.Job,
	}, nil
}

func toJobSteps(steps []capability.Step) []nfc.JobStep {
	out := make([]nfc.JobStep, len(steps))
	for i, s := range steps {
		params := s.Params
		if params == nil {
			params = map[string]any{}
		}
		out[i] = nfc.JobStep{Command: s.Command, Params: params}
	}
	return out
}

func waitSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
