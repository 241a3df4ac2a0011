// Package ratelimit throttles job submissions on the client side.
//
// The limiter combines a minimum interval between submissions with a
// sliding window cap. Limits come from the host license on every call, so a
// single limiter per session follows license changes without being rebuilt.
package ratelimit

import (
	"sync"
	"time"

	"github.com/taglme/console/license"
)

// Reason identifies which limit blocked a submission
type Reason string

const (
	ReasonMinInterval Reason = "min_interval"
	ReasonWindow      Reason = "window"
)

// Decision is the result of Check. Wait and Reason are set only when blocked.
type Decision struct {
	OK     bool
	Wait   time.Duration
	Reason Reason
}

// Limiter tracks recent submissions using a sliding window
type Limiter struct {
	mu              sync.Mutex
	submissions     []time.Time // ascending
	lastSubmittedAt time.Time   // zero until the first Record
	timeNow         func() time.Time
}

// NewLimiter creates a limiter with real time
func NewLimiter() *Limiter {
	return NewLimiterWithClock(time.Now)
}

// NewLimiterWithClock creates a limiter with an injectable clock (for testing)
func NewLimiterWithClock(timeNow func() time.Time) *Limiter {
	return &Limiter{timeNow: timeNow}
}

// Check reports whether a submission is allowed at now under cfg.
// A nil cfg allows everything. Check prunes the window but records nothing.
func (r *Limiter) Check(cfg *license.RateLimit, now time.Time) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg == nil {
		return Decision{OK: true}
	}

	if minInterval := millis(cfg.MinIntervalMs); minInterval > 0 && !r.lastSubmittedAt.IsZero() {
		if elapsed := now.Sub(r.lastSubmittedAt); elapsed < minInterval {
			return Decision{Wait: minInterval - elapsed, Reason: ReasonMinInterval}
		}
	}

	window := millis(cfg.WindowMs)
	maxInWindow := positive(cfg.MaxInWindow)
	if window <= 0 || maxInWindow <= 0 {
		return Decision{OK: true}
	}

	r.removeExpired(now, window)
	if int64(len(r.submissions)) >= maxInWindow {
		wait := r.submissions[0].Add(window).Sub(now)
		if wait < 0 {
			wait = 0
		}
		return Decision{Wait: wait, Reason: ReasonWindow}
	}
	return Decision{OK: true}
}

// Record notes a confirmed submission at now
func (r *Limiter) Record(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSubmittedAt = now
	r.submissions = append(r.submissions, now)
}

// CheckNow is Check at the limiter's clock
func (r *Limiter) CheckNow(cfg *license.RateLimit) Decision {
	return r.Check(cfg, r.timeNow())
}

// RecordNow is Record at the limiter's clock
func (r *Limiter) RecordNow() {
	r.Record(r.timeNow())
}

// Now returns the limiter's clock reading
func (r *Limiter) Now() time.Time {
	return r.timeNow()
}

// Reset clears all recorded submissions
func (r *Limiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.submissions = r.submissions[:0]
	r.lastSubmittedAt = time.Time{}
}

// Stats reports submissions inside cfg's window and the remaining capacity.
// Remaining is -1 when no window limit applies.
func (r *Limiter) Stats(cfg *license.RateLimit, now time.Time) (inWindow int, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg == nil {
		return len(r.submissions), -1
	}
	window := millis(cfg.WindowMs)
	maxInWindow := positive(cfg.MaxInWindow)
	if window <= 0 || maxInWindow <= 0 {
		return len(r.submissions), -1
	}

	r.removeExpired(now, window)
	inWindow = len(r.submissions)
	remaining = int(maxInWindow) - inWindow
	if remaining < 0 {
		remaining = 0
	}
	return inWindow, remaining
}

// removeExpired drops submissions at or before now-window.
// Must be called with lock held
func (r *Limiter) removeExpired(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)

	expired := 0
	for _, t := range r.submissions {
		if !t.After(cutoff) {
			expired++
		} else {
			break
		}
	}
	r.submissions = r.submissions[expired:]
}

func millis(v *int64) time.Duration {
	return time.Duration(positive(v)) * time.Millisecond
}

func positive(v *int64) int64 {
	if v == nil || *v <= 0 {
		return 0
	}
	return *v
}
