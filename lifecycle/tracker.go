package lifecycle

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taglme/console/license"
	"github.com/taglme/console/logger"
	"github.com/taglme/console/nfc"
)

const (
	// DefaultQuietTimeout is how long a terminal status lingers without further events
	DefaultQuietTimeout = 2 * time.Second

	// SubscriberChannelBufferSize is the buffer size for subscriber channels
	SubscriberChannelBufferSize = 32
)

// JobService is the part of the nfcd job queue the tracker needs
type JobService interface {
	Get(ctx context.Context, adapterID, jobID string) (*nfc.Job, error)
	Delete(ctx context.Context, adapterID, jobID string) error
}

// ScopesFunc returns the scopes granted to the session at call time
type ScopesFunc func() []string

// Options configures a Tracker
type Options struct {
	Jobs         JobService
	Scopes       ScopesFunc
	QuietTimeout time.Duration
	Logger       *zap.SugaredLogger
}

// Tracker is the job lifecycle state machine.
// State changes happen under one mutex and remote calls run outside it.
type Tracker struct {
	jobs   JobService
	scopes ScopesFunc
	quiet  time.Duration
	logger *zap.SugaredLogger

	// ctx bounds background counter refreshes; cancelled by Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	timer       *time.Timer
	generation  uint64
	refreshing  bool
	subscribers []chan State
}

// NewTracker creates a closed tracker
func NewTracker(opts Options) *Tracker {
	quiet := opts.QuietTimeout
	if quiet <= 0 {
		quiet = DefaultQuietTimeout
	}
	scopes := opts.Scopes
	if scopes == nil {
		scopes = func() []string { return nil }
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		jobs:   opts.Jobs,
		scopes: scopes,
		quiet:  quiet,
		logger: log.Named("lifecycle"),
		ctx:    ctx,
		cancel: cancel,
		state:  State{Status: StatusPending},
	}
}

// Open starts tracking a job, resetting status, error and counters.
// Counters are then fetched in the background.
func (t *Tracker) Open(adapterID, jobID, jobName string) {
	t.mu.Lock()
	t.cancelTimerLocked()
	t.state = State{
		Open:      true,
		AdapterID: adapterID,
		JobID:     jobID,
		JobName:   jobName,
		Status:    StatusPending,
	}
	t.notifyLocked()
	t.mu.Unlock()

	t.logger.Infow("Tracking job", logger.FieldAdapterID, adapterID, logger.FieldJobID, jobID, logger.FieldJobName, jobName)
	t.refreshAsync()
}

// Ingest applies a stream event. Events are ignored while closed and when
// they belong to another job.
func (t *Tracker) Ingest(ev nfc.Event) {
	t.mu.Lock()
	if !t.state.Open {
		t.mu.Unlock()
		return
	}
	jobID := ev.JobID()
	if jobID == "" || jobID != t.state.JobID {
		t.mu.Unlock()
		return
	}

	t.cancelTimerLocked()

	refresh := false
	switch ev.Name {
	case nfc.EventRunStarted:
		t.state.Status = StatusActivated
		refresh = true

	case nfc.EventRunSuccess:
		t.state.Status = StatusFinished
		refresh = true
		t.scheduleLocked(t.revertToPendingLocked)

	case nfc.EventRunError:
		t.state.ErrorMessage = failedMessages(ev)
		t.state.Status = StatusError
		refresh = true
		t.scheduleLocked(t.revertToPendingLocked)

	case nfc.EventJobSubmitted:
		refresh = true

	case nfc.EventJobFinished:
		t.closeLocked(CloseAuto)
		t.notifyLocked()
		t.mu.Unlock()
		return

	case nfc.EventJobDeleted:
		t.state.Status = StatusDeleted
		t.state.ErrorMessage = ErrorJobDeleted
		refresh = true
		t.scheduleLocked(func() { t.closeLocked(CloseAuto) })

	default:
		t.mu.Unlock()
		return
	}
	t.notifyLocked()
	t.mu.Unlock()

	t.logger.Debugw("Job event applied", logger.FieldEvent, string(ev.Name), logger.FieldJobID, jobID)
	if refresh {
		t.refreshAsync()
	}
}

// Close stops tracking. A user close of a pending or activated job deletes it
// remotely when the session holds job:delete; that delete is best effort.
func (t *Tracker) Close(ctx context.Context, reason CloseReason) {
	t.mu.Lock()
	wasOpen := t.state.Open
	before := t.state
	t.closeLocked(reason)
	if wasOpen {
		t.notifyLocked()
	}
	t.mu.Unlock()

	if reason != CloseUser || !wasOpen || !before.Active() || before.AdapterID == "" || before.JobID == "" {
		return
	}
	if !license.HasScope(t.scopes(), license.ScopeJobDelete) {
		t.logger.Debugw("Skipping remote delete without scope", logger.FieldJobID, before.JobID)
		return
	}
	if err := t.jobs.Delete(ctx, before.AdapterID, before.JobID); err != nil {
		t.logger.Warnw("Failed to delete job on close",
			logger.FieldAdapterID, before.AdapterID,
			logger.FieldJobID, before.JobID,
			logger.FieldError, err)
		return
	}
	t.logger.Infow("Deleted job on close", logger.FieldAdapterID, before.AdapterID, logger.FieldJobID, before.JobID)
}

// RefreshCounters fetches authoritative counters for the tracked job.
// It is a no-op while closed or while another refresh is in flight.
// Failures keep the previous counters.
func (t *Tracker) RefreshCounters(ctx context.Context) {
	t.mu.Lock()
	if !t.state.Open || t.state.AdapterID == "" || t.state.JobID == "" || t.refreshing {
		t.mu.Unlock()
		return
	}
	t.refreshing = true
	adapterID, jobID := t.state.AdapterID, t.state.JobID
	t.mu.Unlock()

	job, err := t.jobs.Get(ctx, adapterID, jobID)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshing = false
	if err != nil {
		t.logger.Debugw("Counter refresh failed", logger.FieldJobID, jobID, logger.FieldError, err)
		return
	}
	// The tracker may have moved on while the request was in flight
	if !t.state.Open || t.state.JobID != jobID || t.state.AdapterID != adapterID {
		return
	}
	t.state.Counters = job.Counters
	t.notifyLocked()
}

// State returns a snapshot
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe returns a channel that receives a snapshot after every change.
// A slow subscriber loses its oldest buffered snapshots, never the latest one.
func (t *Tracker) Subscribe() chan State {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan State, SubscriberChannelBufferSize)
	t.subscribers = append(t.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel without closing it
func (t *Tracker) Unsubscribe(ch chan State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, sub := range t.subscribers {
		if sub == ch {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			return
		}
	}
}

// Shutdown closes tracking, cancels background refreshes and waits for them
func (t *Tracker) Shutdown() {
	t.Close(context.Background(), CloseAuto)
	t.cancel()
	t.wg.Wait()
}

func (t *Tracker) refreshAsync() {
	if t.ctx.Err() != nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.RefreshCounters(t.ctx)
	}()
}

// closeLocked must be called with lock held
func (t *Tracker) closeLocked(reason CloseReason) {
	t.cancelTimerLocked()
	if t.state.Open {
		t.logger.Debugw("Tracking stopped", logger.FieldJobID, t.state.JobID, logger.FieldReason, string(reason))
	}
	t.state.Open = false
}

// revertToPendingLocked must be called with lock held
func (t *Tracker) revertToPendingLocked() {
	if !t.state.Open {
		return
	}
	t.state.Status = StatusPending
	t.state.ErrorMessage = ""
}

// scheduleLocked replaces any pending timer with one running action after the
// quiet timeout. A timer that fires after being superseded does nothing.
// Must be called with lock held
func (t *Tracker) scheduleLocked(action func()) {
	t.cancelTimerLocked()
	gen := t.generation
	t.timer = time.AfterFunc(t.quiet, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.generation != gen {
			return
		}
		t.timer = nil
		action()
		t.notifyLocked()
	})
}

// cancelTimerLocked must be called with lock held
func (t *Tracker) cancelTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
}

// notifyLocked must be called with lock held
func (t *Tracker) notifyLocked() {
	snapshot := t.state
	for _, ch := range t.subscribers {
		select {
		case ch <- snapshot:
			continue
		default:
		}
		// Buffer full: drop the oldest snapshot so the latest always lands.
		// Only this method sends, under t.mu, so the retry cannot fail.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// failedMessages joins the messages of failed steps; an unreadable payload yields ""
func failedMessages(ev nfc.Event) string {
	run, err := nfc.ParseJobRun(ev.Data)
	if err != nil {
		return ""
	}
	return strings.Join(run.FailedMessages(), ", ")
}
