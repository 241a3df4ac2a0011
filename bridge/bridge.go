// Package bridge connects the nfcd event stream to the session stores.
//
// Every event goes to the lifecycle tracker; run completions also go to the
// run history. A connectivity poll watches the stream: when it drops the
// device list is cleared and tracking is closed, and when it comes back the
// device list, nfcd info and host license are refreshed concurrently.
package bridge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/taglme/console/lifecycle"
	"github.com/taglme/console/logger"
	"github.com/taglme/console/nfc"
)

// DefaultPollInterval is how often connectivity is sampled
const DefaultPollInterval = time.Second

// Stream is the live event feed
type Stream interface {
	OnEvent(h nfc.EventHandler)
	OnError(h nfc.ErrorHandler)
	IsConnected() bool
}

// Tracker receives every event and is closed on disconnect
type Tracker interface {
	Ingest(ev nfc.Event)
	Close(ctx context.Context, reason lifecycle.CloseReason)
}

// RunSink receives run completion events
type RunSink interface {
	Ingest(ev nfc.Event)
}

// Refresher reloads a store from nfcd and records its own error
type Refresher interface {
	Refresh(ctx context.Context) error
}

// DeviceStore is refreshed on connect and cleared on disconnect
type DeviceStore interface {
	Refresher
	Clear()
}

// Options configures a Bridge
type Options struct {
	Stream       Stream
	Tracker      Tracker
	Runs         RunSink
	Devices      DeviceStore
	About        Refresher
	License      Refresher
	PollInterval time.Duration
	Logger       *zap.SugaredLogger
}

// Bridge fans stream events out to the session stores
type Bridge struct {
	stream   Stream
	tracker  Tracker
	runs     RunSink
	devices  DeviceStore
	about    Refresher
	license  Refresher
	interval time.Duration
	logger   *zap.SugaredLogger

	// errLimiter keeps a flapping stream from flooding the log
	errLimiter *rate.Limiter

	registerOnce sync.Once

	mu        sync.Mutex
	running   bool
	connected bool
	lastError string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a stopped bridge
func New(opts Options) *Bridge {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}
	return &Bridge{
		stream:     opts.Stream,
		tracker:    opts.Tracker,
		runs:       opts.Runs,
		devices:    opts.Devices,
		about:      opts.About,
		license:    opts.License,
		interval:   interval,
		logger:     log.Named("bridge"),
		errLimiter: rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
}

// Start registers stream handlers (once per bridge) and starts the connectivity poll.
// Calling Start while running is a no-op.
func (b *Bridge) Start(ctx context.Context) {
	b.registerOnce.Do(func() {
		b.stream.OnEvent(b.handleEvent)
		b.stream.OnError(b.handleError)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.running = true

	b.wg.Add(1)
	go b.run(pollCtx)
	b.logger.Debugw("Event bridge started", "interval", b.interval)
}

// Stop cancels the connectivity poll and any reconnect refresh and waits for them to exit
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.cancel()
	b.running = false
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Debugw("Event bridge stopped")
}

// Connected reports the last observed stream connectivity
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// LastError returns the most recent stream error text
func (b *Bridge) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastError
}

func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.poll(ctx)
		}
	}
}

// poll samples connectivity and acts on transitions
func (b *Bridge) poll(ctx context.Context) {
	now := b.stream.IsConnected()

	b.mu.Lock()
	changed := now != b.connected
	b.connected = now
	if now && changed {
		b.lastError = ""
	}
	b.mu.Unlock()

	if !changed {
		return
	}
	if now {
		b.logger.Infow("Event stream is up, refreshing session data")
		// Refresh off the poll loop so a drop during a slow refresh is still seen
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.refreshAll(ctx)
		}()
		return
	}
	b.logger.Infow("Event stream is down, clearing devices")
	if b.devices != nil {
		b.devices.Clear()
	}
	if b.tracker != nil {
		b.tracker.Close(ctx, lifecycle.CloseAuto)
	}
}

// refreshAll reloads every store concurrently. Stores record their own
// errors, so one failure does not cancel the others.
func (b *Bridge) refreshAll(ctx context.Context) {
	var g errgroup.Group
	for name, r := range map[string]Refresher{"devices": b.devices, "about": b.about, "license": b.license} {
		if r == nil {
			continue
		}
		g.Go(func() error {
			if err := r.Refresh(ctx); err != nil {
				b.logger.Debugw("Refresh after reconnect failed", logger.FieldComponent, name, logger.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (b *Bridge) handleEvent(ev nfc.Event) {
	if b.tracker != nil {
		b.tracker.Ingest(ev)
	}
	if b.runs != nil && ev.IsRunCompletion() {
		b.runs.Ingest(ev)
	}
}

func (b *Bridge) handleError(err error) {
	b.mu.Lock()
	b.lastError = err.Error()
	b.mu.Unlock()

	if b.errLimiter.Allow() {
		b.logger.Warnw("Event stream error", logger.FieldError, err)
	}
}
