// Package session owns the session-wide console state: one rate limiter,
// one lifecycle tracker and the stores, plus the nfcd client and event
// stream keyed by connection identity.
//
// Reconfigure compares the identity derived from the new configuration with
// the current one. On a mismatch the old bridge and stream are torn down
// (dropping their handlers) and exactly one new registration is made.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taglme/console/about"
	"github.com/taglme/console/am"
	"github.com/taglme/console/bridge"
	"github.com/taglme/console/capability"
	"github.com/taglme/console/devices"
	"github.com/taglme/console/errors"
	"github.com/taglme/console/license"
	"github.com/taglme/console/lifecycle"
	"github.com/taglme/console/logger"
	"github.com/taglme/console/nfc"
	"github.com/taglme/console/ratelimit"
	"github.com/taglme/console/runs"
	"github.com/taglme/console/submit"
)

// Options configures a Session
type Options struct {
	Logger *zap.SugaredLogger
	// Dial overrides the websocket dialer (tests)
	Dial nfc.DialFunc
	// PersistAdapter saves the selected adapter; nil skips persistence
	PersistAdapter devices.PersistFunc
}

// Session is the per-process console context
type Session struct {
	logger *zap.SugaredLogger
	dial   nfc.DialFunc

	limiter      *ratelimit.Limiter
	tracker      *lifecycle.Tracker
	history      *runs.History
	devices      *devices.Store
	about        *about.Store
	license      *license.Store
	orchestrator *submit.Orchestrator

	mu       sync.RWMutex
	cfg      *am.Config
	identity Identity
	client   *nfc.Client
	stream   *nfc.Stream
	bridge   *bridge.Bridge
	ctx      context.Context // set by Connect; nil while offline
	handlers []nfc.EventHandler
}

// New builds a session from configuration
func New(cfg *am.Config, opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}
	s := &Session{
		logger:  log.Named("session"),
		dial:    opts.Dial,
		limiter: ratelimit.NewLimiter(),
		history: runs.NewHistory(),
	}

	s.tracker = lifecycle.NewTracker(lifecycle.Options{
		Jobs:         jobsProxy{s},
		Scopes:       func() []string { return s.license.Scopes() },
		QuietTimeout: cfg.QuietTimeout(),
		Logger:       log,
	})
	s.devices = devices.NewStore(adaptersProxy{s}, cfg.Job.AdapterID, opts.PersistAdapter, log)
	s.about = about.NewStore(aboutProxy{s}, log)
	s.license = license.NewStore(licenseProxy{s}, log)
	s.orchestrator = submit.NewOrchestrator(submit.Options{
		Queue:             jobsProxy{s},
		Limiter:           s.limiter,
		IgnoreHostLicense: cfg.Policy.IgnoreHostLicense,
		Logger:            log,
	})

	if _, err := s.Reconfigure(cfg); err != nil {
		s.tracker.Shutdown()
		return nil, err
	}
	return s, nil
}

// Reconfigure applies new configuration. It reports whether the connection
// identity changed and the client was rebuilt.
func (s *Session) Reconfigure(cfg *am.Config) (bool, error) {
	id := IdentityFromConfig(cfg)
	s.orchestrator.SetIgnoreHostLicense(cfg.Policy.IgnoreHostLicense)

	s.mu.Lock()
	s.cfg = cfg
	if s.client != nil && s.identity == id {
		s.mu.Unlock()
		return false, nil
	}

	client, err := nfc.NewClient(nfc.Options{
		BaseURL:   id.BaseURL,
		Locale:    id.Locale,
		AppKey:    id.AppKey,
		UserAgent: cfg.Service.UserAgent,
		Timeout:   cfg.RequestTimeout(),
		Logger:    s.logger,
	})
	if err != nil {
		s.mu.Unlock()
		return false, err
	}

	oldBridge, oldStream := s.bridge, s.stream
	previous := s.identity
	s.identity = id
	s.client = client
	s.stream = client.NewStreamWithDial(id.Locale, s.dial)
	for _, h := range s.handlers {
		s.stream.OnEvent(h)
	}
	s.bridge = bridge.New(bridge.Options{
		Stream:       s.stream,
		Tracker:      s.tracker,
		Runs:         s.history,
		Devices:      s.devices,
		About:        s.about,
		License:      s.license,
		PollInterval: cfg.PollInterval(),
		Logger:       s.logger,
	})
	ctx := s.ctx
	newBridge, newStream := s.bridge, s.stream
	s.mu.Unlock()

	if oldBridge != nil {
		oldBridge.Stop()
	}
	if oldStream != nil {
		oldStream.Close()
		s.tracker.Close(context.Background(), lifecycle.CloseAuto)
		s.devices.Clear()
		s.logger.Infow("Connection settings changed", "from", previous.String(), "to", id.String())
	}

	if ctx != nil {
		newBridge.Start(ctx)
		if err := newStream.Connect(ctx); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Connect starts the bridge and opens the event stream.
// ctx bounds the session's background work until Close.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	b, stream := s.bridge, s.stream
	s.mu.Unlock()

	b.Start(ctx)
	return stream.Connect(ctx)
}

// OnEvent registers an extra event handler. It stays registered across
// streams rebuilt by Reconfigure.
func (s *Session) OnEvent(h nfc.EventHandler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	stream := s.stream
	s.mu.Unlock()
	stream.OnEvent(h)
}

// Refresh loads devices, nfcd info and the host license without the stream.
// Each store records its own error; the first failure is returned.
func (s *Session) Refresh(ctx context.Context) error {
	var first error
	for _, r := range []bridge.Refresher{s.devices, s.about, s.license} {
		if err := r.Refresh(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Submit sends a draft to adapterID under the current host license and starts
// tracking the job when nfcd accepts it.
func (s *Session) Submit(ctx context.Context, adapterID, jobName string, draft capability.Draft, onWarning func(string)) (submit.Result, error) {
	if adapterID == "" {
		adapterID = s.devices.Selected()
	}
	if adapterID == "" {
		return submit.Result{}, errors.WithHint(
			errors.Mark(errors.New("no adapter selected"), errors.ErrInvalidRequest),
			"pass --adapter or run: tagconsole am set adapter_id <id>")
	}

	res, err := s.orchestrator.Submit(ctx, submit.Params{
		AdapterID:   adapterID,
		JobName:     jobName,
		ExpireAfter: s.expireAfter(),
		Draft:       draft,
		Policy:      s.license.Policy(),
		OnWarning:   onWarning,
	})
	if err != nil || res.Outcome != submit.Submitted {
		return res, err
	}
	s.tracker.Open(adapterID, res.JobID, jobName)
	return res, nil
}

// Close stops the bridge, the stream and the tracker
func (s *Session) Close() {
	s.mu.Lock()
	b, stream := s.bridge, s.stream
	s.ctx = nil
	s.mu.Unlock()

	if b != nil {
		b.Stop()
	}
	if stream != nil {
		stream.Close()
	}
	s.tracker.Shutdown()
}

// Identity returns the current connection identity
func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Config returns the configuration last applied
func (s *Session) Config() *am.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Client returns the current nfcd client
func (s *Session) Client() *nfc.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Stream returns the current event stream
func (s *Session) Stream() *nfc.Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream
}

// Bridge returns the current event bridge
func (s *Session) Bridge() *bridge.Bridge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bridge
}

func (s *Session) Limiter() *ratelimit.Limiter { return s.limiter }
func (s *Session) Tracker() *lifecycle.Tracker { return s.tracker }
func (s *Session) History() *runs.History { return s.history }
func (s *Session) Devices() *devices.Store { return s.devices }
func (s *Session) About() *about.Store { return s.about }
func (s *Session) License() *license.Store { return s.license }
func (s *Session) Orchestrator() *submit.Orchestrator { return s.orchestrator }

func (s *Session) expireAfter() time.Duration {
	return time.Duration(s.Config().ExpireAfter()) * time.Second
}
