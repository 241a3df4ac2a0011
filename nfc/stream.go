package nfc

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taglme/console/errors"
	"github.com/taglme/console/logger"
)

const defaultHandshakeTimeout = 10 * time.Second

// Conn abstracts the websocket connection for testability.
// The real implementation wraps gorilla/websocket; tests use a channel-backed fake.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// DialFunc opens a websocket connection
type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

// EventHandler receives stream events in delivery order
type EventHandler func(Event)

// ErrorHandler receives stream read and dial failures
type ErrorHandler func(error)

// StreamOptions configures a Stream
type StreamOptions struct {
	BaseURL string
	Locale  string
	Headers func() http.Header
	Dial    DialFunc
	Logger  *zap.SugaredLogger
}

// Stream is the live nfcd event feed.
// A single reader goroutine invokes handlers synchronously, so events are
// observed in the order nfcd sent them.
type Stream struct {
	baseURL string
	headers func() http.Header
	dial    DialFunc
	logger  *zap.SugaredLogger

	mu            sync.Mutex
	locale        string
	conn          Conn
	connID        string
	connected     bool
	closing       bool
	readerDone    chan struct{}
	eventHandlers []EventHandler
	errorHandlers []ErrorHandler
}

// NewStream creates a disconnected stream
func NewStream(opts StreamOptions) *Stream {
	dial := opts.Dial
	if dial == nil {
		dial = DialWebsocket
	}
	headers := opts.Headers
	if headers == nil {
		headers = func() http.Header { return http.Header{} }
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}
	return &Stream{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		locale:  opts.Locale,
		headers: headers,
		dial:    dial,
		logger:  log.Named("stream"),
	}
}

// DialWebsocket dials with gorilla/websocket
func DialWebsocket(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return &gorillaConn{conn: conn}, nil
}

// gorillaConn wraps gorilla/websocket.Conn to implement Conn
type gorillaConn struct {
	conn *websocket.Conn
}

func (c *gorillaConn) ReadJSON(v interface{}) error  { return c.conn.ReadJSON(v) }
func (c *gorillaConn) WriteJSON(v interface{}) error { return c.conn.WriteJSON(v) }
func (c *gorillaConn) Close() error                  { return c.conn.Close() }

// OnEvent registers an event handler
func (s *Stream) OnEvent(h EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandlers = append(s.eventHandlers, h)
}

// OnError registers an error handler
func (s *Stream) OnError(h ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandlers = append(s.errorHandlers, h)
}

// SetLocale sets the locale used by the next Connect
func (s *Stream) SetLocale(locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = locale
}

// IsConnected reports whether the reader is live
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// URL returns the websocket URL for the current locale
func (s *Stream) URL() string {
	s.mu.Lock()
	locale := s.locale
	s.mu.Unlock()
	return eventsURL(s.baseURL, locale)
}

// Connect dials the event stream and starts the reader. It is a no-op when already connected.
// Dial failures are returned and also reported to error handlers.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	wsURL := eventsURL(s.baseURL, s.locale)
	s.mu.Unlock()

	conn, err := s.dial(ctx, wsURL, s.headers())
	if err != nil {
		err = errors.WrapTransport(err, "failed to connect event stream")
		s.emitError(err)
		return err
	}

	s.mu.Lock()
	if s.connected {
		// Lost a race with a concurrent Connect
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.connID = uuid.NewString()
	s.connected = true
	s.closing = false
	s.readerDone = make(chan struct{})
	done := s.readerDone
	connID := s.connID
	s.mu.Unlock()

	s.logger.Infow("Event stream connected", logger.FieldStreamID, connID, logger.FieldLocale, s.localeSnapshot())
	go s.readLoop(conn, connID, done)
	return nil
}

// Disconnect closes the connection and waits for the reader to exit.
// No handler runs after Disconnect returns. Must not be called from a handler.
func (s *Stream) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	done := s.readerDone
	if conn == nil {
		s.mu.Unlock()
		return
	}
	s.closing = true
	s.mu.Unlock()

	_ = conn.Close()
	if done != nil {
		<-done
	}

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.connected = false
	}
	s.mu.Unlock()
}

// Close disconnects and drops every registered handler
func (s *Stream) Close() {
	s.Disconnect()
	s.mu.Lock()
	s.eventHandlers = nil
	s.errorHandlers = nil
	s.mu.Unlock()
}

func (s *Stream) readLoop(conn Conn, connID string, done chan struct{}) {
	defer close(done)

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			s.mu.Lock()
			closing := s.closing
			if s.conn == conn {
				s.connected = false
			}
			s.mu.Unlock()

			if !closing {
				s.logger.Debugw("Event stream read failed", logger.FieldStreamID, connID, logger.FieldError, err)
				s.emitError(errors.WrapTransport(err, "event stream closed"))
			}
			return
		}
		if ev.Name == "" {
			continue
		}
		s.emitEvent(ev)
	}
}

func (s *Stream) emitEvent(ev Event) {
	s.mu.Lock()
	handlers := make([]EventHandler, len(s.eventHandlers))
	copy(handlers, s.eventHandlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (s *Stream) emitError(err error) {
	s.mu.Lock()
	handlers := make([]ErrorHandler, len(s.errorHandlers))
	copy(handlers, s.errorHandlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h(err)
	}
}

func (s *Stream) localeSnapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale
}

// eventsURL converts the HTTP base URL to the websocket events endpoint
func eventsURL(baseURL, locale string) string {
	ws := httpToWS(baseURL) + "/events"
	if locale != "" {
		ws += "?locale=" + url.QueryEscape(locale)
	}
	return ws
}

func httpToWS(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}
