// Package httpclient builds the HTTP client used to talk to nfcd.
//
// Every request carries the session headers (app key, locale, user agent)
// and is restricted to http/https URLs without embedded credentials.
package httpclient

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/taglme/console/errors"
)

const defaultMaxRedirects = 10

// Header names sent to nfcd
const (
	HeaderAppKey         = "X-App-Key"
	HeaderAcceptLanguage = "Accept-Language"
	HeaderUserAgent      = "User-Agent"
)

// Options configures a Client
type Options struct {
	Timeout        time.Duration
	AppKey         string
	Locale         string
	UserAgent      string
	AllowedSchemes []string // Default: ["http", "https"]
	MaxRedirects   *int     // Default: 10
	Transport      http.RoundTripper
}

// Client wraps http.Client with header injection and URL validation
type Client struct {
	*http.Client
	allowedSchemes []string
	maxRedirects   int
	headers        *headerTransport
}

// New creates a Client from options
func New(opts Options) *Client {
	allowedSchemes := []string{"http", "https"}
	if opts.AllowedSchemes != nil {
		allowedSchemes = opts.AllowedSchemes
	}
	maxRedirects := defaultMaxRedirects
	if opts.MaxRedirects != nil {
		maxRedirects = *opts.MaxRedirects
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	ht := &headerTransport{
		base:      base,
		appKey:    opts.AppKey,
		locale:    opts.Locale,
		userAgent: opts.UserAgent,
	}

	c := &Client{
		Client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: ht,
		},
		allowedSchemes: allowedSchemes,
		maxRedirects:   maxRedirects,
		headers:        ht,
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	return c
}

// SetLocale changes the Accept-Language header for subsequent requests
func (c *Client) SetLocale(locale string) {
	c.headers.setLocale(locale)
}

// Headers returns the session headers as they would be sent now.
// The websocket dialer uses this to authenticate the event stream.
func (c *Client) Headers() http.Header {
	h := http.Header{}
	c.headers.apply(h)
	return h
}

// ValidateURL parses and validates a URL string before creating a request
func (c *Client) ValidateURL(urlStr string) (*url.URL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Do executes an HTTP request after validating its URL
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	return c.Client.Do(req)
}

func (c *Client) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range c.allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}

	// The app key travels in a header; credentials in the URL would bypass it
	if u.User != nil {
		return errors.New("URL must not contain credentials")
	}

	if u.Hostname() == "" {
		return errors.New("URL missing hostname")
	}
	return nil
}

type headerTransport struct {
	base      http.RoundTripper
	appKey    string
	userAgent string

	mu     sync.RWMutex
	locale string
}

func (t *headerTransport) setLocale(locale string) {
	t.mu.Lock()
	t.locale = locale
	t.mu.Unlock()
}

func (t *headerTransport) apply(h http.Header) {
	if t.appKey != "" {
		h.Set(HeaderAppKey, t.appKey)
	}
	if t.userAgent != "" {
		h.Set(HeaderUserAgent, t.userAgent)
	}
	t.mu.RLock()
	locale := t.locale
	t.mu.RUnlock()
	if locale != "" {
		h.Set(HeaderAcceptLanguage, locale)
	}
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	clone := req.Clone(req.Context())
	t.apply(clone.Header)
	return t.base.RoundTrip(clone)
}
