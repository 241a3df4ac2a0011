// Package nfc is a client for the nfcd job queue service.
//
// The HTTP API covers jobs, adapters, application info and the host
// license; Stream delivers the live event feed over a websocket.
package nfc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taglme/console/errors"
	"github.com/taglme/console/internal/httpclient"
	"github.com/taglme/console/logger"
)

// DefaultTimeout bounds a single HTTP request when Options.Timeout is zero
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response body is kept
const maxErrorBody = 4096

// Options configures a Client
type Options struct {
	BaseURL   string
	Locale    string
	AppKey    string
	UserAgent string
	Timeout   time.Duration
	Logger    *zap.SugaredLogger
	Transport http.RoundTripper
}

// Client talks to one nfcd instance
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *zap.SugaredLogger

	Jobs     *JobsService
	Adapters *AdaptersService
	About    *AboutService
	Licenses *LicensesService
}

// NewClient creates a client for the nfcd instance at opts.BaseURL
func NewClient(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}

	hc := httpclient.New(httpclient.Options{
		Timeout:   timeout,
		AppKey:    opts.AppKey,
		Locale:    opts.Locale,
		UserAgent: opts.UserAgent,
		Transport: opts.Transport,
	})

	base := strings.TrimRight(opts.BaseURL, "/")
	if _, err := hc.ValidateURL(base); err != nil {
		return nil, errors.Wrapf(err, "invalid nfcd base URL %q", opts.BaseURL)
	}

	c := &Client{
		baseURL: base,
		http:    hc,
		logger:  log.Named("nfc"),
	}
	c.Jobs = &JobsService{c: c}
	c.Adapters = &AdaptersService{c: c}
	c.About = &AboutService{c: c}
	c.Licenses = &LicensesService{c: c}
	return c, nil
}

// BaseURL returns the normalized base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetLocale changes the Accept-Language header for subsequent requests
func (c *Client) SetLocale(locale string) {
	c.http.SetLocale(locale)
}

// NewStream creates an event stream bound to this client's endpoint and headers
func (c *Client) NewStream(locale string) *Stream {
	return c.NewStreamWithDial(locale, nil)
}

// NewStreamWithDial is NewStream with a custom dialer; nil dials with gorilla/websocket
func (c *Client) NewStreamWithDial(locale string, dial DialFunc) *Stream {
	return NewStream(StreamOptions{
		BaseURL: c.baseURL,
		Locale:  locale,
		Headers: c.http.Headers,
		Dial:    dial,
		Logger:  c.logger,
	})
}

// APIError wraps non-2xx responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("nfcd api error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("nfcd api error: status=%d body=%s", e.StatusCode, body)
}

// statusSentinel classifies an HTTP status into the generic error taxonomy
func statusSentinel(status int) error {
	switch {
	case status == http.StatusNotFound:
		return errors.ErrNotFound
	case status == http.StatusUnauthorized:
		return errors.ErrUnauthorized
	case status == http.StatusForbidden:
		return errors.ErrForbidden
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errors.ErrTimeout
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		return errors.ErrServiceUnavailable
	case status >= 400 && status < 500:
		return errors.ErrInvalidRequest
	default:
		return nil
	}
}

// do performs a JSON request and decodes the response into out.
// It returns the raw body so callers can normalize field spelling variants.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) ([]byte, error) {
	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()

	c.logger.Debugw("nfcd request",
		logger.FieldMethod, method,
		logger.FieldPath, endpoint,
		logger.FieldStatusCode, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := error(&APIError{StatusCode: resp.StatusCode, Body: string(b)})
		if sentinel := statusSentinel(resp.StatusCode); sentinel != nil {
			apiErr = errors.Mark(apiErr, sentinel)
		}
		return nil, apiErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return data, errors.Wrapf(err, "failed to decode %s %s response", method, endpoint)
		}
	}
	return data, nil
}
