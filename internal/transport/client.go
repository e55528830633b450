// Package transport is the resilient HTTP client for the remote library
// service. It paces calls to a minimum interval, retries rate-limit and
// server-side failures with bounded backoff, and turns every other outcome
// into a typed error.
package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/logging"
)

// Config configures a Client. Zero values fall back to the package defaults.
type Config struct {
	BaseURL     string
	TokenID     string
	TokenSecret string

	MinInterval  time.Duration // negative disables pacing
	MaxAttempts  int
	Timeout      time.Duration
	SnippetLimit int
}

func (cfg Config) withDefaults() Config {
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	} else if cfg.MinInterval == 0 {
		cfg.MinInterval = constants.DefaultMinInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = constants.MaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPTimeout
	}
	if cfg.SnippetLimit <= 0 {
		cfg.SnippetLimit = constants.SnippetLimit
	}
	return cfg
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep implements Sleeper.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client issues paced, retried calls against one base URL.
// Calls are serialized; a Client may be shared but never runs requests in parallel.
type Client struct {
	http    *http.Client
	auth    Authenticator
	baseURL string
	cfg     Config
	sleeper Sleeper
	now     func() time.Time

	mu       sync.Mutex
	lastCall time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithSleeper replaces the pacing and backoff sleeper.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleeper = s
	}
}

// WithClock replaces the clock used for pacing.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithAuthenticator overrides the authenticator derived from the token pair.
func WithAuthenticator(a Authenticator) Option {
	return func(c *Client) {
		c.auth = a
	}
}

// New creates a client. BaseURL is required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.NewConfigError("transport", "base URL is required", nil)
	}
	cfg = cfg.withDefaults()
	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		auth:    authenticatorFor(cfg),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		sleeper: timerSleeper{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call performs method on path with an optional JSON body. It returns a
// Response for any 2xx status. Rate-limit (429) and 5xx responses are
// retried up to MaxAttempts; exhausting them returns a RequestFailedError
// that matches errors.ErrTransient. Any other status fails immediately.
func (c *Client) Call(ctx context.Context, method, path string, body any) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)

	var last *errors.RequestFailedError
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.pace(ctx); err != nil {
			return nil, err
		}

		status, respBody, header, err := c.do(ctx, method, path, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(errors.ErrCanceled, ctx.Err())
			}
			rf := errors.NewRequestFailedError(method, path, 0, "")
			rf.Err = err
			rf.Attempts = attempt
			return nil, rf
		}

		logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Int("attempt", attempt).
			Msg("remote call")

		if status >= 200 && status < 300 {
			return &Response{StatusCode: status, Body: respBody}, nil
		}

		last = errors.NewRequestFailedError(method, path, status, Snippet(respBody, c.cfg.SnippetLimit))
		last.Attempts = attempt
		if !last.Retryable() || attempt == c.cfg.MaxAttempts {
			break
		}

		delay := Backoff(status, attempt, header.Get("Retry-After"))
		logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retrying remote call")
		if err := c.sleeper.Sleep(ctx, delay); err != nil {
			return nil, errors.Join(errors.ErrCanceled, err)
		}
	}
	return nil, last
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Call(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Call(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Call(ctx, http.MethodPut, path, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Call(ctx, http.MethodDelete, path, nil)
}

// pace sleeps until MinInterval has elapsed since the previous attempt.
func (c *Client) pace(ctx context.Context) error {
	if !c.lastCall.IsZero() {
		if wait := c.cfg.MinInterval - c.now().Sub(c.lastCall); wait > 0 {
			if err := c.sleeper.Sleep(ctx, wait); err != nil {
				return errors.Join(errors.ErrCanceled, err)
			}
		}
	}
	c.lastCall = c.now()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, http.Header, error) {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return 0, nil, nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.FromContext(ctx).Warn().Err(cerr).Msg("failed to close response body")
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, errors.WrapIO("read", "response body", err)
	}
	return resp.StatusCode, body, resp.Header, nil
}
