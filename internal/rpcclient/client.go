// Package rpcclient drives the application's RPC surface over HTTP as
// authenticated roles. Queries travel as GET with the input JSON in the
// query string, mutations as POST with a JSON body. Sessions come from the
// session manager; a 401 retires the cached session and the call is retried
// exactly once with a fresh login. A 429 is surfaced as a typed error with
// the server's advisory delay, never retried here.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"groundtruth/internal/journal"
	"groundtruth/internal/platform/config"
	"groundtruth/internal/platform/metrics"
	"groundtruth/internal/rpcwire"
	"groundtruth/internal/session"
	"groundtruth/pkg/platform/httputil"
)

// Sessions hands out ready-to-use session records and retires the ones the
// server no longer honors. session.Manager satisfies it.
type Sessions interface {
	Session(ctx context.Context, role string) (session.Record, error)
	Invalidate(ctx context.Context, role string) error
}

// Client executes RPC procedures against the application. It satisfies
// fixture.Caller, so builders and teardown run through it.
type Client struct {
	baseURL  string
	sessions Sessions
	http     *http.Client
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	events   *journal.Publisher
	tracer   trace.Tracer
}

type Option func(*Client)

// WithHTTPClient replaces the default transport, for tests and proxies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds a single call. Values outside the harness step window
// are clamped to it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d < config.MinStepTimeout {
			d = config.MinStepTimeout
		}
		if d > config.MaxStepTimeout {
			d = config.MaxStepTimeout
		}
		c.timeout = d
	}
}

// WithMetrics attaches harness metrics.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = mx
	}
}

// WithJournal attaches the run journal.
func WithJournal(pub *journal.Publisher) Option {
	return func(c *Client) {
		c.events = pub
	}
}

func New(baseURL string, sessions Sessions, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: sessions,
		http:     &http.Client{Timeout: config.MaxStepTimeout},
		timeout:  10 * time.Second,
		logger:   logger,
		events:   journal.Nop(),
		tracer:   otel.Tracer("groundtruth/rpcclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query executes a read procedure. Input rides in the query string.
func (c *Client) Query(ctx context.Context, role, procedure string, input, out any) error {
	return c.call(ctx, http.MethodGet, role, procedure, input, out)
}

// Mutate executes a write procedure. Input rides in the request body.
func (c *Client) Mutate(ctx context.Context, role, procedure string, input, out any) error {
	return c.call(ctx, http.MethodPost, role, procedure, input, out)
}

func (c *Client) call(ctx context.Context, method, role, procedure string, input, out any) error {
	router, name, ok := strings.Cut(procedure, ".")
	if !ok || router == "" || name == "" {
		return fmt.Errorf("procedure %q must be router.name", procedure)
	}

	ctx, span := c.tracer.Start(ctx, "rpc."+procedure,
		trace.WithAttributes(
			attribute.String("role", role),
			attribute.String("rpc.method", method),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rec, err := c.sessions.Session(ctx, role)
	if err != nil {
		return fmt.Errorf("session for %s: %w", role, err)
	}

	start := time.Now()
	resp, err := c.do(ctx, method, router, name, input, rec)
	if err != nil {
		span.RecordError(err)
		c.observe(procedure, "transport_error", start)
		return err
	}

	// The server rejecting a session we thought was fresh means it was
	// retired on that side. Invalidate, log in again, and retry the call
	// once. A second 401 falls through as the final answer.
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if err := c.sessions.Invalidate(ctx, role); err != nil {
			return fmt.Errorf("invalidate rejected session for %s: %w", role, err)
		}
		c.logger.Warn("session rejected by server, retrying once after re-login",
			"role", role, "procedure", procedure)
		rec, err = c.sessions.Session(ctx, role)
		if err != nil {
			return fmt.Errorf("re-login %s: %w", role, err)
		}
		resp, err = c.do(ctx, method, router, name, input, rec)
		if err != nil {
			span.RecordError(err)
			c.observe(procedure, "transport_error", start)
			return err
		}
	}
	defer resp.Body.Close()

	c.observe(procedure, strconv.Itoa(resp.StatusCode), start)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retry := httputil.RetryAfter(resp)
		if c.metrics != nil {
			c.metrics.RateLimited.Inc()
		}
		c.events.Emit(journal.Event{
			Type: journal.TypeRateLimited,
			Role: role,
			Detail: map[string]string{
				"procedure":   procedure,
				"retry_after": retry.String(),
			},
		})
		c.logger.Warn("rate limited", "procedure", procedure, "role", role, "retry_after", retry)
		err := &httputil.RateLimitedError{RetryAfter: retry}
		span.RecordError(err)
		return fmt.Errorf("%s: %w", procedure, err)
	case resp.StatusCode != http.StatusOK:
		callErr := rpcwire.ParseError(resp)
		span.RecordError(callErr)
		return callErr
	}

	if err := rpcwire.DecodeResult(resp.Body, out); err != nil {
		return fmt.Errorf("%s: %w", procedure, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, router, name string, input any, rec session.Record) (*http.Response, error) {
	target := c.baseURL + rpcwire.Path(router, name)

	var body io.Reader
	switch {
	case method == http.MethodGet:
		if input != nil {
			q, err := rpcwire.EncodeInput(input)
			if err != nil {
				return nil, err
			}
			target += "?" + q
		}
	case input != nil:
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("encode input: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rec.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+rec.BearerToken)
	}
	for _, ck := range rec.Cookies {
		req.AddCookie(ck)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rpcwire.Path(router, name), err)
	}
	return resp, nil
}

func (c *Client) observe(procedure, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RPCDuration.WithLabelValues(procedure, status).Observe(time.Since(start).Seconds())
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}
