package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"groundtruth/internal/identity"
	"groundtruth/internal/rpcwire"
	"groundtruth/pkg/platform/httputil"
)

// HTTPLogin authenticates against the application's auth.login procedure and
// captures everything the response hands back: cookies, the bearer token and
// the token's own expiry.
type HTTPLogin struct {
	baseURL string
	client  *http.Client
	tracer  trace.Tracer
}

type LoginOption func(*HTTPLogin)

// WithHTTPClient replaces the default client, for tests and custom transports.
func WithHTTPClient(c *http.Client) LoginOption {
	return func(l *HTTPLogin) {
		l.client = c
	}
}

func NewHTTPLogin(baseURL string, opts ...LoginOption) *HTTPLogin {
	l := &HTTPLogin{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		tracer:  otel.Tracer("groundtruth/session"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type loginResult struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

func (l *HTTPLogin) Login(ctx context.Context, ident identity.Identity) (Record, error) {
	ctx, span := l.tracer.Start(ctx, "session.login",
		trace.WithAttributes(attribute.String("role", ident.Role)))
	defer span.End()

	body, err := json.Marshal(map[string]string{
		"email":    ident.Email,
		"password": ident.Password,
	})
	if err != nil {
		return Record{}, fmt.Errorf("encode login input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		l.baseURL+rpcwire.Path("auth", "login"), bytes.NewReader(body))
	if err != nil {
		return Record{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return Record{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Record{}, fmt.Errorf("login: %w", &httputil.RateLimitedError{RetryAfter: httputil.RetryAfter(resp)})
	}
	if resp.StatusCode != http.StatusOK {
		callErr := rpcwire.ParseError(resp)
		span.RecordError(callErr)
		return Record{}, fmt.Errorf("login rejected: %w", callErr)
	}

	var result loginResult
	if err := rpcwire.DecodeResult(resp.Body, &result); err != nil {
		return Record{}, fmt.Errorf("decode login response: %w", err)
	}

	rec := Record{
		Role:        ident.Role,
		Email:       ident.Email,
		BaseURL:     l.baseURL,
		BearerToken: result.Token,
		Cookies:     resp.Cookies(),
		CreatedAt:   time.Now(),
	}
	if exp, ok := TokenExpiry(result.Token); ok {
		rec.ExpiresAt = exp
	}
	return rec, nil
}
