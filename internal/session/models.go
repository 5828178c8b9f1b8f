package session

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Record is everything needed to act as an authenticated identity: the
// cookies and bearer token captured at login plus enough metadata to judge
// freshness. Credentials never appear here. A Record is replaced whole on
// every Put; there is no field-level merging, so the last writer wins.
type Record struct {
	Role        string         `json:"role"`
	Email       string         `json:"email"`
	BaseURL     string         `json:"base_url"`
	BearerToken string         `json:"bearer_token,omitempty"`
	Cookies     []*http.Cookie `json:"cookies,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// Expired reports whether the record fails the freshness check: older than
// ttl since login, or past the expiry the token itself declared.
func (r Record) Expired(now time.Time, ttl time.Duration) bool {
	if r.CreatedAt.IsZero() {
		return true
	}
	if now.Sub(r.CreatedAt) >= ttl {
		return true
	}
	if !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt) {
		return true
	}
	return false
}

// Age is the time since login.
func (r Record) Age(now time.Time) time.Duration {
	if r.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(r.CreatedAt)
}

// TokenExpiry peeks at a JWT's exp claim without verifying the signature.
// The harness is a client; it trusts the server and only wants to know when
// to log in again.
func TokenExpiry(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
