package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"groundtruth/internal/rpcwire"
)

// SessionCookie carries the session token for browser clients. API clients
// send the same token as a bearer header instead.
const SessionCookie = "app_session"

type identityKey struct{}

func identityFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(identityKey{}).(*Claims)
	return claims
}

// identity resolves the caller from a bearer header or the session cookie.
// A missing token passes through unauthenticated; a token that is present
// but does not verify is answered immediately.
func (a *App) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.tokens.validate(token)
		if err != nil {
			rpcwire.WriteError(w, rpcwire.CodeUnauthorized, "Invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (a *App) handleAuth(w http.ResponseWriter, r *http.Request, proc string) {
	switch proc {
	case "login":
		a.handleLogin(w, r)
	case "logout":
		a.handleLogout(w, r)
	case "me":
		a.handleMe(w, r)
	default:
		rpcwire.WriteError(w, rpcwire.CodeNotFound, fmt.Sprintf("Unknown procedure %q", "auth."+proc))
	}
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, "auth.login is a mutation, use POST")
		return
	}

	key := "login:" + clientIP(r)
	if ok, retry := a.limiter.allow(key); !ok {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retry.Seconds()+0.5)))
		rpcwire.WriteError(w, rpcwire.CodeTooManyRequests, "Too many login attempts, slow down")
		return
	}

	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := rpcwire.ReadInput(r, &in); err != nil {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, err.Error())
		return
	}
	if in.Email == "" || in.Password == "" {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, "email and password are required")
		return
	}

	user, err := a.store.FindBy(r.Context(), "users", "email", in.Email)
	if err != nil {
		// Same answer for unknown accounts and bad passwords.
		rpcwire.WriteError(w, rpcwire.CodeUnauthorized, "Invalid email or password")
		return
	}
	hash, _ := user["password_hash"].(string)
	if err := verifyPassword(in.Password, hash); err != nil {
		rpcwire.WriteError(w, rpcwire.CodeUnauthorized, "Invalid email or password")
		return
	}

	id, _ := user["id"].(string)
	email, _ := user["email"].(string)
	role, _ := user["role"].(string)
	token, err := a.tokens.issue(id, email, role)
	if err != nil {
		a.logger.Error("issue token", "error", err)
		rpcwire.WriteError(w, rpcwire.CodeInternal, "Internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(a.cfg.TokenTTL),
	})

	ua := useragent.New(r.UserAgent())
	browser, version := ua.Browser()
	a.logger.Info("login",
		"user_id", id,
		"role", role,
		"device", strings.TrimSpace(browser+" "+version),
	)

	rpcwire.WriteResult(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  sanitizeRow("users", user),
	})
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, "auth.logout is a mutation, use POST")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	rpcwire.WriteResult(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, "auth.me is a query, use GET")
		return
	}
	claims := identityFrom(r.Context())
	if claims == nil {
		rpcwire.WriteError(w, rpcwire.CodeUnauthorized, "Authentication required")
		return
	}
	user, err := a.store.Get(r.Context(), "users", claims.UserID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	rpcwire.WriteResult(w, http.StatusOK, sanitizeRow("users", user))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
