// Package app is a small order-management application: JSON-RPC style
// procedures under /api/rpc, cookie or bearer sessions, and a Postgres
// schema with real constraints. The test harness in this repository points
// at a deployment of this app; the in-memory store variant lets the
// harness's own tests run against the same HTTP surface without a database.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"groundtruth/internal/app/store"
	"groundtruth/internal/platform/middleware"
)

type Config struct {
	// JWTSecret signs session tokens. Required.
	JWTSecret string
	// TokenTTL bounds how long an issued session stays valid.
	TokenTTL time.Duration

	// LoginLimit and LoginWindow shape the per-IP login rate limit.
	// Defaults are deliberately tight so bursts trip them in development.
	LoginLimit  int
	LoginWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.LoginLimit <= 0 {
		c.LoginLimit = 10
	}
	if c.LoginWindow <= 0 {
		c.LoginWindow = 10 * time.Second
	}
	return c
}

type App struct {
	cfg       Config
	store     store.Store
	tokens    *tokenService
	limiter   *loginLimiter
	logger    *slog.Logger
	resources map[string]*resource
}

func New(cfg Config, st store.Store, log *slog.Logger) (*App, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("app: JWT secret is required")
	}
	cfg = cfg.withDefaults()
	return &App{
		cfg:       cfg,
		store:     st,
		tokens:    newTokenService(cfg.JWTSecret, cfg.TokenTTL),
		limiter:   newLoginLimiter(cfg.LoginLimit, cfg.LoginWindow),
		logger:    log,
		resources: defaultResources(),
	}, nil
}

// Handler returns the app's HTTP surface: the RPC procedures plus the two
// HTML pages used for browser-level checks.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(a.logger))
	r.Use(middleware.Recovery(a.logger))

	r.Group(func(r chi.Router) {
		r.Use(a.identity)
		r.Get("/api/rpc/{procedure}", a.handleRPC)
		r.Post("/api/rpc/{procedure}", a.handleRPC)

		r.Get("/login", a.handleLoginPage)
		r.Post("/login", a.handleLoginForm)
		r.Get("/customers", a.handleCustomersPage)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// SeedUser describes an account created at startup. Seed accounts live on
// the operator domain, outside the synthetic-marker namespace, so bulk
// cleanup can never touch them.
type SeedUser struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// SeedUsers inserts the given accounts, skipping emails that already exist.
func (a *App) SeedUsers(ctx context.Context, users []SeedUser) error {
	for _, u := range users {
		if _, err := a.store.FindBy(ctx, "users", "email", u.Email); err == nil {
			continue
		}
		hash, err := hashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("seed %s: %w", u.Email, err)
		}
		role := u.Role
		if role == "" {
			role = "member"
		}
		_, err = a.store.Insert(ctx, "users", map[string]any{
			"name":          u.Name,
			"email":         u.Email,
			"password_hash": hash,
			"role":          role,
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", u.Email, err)
		}
		a.logger.Info("seeded user", "email", u.Email, "role", role)
	}
	return nil
}
