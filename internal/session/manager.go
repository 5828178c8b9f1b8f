package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"groundtruth/internal/identity"
	"groundtruth/internal/journal"
	"groundtruth/internal/platform/config"
	"groundtruth/internal/platform/metrics"
	"groundtruth/pkg/platform/circuit"
	"groundtruth/pkg/platform/sentinel"
)

// LoginFlow performs one real authentication against the application. It is
// the only component that ever sees a password.
type LoginFlow interface {
	Login(ctx context.Context, ident identity.Identity) (Record, error)
}

// Clock lets tests control time.
type Clock func() time.Time

// Manager is the injectable session cache: it answers Session(role) from the
// store when the record is fresh, logs in otherwise, and exposes Invalidate
// for callers that saw a 401. Logins for one role are single-flighted; a
// breaker stops everyone early once logins start failing, because dependent
// tests cannot recover from broken authentication.
type Manager struct {
	store   Store
	login   LoginFlow
	roster  *identity.Roster
	ttl     time.Duration
	timeout time.Duration
	clock   Clock
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  *journal.Publisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type ManagerOption func(*Manager)

// WithTTL overrides the freshness window.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithStepTimeout bounds each login attempt. Clamped to the harness step
// bounds.
func WithStepTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d < config.MinStepTimeout {
			d = config.MinStepTimeout
		}
		if d > config.MaxStepTimeout {
			d = config.MaxStepTimeout
		}
		m.timeout = d
	}
}

// WithClock overrides time for tests.
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithBreaker replaces the default login breaker.
func WithBreaker(b *circuit.Breaker) ManagerOption {
	return func(m *Manager) {
		m.breaker = b
	}
}

// WithMetrics attaches harness metrics.
func WithMetrics(mx *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithJournal attaches the run journal.
func WithJournal(pub *journal.Publisher) ManagerOption {
	return func(m *Manager) {
		m.events = pub
	}
}

func NewManager(store Store, login LoginFlow, roster *identity.Roster, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		login:   login,
		roster:  roster,
		ttl:     config.DefaultSessionTTL,
		timeout: 10 * time.Second,
		clock:   time.Now,
		breaker: circuit.New("login", circuit.WithFailureThreshold(3)),
		logger:  logger,
		events:  journal.Nop(),
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns a usable record for role, reusing the cache when fresh and
// logging in otherwise. Login failures are returned immediately; there is no
// retry loop here.
func (m *Manager) Session(ctx context.Context, role string) (Record, error) {
	lock := m.roleLock(role)
	lock.Lock()
	defer lock.Unlock()

	now := m.clock()
	rec, err := m.store.Get(ctx, role)
	switch {
	case err == nil && !rec.Expired(now, m.ttl):
		if m.metrics != nil {
			m.metrics.SessionsReused.Inc()
		}
		m.events.Emit(journal.Event{Type: journal.TypeSessionReused, Role: role})
		m.logger.Debug("session cache hit", "role", role, "age", rec.Age(now).Round(time.Second))
		return rec, nil
	case err == nil:
		m.logger.Info("cached session stale, re-authenticating", "role", role, "age", rec.Age(now).Round(time.Second))
	case errors.Is(err, sentinel.ErrNotFound):
		m.logger.Debug("session cache miss", "role", role)
	default:
		return Record{}, fmt.Errorf("read session cache: %w", err)
	}

	return m.authenticate(ctx, role)
}

// Cached returns the record without ever logging in. Stale records surface
// as ExpiredError so callers can distinguish "expired" from "absent".
func (m *Manager) Cached(ctx context.Context, role string) (Record, error) {
	rec, err := m.store.Get(ctx, role)
	if err != nil {
		return Record{}, err
	}
	now := m.clock()
	if rec.Expired(now, m.ttl) {
		return Record{}, &ExpiredError{Role: role, Age: rec.Age(now)}
	}
	return rec, nil
}

// Invalidate drops the cached record; the next Session call re-authenticates.
func (m *Manager) Invalidate(ctx context.Context, role string) error {
	if err := m.store.Invalidate(ctx, role); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	m.events.Emit(journal.Event{Type: journal.TypeSessionInvalidated, Role: role})
	m.logger.Info("session invalidated", "role", role)
	return nil
}

// Roles lists every role the roster can authenticate.
func (m *Manager) Roles() []string {
	return m.roster.Roles()
}

// Warm logs in the given roles ahead of a run, at most two at a time. The
// first failure cancels the rest.
func (m *Manager) Warm(ctx context.Context, roles ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(config.MaxWorkers)
	for _, role := range roles {
		g.Go(func() error {
			if _, err := m.Session(ctx, role); err != nil {
				return fmt.Errorf("warm %q: %w", role, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) authenticate(ctx context.Context, role string) (Record, error) {
	if m.breaker.IsOpen() {
		return Record{}, fmt.Errorf("login breaker open, refusing login for %q: %w", role, sentinel.ErrUnavailable)
	}

	ident, err := m.roster.Get(role)
	if err != nil {
		return Record{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	rec, err := m.login.Login(ctx, ident)
	if err != nil {
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.Error("login breaker opened", "role", role)
		}
		return Record{}, fmt.Errorf("login as %q: %w", role, err)
	}
	m.breaker.RecordSuccess()

	rec.Role = role
	rec.Email = ident.Email
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.clock()
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.CreatedAt.Add(m.ttl)
	}

	if err := m.store.Put(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("cache session for %q: %w", role, err)
	}

	if m.metrics != nil {
		m.metrics.SessionsLoggedIn.Inc()
	}
	m.events.Emit(journal.Event{Type: journal.TypeSessionLogin, Role: role})
	m.logger.Info("logged in", "role", role, "expires_at", rec.ExpiresAt)
	return rec, nil
}

func (m *Manager) roleLock(role string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[role]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[role] = lock
	}
	return lock
}
