// Package harness assembles the full stack from configuration: journal
// pipeline, session cache, RPC client, fixture lifecycle, schema contract
// and verification bridge. The CLI and the scenario suites build one Harness
// and pull the pieces they need from it.
package harness

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"groundtruth/internal/fixture"
	"groundtruth/internal/identity"
	"groundtruth/internal/journal"
	"groundtruth/internal/platform/config"
	"groundtruth/internal/platform/metrics"
	platformredis "groundtruth/internal/platform/redis"
	"groundtruth/internal/rpcclient"
	"groundtruth/internal/schema"
	"groundtruth/internal/session"
	"groundtruth/internal/verify"
)

// Harness owns one run's worth of wired components. Close releases them in
// reverse order of construction; double Close is safe.
type Harness struct {
	Config config.Config
	RunID  string
	Logger *slog.Logger

	Journal  *journal.Publisher
	Sessions *session.Manager
	Client   *rpcclient.Client
	Graph    *fixture.Graph
	Builder  *fixture.Builder
	Teardown *fixture.Teardown

	// Database-backed pieces, nil when built WithoutDatabase.
	Contract *schema.Contract
	Bridge   *verify.Bridge
	Sweeper  *fixture.Sweeper

	db           *sql.DB
	redis        *platformredis.Client
	sessionStore session.Store
	sinks        []journal.Sink
	workerDone   chan struct{}
	closed       bool
}

type options struct {
	roster     *identity.Roster
	metrics    *metrics.Metrics
	skipDB     bool
	extraSinks []journal.Sink
}

type Option func(*options)

// WithRoster injects an identity roster instead of loading the configured
// file. Scenario suites use it to match whatever they seeded.
func WithRoster(r *identity.Roster) Option {
	return func(o *options) {
		o.roster = r
	}
}

// WithMetrics attaches a metrics set. The harness never registers collectors
// itself; whoever owns the process does that once.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = mx
	}
}

// WithoutDatabase skips the contract, bridge and sweeper. Commands that only
// touch the application API (warm) run without a database around.
func WithoutDatabase() Option {
	return func(o *options) {
		o.skipDB = true
	}
}

// WithSink adds a journal sink beside the configured ones.
func WithSink(s journal.Sink) Option {
	return func(o *options) {
		o.extraSinks = append(o.extraSinks, s)
	}
}

// New wires a harness from configuration. Everything that can fail fails
// here, before any scenario runs.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Harness, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	h := &Harness{
		Config: cfg,
		RunID:  uuid.NewString(),
		Logger: logger,
	}

	if err := h.wireJournal(ctx, o); err != nil {
		return nil, err
	}
	if err := h.wireSessions(cfg, o); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.wireFixtures(cfg, o); err != nil {
		h.Close()
		return nil, err
	}
	if !o.skipDB {
		if err := h.wireDatabase(ctx, cfg, o); err != nil {
			h.Close()
			return nil, err
		}
	}

	logger.Info("harness ready",
		"run_id", h.RunID,
		"app", cfg.AppBaseURL,
		"cache_backend", cfg.CacheBackend,
		"workers", cfg.Workers)
	return h, nil
}

func (h *Harness) wireJournal(ctx context.Context, o options) error {
	sinks := append([]journal.Sink(nil), o.extraSinks...)

	if path := h.Config.JournalPath; path != "" {
		s, err := journal.NewJSONLSink(path)
		if err != nil {
			return fmt.Errorf("journal file sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	if path := h.Config.JournalDB; path != "" {
		s, err := journal.NewSQLiteSink(path)
		if err != nil {
			return fmt.Errorf("journal history sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	if brokers := h.Config.KafkaBrokers; brokers != "" {
		s, err := journal.NewKafkaSink(ctx, brokers, h.Config.KafkaTopic)
		if err != nil {
			return fmt.Errorf("journal kafka sink: %w", err)
		}
		sinks = append(sinks, s)
	}

	if len(sinks) == 0 {
		h.Journal = journal.Nop()
		return nil
	}

	h.sinks = sinks
	h.Journal = journal.NewPublisher(h.RunID, h.Logger)
	worker := journal.NewWorker(h.Journal.Inbox(), h.Logger, sinks...)
	h.workerDone = make(chan struct{})
	go func() {
		defer close(h.workerDone)
		_ = worker.Run(context.Background())
	}()
	return nil
}

func (h *Harness) wireSessions(cfg config.Config, o options) error {
	store, err := h.openSessionStore(cfg)
	if err != nil {
		return err
	}
	h.sessionStore = store

	roster := o.roster
	if roster == nil {
		roster, err = identity.Load(cfg.IdentitiesFile)
		if err != nil {
			return err
		}
	}

	login := session.NewHTTPLogin(cfg.AppBaseURL)
	h.Sessions = session.NewManager(store, login, roster, h.Logger,
		session.WithTTL(cfg.SessionTTL),
		session.WithStepTimeout(cfg.StepTimeout),
		session.WithMetrics(o.metrics),
		session.WithJournal(h.Journal),
	)

	h.Client = rpcclient.New(cfg.AppBaseURL, h.Sessions, h.Logger,
		rpcclient.WithTimeout(cfg.StepTimeout),
		rpcclient.WithMetrics(o.metrics),
		rpcclient.WithJournal(h.Journal),
	)
	return nil
}

func (h *Harness) openSessionStore(cfg config.Config) (session.Store, error) {
	switch cfg.CacheBackend {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "file":
		return session.NewFileStore(cfg.CacheDir)
	case "redis":
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("session redis: %w", err)
		}
		if client == nil {
			return nil, fmt.Errorf("cache backend redis selected but GROUNDTRUTH_REDIS_URL is empty")
		}
		h.redis = client
		return session.NewRedisStore(client.Client, cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func (h *Harness) wireFixtures(cfg config.Config, o options) error {
	graph := fixture.DefaultGraph()
	if cfg.GraphFile != "" {
		var err error
		graph, err = fixture.LoadGraph(cfg.GraphFile)
		if err != nil {
			return err
		}
	}
	h.Graph = graph

	h.Builder = fixture.NewBuilder(graph, h.Client, h.RunID, h.Logger,
		fixture.WithBuilderMetrics(o.metrics),
		fixture.WithBuilderJournal(h.Journal),
	)
	h.Teardown = fixture.NewTeardown(graph, h.Client, h.Builder.Tracker(), h.Logger,
		fixture.WithTeardownMetrics(o.metrics),
		fixture.WithTeardownJournal(h.Journal),
	)
	return nil
}

func (h *Harness) wireDatabase(ctx context.Context, cfg config.Config, o options) error {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	h.db = db

	contract, err := schema.Load(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	h.Contract = contract

	h.Bridge = verify.NewBridge(db, contract, h.Logger,
		verify.WithBridgeMetrics(o.metrics),
		verify.WithBridgeJournal(h.Journal),
	)
	h.Sweeper = fixture.NewSweeper(db, h.Graph, h.Logger,
		fixture.WithSweepMetrics(o.metrics),
		fixture.WithSweepJournal(h.Journal),
	)
	return nil
}

// DB exposes the bridge's pool for callers that need raw access, such as the
// teardown-order scenario that provokes a foreign key violation on purpose.
func (h *Harness) DB() *sql.DB {
	return h.db
}

// Warm pre-authenticates the given roles through the session manager.
func (h *Harness) Warm(ctx context.Context, roles ...string) error {
	return h.Sessions.Warm(ctx, roles...)
}

// Close flushes the journal and releases every resource the harness opened.
func (h *Harness) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	if h.Journal != nil {
		h.Journal.Close()
	}
	if h.workerDone != nil {
		<-h.workerDone
	}

	var firstErr error
	for _, s := range h.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.sessionStore != nil {
		if err := h.sessionStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.redis != nil {
		if err := h.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.db != nil {
		if err := h.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
