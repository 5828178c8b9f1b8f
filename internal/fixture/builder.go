package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"groundtruth/internal/journal"
	"groundtruth/internal/platform/metrics"
)

// Caller executes RPC procedures against the application as a given role.
// The harness client satisfies it.
type Caller interface {
	Query(ctx context.Context, role, procedure string, input, out any) error
	Mutate(ctx context.Context, role, procedure string, input, out any) error
}

// Overrides replace default field values on create. A nil value removes the
// field from the payload entirely, which is how tests exercise server-side
// required-field validation.
type Overrides map[string]any

// Builder creates synthetic records through the application's own API and
// tracks every one of them for teardown. Parent ids come from the newest
// tracked handle of each declared dependency; a missing parent is
// MissingDependencyError, never an implicit create.
type Builder struct {
	graph   *Graph
	caller  Caller
	tracker *Tracker
	namer   *Namer
	role    string
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  *journal.Publisher
}

type BuilderOption func(*Builder)

// WithRole sets the role creates run as. Defaults to admin.
func WithRole(role string) BuilderOption {
	return func(b *Builder) {
		if role != "" {
			b.role = role
		}
	}
}

// WithBuilderMetrics attaches harness metrics.
func WithBuilderMetrics(mx *metrics.Metrics) BuilderOption {
	return func(b *Builder) {
		b.metrics = mx
	}
}

// WithBuilderJournal attaches the run journal.
func WithBuilderJournal(pub *journal.Publisher) BuilderOption {
	return func(b *Builder) {
		b.events = pub
	}
}

func NewBuilder(graph *Graph, caller Caller, runID string, logger *slog.Logger, opts ...BuilderOption) *Builder {
	b := &Builder{
		graph:   graph,
		caller:  caller,
		tracker: NewTracker(),
		namer:   NewNamer(runID),
		role:    "admin",
		logger:  logger,
		events:  journal.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// As returns a builder that creates as a different role. The tracker and
// namer are shared, so handles land in one place regardless of who created
// them.
func (b *Builder) As(role string) *Builder {
	clone := *b
	clone.role = role
	return &clone
}

// Tracker exposes the shared handle tracker.
func (b *Builder) Tracker() *Tracker { return b.tracker }

// RunToken is the namespace fragment on every minted value this run.
func (b *Builder) RunToken() string { return b.namer.RunToken() }

// Create makes one record of the given kind. Defaults are minted first,
// declared parent ids are filled from the tracker, then overrides replace
// whatever they name. Constraint failures come back typed with the server's
// message untouched.
func (b *Builder) Create(ctx context.Context, kind Kind, over Overrides) (Handle, error) {
	node, err := b.graph.Node(kind)
	if err != nil {
		return Handle{}, err
	}

	minted := b.namer.Mint(kind)
	input := defaultInput(kind, minted)

	for _, dep := range node.Requires {
		col := dep.FKColumn()
		if _, explicit := over[col]; explicit {
			continue
		}
		parent, ok := b.tracker.Newest(dep.Kind)
		if !ok {
			return Handle{}, &MissingDependencyError{Kind: kind, Missing: dep.Kind, Column: col}
		}
		input[col] = parent.ID
	}

	for k, v := range over {
		if v == nil {
			delete(input, k)
			continue
		}
		input[k] = v
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := b.caller.Mutate(ctx, b.role, node.CreateProcedure(), input, &created); err != nil {
		if cerr, ok := asConstraint("create", kind, "", err); ok {
			return Handle{}, fmt.Errorf("create %s: %w", kind, cerr)
		}
		return Handle{}, fmt.Errorf("create %s: %w", kind, err)
	}
	if created.ID == "" {
		return Handle{}, fmt.Errorf("create %s: response carries no id", kind)
	}

	h := b.tracker.Add(Handle{
		Kind:      kind,
		ID:        created.ID,
		Role:      b.role,
		Name:      minted.Name,
		CreatedAt: time.Now(),
	})

	if b.metrics != nil {
		b.metrics.FixturesCreated.WithLabelValues(string(kind)).Inc()
	}
	b.events.Emit(journal.Event{
		Type:     journal.TypeFixtureCreated,
		Role:     b.role,
		Kind:     string(kind),
		EntityID: h.ID,
	})
	b.logger.Debug("fixture created", "kind", kind, "id", h.ID, "role", b.role)
	return h, nil
}

// CreateTree creates the kind and, first, any declared ancestors that have
// no tracked handle yet. Ancestors get pure default values; overrides apply
// only to the requested kind.
func (b *Builder) CreateTree(ctx context.Context, kind Kind, over Overrides) (Handle, error) {
	node, err := b.graph.Node(kind)
	if err != nil {
		return Handle{}, err
	}
	for _, dep := range node.Requires {
		if _, explicit := over[dep.FKColumn()]; explicit {
			continue
		}
		if _, ok := b.tracker.Newest(dep.Kind); ok {
			continue
		}
		if _, err := b.CreateTree(ctx, dep.Kind, nil); err != nil {
			return Handle{}, err
		}
	}
	return b.Create(ctx, kind, over)
}
