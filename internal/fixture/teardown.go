package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"groundtruth/internal/journal"
	"groundtruth/internal/platform/metrics"
)

// Teardown destroys tracked records through the API, children before
// parents. A record that is already gone is skipped with a warning; a live
// constraint violation stops the pass and surfaces, because silently leaving
// half a graph behind is worse than failing loudly.
type Teardown struct {
	graph   *Graph
	caller  Caller
	tracker *Tracker
	role    string
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  *journal.Publisher
}

type TeardownOption func(*Teardown)

// WithTeardownRole sets the role deletes run as. Defaults to admin.
func WithTeardownRole(role string) TeardownOption {
	return func(td *Teardown) {
		if role != "" {
			td.role = role
		}
	}
}

// WithTeardownMetrics attaches harness metrics.
func WithTeardownMetrics(mx *metrics.Metrics) TeardownOption {
	return func(td *Teardown) {
		td.metrics = mx
	}
}

// WithTeardownJournal attaches the run journal.
func WithTeardownJournal(pub *journal.Publisher) TeardownOption {
	return func(td *Teardown) {
		td.events = pub
	}
}

func NewTeardown(graph *Graph, caller Caller, tracker *Tracker, logger *slog.Logger, opts ...TeardownOption) *Teardown {
	td := &Teardown{
		graph:   graph,
		caller:  caller,
		tracker: tracker,
		role:    "admin",
		logger:  logger,
		events:  journal.Nop(),
	}
	for _, opt := range opts {
		opt(td)
	}
	return td
}

// Run deletes every tracked record, dependents first. It stops at the first
// failure that is not a missing record.
func (td *Teardown) Run(ctx context.Context) error {
	handles := td.ordered()
	td.logger.Info("teardown starting", "handles", len(handles))
	for _, h := range handles {
		if err := td.Delete(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// ordered sorts tracked handles children-first: by the graph's teardown
// position, newest first within a kind.
func (td *Teardown) ordered() []Handle {
	pos := make(map[Kind]int, len(td.graph.order))
	for i, kind := range td.graph.TeardownOrder() {
		pos[kind] = i
	}
	handles := td.tracker.Handles()
	sort.SliceStable(handles, func(i, j int) bool {
		pi, pj := pos[handles[i].Kind], pos[handles[j].Kind]
		if pi != pj {
			return pi < pj
		}
		return handles[i].seq > handles[j].seq
	})
	return handles
}

// Delete removes one record. Deleting something already gone succeeds with a
// warning and the handle is forgotten either way. Constraint violations come
// back typed, message untouched.
func (td *Teardown) Delete(ctx context.Context, h Handle) error {
	node, err := td.graph.Node(h.Kind)
	if err != nil {
		return err
	}

	err = td.caller.Mutate(ctx, td.role, node.DeleteProcedure(), map[string]any{"id": h.ID}, nil)
	switch {
	case err == nil:
	case isGone(err):
		td.logger.Warn("already deleted, skipping", "kind", h.Kind, "id", h.ID)
		td.events.Emit(journal.Event{
			Type:     journal.TypeTeardownSkipped,
			Role:     td.role,
			Kind:     string(h.Kind),
			EntityID: h.ID,
		})
		td.tracker.Remove(h.Kind, h.ID)
		return nil
	default:
		if cerr, ok := asConstraint("delete", h.Kind, h.ID, err); ok {
			td.logger.Error("delete blocked by constraint",
				"kind", h.Kind, "id", h.ID, "sqlstate", cerr.SQLState, "constraint", cerr.Constraint)
			return fmt.Errorf("delete %s %s: %w", h.Kind, h.ID, cerr)
		}
		return fmt.Errorf("delete %s %s: %w", h.Kind, h.ID, err)
	}

	td.tracker.Remove(h.Kind, h.ID)
	if td.metrics != nil {
		td.metrics.FixturesDeleted.WithLabelValues(string(h.Kind)).Inc()
	}
	td.events.Emit(journal.Event{
		Type:     journal.TypeFixtureDeleted,
		Role:     td.role,
		Kind:     string(h.Kind),
		EntityID: h.ID,
	})
	td.logger.Debug("fixture deleted", "kind", h.Kind, "id", h.ID)
	return nil
}
