package fixture

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"groundtruth/internal/journal"
	"groundtruth/internal/platform/metrics"
	platformtx "groundtruth/pkg/platform/tx"
)

// Sweeper deletes leftover synthetic rows straight from the database, the
// safety net under Teardown for runs that died before cleaning up. Rows are
// found by declared markers only: the TEST- prefix on name-like columns and
// addresses in the synthetic mail domain. Seeded operator accounts live
// outside both, so a sweep cannot touch them. Everything runs in one
// transaction; a constraint surprise rolls the whole sweep back and
// surfaces.
type Sweeper struct {
	db      *sql.DB
	graph   *Graph
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  *journal.Publisher
}

type SweepOption func(*Sweeper)

// WithSweepMetrics attaches harness metrics.
func WithSweepMetrics(mx *metrics.Metrics) SweepOption {
	return func(s *Sweeper) {
		s.metrics = mx
	}
}

// WithSweepJournal attaches the run journal.
func WithSweepJournal(pub *journal.Publisher) SweepOption {
	return func(s *Sweeper) {
		s.events = pub
	}
}

func NewSweeper(db *sql.DB, graph *Graph, logger *slog.Logger, opts ...SweepOption) *Sweeper {
	s := &Sweeper{
		db:     db,
		graph:  graph,
		logger: logger,
		events: journal.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Run sweeps every declared table in teardown order and reports rows per
// table. With dryRun set it only counts. A transaction already present in
// the context is joined instead of opening a new one.
func (s *Sweeper) Run(ctx context.Context, dryRun bool) (map[string]int64, error) {
	if tx, ok := platformtx.From(ctx); ok {
		return s.sweep(ctx, tx, dryRun)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sweep: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	counts, err := s.sweep(ctx, tx, dryRun)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sweep: %w", err)
	}
	return counts, nil
}

func (s *Sweeper) sweep(ctx context.Context, q querier, dryRun bool) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, kind := range s.graph.TeardownOrder() {
		node := s.graph.nodes[kind]

		var rows int64
		var err error
		switch {
		case node.Sweep.Via != "":
			rows, err = s.sweepVia(ctx, q, node, dryRun)
		case len(node.Sweep.Markers) > 0:
			rows, err = s.sweepMarked(ctx, q, node, dryRun)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		counts[node.Table] = rows

		if rows == 0 {
			continue
		}
		if dryRun {
			s.logger.Info("sweep would delete", "table", node.Table, "rows", rows)
			continue
		}
		if s.metrics != nil {
			s.metrics.SweepDeleted.WithLabelValues(node.Table).Add(float64(rows))
		}
		s.events.Emit(journal.Event{
			Type:   journal.TypeSweepDeleted,
			Table:  node.Table,
			Detail: map[string]string{"rows": strconv.FormatInt(rows, 10)},
		})
		s.logger.Info("swept", "table", node.Table, "rows", rows)
	}
	return counts, nil
}

// sweepMarked handles tables that carry their own markers.
func (s *Sweeper) sweepMarked(ctx context.Context, q querier, node *Node, dryRun bool) (int64, error) {
	where, args := markerWhere(node.Sweep.Markers)

	if dryRun {
		var n int64
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, node.Table, where)
		if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s leftovers: %w", node.Table, err)
		}
		return n, nil
	}

	res, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, node.Table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("sweep %s: %w", node.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep %s rows affected: %w", node.Table, err)
	}
	return n, nil
}

// sweepVia handles tables with no markers of their own: rows are deleted
// when their foreign key points at a marked row in the parent table. The
// teardown order guarantees this runs before the parent's own sweep.
func (s *Sweeper) sweepVia(ctx context.Context, q querier, node *Node, dryRun bool) (int64, error) {
	parent := s.graph.nodes[node.Sweep.Via]
	fk, ok := fkColumnFor(node, node.Sweep.Via)
	if !ok {
		return 0, fmt.Errorf("kind %q has no foreign key for sweep parent %q", node.Kind, node.Sweep.Via)
	}

	where, args := markerWhere(parent.Sweep.Markers)
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE %s`, parent.Table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("list %s leftovers: %w", parent.Table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan %s id: %w", parent.Table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate %s leftovers: %w", parent.Table, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if dryRun {
		var n int64
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ANY($1)`, node.Table, fk)
		if err := q.QueryRowContext(ctx, query, pq.Array(ids)).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s leftovers: %w", node.Table, err)
		}
		return n, nil
	}

	res, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1)`, node.Table, fk), pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("sweep %s: %w", node.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep %s rows affected: %w", node.Table, err)
	}
	return n, nil
}

// markerWhere builds the OR of all marker predicates. Identifiers come from
// the validated graph declaration, never from callers.
func markerWhere(markers []Marker) (string, []any) {
	parts := make([]string, 0, len(markers))
	args := make([]any, 0, len(markers))
	for i, m := range markers {
		parts = append(parts, fmt.Sprintf("%s LIKE $%d", m.Column, i+1))
		args = append(args, m.Pattern)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func fkColumnFor(node *Node, parent Kind) (string, bool) {
	for _, dep := range node.Requires {
		if dep.Kind == parent {
			return dep.FKColumn(), true
		}
	}
	return "", false
}
