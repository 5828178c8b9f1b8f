// Package verify reads the system of record underneath the application and
// compares what a test expects with what actually landed. Identifiers are
// checked against the schema contract before they go anywhere near SQL, and
// a failed comparison is returned to the caller as data. Nothing here
// retries: if the row is not there yet, that is the answer.
package verify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lib/pq"

	"groundtruth/internal/journal"
	"groundtruth/internal/platform/metrics"
	"groundtruth/internal/schema"
	"groundtruth/pkg/platform/sentinel"
)

const defaultTolerance = 5 * time.Second

// Result is one field comparison. Equal carries the verdict; Normalized
// says both sides went through a type-aware conversion first (money,
// timestamps). For text mismatches Diff holds a character-level diff.
type Result struct {
	Table      string
	Column     string
	Expected   any
	Got        any
	Equal      bool
	Normalized bool
	Diff       string
}

// Err turns a failed comparison into an error, nil when it passed.
func (r Result) Err() error {
	if r.Equal {
		return nil
	}
	return &MismatchError{Result: r}
}

// MismatchError reports a comparison that did not hold.
type MismatchError struct {
	Result Result
}

func (e *MismatchError) Error() string {
	r := e.Result
	msg := fmt.Sprintf("%s.%s: expected %v, got %v", r.Table, r.Column, r.Expected, r.Got)
	if r.Diff != "" {
		msg += " " + r.Diff
	}
	return msg
}

// Bridge runs read-only checks against the application database.
type Bridge struct {
	db        *sql.DB
	contract  *schema.Contract
	logger    *slog.Logger
	tolerance time.Duration
	metrics   *metrics.Metrics
	events    *journal.Publisher
}

type BridgeOption func(*Bridge)

// WithTolerance widens or narrows the timestamp comparison window.
func WithTolerance(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.tolerance = d }
}

func WithBridgeMetrics(m *metrics.Metrics) BridgeOption {
	return func(b *Bridge) { b.metrics = m }
}

func WithBridgeJournal(p *journal.Publisher) BridgeOption {
	return func(b *Bridge) { b.events = p }
}

func NewBridge(db *sql.DB, contract *schema.Contract, logger *slog.Logger, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		db:        db,
		contract:  contract,
		logger:    logger,
		tolerance: defaultTolerance,
		events:    journal.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Capabilities exposes the bridge's contract for presence probes.
func (b *Bridge) Capabilities() *Capabilities {
	return NewCapabilities(b.contract)
}

func (b *Bridge) table(name string) (*schema.Table, error) {
	tbl, ok := b.contract.Table(name)
	if !ok {
		return nil, &CapabilityError{Table: name}
	}
	return tbl, nil
}

func (b *Bridge) column(table, name string) (schema.Column, error) {
	tbl, err := b.table(table)
	if err != nil {
		return schema.Column{}, err
	}
	col, ok := tbl.Column(name)
	if !ok {
		return schema.Column{}, &CapabilityError{Table: table, Column: name}
	}
	return col, nil
}

// QueryRecord fetches one row by primary key. sentinel.ErrNotFound when the
// row is absent.
func (b *Bridge) QueryRecord(ctx context.Context, table, id string) (map[string]any, error) {
	tbl, err := b.table(table)
	if err != nil {
		return nil, err
	}
	pk := "id"
	if len(tbl.PrimaryKey) > 0 {
		pk = tbl.PrimaryKey[0]
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1",
		pq.QuoteIdentifier(table), pq.QuoteIdentifier(pk))
	rows, err := b.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		return nil, fmt.Errorf("%s %s: %w", table, id, sentinel.ErrNotFound)
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan %s row: %w", table, err)
	}

	row := make(map[string]any, len(columns))
	for i, name := range columns {
		v := values[i]
		if raw, ok := v.([]byte); ok {
			v = string(raw)
		}
		row[name] = v
	}
	return row, nil
}

// CompareField fetches the row and compares one column against expected,
// normalizing both sides by the column's declared type. The verdict comes
// back as a Result; only infrastructure problems are errors.
func (b *Bridge) CompareField(ctx context.Context, table, id, column string, expected any) (Result, error) {
	col, err := b.column(table, column)
	if err != nil {
		return Result{}, err
	}
	row, err := b.QueryRecord(ctx, table, id)
	if err != nil {
		return Result{}, err
	}
	got := row[column]

	res := Result{Table: table, Column: column, Expected: expected, Got: got}
	switch {
	case expected == nil || got == nil:
		res.Equal = expected == nil && got == nil
		if !res.Equal {
			res.Diff = fmt.Sprintf("(expected %v, column holds %v)", describeNil(expected), describeNil(got))
		}
	case col.IsMoney():
		res.Normalized = true
		want, err := moneyRat(expected)
		if err != nil {
			return Result{}, fmt.Errorf("expected value for %s.%s: %w", table, column, err)
		}
		have, err := moneyRat(got)
		if err != nil {
			return Result{}, fmt.Errorf("stored value of %s.%s: %w", table, column, err)
		}
		res.Equal = want.Cmp(have) == 0
	case col.IsTimestamp():
		res.Normalized = true
		want, err := timeValue(expected)
		if err != nil {
			return Result{}, fmt.Errorf("expected value for %s.%s: %w", table, column, err)
		}
		have, err := timeValue(got)
		if err != nil {
			return Result{}, fmt.Errorf("stored value of %s.%s: %w", table, column, err)
		}
		delta := want.Sub(have)
		if delta < 0 {
			delta = -delta
		}
		res.Equal = delta <= b.tolerance
		if !res.Equal {
			res.Diff = fmt.Sprintf("(timestamps differ by %s, tolerance %s)", delta, b.tolerance)
		}
	case col.IsBool():
		want, err := boolValue(expected)
		if err != nil {
			return Result{}, fmt.Errorf("expected value for %s.%s: %w", table, column, err)
		}
		have, err := boolValue(got)
		if err != nil {
			return Result{}, fmt.Errorf("stored value of %s.%s: %w", table, column, err)
		}
		res.Equal = want == have
	case col.IsInteger():
		want, err := intValue(expected)
		if err != nil {
			return Result{}, fmt.Errorf("expected value for %s.%s: %w", table, column, err)
		}
		have, err := intValue(got)
		if err != nil {
			return Result{}, fmt.Errorf("stored value of %s.%s: %w", table, column, err)
		}
		res.Equal = want == have
	default:
		want := stringValue(expected)
		have := stringValue(got)
		res.Equal = want == have
		if !res.Equal {
			res.Diff = textDiff(want, have)
		}
	}

	b.observe(res)
	return res, nil
}

func describeNil(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func (b *Bridge) observe(res Result) {
	if b.metrics != nil {
		b.metrics.ObserveVerification(res.Equal)
	}
	eventType := journal.TypeVerifyPass
	if res.Equal {
		b.logger.Debug("verified",
			"table", res.Table,
			"column", res.Column,
			"expected", fmt.Sprintf("%v", res.Expected),
		)
	} else {
		eventType = journal.TypeVerifyFail
		b.logger.Warn("verification failed",
			"table", res.Table,
			"column", res.Column,
			"expected", fmt.Sprintf("%v", res.Expected),
			"got", fmt.Sprintf("%v", res.Got),
			"diff", res.Diff,
		)
	}
	b.events.Emit(journal.Event{
		Type:  eventType,
		Table: res.Table,
		Detail: map[string]string{
			"column":   res.Column,
			"expected": fmt.Sprintf("%v", res.Expected),
			"got":      fmt.Sprintf("%v", res.Got),
		},
	})
}

// CountRecords counts rows matching the where map. Columns are validated
// against the contract; a nil value matches NULL.
func (b *Bridge) CountRecords(ctx context.Context, table string, where map[string]any) (int, error) {
	tbl, err := b.table(table)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		if !tbl.HasColumn(k) {
			return 0, &CapabilityError{Table: table, Column: k}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	query := "SELECT COUNT(*) FROM " + pq.QuoteIdentifier(table)
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		clause := " AND "
		if i == 0 {
			clause = " WHERE "
		}
		if where[k] == nil {
			query += clause + pq.QuoteIdentifier(k) + " IS NULL"
			continue
		}
		args = append(args, where[k])
		query += fmt.Sprintf("%s%s = $%d", clause, pq.QuoteIdentifier(k), len(args))
	}

	var count int
	if err := b.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// IsNotFound reports whether err means the row was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
