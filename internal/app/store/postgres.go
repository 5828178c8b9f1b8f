package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"groundtruth/pkg/platform/sentinel"
)

// Postgres is the production store. It builds statements generically from
// the row maps; identifiers always come from the handler registry, never
// from request payloads.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Insert(ctx context.Context, table string, values map[string]any) (map[string]any, error) {
	cols := sortedKeys(values)
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[c]
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(fmt.Errorf("insert into %s: %w", table, err))
	}
	defer rows.Close()
	return oneRow(rows, table)
}

func (s *Postgres) Get(ctx context.Context, table, id string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return nil, translate(fmt.Errorf("get from %s: %w", table, err))
	}
	defer rows.Close()
	return oneRow(rows, table)
}

func (s *Postgres) FindBy(ctx context.Context, table, column string, value any) (map[string]any, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1 LIMIT 1`, table, column)
	rows, err := s.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, translate(fmt.Errorf("find in %s by %s: %w", table, column, err))
	}
	defer rows.Close()
	return oneRow(rows, table)
}

func (s *Postgres) List(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY created_at DESC, id LIMIT $1`, table)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, translate(fmt.Errorf("list %s: %w", table, err))
	}
	defer rows.Close()
	return allRows(rows)
}

func (s *Postgres) Update(ctx context.Context, table, id string, values map[string]any) (map[string]any, error) {
	cols := sortedKeys(values)
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+1))
		args = append(args, values[c])
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING *`,
		table, strings.Join(sets, ", "), len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(fmt.Errorf("update %s: %w", table, err))
	}
	defer rows.Close()
	return oneRow(rows, table)
}

func (s *Postgres) Delete(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return translate(fmt.Errorf("delete from %s: %w", table, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s rows affected: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) RecomputeOrderTotal(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET total_amount = COALESCE(
			(SELECT SUM(quantity * unit_price) FROM order_items WHERE order_id = $1), 0),
		    updated_at = now()
		WHERE id = $1`, orderID)
	if err != nil {
		return translate(fmt.Errorf("recompute order total: %w", err))
	}
	return nil
}

func (s *Postgres) Close() error {
	return s.db.Close()
}

// translate maps integrity violations (SQLSTATE class 23) to typed errors.
// The driver's message rides along untouched.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return &ConstraintViolation{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Message:    pqErr.Error(),
		}
	}
	return err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// oneRow scans the single row a RETURNING or point query produced.
func oneRow(rows *sql.Rows, table string) (map[string]any, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, translate(err)
		}
		return nil, fmt.Errorf("%s: %w", table, sentinel.ErrNotFound)
	}
	row, err := scanRow(rows)
	if err != nil {
		return nil, err
	}
	return row, rows.Err()
}

func allRows(rows *sql.Rows) ([]map[string]any, error) {
	var out []map[string]any
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanRow(rows *sql.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("row columns: %w", err)
	}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[c] = normalizeValue(raw[i])
	}
	return row, nil
}

// normalizeValue keeps row maps JSON-friendly: byte slices (uuid, text,
// numeric) become strings, everything else passes through.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
