package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"groundtruth/pkg/platform/sentinel"
)

// Memory is an in-process store for tests that do not want a database. It
// enforces the same constraints the DDL declares and words its violations
// the way the Postgres driver would, so handler behavior matches either way.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

type memTable struct {
	spec TableSpec
	rows map[string]map[string]any
	seq  []string
}

func NewMemory() *Memory {
	m := &Memory{tables: make(map[string]*memTable)}
	for _, spec := range Tables() {
		m.tables[spec.Name] = &memTable{
			spec: spec,
			rows: make(map[string]map[string]any),
		}
	}
	return m
}

func (m *Memory) Insert(_ context.Context, table string, values map[string]any) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	row := make(map[string]any, len(values)+3)
	for k, v := range values {
		row[k] = v
	}
	for _, col := range tbl.spec.Columns {
		if _, present := row[col.Name]; !present && col.Default != nil {
			row[col.Name] = col.Default
		}
	}

	if err := m.checkRow(tbl, row, ""); err != nil {
		return nil, err
	}

	now := time.Now()
	row["id"] = uuid.NewString()
	row["created_at"] = now
	row["updated_at"] = now

	id := row["id"].(string)
	tbl.rows[id] = row
	tbl.seq = append(tbl.seq, id)
	return copyRow(row), nil
}

func (m *Memory) Get(_ context.Context, table, id string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tbl, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	row, ok := tbl.rows[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", table, id, sentinel.ErrNotFound)
	}
	return copyRow(row), nil
}

func (m *Memory) FindBy(_ context.Context, table, column string, value any) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tbl, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	for _, id := range tbl.seq {
		if row, ok := tbl.rows[id]; ok && row[column] == value {
			return copyRow(row), nil
		}
	}
	return nil, fmt.Errorf("%s by %s: %w", table, column, sentinel.ErrNotFound)
}

func (m *Memory) List(_ context.Context, table string, limit int) ([]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tbl, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	out := make([]map[string]any, 0, limit)
	for i := len(tbl.seq) - 1; i >= 0 && len(out) < limit; i-- {
		if row, ok := tbl.rows[tbl.seq[i]]; ok {
			out = append(out, copyRow(row))
		}
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, table, id string, values map[string]any) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	current, ok := tbl.rows[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", table, id, sentinel.ErrNotFound)
	}

	next := copyRow(current)
	for k, v := range values {
		next[k] = v
	}
	if err := m.checkRow(tbl, next, id); err != nil {
		return nil, err
	}
	next["updated_at"] = time.Now()

	tbl.rows[id] = next
	return copyRow(next), nil
}

func (m *Memory) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	if _, ok := tbl.rows[id]; !ok {
		return fmt.Errorf("%s %s: %w", table, id, sentinel.ErrNotFound)
	}

	// Children block the delete the way a real foreign key would.
	for _, other := range m.tables {
		for _, col := range other.spec.Columns {
			if col.Ref != table {
				continue
			}
			for _, row := range other.rows {
				if row[col.Name] == id {
					return &ConstraintViolation{
						SQLState:   "23503",
						Constraint: fmt.Sprintf("%s_%s_fkey", other.spec.Name, col.Name),
						Table:      other.spec.Name,
						Message: fmt.Sprintf(
							`pq: update or delete on table %q violates foreign key constraint %q on table %q`,
							table, fmt.Sprintf("%s_%s_fkey", other.spec.Name, col.Name), other.spec.Name),
					}
				}
			}
		}
	}

	delete(tbl.rows, id)
	for i, sid := range tbl.seq {
		if sid == id {
			tbl.seq = append(tbl.seq[:i], tbl.seq[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) RecomputeOrderTotal(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := m.tables["orders"]
	order, ok := orders.rows[orderID]
	if !ok {
		return fmt.Errorf("orders %s: %w", orderID, sentinel.ErrNotFound)
	}

	var total int64
	for _, item := range m.tables["order_items"].rows {
		if item["order_id"] != orderID {
			continue
		}
		qty, _ := item["quantity"].(int64)
		cents, err := ParseCents(item["unit_price"])
		if err != nil {
			return fmt.Errorf("order item price: %w", err)
		}
		total += qty * cents
	}
	order["total_amount"] = FormatCents(total)
	order["updated_at"] = time.Now()
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// checkRow enforces the table's declared constraints, wording failures the
// way lib/pq reports them. selfID excludes the row being updated from
// uniqueness scans.
func (m *Memory) checkRow(tbl *memTable, row map[string]any, selfID string) error {
	for _, col := range tbl.spec.Columns {
		v, present := row[col.Name]

		if col.NotNull && (!present || v == nil) {
			return &ConstraintViolation{
				SQLState: "23502",
				Table:    tbl.spec.Name,
				Message: fmt.Sprintf(
					`pq: null value in column %q of relation %q violates not-null constraint`,
					col.Name, tbl.spec.Name),
			}
		}
		if !present || v == nil {
			continue
		}

		if col.Money {
			cents, err := ParseCents(v)
			if err != nil {
				return fmt.Errorf("column %s: %w", col.Name, err)
			}
			row[col.Name] = FormatCents(cents)
		}
		if col.Int {
			n, err := toInt64(v)
			if err != nil {
				return fmt.Errorf("column %s: %w", col.Name, err)
			}
			row[col.Name] = n
		}

		if col.Unique {
			for id, other := range tbl.rows {
				if id != selfID && other[col.Name] == row[col.Name] {
					name := fmt.Sprintf("%s_%s_key", tbl.spec.Name, col.Name)
					return &ConstraintViolation{
						SQLState:   "23505",
						Constraint: name,
						Table:      tbl.spec.Name,
						Message:    fmt.Sprintf(`pq: duplicate key value violates unique constraint %q`, name),
					}
				}
			}
		}

		if col.Ref != "" {
			parent := m.tables[col.Ref]
			idVal, _ := row[col.Name].(string)
			if _, ok := parent.rows[idVal]; !ok {
				name := fmt.Sprintf("%s_%s_fkey", tbl.spec.Name, col.Name)
				return &ConstraintViolation{
					SQLState:   "23503",
					Constraint: name,
					Table:      tbl.spec.Name,
					Message: fmt.Sprintf(
						`pq: insert or update on table %q violates foreign key constraint %q`,
						tbl.spec.Name, name),
				}
			}
		}
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		n := int64(t)
		if float64(n) != t {
			return 0, fmt.Errorf("value %v is not an integer", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported integer value %T", v)
	}
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
