// Package store persists the stock application's records. Rows travel as
// generic maps; the handlers in the app package own validation.
package store

import "context"

// Store is the persistence surface the application's handlers use. Absent
// records are sentinel.ErrNotFound; integrity failures are typed
// ConstraintViolation with driver text preserved.
type Store interface {
	Insert(ctx context.Context, table string, values map[string]any) (map[string]any, error)
	Get(ctx context.Context, table, id string) (map[string]any, error)
	FindBy(ctx context.Context, table, column string, value any) (map[string]any, error)
	List(ctx context.Context, table string, limit int) ([]map[string]any, error)
	Update(ctx context.Context, table, id string, values map[string]any) (map[string]any, error)
	Delete(ctx context.Context, table, id string) error

	// RecomputeOrderTotal re-derives orders.total_amount from the order's
	// items. Called after every order_items write.
	RecomputeOrderTotal(ctx context.Context, orderID string) error

	Close() error
}

// ConstraintViolation reports a database integrity failure. Message carries
// the driver's text exactly; API responses pass it through unaltered.
type ConstraintViolation struct {
	SQLState   string
	Constraint string
	Table      string
	Message    string
}

func (e *ConstraintViolation) Error() string { return e.Message }
