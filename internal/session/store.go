package session

import "context"

// Store persists session records per role. Implementations return
// sentinel.ErrNotFound for absent roles and must treat Put as whole-record
// replacement. Freshness is the Manager's concern, not the store's; the
// Redis backend additionally lets entries lapse server-side via TTL.
type Store interface {
	Get(ctx context.Context, role string) (Record, error)
	Put(ctx context.Context, record Record) error
	// Invalidate removes the role's record. Absent roles are a no-op.
	Invalidate(ctx context.Context, role string) error
	Close() error
}
