package journal

import "context"

// Sink persists journal events. Implementations must tolerate being called
// from a single worker goroutine; they do not need their own locking for
// Append ordering.
type Sink interface {
	Append(ctx context.Context, event Event) error
	Close() error
}
