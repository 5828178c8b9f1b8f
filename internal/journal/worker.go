package journal

import (
	"context"
	"log/slog"
)

// Worker consumes events from the publisher's inbox and fans them out to the
// configured sinks. A failing sink is logged and skipped; the journal never
// takes a run down.
type Worker struct {
	inbox  <-chan Event
	sinks  []Sink
	logger *slog.Logger
}

func NewWorker(inbox <-chan Event, logger *slog.Logger, sinks ...Sink) *Worker {
	return &Worker{inbox: inbox, sinks: sinks, logger: logger}
}

// Run drains the inbox until it is closed or ctx is cancelled. On
// cancellation the already-queued events are still flushed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.append(event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event, ok := <-w.inbox:
			if !ok {
				return
			}
			w.append(event)
		default:
			return
		}
	}
}

func (w *Worker) append(event Event) {
	// Sinks get a fresh context: the run's ctx may already be cancelled
	// while queued events still deserve persistence.
	ctx := context.Background()
	for _, sink := range w.sinks {
		if err := sink.Append(ctx, event); err != nil {
			w.logger.Error("journal sink append failed", "type", event.Type, "error", err)
		}
	}
}
