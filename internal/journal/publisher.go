package journal

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher stamps events and hands them to the worker through a buffered
// channel. Emit never blocks the harness path: when the buffer is full the
// event is dropped and counted instead.
type Publisher struct {
	runID string
	inbox chan Event
	clock func() time.Time

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64

	logger *slog.Logger
}

const defaultBuffer = 256

// NewPublisher creates a publisher for one run. Pair it with a Worker reading
// from Inbox.
func NewPublisher(runID string, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		runID:  runID,
		inbox:  make(chan Event, defaultBuffer),
		clock:  time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type PublisherOption func(*Publisher)

// WithBuffer overrides the inbox capacity.
func WithBuffer(n int) PublisherOption {
	return func(p *Publisher) {
		p.inbox = make(chan Event, n)
	}
}

// WithClock overrides time stamping, for tests.
func WithClock(clock func() time.Time) PublisherOption {
	return func(p *Publisher) {
		p.clock = clock
	}
}

// Nop returns a publisher whose events go nowhere. Constructors accept it so
// callers that do not care about journaling pass Nop() instead of nil.
func Nop() *Publisher {
	return &Publisher{clock: time.Now, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Inbox is the channel a Worker drains.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// Emit stamps and enqueues the event. Full buffer or closed publisher drops it.
func (p *Publisher) Emit(event Event) {
	if p.inbox == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	if event.Time.IsZero() {
		event.Time = p.clock()
	}
	if event.RunID == "" {
		event.RunID = p.runID
	}

	select {
	case p.inbox <- event:
	default:
		n := p.dropped.Add(1)
		p.logger.Warn("journal buffer full, event dropped", "type", event.Type, "dropped_total", n)
	}
}

// Dropped reports how many events were lost to a full buffer.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting events and lets the worker drain what is queued.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}
