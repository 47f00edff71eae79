package eventsink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/moonseer/church-planner-core/internal/auth"
)

// DefaultBufferSize is the queue length used when NewAsync gets size <= 0.
const DefaultBufferSize = 256

// Async queues events for a single background writer. When the queue is
// full new events are dropped and counted rather than blocking the caller.
type Async struct {
	next   auth.EventSink
	logger *slog.Logger
	ch     chan auth.SecurityEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
}

// NewAsync starts the writer goroutine. Call Close to drain and stop it.
func NewAsync(next auth.EventSink, size int, logger *slog.Logger) *Async {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:   next,
		logger: logger,
		ch:     make(chan auth.SecurityEvent, size),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Emit enqueues ev. It never blocks; events after Close are ignored.
func (a *Async) Emit(_ context.Context, ev auth.SecurityEvent) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}

	select {
	case a.ch <- ev:
	default:
		a.dropped.Add(1)
		a.logger.Warn("security event queue full, dropping event",
			"type", ev.Type,
			"account_id", ev.AccountID,
		)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be written,
// or for ctx to end. It is safe to call more than once.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	// Request contexts are long gone by the time an event is written.
	ctx := context.Background()
	for ev := range a.ch {
		a.next.Emit(ctx, ev)
	}
}
