package sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/dsguard/event"
)

const (
	// DefaultQueueSize is the event buffer of one queued sink.
	DefaultQueueSize = 64
	// flushTimeout bounds delivery of the events still queued at shutdown.
	flushTimeout = 5 * time.Second
)

// ErrQueueFull is returned by Queue.Send when the buffer has no room.
var ErrQueueFull = errors.New("sink: queue full, event dropped")

// Queue decouples a slow sink from its caller. Send only enqueues; Run
// delivers events to the wrapped sink in order from its own goroutine.
type Queue struct {
	sink   Sink
	ch     chan event.Event
	logger *slog.Logger
}

// NewQueue wraps s with a buffer of size events. Run must be started for
// anything to be delivered.
func NewQueue(s Sink, size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{sink: s, ch: make(chan event.Event, size), logger: logger}
}

// Send enqueues ev without blocking. A full buffer drops the event.
func (q *Queue) Send(ctx context.Context, ev event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- ev:
		return nil
	default:
		q.logger.Warn("sink: queue full, event dropped", "kind", ev.Kind, "id", ev.ID)
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is done, then flushes what is left
// within flushTimeout and returns ctx's error.
func (q *Queue) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			q.flush(ctx)
			return ctx.Err()
		}
		select {
		case ev := <-q.ch:
			q.deliver(ctx, ev)
		case <-ctx.Done():
		}
	}
}

func (q *Queue) flush(ctx context.Context) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	for {
		select {
		case ev := <-q.ch:
			q.deliver(fctx, ev)
		default:
			return
		}
	}
}

func (q *Queue) deliver(ctx context.Context, ev event.Event) {
	if err := q.sink.Send(ctx, ev); err != nil {
		q.logger.Warn("sink: deliver event failed", "kind", ev.Kind, "id", ev.ID, "error", err)
	}
}

// Len returns the number of events waiting.
func (q *Queue) Len() int { return len(q.ch) }

// Close closes the wrapped sink. Call it after Run has returned.
func (q *Queue) Close() error { return q.sink.Close() }
