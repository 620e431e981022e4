package sink

import (
	"context"

	"github.com/hazyhaar/dsguard/event"
)

// EventFunc is called for each event (in-process, zero serialisation).
type EventFunc func(ctx context.Context, ev event.Event) error

// Callback delivers events via a Go function call, for embedding
// regenwatch in a larger binary.
type Callback struct {
	fn EventFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn EventFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, ev event.Event) error {
	if c.fn != nil {
		return c.fn(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
