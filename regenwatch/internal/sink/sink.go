// Package sink defines output backends for regenwatch events.
package sink

import (
	"context"

	"github.com/hazyhaar/dsguard/event"
)

// Sink is the output interface. Implementations deliver events to
// different backends (stdout, webhook, in-page toast, in-process callback).
type Sink interface {
	Send(ctx context.Context, ev event.Event) error
	Close() error
}
