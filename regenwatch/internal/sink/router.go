package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/dsguard/event"
)

// Router fans out events to all configured sinks. One sink error does not
// block the others; errors are logged and the first encountered is
// returned.
type Router struct {
	sinks   []Sink
	pageURL string
	logger  *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks. pageURL is
// stamped on events that carry none.
func NewRouter(logger *slog.Logger, pageURL string, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, pageURL: pageURL, logger: logger}
}

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Send(ctx context.Context, ev event.Event) error {
	if ev.PageURL == "" {
		ev.PageURL = r.pageURL
	}
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, ev); err != nil {
			r.logger.Warn("sink: send event failed", "kind", ev.Kind, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
