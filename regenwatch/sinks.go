package regenwatch

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/dsguard/deepseek"
	"github.com/hazyhaar/dsguard/regenwatch/internal/config"
	"github.com/hazyhaar/dsguard/regenwatch/internal/sink"
)

// Sink is the output interface for regenwatch events.
type Sink = sink.Sink

// EventFunc is called for each event.
type EventFunc = sink.EventFunc

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink, for embedding the
// watcher in a larger binary.
func NewCallbackSink(fn EventFunc) Sink {
	return sink.NewCallback(fn)
}

// buildSinks turns sink configs into sinks. The page sink renders into the
// guarded tab through session.
func buildSinks(cfgs []config.SinkConfig, session *deepseek.Session, logger *slog.Logger) ([]Sink, error) {
	out := make([]Sink, 0, len(cfgs))
	for i, c := range cfgs {
		switch c.Type {
		case "stdout":
			out = append(out, sink.NewStdout(nil))
		case "webhook":
			out = append(out, sink.NewWebhook(c.URL, sink.WithWebhookLogger(logger)))
		case "page":
			if session == nil {
				logger.Warn("regenwatch: page sink without a page, skipped")
				continue
			}
			out = append(out, deepseek.NewPageToaster(session))
		default:
			return nil, fmt.Errorf("regenwatch: sinks[%d]: unknown type %q", i, c.Type)
		}
	}
	return out, nil
}

// newDelivery wraps every sink in its own queue so a slow backend never
// stalls the caller, and fans out to the queues. The queues must be run.
func newDelivery(logger *slog.Logger, pageURL string, sinks []Sink) (*sink.Router, []*sink.Queue) {
	queues := make([]*sink.Queue, len(sinks))
	routed := make([]Sink, len(sinks))
	for i, s := range sinks {
		queues[i] = sink.NewQueue(s, sink.DefaultQueueSize, logger)
		routed[i] = queues[i]
	}
	return sink.NewRouter(logger, pageURL, routed...), queues
}
