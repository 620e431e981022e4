package crazyretry

import (
	"context"
	"time"

	"github.com/hazyhaar/dsguard/event"
)

// Session locates the most recent answer on the page.
type Session interface {
	// LastAnswer returns the latest answer, or nil with a nil error when the
	// page shows none.
	LastAnswer(ctx context.Context) (Answer, error)
}

// Answer is a handle to one answer region.
type Answer interface {
	// Busy reports whether the answer shows the host's busy phrase.
	Busy(ctx context.Context) (bool, error)
	// Regenerate clicks the answer's regenerate control. It reports whether a
	// control was found and clicked.
	Regenerate(ctx context.Context) (bool, error)
	// Fingerprint identifies the answer's content. It fails when the answer
	// is gone or detached.
	Fingerprint(ctx context.Context) (string, error)
}

// ToastSource captures the host's transient toast.
type ToastSource interface {
	// CaptureToast waits up to timeout for a toast. It returns nil with a nil
	// error when none appeared.
	CaptureToast(ctx context.Context, timeout time.Duration) (Toast, error)
}

// Toast is a captured host toast.
type Toast interface {
	Text() string
	// TooFast reports whether the toast is the host's "sending too fast" message.
	TooFast() bool
}

// Notifier delivers user-visible notices.
type Notifier interface {
	Send(ctx context.Context, ev event.Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev event.Event) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, ev event.Event) error { return f(ctx, ev) }
