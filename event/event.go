// Package event defines the notifications emitted by dsguard. Sinks
// (stdout, webhook, in-page toast, callback) receive these values; any
// consumer of the webhook or stdout stream decodes this shape.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an event.
type Kind string

const (
	KindRetrying    Kind = "retrying"     // busy answer detected, regenerate clicked
	KindRetryLimit  Kind = "retry_limit"  // per-answer retry budget exhausted, manual refresh needed
	KindCooldown    Kind = "cooldown"     // host rate limit hit, long pause entered
	KindAnswerReady Kind = "answer_ready" // an answer finished generating
)

// Event is a user-visible notice.
type Event struct {
	ID       string        `json:"id"` // UUIDv7
	Kind     Kind          `json:"kind"`
	Title    string        `json:"title,omitempty"`
	Message  string        `json:"message"`
	Markdown string        `json:"markdown,omitempty"` // full answer for answer_ready
	Duration time.Duration `json:"duration_ms"`        // how long a toast should stay up
	PageURL  string        `json:"page_url,omitempty"`
	// Timestamp is epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// New stamps an event with a fresh ID and the current time.
func New(kind Kind, message string, d time.Duration) Event {
	return Event{
		ID:        NewID(),
		Kind:      kind,
		Message:   message,
		Duration:  d,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewID returns a time-sortable UUIDv7 string.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// MarshalJSON writes Duration as milliseconds.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		Duration int64 `json:"duration_ms"`
	}{alias: alias(e), Duration: e.Duration.Milliseconds()})
}

// UnmarshalJSON reads Duration from milliseconds.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	aux := struct {
		*alias
		Duration int64 `json:"duration_ms"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Duration = time.Duration(aux.Duration) * time.Millisecond
	return nil
}
