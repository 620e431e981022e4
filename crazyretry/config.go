// Package crazyretry keeps a chat answer alive when the host service answers
// "server busy". It polls the last answer, clicks regenerate while the answer
// is busy, spaces attempts with an exponential backoff, caps retries per
// answer (keyed by content fingerprint), and backs off for a long fixed
// cool-down when the host itself throttles the regenerate click.
//
// The orchestrator is one goroutine. Ledger, backoff and last fingerprint are
// written only by that goroutine; other goroutines read a published Status.
package crazyretry

import (
	"log/slog"
	"time"
)

const (
	// BaseDelay is the poll interval when nothing has failed.
	BaseDelay = 1 * time.Second
	// MaxDelay caps the backoff ladder.
	MaxDelay = 64 * time.Second
	// BackoffFactor multiplies the delay on each failure.
	BackoffFactor = 2.0
	// ElementRetryLimit is the retry budget of one answer.
	ElementRetryLimit = 128

	// ToastTimeout bounds the wait for a rate-limit toast after a click.
	ToastTimeout = 3 * time.Second
	// SettleDelay is the pause before re-probing a regenerated answer.
	SettleDelay = 1500 * time.Millisecond
	// Cooldown is the fixed pause after the host rate-limits the click.
	// Not configurable.
	Cooldown = 30 * time.Minute

	// factorTolerance is the accepted deviation of the observed sleep ratio.
	factorTolerance = 0.1
	// verifyHistory is how many real sleep durations are kept.
	verifyHistory = 10
)

// Config configures an Orchestrator. Zero values take the package defaults.
type Config struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	RetryLimit   int
	ToastTimeout time.Duration
	SettleDelay  time.Duration

	// Session finds the current answer. Required.
	Session Session
	// Toasts captures the host's rate-limit toast. Nil disables detection.
	Toasts ToastSource
	// Notifier receives user-visible notices. Nil discards them.
	Notifier Notifier
	// Clock drives every wait. Nil uses the wall clock.
	Clock  Clock
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = MaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = ElementRetryLimit
	}
	if c.ToastTimeout <= 0 {
		c.ToastTimeout = ToastTimeout
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = SettleDelay
	}
	if c.Clock == nil {
		c.Clock = WallClock()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
