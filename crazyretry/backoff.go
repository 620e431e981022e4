package crazyretry

import "time"

// Backoff holds the current poll delay, always within [base, max].
type Backoff struct {
	base    time.Duration
	max     time.Duration
	factor  float64
	current time.Duration
}

// NewBackoff starts a ladder at base.
func NewBackoff(base, max time.Duration, factor float64) *Backoff {
	if max < base {
		max = base
	}
	if factor < 1 {
		factor = 1
	}
	return &Backoff{base: base, max: max, factor: factor, current: base}
}

// Current returns the delay the next poll will sleep.
func (b *Backoff) Current() time.Duration { return b.current }

// Factor returns the growth factor.
func (b *Backoff) Factor() float64 { return b.factor }

// Advance multiplies the delay by the factor, capped at max.
func (b *Backoff) Advance() time.Duration {
	next := time.Duration(float64(b.current) * b.factor)
	if next > b.max || next < b.current {
		next = b.max
	}
	b.current = next
	return b.current
}

// Reset returns the delay to base.
func (b *Backoff) Reset() time.Duration {
	b.current = b.base
	return b.current
}

// ForceMax jumps straight to max; the loop keeps polling, slowly.
func (b *Backoff) ForceMax() time.Duration {
	b.current = b.max
	return b.current
}

// AtMax reports whether the ladder is at its cap.
func (b *Backoff) AtMax() bool { return b.current >= b.max }
