package crazyretry

import (
	"math"
	"time"
)

// sample is one poll sleep: what the ladder asked for and what really elapsed.
type sample struct {
	scheduled time.Duration
	actual    time.Duration
}

// Verification is the result of comparing the last two real sleeps.
type Verification struct {
	Previous time.Duration
	Last     time.Duration
	Ratio    float64
	// Checked is true when the ladder advanced by the factor between the two
	// sleeps; only those pairs say anything about the factor.
	Checked  bool
	Deviates bool
}

// Verifier keeps the recent real sleep durations and checks their growth
// against the configured factor. Wall-clock sleeps jitter, so a deviation is
// a diagnostic, never a gate.
type Verifier struct {
	factor  float64
	history []sample
}

// NewVerifier creates a Verifier for factor.
func NewVerifier(factor float64) *Verifier {
	return &Verifier{factor: factor, history: make([]sample, 0, verifyHistory)}
}

// Observe records one sleep and returns the verification of the last pair.
// ok is false until two sleeps have been seen.
func (v *Verifier) Observe(scheduled, actual time.Duration) (Verification, bool) {
	if len(v.history) == verifyHistory {
		copy(v.history, v.history[1:])
		v.history = v.history[:verifyHistory-1]
	}
	v.history = append(v.history, sample{scheduled: scheduled, actual: actual})
	if len(v.history) < 2 {
		return Verification{}, false
	}

	prev := v.history[len(v.history)-2]
	last := v.history[len(v.history)-1]
	ver := Verification{Previous: prev.actual, Last: last.actual}
	if prev.actual > 0 {
		ver.Ratio = float64(last.actual) / float64(prev.actual)
	}
	if prev.scheduled > 0 {
		grew := float64(last.scheduled) / float64(prev.scheduled)
		ver.Checked = v.factor != 1 && math.Abs(grew-v.factor) < 1e-9
	}
	if ver.Checked {
		ver.Deviates = prev.actual <= 0 || math.Abs(ver.Ratio-v.factor) > factorTolerance
	}
	return ver, true
}

// Len returns the number of retained samples.
func (v *Verifier) Len() int { return len(v.history) }
