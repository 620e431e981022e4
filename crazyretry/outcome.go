package crazyretry

import "fmt"

// OutcomeKind classifies one retry attempt.
type OutcomeKind int

const (
	// Success: the regenerated answer is no longer busy.
	Success OutcomeKind = iota
	// StillBusy: the answer is missing or still busy after the settle delay.
	StillBusy
	// RateLimited: the host answered the click with its "too fast" toast.
	RateLimited
	// Unknown: a probe failed; Err holds the cause.
	Unknown
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case StillBusy:
		return "still_busy"
	case RateLimited:
		return "rate_limited"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the tagged result of an attempt.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

func (o Outcome) String() string {
	if o.Err != nil {
		return o.Kind.String() + ": " + o.Err.Error()
	}
	return o.Kind.String()
}

func unknown(err error) Outcome { return Outcome{Kind: Unknown, Err: err} }
