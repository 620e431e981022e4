package crazyretry

import (
	"encoding/json"
	"time"
)

// State is the branch taken by the last iteration.
type State string

const (
	StateStarting  State = "starting"
	StateNoAnswer  State = "no_answer"
	StateOverLimit State = "over_limit"
	StateNotBusy   State = "not_busy"
	StateRetried   State = "retried"
	StateStillBusy State = "still_busy"
	StateCooldown  State = "cooldown"
	StateError     State = "error"
	StateStopped   State = "stopped"
)

// Status is a copy of the orchestrator's state, safe to hand to other
// goroutines.
type Status struct {
	State         State         `json:"state"`
	Delay         time.Duration `json:"delay_ms"`
	Fingerprint   string        `json:"fingerprint,omitempty"`
	Attempts      int           `json:"attempts"`
	Limit         int           `json:"limit"`
	Iterations    uint64        `json:"iterations"`
	Retries       uint64        `json:"retries"`
	LastOutcome   string        `json:"last_outcome,omitempty"`
	CooldownUntil time.Time     `json:"cooldown_until,omitzero"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// MarshalJSON writes Delay as milliseconds.
func (s Status) MarshalJSON() ([]byte, error) {
	type alias Status
	return json.Marshal(struct {
		alias
		Delay int64 `json:"delay_ms"`
	}{alias: alias(s), Delay: s.Delay.Milliseconds()})
}

// UnmarshalJSON reads Delay from milliseconds.
func (s *Status) UnmarshalJSON(data []byte) error {
	type alias Status
	aux := struct {
		*alias
		Delay int64 `json:"delay_ms"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Delay = time.Duration(aux.Delay) * time.Millisecond
	return nil
}
