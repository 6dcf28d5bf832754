package domain

import "time"

// State is a campaign lifecycle state.
type State string

const (
	StateActive     State = "active"
	StateSuccessful State = "successful"
	StateFailed     State = "failed"
)

// Classify derives the lifecycle state from the campaign record and the
// supplied clock reading. It is a pure function: before the deadline the
// campaign is active; at or after it, successful iff the collected amount
// reached the target, otherwise failed. Once now >= deadline the result
// is stable for a fixed collected amount.
func Classify(c *Campaign, now time.Time) State {
	if now.Before(c.Deadline) {
		return StateActive
	}
	if c.AmountCollected.Cmp(c.Target) >= 0 {
		return StateSuccessful
	}
	return StateFailed
}

// IsTerminal reports whether the state admits no further donations.
func (s State) IsTerminal() bool {
	return s == StateSuccessful || s == StateFailed
}
