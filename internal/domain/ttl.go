package domain

import "time"

// TTLPolicy maps session states to persistence lifetimes. Draft states
// expire quickly, filled documents live longer, signed documents longest.
type TTLPolicy struct {
	Draft  time.Duration
	Filled time.Duration
	Signed time.Duration
}

// DefaultTTLPolicy mirrors the production defaults: drafts a day, filled
// documents three days, signed documents a year.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Draft:  24 * time.Hour,
		Filled: 72 * time.Hour,
		Signed: 365 * 24 * time.Hour,
	}
}

// ForState returns the lifetime for a session in the given state.
func (p TTLPolicy) ForState(state SessionState) time.Duration {
	switch state {
	case StateBuilt, StateReadyToSign:
		return p.Filled
	case StateCompleted:
		return p.Signed
	default:
		return p.Draft
	}
}

// ForSession returns the lifetime for the session's current state.
func (p TTLPolicy) ForSession(s *Session) time.Duration {
	return p.ForState(s.State)
}
