package domain

import "time"

// PendingChallenge is the server-side record of an outstanding second-factor
// verification for a single user. At most one exists per user; starting a new
// login overwrites any previous challenge. Only the SHA-256 hash of the
// delivered code is ever stored.
type PendingChallenge struct {
	UserID            string
	CodeHash          string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	RemainingAttempts int
}

// Expired reports whether the challenge validity window has passed at the
// supplied reference time.
func (c PendingChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Exhausted reports whether no verification attempts remain.
func (c PendingChallenge) Exhausted() bool {
	return c.RemainingAttempts <= 0
}
