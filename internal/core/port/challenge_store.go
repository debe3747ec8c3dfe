package port

import (
	"context"
	"time"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
)

// AttemptOutcome classifies the result of a verification attempt.
type AttemptOutcome int

const (
	// AttemptAccepted means the submitted code matched; the challenge is consumed.
	AttemptAccepted AttemptOutcome = iota
	// AttemptRejected means the code was wrong; one attempt was consumed.
	AttemptRejected
	// AttemptNoChallenge means no active challenge exists for the user.
	AttemptNoChallenge
	// AttemptExpired means the challenge validity window has passed.
	AttemptExpired
	// AttemptExhausted means the attempt cap was reached; the challenge is gone.
	AttemptExhausted
)

// AttemptResult carries the outcome of a single verification attempt.
type AttemptResult struct {
	Outcome   AttemptOutcome
	Remaining int
}

// ChallengeStore tracks pending second-factor challenges keyed by user id.
// Implementations must serialize mutations per user so a concurrent attempt
// and resend cannot race into an inconsistent counter or expiry.
type ChallengeStore interface {
	// Start creates a challenge for the user, overwriting any existing one,
	// with a full attempt budget.
	Start(ctx context.Context, userID, codeHash string, ttl time.Duration, attemptCap int) error
	// Attempt checks the submitted code hash against the stored challenge.
	// It fails closed: absent, expired, or exhausted challenges are never
	// accepted. windowMatch marks a code the TOTP engine already validated
	// against the adjacent time steps; such codes are accepted even if the
	// stored hash belongs to a neighboring step.
	Attempt(ctx context.Context, userID, codeHash string, windowMatch bool) (domain.PendingChallenge, AttemptResult, error)
	// Rotate replaces the code hash and refreshes the expiry of an existing
	// challenge without restoring consumed attempts. Returns
	// repository.ErrNotFound when the user has no active challenge.
	Rotate(ctx context.Context, userID, codeHash string, ttl time.Duration) error
	// Get returns the active challenge, treating expired records as absent.
	Get(ctx context.Context, userID string) (*domain.PendingChallenge, error)
	// Clear removes the challenge, if any.
	Clear(ctx context.Context, userID string) error
}
