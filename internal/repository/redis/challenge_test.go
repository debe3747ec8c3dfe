package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/swistakmatt/2fa-app/internal/core/port"
	"github.com/swistakmatt/2fa-app/internal/repository"
)

func newTestRedis(t *testing.T) *red.Client {
	t.Helper()

	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(srv.Close)

	client := red.NewClient(&red.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func newTestChallengeRepo(t *testing.T, at time.Time) *ChallengeRepository {
	t.Helper()

	repo := NewChallengeRepository(newTestRedis(t), "")
	repo.WithClock(func() time.Time { return at })
	return repo
}

func TestChallengeRepository_StartAndGet(t *testing.T) {
	now := time.Date(2025, 10, 24, 10, 0, 0, 0, time.UTC)
	repo := newTestChallengeRepo(t, now)
	ctx := context.Background()

	if err := repo.Start(ctx, "user-1", "hash-a", 5*time.Minute, 5); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	challenge, err := repo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if challenge.CodeHash != "hash-a" {
		t.Fatalf("expected code hash hash-a, got %s", challenge.CodeHash)
	}
	if challenge.RemainingAttempts != 5 {
		t.Fatalf("expected 5 remaining attempts, got %d", challenge.RemainingAttempts)
	}
	if !challenge.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", challenge.ExpiresAt)
	}
}

func TestChallengeRepository_StartOverwrites(t *testing.T) {
	now := time.Date(2025, 10, 24, 10, 0, 0, 0, time.UTC)
	repo := newTestChallengeRepo(t, now)
	ctx := context.Background()

	if err := repo.Start(ctx, "user-1", "hash-a", 5*time.Minute, 5); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	// Burn two attempts against the first challenge.
	for i := 0; i < 2; i++ {
		if _, _, err := repo.Attempt(ctx, "user-1", "wrong", false); err != nil {
			t.Fatalf("Attempt returned error: %v", err)
		}
	}

	if err := repo.Start(ctx, "user-1", "hash-b", 5*time.Minute, 5); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	challenge, err := repo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if challenge.CodeHash != "hash-b" {
		t.Fatalf("expected replacement hash, got %s", challenge.CodeHash)
	}
	if challenge.RemainingAttempts != 5 {
		t.Fatalf("expected restored attempt budget, got %d", challenge.RemainingAttempts)
	}
}

func TestChallengeRepository_AttemptLifecycle(t *testing.T) {
	now := time.Date(2025, 10, 24, 10, 0, 0, 0, time.UTC)
	repo := newTestChallengeRepo(t, now)
	ctx := context.Background()

	if err := repo.Start(ctx, "user-1", "hash-a", 5*time.Minute, 5); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	_, result, err := repo.Attempt(ctx, "user-1", "wrong", false)
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if result.Outcome != port.AttemptRejected || result.Remaining != 4 {
		t.Fatalf("expected rejection with 4 remaining, got %+v", result)
	}

	challenge, result, err := repo.Attempt(ctx, "user-1", "hash-a", false)
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if result.Outcome != port.AttemptAccepted {
		t.Fatalf("expected acceptance, got %+v", result)
	}
	if challenge.CodeHash != "hash-a" {
		t.Fatalf("expected challenge payload on acceptance, got %+v", challenge)
	}

	// Acceptance consumes the challenge.
	if _, err := repo.Get(ctx, "user-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after acceptance, got %v", err)
	}
}

func TestChallengeRepository_AttemptWindowMatch(t *testing.T) {
	now := time.Date(2025, 10, 24, 10, 0, 0, 0, time.UTC)
	repo := newTestChallengeRepo(t, now)
	ctx := context.Background()

	if err := repo.Start(ctx, "user-1", "hash-current", 5*time.Minute, 5); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	// The submitted hash differs from the stored one but the code engine
	// validated it against an adjacent step.
	_, result, err := repo.Attempt(ctx, "user-1", "hash-previous", true)
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if result.Outcome != port.AttemptAccepted {
		t.Fatalf("expected window-matched acceptance, got %+v", result)
	}
}

func TestChallengeRepository_AttemptExhaustion(t *testing.T) {
	now := time.Date(2025, 10, 24, 10, 0, 0, 0, time.UTC)
	repo := newTestChallengeRepo(t, now)
	ctx := context.Background()

	if err := repo.Start(ctx, "user-1", "hash-a", 5*time.Minute, 5); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	for want := 4; want >= 1; want-- {
		_, result, err := repo.Attempt(ctx, "user-1", "wrong", false)
		if err != nil {
			t.Fatalf("Attempt returned error: %v", err)
		}
		if result.Outcome != port.AttemptRejected || result.Remaining != want {
			t.Fatalf("expected rejection with %d remaining, got %+v", want, result)
		}
	}

	// The attempt that drains the budget invalidates the challenge.
	_, result, err := repo.Attempt(ctx, "user-1", "wrong", false)
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if result.Outcome != port.AttemptExhausted {
		t.Fatalf("expected exhaustion, got %+v", result)
	}

	// Even the correct code is refused afterwards.
	_, result, err = repo.Attempt(ctx, "user-1", "hash-a", false)
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if result.Outcome != port.AttemptNoChallenge {
		t.Fatalf("expected no-challenge after exhaustion, got %+v", result)
	}
}

func TestChallengeRepository_AttemptExpired(t *testing.T) {
	now := time.Date(2025, 10, 24, 10, 0, 0, 0, time.UTC)
	repo := newTestChallengeRepo(t, now)
	ctx := context.Background()

	if err := repo.Start(ctx, "user-1", "hash-a", 5*time.Minute, 5); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	repo.WithClock(func() time.Time { return now.Add(5*time.Minute + time.Second) })

	_, result, err := repo.Attempt(ctx, "user-1", "hash-a", false)
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if result.Outcome != port.AttemptExpired {
		t.Fatalf("expected expiry, got %+v", result)
	}

	if _, err := repo.Get(ctx, "user-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestChallengeRepository_AttemptMissing(t *testing.T) {
	repo := newTestChallengeRepo(t, time.Now())

	_, result, err := repo.Attempt(context.Background(), "ghost", "hash", false)
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if result.Outcome != port.AttemptNoChallenge {
		t.Fatalf("expected no-challenge outcome, got %+v", result)
	}
}

func TestChallengeRepository_RotatePreservesAttempts(t *testing.T) {
	now := time.Date(2025, 10, 24, 10, 0, 0, 0, time.UTC)
	repo := newTestChallengeRepo(t, now)
	ctx := context.Background()

	if err := repo.Start(ctx, "user-1", "hash-a", 5*time.Minute, 5); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, _, err := repo.Attempt(ctx, "user-1", "wrong", false); err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}

	later := now.Add(2 * time.Minute)
	repo.WithClock(func() time.Time { return later })

	if err := repo.Rotate(ctx, "user-1", "hash-b", 5*time.Minute); err != nil {
		t.Fatalf("Rotate returned error: %v", err)
	}

	challenge, err := repo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if challenge.CodeHash != "hash-b" {
		t.Fatalf("expected rotated hash, got %s", challenge.CodeHash)
	}
	if challenge.RemainingAttempts != 4 {
		t.Fatalf("expected consumed attempts preserved, got %d", challenge.RemainingAttempts)
	}
	if !challenge.ExpiresAt.Equal(later.Add(5 * time.Minute)) {
		t.Fatalf("expected refreshed expiry, got %v", challenge.ExpiresAt)
	}

	// The old code no longer matches after rotation.
	_, result, err := repo.Attempt(ctx, "user-1", "hash-a", false)
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if result.Outcome != port.AttemptRejected {
		t.Fatalf("expected stale hash rejection, got %+v", result)
	}
}

func TestChallengeRepository_RotateMissing(t *testing.T) {
	repo := newTestChallengeRepo(t, time.Now())

	if err := repo.Rotate(context.Background(), "ghost", "hash-b", time.Minute); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChallengeRepository_Clear(t *testing.T) {
	now := time.Date(2025, 10, 24, 10, 0, 0, 0, time.UTC)
	repo := newTestChallengeRepo(t, now)
	ctx := context.Background()

	if err := repo.Start(ctx, "user-1", "hash-a", 5*time.Minute, 5); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := repo.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if _, err := repo.Get(ctx, "user-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}

	// Clearing an absent challenge is not an error.
	if err := repo.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
}
