package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitRepository_SlidingWindow(t *testing.T) {
	repo := NewRateLimitRepository(newTestRedis(t), SlidingWindowConfig{KeyPrefix: "2fa:resend", TTL: 10 * time.Minute})
	ctx := context.Background()

	base := time.Date(2025, 10, 24, 10, 0, 0, 0, time.UTC)
	window := 10 * time.Minute

	for _, offset := range []time.Duration{0, time.Minute, 2 * time.Minute} {
		if err := repo.RecordAttempt(ctx, "user-1", base.Add(offset)); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := repo.CountAttempts(ctx, "user-1", window, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts, got %d", count)
	}

	// Once the reference moves past the first attempt, only two remain in view.
	count, err = repo.CountAttempts(ctx, "user-1", window, base.Add(10*time.Minute+time.Second))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts inside the window, got %d", count)
	}

	oldest, found, err := repo.OldestAttempt(ctx, "user-1", window, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if !found {
		t.Fatalf("expected an oldest attempt")
	}
	if !oldest.Equal(base) {
		t.Fatalf("expected oldest attempt at %v, got %v", base, oldest)
	}

	if err := repo.TrimWindow(ctx, "user-1", window, base.Add(11*time.Minute)); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	count, err = repo.CountAttempts(ctx, "user-1", window, base.Add(11*time.Minute))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts after trim, got %d", count)
	}
}

func TestRateLimitRepository_MissingIdentifier(t *testing.T) {
	repo := NewRateLimitRepository(newTestRedis(t), SlidingWindowConfig{KeyPrefix: "2fa:resend"})
	ctx := context.Background()

	count, err := repo.CountAttempts(ctx, "ghost", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero attempts, got %d", count)
	}

	if _, found, err := repo.OldestAttempt(ctx, "ghost", time.Minute, time.Now()); err != nil || found {
		t.Fatalf("expected no oldest attempt, got (found=%v, err=%v)", found, err)
	}
}

func TestRateLimitRepository_InvalidWindow(t *testing.T) {
	repo := NewRateLimitRepository(newTestRedis(t), SlidingWindowConfig{})

	if _, err := repo.CountAttempts(context.Background(), "user-1", 0, time.Now()); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
	if err := repo.TrimWindow(context.Background(), "user-1", -time.Second, time.Now()); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
}
