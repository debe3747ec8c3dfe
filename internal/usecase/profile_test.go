package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
	"github.com/swistakmatt/2fa-app/internal/infra/security"
)

func newProfileFixture(t *testing.T) (*ProfileService, *authFixture) {
	t.Helper()

	fx := newAuthFixture(t)

	svc, err := NewProfileService(fx.users, fx.challenges, fx.hasher, security.DefaultPasswordValidator())
	if err != nil {
		t.Fatalf("NewProfileService: %v", err)
	}

	return svc, fx
}

func TestProfileService_Get(t *testing.T) {
	svc, _ := newProfileFixture(t)
	ctx := context.Background()

	user, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if user.Email != "a@x.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := svc.Get(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, "  "); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for blank id, got %v", err)
	}
}

func TestProfileService_UpdateEmail(t *testing.T) {
	svc, fx := newProfileFixture(t)
	ctx := context.Background()

	user, err := svc.Update(ctx, "user-1", ProfileUpdate{Email: "New@X.com"})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if user.Email != "new@x.com" {
		t.Fatalf("expected lowercased new email, got %s", user.Email)
	}

	// The password factor keeps working under the new address.
	if _, err := fx.svc.Login(ctx, "new@x.com", testPassword); err != nil {
		t.Fatalf("Login under new email returned error: %v", err)
	}
	if _, err := fx.svc.Login(ctx, "a@x.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old email to be gone, got %v", err)
	}
}

func TestProfileService_UpdateEmailRejectsTakenAndInvalid(t *testing.T) {
	svc, fx := newProfileFixture(t)
	ctx := context.Background()

	fx.users.byEmail["b@x.com"] = &domain.User{
		ID:       "user-2",
		Email:    "b@x.com",
		Status:   domain.UserStatusActive,
		IsActive: true,
	}

	if _, err := svc.Update(ctx, "user-1", ProfileUpdate{Email: "b@x.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.Update(ctx, "user-1", ProfileUpdate{Email: "not-an-email"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}

	// Re-submitting the current address is a no-op, not a collision.
	if _, err := svc.Update(ctx, "user-1", ProfileUpdate{Email: "A@X.com"}); err != nil {
		t.Fatalf("expected current email to be accepted, got %v", err)
	}
}

func TestProfileService_UpdatePassword(t *testing.T) {
	svc, fx := newProfileFixture(t)
	ctx := context.Background()

	const newPassword = "tr0ub4dor&3-horse"

	user, err := svc.Update(ctx, "user-1", ProfileUpdate{Password: newPassword})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if ok, err := fx.hasher.Verify(newPassword, user.PasswordHash); err != nil || !ok {
		t.Fatalf("expected new password to verify, got (%v, %v)", ok, err)
	}
	if _, err := fx.svc.Login(ctx, "a@x.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejection, got %v", err)
	}
	if _, err := fx.svc.Login(ctx, "a@x.com", newPassword); err != nil {
		t.Fatalf("Login with new password returned error: %v", err)
	}
}

func TestProfileService_UpdateRejectsWeakPassword(t *testing.T) {
	svc, fx := newProfileFixture(t)
	ctx := context.Background()

	var validationErr *security.PasswordValidationError
	if _, err := svc.Update(ctx, "user-1", ProfileUpdate{Password: "password1"}); !errors.As(err, &validationErr) {
		t.Fatalf("expected password validation error, got %v", err)
	}

	// The stored digest is untouched after the rejection.
	if _, err := fx.svc.Login(ctx, "a@x.com", testPassword); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
}

func TestProfileService_UpdateWithoutChanges(t *testing.T) {
	svc, fx := newProfileFixture(t)

	before := fx.users.byEmail["a@x.com"].PasswordHash

	user, err := svc.Update(context.Background(), "user-1", ProfileUpdate{})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if user.Email != "a@x.com" || user.PasswordHash != before {
		t.Fatalf("expected record untouched, got %+v", user)
	}
}

func TestProfileService_Deactivate(t *testing.T) {
	svc, fx := newProfileFixture(t)
	ctx := context.Background()

	// A pending challenge must not survive the deactivation.
	if _, err := fx.svc.Login(ctx, "a@x.com", testPassword); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := svc.Deactivate(ctx, "user-1"); err != nil {
		t.Fatalf("Deactivate returned error: %v", err)
	}

	stored := fx.users.byEmail["a@x.com"]
	if stored.Status != domain.UserStatusDisabled || stored.IsActive {
		t.Fatalf("expected disabled account, got %+v", stored)
	}
	if len(fx.challenges.byUser) != 0 {
		t.Fatalf("expected pending challenge to be cleared")
	}

	if _, err := fx.svc.Login(ctx, "a@x.com", testPassword); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount after deactivation, got %v", err)
	}

	if err := svc.Deactivate(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
