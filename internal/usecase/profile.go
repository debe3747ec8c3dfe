package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
	"github.com/swistakmatt/2fa-app/internal/core/port"
	"github.com/swistakmatt/2fa-app/internal/infra/logger"
	"github.com/swistakmatt/2fa-app/internal/infra/security"
	"github.com/swistakmatt/2fa-app/internal/repository"
)

// ErrUserNotFound indicates no account exists behind the given identifier.
var ErrUserNotFound = errors.New("user not found")

// ProfileUpdate carries the optional fields of a profile update. Empty values
// leave the current ones in place.
type ProfileUpdate struct {
	Email    string
	Password string
}

// ProfileService serves the account self-management operations available to
// an authenticated user.
type ProfileService struct {
	users      port.UserRepository
	challenges port.ChallengeStore
	hasher     *security.Hasher
	validator  *security.PasswordValidator
}

// NewProfileService constructs a ProfileService instance.
func NewProfileService(
	users port.UserRepository,
	challenges port.ChallengeStore,
	hasher *security.Hasher,
	validator *security.PasswordValidator,
) (*ProfileService, error) {
	if users == nil || challenges == nil || hasher == nil {
		return nil, fmt.Errorf("profile service dependencies are required")
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}

	return &ProfileService{
		users:      users,
		challenges: challenges,
		hasher:     hasher,
		validator:  validator,
	}, nil
}

// Get returns the account behind the authenticated session.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserNotFound
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return user, nil
}

// Update applies the requested email and password changes. Both fields are
// optional; an empty update returns the current record untouched. A new email
// must not collide with another account.
func (s *ProfileService) Update(ctx context.Context, userID string, update ProfileUpdate) (*domain.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	newEmail := strings.ToLower(strings.TrimSpace(update.Email))
	if newEmail != "" && newEmail != user.Email {
		if !validEmail(newEmail) {
			return nil, ErrInvalidEmail
		}
		if err := s.users.UpdateEmail(ctx, user.ID, newEmail); err != nil {
			switch {
			case errors.Is(err, repository.ErrDuplicate):
				return nil, ErrEmailTaken
			case errors.Is(err, repository.ErrNotFound):
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("update email: %w", err)
		}
		user.Email = newEmail

		logger.WithContext(ctx).Info("email updated",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(newEmail)),
		)
	}

	if update.Password != "" {
		if err := s.validator.Validate(update.Password); err != nil {
			return nil, err
		}
		passwordHash, err := s.hasher.Hash(update.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("update password: %w", err)
		}
		user.PasswordHash = passwordHash

		logger.WithContext(ctx).Info("password updated",
			zap.String("user_id", user.ID))
	}

	return user, nil
}

// Deactivate disables the account and drops any pending challenge so a
// half-finished login cannot outlive it. The row is kept for audit history
// rather than deleted.
func (s *ProfileService) Deactivate(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserNotFound
	}

	if err := s.users.UpdateStatus(ctx, userID, domain.UserStatusDisabled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("disable user: %w", err)
	}

	if err := s.challenges.Clear(ctx, userID); err != nil {
		logger.WithContext(ctx).Warn("clear challenge failed",
			zap.String("user_id", userID), zap.Error(err))
	}

	logger.WithContext(ctx).Info("account deactivated",
		zap.String("user_id", userID))

	return nil
}
