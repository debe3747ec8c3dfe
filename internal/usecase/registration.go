package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
	"github.com/swistakmatt/2fa-app/internal/core/port"
	"github.com/swistakmatt/2fa-app/internal/infra/logger"
	"github.com/swistakmatt/2fa-app/internal/infra/security"
	"github.com/swistakmatt/2fa-app/internal/repository"
)

var (
	// ErrEmailTaken indicates an account already exists for the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidEmail indicates the email address is not usable.
	ErrInvalidEmail = errors.New("invalid email address")
)

// RegistrationResult is returned after a successful sign-up.
type RegistrationResult struct {
	UserID string
	Email  string
}

// RegistrationService creates accounts with a hashed password and a
// per-user code derivation secret.
type RegistrationService struct {
	users     port.UserRepository
	events    port.EventPublisher
	hasher    *security.Hasher
	validator *security.PasswordValidator
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	users port.UserRepository,
	events port.EventPublisher,
	hasher *security.Hasher,
	validator *security.PasswordValidator,
) (*RegistrationService, error) {
	if users == nil || events == nil || hasher == nil {
		return nil, fmt.Errorf("registration service dependencies are required")
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}

	return &RegistrationService{
		users:     users,
		events:    events,
		hasher:    hasher,
		validator: validator,
		now:       time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register creates a user record. The password is stored as an Argon2id
// digest and the code derivation secret never leaves the record.
func (s *RegistrationService) Register(ctx context.Context, email, password string) (*RegistrationResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}

	if err := s.validator.Validate(password); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	totpSecret, err := security.GenerateTOTPSecret()
	if err != nil {
		return nil, fmt.Errorf("generate code secret: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		PasswordAlgo: "argon2id",
		TOTPSecret:   totpSecret,
		Status:       domain.UserStatusActive,
		IsActive:     true,
		RegisteredAt: s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        logger.MaskEmail(user.Email),
		Status:       user.Status,
		RegisteredAt: user.RegisteredAt,
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("publish user registered failed",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	logger.WithContext(ctx).Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return &RegistrationResult{UserID: user.ID, Email: user.Email}, nil
}

func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domainPart := email[at+1:]
	if strings.Contains(domainPart, "@") || !strings.Contains(domainPart, ".") {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}
