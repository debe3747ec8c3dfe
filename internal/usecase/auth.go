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
	"github.com/swistakmatt/2fa-app/internal/infra/config"
	"github.com/swistakmatt/2fa-app/internal/infra/logger"
	"github.com/swistakmatt/2fa-app/internal/infra/security"
	"github.com/swistakmatt/2fa-app/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account is disabled.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrNoActiveChallenge indicates the user has no outstanding verification challenge.
	ErrNoActiveChallenge = errors.New("no active challenge")
	// ErrChallengeExpired indicates the challenge validity window has passed.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrAttemptsExhausted indicates the verification attempt cap was reached.
	ErrAttemptsExhausted = errors.New("verification attempts exhausted")
)

// CodeRejectedError reports a wrong code together with the attempts left.
type CodeRejectedError struct {
	Remaining int
}

func (e *CodeRejectedError) Error() string {
	return fmt.Sprintf("code rejected, %d attempts remaining", e.Remaining)
}

// ResendThrottledError reports that the resend budget for the rolling window
// is spent. RetryAfter is the wait until the oldest resend leaves the window.
type ResendThrottledError struct {
	RetryAfter time.Duration
}

func (e *ResendThrottledError) Error() string {
	return fmt.Sprintf("resend throttled, retry after %s", e.RetryAfter)
}

// ChallengeResult describes a started or refreshed challenge.
type ChallengeResult struct {
	MaskedEmail string
	ExpiresIn   time.Duration
	Delivered   bool
}

// SessionResult carries the authenticated session token.
type SessionResult struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// AuthService drives a login attempt from credentials through second-factor
// verification to an authenticated session.
type AuthService struct {
	cfg           config.TwoFASettings
	users         port.UserRepository
	challenges    port.ChallengeStore
	resendLimiter port.RateLimitStore
	notifier      port.Notifier
	hasher        *security.Hasher
	tokens        *security.SessionTokenService
	now           func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg config.TwoFASettings,
	users port.UserRepository,
	challenges port.ChallengeStore,
	resendLimiter port.RateLimitStore,
	notifier port.Notifier,
	hasher *security.Hasher,
	tokens *security.SessionTokenService,
) (*AuthService, error) {
	if users == nil || challenges == nil || resendLimiter == nil || notifier == nil {
		return nil, fmt.Errorf("auth service dependencies are required")
	}
	if hasher == nil || tokens == nil {
		return nil, fmt.Errorf("hasher and token service are required")
	}

	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.ResendMax <= 0 {
		cfg.ResendMax = 3
	}
	if cfg.ResendWindow <= 0 {
		cfg.ResendWindow = 10 * time.Minute
	}
	if cfg.TOTPPeriod <= 0 {
		cfg.TOTPPeriod = security.DefaultTOTPPeriod
	}
	if cfg.TOTPDigits <= 0 {
		cfg.TOTPDigits = security.DefaultTOTPDigits
	}
	if cfg.TOTPSkew < 0 {
		cfg.TOTPSkew = security.DefaultTOTPSkew
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}

	return &AuthService{
		cfg:           cfg,
		users:         users,
		challenges:    challenges,
		resendLimiter: resendLimiter,
		notifier:      notifier,
		hasher:        hasher,
		tokens:        tokens,
		now:           time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// dummyDigest is verified against when the email is unknown so the lookup
// takes the same time either way.
const dummyDigest = "argon2id$v=19$m=65536,t=3,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login verifies the password factor and, on success, starts a verification
// challenge and dispatches the code. Any previous challenge for the user is
// replaced. A delivery failure keeps the challenge so the user can resend.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ChallengeResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_, _ = s.hasher.Verify(password, dummyDigest)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		logger.WithContext(ctx).Warn("stored password digest unreadable",
			zap.String("user_id", user.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive || user.Status == domain.UserStatusDisabled {
		return nil, ErrInactiveAccount
	}

	now := s.now().UTC()
	code, err := s.deriveCode(user, now)
	if err != nil {
		return nil, fmt.Errorf("derive verification code: %w", err)
	}

	if err := s.challenges.Start(ctx, user.ID, security.HashToken(code), s.cfg.CodeTTL, s.cfg.MaxAttempts); err != nil {
		return nil, fmt.Errorf("start challenge: %w", err)
	}

	delivered := s.dispatchCode(ctx, user, code, "login", now)

	return &ChallengeResult{
		MaskedEmail: logger.MaskEmail(user.Email),
		ExpiresIn:   s.cfg.CodeTTL,
		Delivered:   delivered,
	}, nil
}

// VerifyCode checks the submitted code against the pending challenge and
// issues a session token on acceptance. Wrong, expired, and absent challenges
// surface as distinct errors for logging; the transport boundary collapses
// them into a single generic rejection.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) (*SessionResult, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, ErrNoActiveChallenge
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveChallenge
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now().UTC()

	// A code from the adjacent time step is still acceptable even though its
	// hash differs from the stored one.
	windowMatch := false
	if user.TOTPSecret != "" {
		windowMatch, err = security.VerifyTOTP(user.TOTPSecret, code, now, s.cfg.TOTPPeriod, s.cfg.TOTPDigits, s.cfg.TOTPSkew)
		if err != nil {
			logger.WithContext(ctx).Warn("totp verification failed",
				zap.String("user_id", user.ID), zap.Error(err))
			windowMatch = false
		}
	}

	_, result, err := s.challenges.Attempt(ctx, user.ID, security.HashToken(code), windowMatch)
	if err != nil {
		return nil, fmt.Errorf("resolve attempt: %w", err)
	}

	switch result.Outcome {
	case port.AttemptAccepted:
		return s.openSession(ctx, user, now)
	case port.AttemptRejected:
		return nil, &CodeRejectedError{Remaining: result.Remaining}
	case port.AttemptExpired:
		return nil, ErrChallengeExpired
	case port.AttemptExhausted:
		return nil, ErrAttemptsExhausted
	default:
		return nil, ErrNoActiveChallenge
	}
}

// ResendCode rotates the code of an existing challenge and dispatches the new
// value. Consumed verification attempts are preserved and a throttle denial
// never costs one. Resends are capped per rolling window.
func (s *AuthService) ResendCode(ctx context.Context, email string) (*ChallengeResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrNoActiveChallenge
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveChallenge
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now().UTC()

	if _, err := s.challenges.Get(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveChallenge
		}
		return nil, fmt.Errorf("load challenge: %w", err)
	}

	if err := s.resendLimiter.TrimWindow(ctx, user.ID, s.cfg.ResendWindow, now); err != nil {
		return nil, fmt.Errorf("trim resend window: %w", err)
	}
	count, err := s.resendLimiter.CountAttempts(ctx, user.ID, s.cfg.ResendWindow, now)
	if err != nil {
		return nil, fmt.Errorf("count resends: %w", err)
	}
	if count >= s.cfg.ResendMax {
		retryAfter := s.cfg.ResendWindow
		if oldest, found, err := s.resendLimiter.OldestAttempt(ctx, user.ID, s.cfg.ResendWindow, now); err == nil && found {
			retryAfter = oldest.Add(s.cfg.ResendWindow).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return nil, &ResendThrottledError{RetryAfter: retryAfter}
	}

	code, err := s.deriveCode(user, now)
	if err != nil {
		return nil, fmt.Errorf("derive verification code: %w", err)
	}

	if err := s.challenges.Rotate(ctx, user.ID, security.HashToken(code), s.cfg.CodeTTL); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveChallenge
		}
		return nil, fmt.Errorf("rotate challenge: %w", err)
	}

	if err := s.resendLimiter.RecordAttempt(ctx, user.ID, now); err != nil {
		logger.WithContext(ctx).Warn("record resend failed",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	delivered := s.dispatchCode(ctx, user, code, "resend", now)

	return &ChallengeResult{
		MaskedEmail: logger.MaskEmail(user.Email),
		ExpiresIn:   s.cfg.CodeTTL,
		Delivered:   delivered,
	}, nil
}

// ValidateToken parses a session token and returns the subject user id.
func (s *AuthService) ValidateToken(token string) (string, error) {
	return s.tokens.Validate(token)
}

// Logout drops any pending challenge for the user. Session tokens are
// stateless and simply expire.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	return s.challenges.Clear(ctx, userID)
}

func (s *AuthService) openSession(ctx context.Context, user *domain.User, now time.Time) (*SessionResult, error) {
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		logger.WithContext(ctx).Warn("record login failed",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	logger.WithContext(ctx).Info("login completed",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return &SessionResult{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AuthService) deriveCode(user *domain.User, now time.Time) (string, error) {
	if user.TOTPSecret != "" {
		return security.GenerateTOTP(user.TOTPSecret, now, s.cfg.TOTPPeriod, s.cfg.TOTPDigits)
	}
	return security.GenerateNumericCode(s.cfg.TOTPDigits)
}

// dispatchCode hands the code to the notifier under a bounded timeout.
// Failure is soft: the challenge stays alive and the user can resend.
func (s *AuthService) dispatchCode(ctx context.Context, user *domain.User, code, reason string, now time.Time) bool {
	notifyCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()

	event := domain.CodeIssuedEvent{
		EventID:     uuid.NewString(),
		UserID:      user.ID,
		Email:       user.Email,
		MaskedEmail: logger.MaskEmail(user.Email),
		Code:        code,
		Reason:      reason,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.cfg.CodeTTL),
	}

	if err := s.notifier.SendCode(notifyCtx, event); err != nil {
		logger.WithContext(ctx).Warn("code delivery failed",
			zap.String("user_id", user.ID),
			zap.String("email", event.MaskedEmail),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return false
	}

	return true
}
