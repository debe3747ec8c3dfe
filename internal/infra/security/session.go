package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

const (
	sessionTokenType    = "session"
	sessionTokenVersion = 1

	defaultSessionTTL = 30 * time.Minute
)

var (
	// ErrTokenMalformed indicates the token could not be parsed.
	ErrTokenMalformed = errors.New("session token malformed")
	// ErrTokenExpired indicates the token's expiry claim is in the past.
	ErrTokenExpired = errors.New("session token expired")
	// ErrTokenSignature indicates signature verification failed.
	ErrTokenSignature = errors.New("session token signature invalid")
	// ErrTokenScheme indicates the token type or version does not match.
	ErrTokenScheme = errors.New("session token scheme mismatch")
)

// SessionClaims augments registered claims with the token scheme markers.
type SessionClaims struct {
	TokenType string `json:"typ"`
	Version   int    `json:"ver"`
	jwt.RegisteredClaims
}

// SessionTokenService issues and validates HS256-signed session tokens.
// The signing secret is process-wide configuration injected at construction
// and never logged.
type SessionTokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionTokenService constructs a SessionTokenService.
func NewSessionTokenService(secret, issuer string, ttl time.Duration) (*SessionTokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	return &SessionTokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *SessionTokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// TTL returns the configured token lifetime.
func (s *SessionTokenService) TTL() time.Duration {
	return s.ttl
}

// Issue mints a signed session token for the user.
func (s *SessionTokenService) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("user id is required")
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)

	claims := SessionClaims{
		TokenType: sessionTokenType,
		Version:   sessionTokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}

	return signed, expiresAt, nil
}

// Validate parses the token and returns the subject user id. Malformed,
// expired, badly signed, and wrong-scheme tokens are distinguished by the
// returned sentinel so callers can log the cause; the HTTP boundary collapses
// all of them to a single unauthenticated response.
func (s *SessionTokenService) Validate(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenMalformed
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", ErrTokenSignature
		default:
			return "", ErrTokenMalformed
		}
	}

	if parsed == nil || !parsed.Valid {
		return "", ErrTokenMalformed
	}
	if claims.TokenType != sessionTokenType || claims.Version != sessionTokenVersion {
		return "", ErrTokenScheme
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrTokenMalformed
	}

	return claims.Subject, nil
}
