package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse contains the created account identifiers.
type RegisterResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginRequest defines the payload for the first authentication factor.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChallengeResponse is returned when a verification code has been issued.
// ExpiresIn is the challenge lifetime in seconds. Delivered reports whether
// the code left the service; a false value means delivery is degraded and the
// client may retry via resend.
type ChallengeResponse struct {
	Outcome     string `json:"outcome"`
	MaskedEmail string `json:"masked_email,omitempty"`
	ExpiresIn   int    `json:"expires_in"`
	Delivered   bool   `json:"delivered"`
}

// VerifyRequest holds the second-factor verification payload.
type VerifyRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// VerifyRejectedResponse reports a wrong code together with the remaining
// attempt budget.
type VerifyRejectedResponse struct {
	Error             string `json:"error"`
	RemainingAttempts int    `json:"remaining_attempts"`
	TraceID           string `json:"trace_id,omitempty"`
}

// SessionResponse describes the session issued after full verification.
type SessionResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      string `json:"user_id"`
}

// ResendRequest asks for a fresh verification code for a pending challenge.
type ResendRequest struct {
	Email string `json:"email" binding:"required"`
}

// UpdateProfileRequest carries optional profile changes. Empty fields are
// left unchanged.
type UpdateProfileRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileResponse describes the account behind the authenticated session.
type ProfileResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Status       string     `json:"status"`
	IsActive     bool       `json:"is_active"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
