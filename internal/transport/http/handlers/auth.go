package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swistakmatt/2fa-app/internal/infra/security"
	"github.com/swistakmatt/2fa-app/internal/transport/http/middleware"
	"github.com/swistakmatt/2fa-app/internal/usecase"
)

const (
	resendThrottledProblemType  = "https://twofa.example.com/errors/resend-throttled"
	resendThrottledProblemTitle = "Resend Limit Exceeded"
)

// AuthHandler exposes the two-factor authentication endpoints.
type AuthHandler struct {
	auth         *usecase.AuthService
	registration *usecase.RegistrationService
}

// AuthHandlerOption configures optional AuthHandler dependencies.
type AuthHandlerOption func(*AuthHandler)

// WithRegistrationService injects the registration service dependency.
func WithRegistrationService(registration *usecase.RegistrationService) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.registration = registration
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, opts ...AuthHandlerOption) *AuthHandler {
	handler := &AuthHandler{auth: auth}

	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}

	return handler
}

// RouteMiddlewares carries per-endpoint middleware chains applied ahead of
// the bound handlers.
type RouteMiddlewares struct {
	Register []gin.HandlerFunc
	Login    []gin.HandlerFunc
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, mw RouteMiddlewares) {
	r.POST("/register", withHandler(mw.Register, h.register)...)
	r.POST("/login", withHandler(mw.Login, h.login)...)
	r.POST("/verify", h.verify)
	r.POST("/resend", h.resend)
	r.POST("/logout", middleware.RequireAuth(h.auth), h.logout)
}

func withHandler(chain []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := append([]gin.HandlerFunc{}, chain...)
	return append(out, handler)
}

// Register godoc
// @Summary Register a new user account
// @Description Creates a new user with the supplied email and password.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request payload"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) register(c *gin.Context) {
	if h.registration == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "registration service unavailable"))
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	result, err := h.registration.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var validationErr *security.PasswordValidationError
		switch {
		case errors.Is(err, usecase.ErrEmailTaken):
			c.JSON(http.StatusConflict, NewErrorResponse(c, "email already registered"))
		case errors.Is(err, usecase.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid email address"))
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, validationErr.Error()))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to register user"))
		}
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		ID:    result.UserID,
		Email: result.Email,
	})
}

// Login godoc
// @Summary Authenticate with email and password
// @Description Validates the first factor and, on success, emails a verification code.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} ChallengeResponse "Verification code dispatched"
// @Failure 400 {object} ErrorResponse "Invalid request payload"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 403 {object} ErrorResponse "Account inactive"
// @Failure 429 {object} middleware.ProblemDetails "Rate limit exceeded"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account inactive"},
		}, http.StatusInternalServerError, "authentication failed")
		return
	}

	c.JSON(http.StatusOK, ChallengeResponse{
		Outcome:     "challenge_sent",
		MaskedEmail: result.MaskedEmail,
		ExpiresIn:   int(result.ExpiresIn / time.Second),
		Delivered:   result.Delivered,
	})
}

// Verify godoc
// @Summary Verify the emailed code
// @Description Completes the second factor and issues a session token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Verification request"
// @Success 200 {object} SessionResponse "Session issued"
// @Failure 400 {object} ErrorResponse "Invalid request payload"
// @Failure 401 {object} VerifyRejectedResponse "Code rejected"
// @Failure 423 {object} ErrorResponse "Attempts exhausted"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/v1/auth/verify [post]
func (h *AuthHandler) verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	result, err := h.auth.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		h.respondVerifyError(c, err)
		return
	}

	expiresIn := int(time.Until(result.ExpiresAt) / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}

	c.JSON(http.StatusOK, SessionResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		UserID:      result.UserID,
	})
}

func (h *AuthHandler) respondVerifyError(c *gin.Context, err error) {
	var rejectedErr *usecase.CodeRejectedError
	if errors.As(err, &rejectedErr) {
		c.JSON(http.StatusUnauthorized, VerifyRejectedResponse{
			Error:             "verification code rejected",
			RemainingAttempts: rejectedErr.Remaining,
			TraceID:           middleware.GetTraceID(c),
		})
		return
	}

	switch {
	case errors.Is(err, usecase.ErrAttemptsExhausted):
		c.JSON(http.StatusLocked, NewErrorResponse(c, "too many failed attempts, restart login"))
	case errors.Is(err, usecase.ErrNoActiveChallenge),
		errors.Is(err, usecase.ErrChallengeExpired),
		errors.Is(err, usecase.ErrInvalidCredentials):
		// Absent, expired, and unknown-account cases collapse into one
		// external rejection so the endpoint leaks nothing about state.
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "verification failed"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "verification failed"))
	}
}

// Resend godoc
// @Summary Resend the verification code
// @Description Rotates the pending challenge code and dispatches it again.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body ResendRequest true "Resend request"
// @Success 200 {object} ChallengeResponse "Code dispatched"
// @Failure 400 {object} ErrorResponse "Invalid request payload"
// @Failure 401 {object} ErrorResponse "No pending challenge"
// @Failure 429 {object} middleware.ProblemDetails "Resend limit exceeded"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/v1/auth/resend [post]
func (h *AuthHandler) resend(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid resend payload"))
		return
	}

	result, err := h.auth.ResendCode(c.Request.Context(), req.Email)
	if err != nil {
		var throttledErr *usecase.ResendThrottledError
		switch {
		case errors.As(err, &throttledErr):
			respondResendThrottled(c, throttledErr)
		case errors.Is(err, usecase.ErrNoActiveChallenge),
			errors.Is(err, usecase.ErrChallengeExpired),
			errors.Is(err, usecase.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "verification failed"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to resend code"))
		}
		return
	}

	c.JSON(http.StatusOK, ChallengeResponse{
		Outcome:     "sent",
		MaskedEmail: result.MaskedEmail,
		ExpiresIn:   int(result.ExpiresIn / time.Second),
		Delivered:   result.Delivered,
	})
}

// Logout godoc
// @Summary Abandon any pending verification challenge
// @Description Clears the caller's pending challenge. Session tokens are stateless and simply expire.
// @Tags Authentication
// @Produce json
// @Success 204 {string} string ""
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to logout"))
		return
	}

	c.Status(http.StatusNoContent)
}

func respondResendThrottled(c *gin.Context, throttledErr *usecase.ResendThrottledError) {
	retryAfter := int(throttledErr.RetryAfter / time.Second)
	if throttledErr.RetryAfter%time.Second != 0 {
		retryAfter++
	}
	if retryAfter < 0 {
		retryAfter = 0
	}

	detail := "Too many resend requests. Try again later."
	if throttledErr.RetryAfter > 0 {
		detail = fmt.Sprintf("Too many resend requests. Try again in %d seconds.", retryAfter)
	}

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	if retryAfter > 0 {
		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
	}

	problem := middleware.ProblemDetails{
		Type:       resendThrottledProblemType,
		Title:      resendThrottledProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     detail,
		Instance:   instance,
		RetryAfter: retryAfter,
		TraceID:    middleware.GetTraceID(c),
	}

	c.JSON(http.StatusTooManyRequests, problem)
}
