package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
	"github.com/swistakmatt/2fa-app/internal/infra/security"
	"github.com/swistakmatt/2fa-app/internal/transport/http/middleware"
	"github.com/swistakmatt/2fa-app/internal/usecase"
)

// UserHandler exposes the authenticated account management endpoints.
type UserHandler struct {
	profile *usecase.ProfileService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(profile *usecase.ProfileService) *UserHandler {
	return &UserHandler{profile: profile}
}

// RegisterRoutes binds the profile routes. The group is expected to carry the
// session authentication middleware.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.me)
	r.PUT("/update", h.update)
	r.DELETE("/delete", h.deactivate)
}

// Me godoc
// @Summary Get the authenticated user's profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/me [get]
func (h *UserHandler) me(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	user, err := h.profile.Get(c.Request.Context(), userID)
	if err != nil {
		h.respondProfileError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(user))
}

// Update godoc
// @Summary Update the authenticated user's email or password
// @Description Both fields are optional; omitted fields stay unchanged.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile changes"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/users/update [put]
func (h *UserHandler) update(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid profile payload"))
		return
	}

	user, err := h.profile.Update(c.Request.Context(), userID, usecase.ProfileUpdate{
		Email:    req.Email,
		Password: req.Password,
	})
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
			h.respondProfileError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(user))
}

// Delete godoc
// @Summary Deactivate the authenticated user's account
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/users/delete [delete]
func (h *UserHandler) deactivate(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.profile.Deactivate(c.Request.Context(), userID); err != nil {
		h.respondProfileError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account deactivated"})
}

func (h *UserHandler) respondProfileError(c *gin.Context, err error) {
	if errors.Is(err, usecase.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "user not found"))
		return
	}
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process profile request"))
}

func newProfileResponse(user *domain.User) ProfileResponse {
	return ProfileResponse{
		ID:           user.ID,
		Email:        user.Email,
		Status:       string(user.Status),
		IsActive:     user.IsActive,
		RegisteredAt: user.RegisteredAt,
		LastLogin:    user.LastLogin,
	}
}
