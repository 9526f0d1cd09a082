package handler

import (
	"errors"
	"net/http"

	"github.com/gdugdh24/kindred-backend/internal/delivery/http/middleware"
	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/usecase/auth"
	"github.com/gdugdh24/kindred-backend/internal/usecase/session"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AuthHandler struct {
	authUseCase *auth.AuthUseCase
	sessions    *session.Registry
}

func NewAuthHandler(authUseCase *auth.AuthUseCase, sessions *session.Registry) *AuthHandler {
	return &AuthHandler{
		authUseCase: authUseCase,
		sessions:    sessions,
	}
}

// ExternalAuthRequest carries an ID token obtained by the client from the identity provider.
type ExternalAuthRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// AuthResponse is the response structure
type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt int64           `json:"expires_at"`
	User      domain.Identity `json:"user"`
}

// Guest handles anonymous sign-in
// @Summary Guest sign-in
// @Description Issue a session token for a new anonymous identity
// @Tags auth
// @Produce json
// @Success 200 {object} AuthResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/guest [post]
func (h *AuthHandler) Guest(c *gin.Context) {
	result, err := h.authUseCase.SignInGuest(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Guest sign-in failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "authentication failed",
		})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.Unix(),
		User:      result.Identity,
	})
}

// External handles sign-in with an external identity provider token
// @Summary External sign-in
// @Description Exchange an identity provider ID token for a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ExternalAuthRequest true "ID token"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/external [post]
func (h *AuthHandler) External(c *gin.Context) {
	var req ExternalAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := h.authUseCase.SignInExternal(c.Request.Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error: "invalid identity token",
			})
			return
		}
		log.Error().Err(err).Msg("External sign-in failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "authentication failed",
		})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.Unix(),
		User:      result.Identity,
	})
}

// Logout handles user logout
// @Summary Logout
// @Description Sign the live session out and invalidate the token
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	token := c.GetString(middleware.TokenKey)

	if err := h.sessions.Release(c.Request.Context(), userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Session did not shut down cleanly")
	}
	if err := h.authUseCase.Logout(c.Request.Context(), token); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to delete auth session")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "logout failed",
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "logged out successfully",
	})
}
