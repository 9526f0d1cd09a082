package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gdugdh24/kindred-backend/internal/delivery/http/middleware"
	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/usecase/session"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorResponse represents error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// respondError maps domain errors to status codes. Anything unknown is a 500 and gets logged.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, message = http.StatusBadRequest, "invalid input"
	case errors.Is(err, domain.ErrInvalidRelationshipType):
		status, message = http.StatusBadRequest, "invalid relationship type"
	case errors.Is(err, domain.ErrUnknownOption):
		status, message = http.StatusBadRequest, "unknown option"
	case errors.Is(err, domain.ErrInvalidToken):
		status, message = http.StatusUnauthorized, "invalid token"
	case errors.Is(err, domain.ErrSessionExpired):
		status, message = http.StatusUnauthorized, "session expired"
	case errors.Is(err, domain.ErrNotSignedIn):
		status, message = http.StatusUnauthorized, "not signed in"
	case errors.Is(err, domain.ErrSessionNotFound):
		status, message = http.StatusNotFound, "session not found"
	case errors.Is(err, domain.ErrRecordNotFound):
		status, message = http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrOnboardingIncomplete):
		status, message = http.StatusConflict, "onboarding not completed"
	case errors.Is(err, domain.ErrOnboardingCompleted):
		status, message = http.StatusConflict, "onboarding already completed"
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "request timed out"
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}

	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Error: message})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: "invalid request body",
	})
}

// currentSession returns the session RequireAuth attached.
func currentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(middleware.SessionKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: "unauthorized",
		})
		return nil, false
	}
	return v.(*session.Session), true
}

// respondView answers with the session's current view.
func respondView(c *gin.Context, s *session.Session) {
	c.JSON(http.StatusOK, s.View())
}
