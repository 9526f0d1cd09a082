package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/usecase/auth"
	"github.com/gdugdh24/kindred-backend/internal/usecase/session"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Context keys set by RequireAuth.
const (
	UserIDKey  = "user_id"
	TokenKey   = "token"
	SessionKey = "session"
)

type AuthMiddleware struct {
	authUseCase *auth.AuthUseCase
	sessions    *session.Registry
}

func NewAuthMiddleware(authUseCase *auth.AuthUseCase, sessions *session.Registry) *AuthMiddleware {
	return &AuthMiddleware{
		authUseCase: authUseCase,
		sessions:    sessions,
	}
}

// RequireAuth checks the bearer token and attaches the caller's live session, signing
// it in on the first request after a restart.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			return
		}

		identity, err := m.authUseCase.VerifyToken(c.Request.Context(), token)
		if err != nil {
			message := "invalid token"
			if errors.Is(err, domain.ErrSessionExpired) {
				message = "session expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
			return
		}

		s, err := m.sessions.Acquire(c.Request.Context(), identity)
		if err != nil {
			log.Error().Err(err).Str("user_id", identity.UserID).Msg("Failed to start session")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session unavailable"})
			return
		}

		c.Set(UserIDKey, identity.UserID)
		c.Set(TokenKey, token)
		c.Set(SessionKey, s)
		c.Next()
	}
}

// BearerToken returns the token from the Authorization header, or "".
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
