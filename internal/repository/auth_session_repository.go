package repository

import (
	"context"

	"github.com/gdugdh24/kindred-backend/internal/domain"
)

// AuthSessionRepository keeps issued session tokens (by hash) so they can be revoked.
// GetByToken returns domain.ErrSessionNotFound for unknown hashes.
type AuthSessionRepository interface {
	Create(ctx context.Context, session *domain.AuthSession) error
	GetByToken(ctx context.Context, tokenHash string) (*domain.AuthSession, error)
	DeleteByToken(ctx context.Context, tokenHash string) error
}
