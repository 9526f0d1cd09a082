package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository"
	"github.com/redis/go-redis/v9"
)

// AuthSessions stores session tokens as JSON with a TTL matching their expiry.
type AuthSessions struct {
	client *redis.Client
	prefix string
}

var _ repository.AuthSessionRepository = (*AuthSessions)(nil)

func NewAuthSessions(client *redis.Client, prefix string) *AuthSessions {
	return &AuthSessions{client: client, prefix: prefix}
}

func (s *AuthSessions) key(tokenHash string) string {
	return fmt.Sprintf("%s:auth:%s", s.prefix, tokenHash)
}

func (s *AuthSessions) Create(ctx context.Context, session *domain.AuthSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrSessionExpired
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(session.TokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *AuthSessions) GetByToken(ctx context.Context, tokenHash string) (*domain.AuthSession, error) {
	data, err := s.client.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session domain.AuthSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *AuthSessions) DeleteByToken(ctx context.Context, tokenHash string) error {
	return s.client.Del(ctx, s.key(tokenHash)).Err()
}
