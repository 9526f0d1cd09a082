package memory

import (
	"context"
	"sync"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository"
)

type AuthSessions struct {
	mu       sync.RWMutex
	sessions map[string]domain.AuthSession
}

var _ repository.AuthSessionRepository = (*AuthSessions)(nil)

func NewAuthSessions() *AuthSessions {
	return &AuthSessions{sessions: make(map[string]domain.AuthSession)}
}

func (s *AuthSessions) Create(_ context.Context, session *domain.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.TokenHash] = *session
	return nil
}

func (s *AuthSessions) GetByToken(_ context.Context, tokenHash string) (*domain.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *AuthSessions) DeleteByToken(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}
