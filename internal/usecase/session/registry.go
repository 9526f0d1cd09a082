package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrRegistryClosed is returned by Acquire once Close has been called.
var ErrRegistryClosed = errors.New("session registry closed")

// Registry keeps one signed-in Session per user id for the API process.
type Registry struct {
	deps Dependencies

	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	lastUsed map[string]time.Time
	closed   bool
}

func NewRegistry(deps Dependencies) *Registry {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		deps:     deps,
		now:      now,
		sessions: make(map[string]*Session),
		lastUsed: make(map[string]time.Time),
	}
}

// Acquire returns the session of identity, signing it in on first use.
func (r *Registry) Acquire(ctx context.Context, identity domain.Identity) (*Session, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	s, ok := r.sessions[identity.UserID]
	if !ok {
		s = New(r.deps)
		r.sessions[identity.UserID] = s
	}
	r.lastUsed[identity.UserID] = r.now()
	r.mu.Unlock()

	if err := s.SignIn(ctx, identity); err != nil {
		if !ok {
			r.mu.Lock()
			if r.sessions[identity.UserID] == s {
				delete(r.sessions, identity.UserID)
				delete(r.lastUsed, identity.UserID)
			}
			r.mu.Unlock()
			_ = s.SignOut(context.Background())
		}
		return nil, err
	}
	return s, nil
}

// Get returns the live session of userID.
func (r *Registry) Get(userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Release signs userID out and forgets the session.
func (r *Registry) Release(ctx context.Context, userID string) error {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	delete(r.lastUsed, userID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return s.SignOut(ctx)
}

// Close signs every session out. Later Acquire calls fail with ErrRegistryClosed.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.lastUsed = make(map[string]time.Time)
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.SignOut(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EvictIdle signs out sessions nobody acquired for at least idle. Sessions with an open
// Watch are kept however old their last request is. It returns how many were evicted.
func (r *Registry) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	evicted := make(map[string]*Session)
	for id, s := range r.sessions {
		if r.lastUsed[id].After(cutoff) || s.watched() {
			continue
		}
		delete(r.sessions, id)
		delete(r.lastUsed, id)
		evicted[id] = s
	}
	r.mu.Unlock()

	for id, s := range evicted {
		if err := s.SignOut(ctx); err != nil {
			log.Warn().Err(err).Str("user_id", id).Msg("Idle session did not shut down cleanly")
		}
	}
	return len(evicted)
}

// RunEviction calls EvictIdle every idle/2 until ctx is done.
func (r *Registry) RunEviction(ctx context.Context, idle time.Duration) {
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(ctx, idle); n > 0 {
				log.Info().Int("evicted", n).Msg("Signed out idle sessions")
			}
		}
	}
}
