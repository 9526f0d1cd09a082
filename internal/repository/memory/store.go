// Package memory provides an in-process ProfileStore used in development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository"
)

type Store struct {
	mu          sync.Mutex
	records     map[string]*domain.Record
	dismissed   map[string][]string
	subscribers map[string]map[chan *domain.Record]struct{}
	failWrites  error
}

var _ repository.ProfileStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		records:     make(map[string]*domain.Record),
		dismissed:   make(map[string][]string),
		subscribers: make(map[string]map[chan *domain.Record]struct{}),
	}
}

// FailWrites makes every subsequent Write return err until called with nil.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan *domain.Record, error) {
	// Buffered so writers never block on a slow reader; intermediate snapshots may be
	// coalesced away, the latest one always wins.
	ch := make(chan *domain.Record, 1)

	s.mu.Lock()
	subs, ok := s.subscribers[userID]
	if !ok {
		subs = make(map[chan *domain.Record]struct{})
		s.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	ch <- s.records[userID].Clone()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subscribers[userID], ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

func (s *Store) Read(ctx context.Context, userID string) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[userID].Clone(), nil
}

func (s *Store) Write(ctx context.Context, userID string, patch domain.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	rec, ok := s.records[userID]
	if !ok {
		rec = &domain.Record{}
		s.records[userID] = rec
	}
	rec.Apply(patch)
	s.notifyLocked(userID)
	return nil
}

func (s *Store) CreateIfAbsent(ctx context.Context, userID string, record *domain.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[userID]; ok {
		return false, nil
	}
	s.records[userID] = record.Clone()
	s.notifyLocked(userID)
	return true, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	profiles := make([]domain.UserProfile, 0, len(ids))
	for _, id := range ids {
		if p := s.records[id].UserProfile; p.ID != "" {
			profiles = append(profiles, p.Clone())
		}
	}
	return profiles, nil
}

func (s *Store) AddDismissed(ctx context.Context, userID, dismissedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.dismissed[userID] {
		if id == dismissedID {
			return nil
		}
	}
	s.dismissed[userID] = append(s.dismissed[userID], dismissedID)
	return nil
}

func (s *Store) DismissedIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.dismissed[userID]...), nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) notifyLocked(userID string) {
	for ch := range s.subscribers[userID] {
		snapshot := s.records[userID].Clone()
		select {
		case ch <- snapshot:
		default:
			// Drop the stale buffered snapshot and replace it with the latest one.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}
