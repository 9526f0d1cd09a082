// Package natskv implements repository.ProfileStore on NATS JetStream key-value buckets.
// Records live in one bucket keyed by user id; KV watches back Subscribe and revision
// checked updates make the merge writes safe against concurrent writers.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

const maxWriteAttempts = 5

type Store struct {
	nc        *nats.Conn
	users     jetstream.KeyValue
	dismissed jetstream.KeyValue
}

var _ repository.ProfileStore = (*Store)(nil)

// Open creates (or reuses) the users and dismissed buckets on nc.
func Open(ctx context.Context, nc *nats.Conn, usersBucket, dismissedBucket string) (*Store, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	users, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      usersBucket,
		Description: "Per-user profile documents",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket %s: %w", usersBucket, err)
	}

	dismissed, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      dismissedBucket,
		Description: "Candidates each user dismissed",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket %s: %w", dismissedBucket, err)
	}

	return &Store{nc: nc, users: users, dismissed: dismissed}, nil
}

func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan *domain.Record, error) {
	watcher, err := s.users.Watch(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create kv watcher: %w", err)
	}

	out := make(chan *domain.Record)
	go func() {
		defer close(out)
		defer watcher.Stop()

		// The watcher replays the current value (if any) and then sends nil once the
		// replay is done. An absent key still has to produce one nil snapshot.
		delivered := false
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				var rec *domain.Record
				switch {
				case entry == nil:
					if delivered {
						continue
					}
				case entry.Operation() != jetstream.KeyValuePut:
				default:
					rec = &domain.Record{}
					if err := json.Unmarshal(entry.Value(), rec); err != nil {
						log.Error().Err(err).Str("user_id", userID).Msg("Dropping undecodable record update")
						continue
					}
				}
				delivered = true
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Store) Read(ctx context.Context, userID string) (*domain.Record, error) {
	rec, _, err := s.get(ctx, userID)
	return rec, err
}

func (s *Store) get(ctx context.Context, userID string) (*domain.Record, uint64, error) {
	entry, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read record %s: %w", userID, err)
	}
	var rec domain.Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, 0, fmt.Errorf("failed to decode record %s: %w", userID, err)
	}
	return &rec, entry.Revision(), nil
}

// Write merges patch into the stored record. The update is conditional on the revision
// that was read and is retried when another writer got there first.
func (s *Store) Write(ctx context.Context, userID string, patch domain.Patch) error {
	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		rec, revision, err := s.get(ctx, userID)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = &domain.Record{}
		}
		rec.Apply(patch)

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", userID, err)
		}

		if revision == 0 {
			_, lastErr = s.users.Create(ctx, userID, data)
		} else {
			_, lastErr = s.users.Update(ctx, userID, data, revision)
		}
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("failed to write record %s: %w", userID, lastErr)
}

func (s *Store) CreateIfAbsent(ctx context.Context, userID string, record *domain.Record) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to encode record %s: %w", userID, err)
	}
	if _, err := s.users.Create(ctx, userID, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create record %s: %w", userID, err)
	}
	return true, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	keys, err := s.users.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []domain.UserProfile{}, nil
		}
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sort.Strings(keys)

	profiles := make([]domain.UserProfile, 0, len(keys))
	for _, key := range keys {
		rec, err := s.Read(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("user_id", key).Msg("Skipping unreadable record")
			continue
		}
		if rec != nil && rec.UserProfile.ID != "" {
			profiles = append(profiles, rec.UserProfile)
		}
	}
	return profiles, nil
}

func (s *Store) AddDismissed(ctx context.Context, userID, dismissedID string) error {
	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		ids, revision, err := s.dismissedEntry(ctx, userID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == dismissedID {
				return nil
			}
		}
		data, err := json.Marshal(append(ids, dismissedID))
		if err != nil {
			return err
		}

		if revision == 0 {
			_, lastErr = s.dismissed.Create(ctx, userID, data)
		} else {
			_, lastErr = s.dismissed.Update(ctx, userID, data, revision)
		}
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to add dismissed user: %w", lastErr)
}

func (s *Store) DismissedIDs(ctx context.Context, userID string) ([]string, error) {
	ids, _, err := s.dismissedEntry(ctx, userID)
	return ids, err
}

func (s *Store) dismissedEntry(ctx context.Context, userID string) ([]string, uint64, error) {
	entry, err := s.dismissed.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return []string{}, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get dismissed users: %w", err)
	}
	ids := []string{}
	if err := json.Unmarshal(entry.Value(), &ids); err != nil {
		return nil, 0, fmt.Errorf("failed to decode dismissed users: %w", err)
	}
	return ids, entry.Revision(), nil
}

func (s *Store) Close() error {
	s.nc.Close()
	return nil
}
