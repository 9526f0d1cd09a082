// Package redis implements repository.ProfileStore on top of Redis. Each record is a JSON
// string; every write publishes the new record on a per-user channel which backs Subscribe.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const maxWriteAttempts = 5

type Store struct {
	client *redis.Client
	prefix string
}

var _ repository.ProfileStore = (*Store)(nil)

// NewStore wraps client. prefix namespaces every key, e.g. "kindred".
func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) userKey(id string) string { return fmt.Sprintf("%s:users:%s", s.prefix, id) }
func (s *Store) usersIndexKey() string    { return s.prefix + ":users" }
func (s *Store) changesChannel(id string) string {
	return fmt.Sprintf("%s:users:%s:changes", s.prefix, id)
}
func (s *Store) dismissedKey(id string) string { return fmt.Sprintf("%s:explored:%s", s.prefix, id) }

func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan *domain.Record, error) {
	pubsub := s.client.Subscribe(ctx, s.changesChannel(userID))
	// Wait for the subscription to be confirmed before reading the current value so no
	// write can slip in between.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", userID, err)
	}

	current, err := s.Read(ctx, userID)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan *domain.Record)
	go func() {
		defer close(out)
		defer pubsub.Close()

		if !send(ctx, out, current) {
			return
		}
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var rec domain.Record
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					log.Error().Err(err).Str("user_id", userID).Msg("Dropping undecodable record update")
					continue
				}
				if !send(ctx, out, &rec) {
					return
				}
			}
		}
	}()
	return out, nil
}

func send(ctx context.Context, out chan<- *domain.Record, rec *domain.Record) bool {
	select {
	case out <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Store) Read(ctx context.Context, userID string) (*domain.Record, error) {
	data, err := s.client.Get(ctx, s.userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record %s: %w", userID, err)
	}
	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", userID, err)
	}
	return &rec, nil
}

// Write merges patch into the stored record with optimistic locking (WATCH/MULTI) and
// publishes the merged record.
func (s *Store) Write(ctx context.Context, userID string, patch domain.Patch) error {
	key := s.userKey(userID)

	txf := func(tx *redis.Tx) error {
		rec := &domain.Record{}
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(data, rec); err != nil {
				return fmt.Errorf("failed to decode record %s: %w", userID, err)
			}
		}

		rec.Apply(patch)
		merged, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", userID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, merged, 0)
			pipe.SAdd(ctx, s.usersIndexKey(), userID)
			pipe.Publish(ctx, s.changesChannel(userID), merged)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to write record %s: %w", userID, err)
		}
		return nil
	}
	return fmt.Errorf("failed to write record %s: too much contention", userID)
}

func (s *Store) CreateIfAbsent(ctx context.Context, userID string, record *domain.Record) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to encode record %s: %w", userID, err)
	}

	created, err := s.client.SetNX(ctx, s.userKey(userID), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to create record %s: %w", userID, err)
	}
	if !created {
		return false, nil
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, s.usersIndexKey(), userID)
	pipe.Publish(ctx, s.changesChannel(userID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("failed to announce record %s: %w", userID, err)
	}
	return true, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	ids, err := s.client.SMembers(ctx, s.usersIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if len(ids) == 0 {
		return []domain.UserProfile{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.userKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	profiles := make([]domain.UserProfile, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec domain.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			log.Warn().Err(err).Str("user_id", ids[i]).Msg("Skipping undecodable record")
			continue
		}
		if rec.UserProfile.ID != "" {
			profiles = append(profiles, rec.UserProfile)
		}
	}
	return profiles, nil
}

func (s *Store) AddDismissed(ctx context.Context, userID, dismissedID string) error {
	if err := s.client.SAdd(ctx, s.dismissedKey(userID), dismissedID).Err(); err != nil {
		return fmt.Errorf("failed to add dismissed user: %w", err)
	}
	return nil
}

func (s *Store) DismissedIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.dismissedKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get dismissed users: %w", err)
	}
	return ids, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
