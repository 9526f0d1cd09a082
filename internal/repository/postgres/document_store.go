package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// notifyChannel carries the id of every changed document as its payload.
const notifyChannel = "user_document_changes"

const schema = `
CREATE TABLE IF NOT EXISTS user_documents (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS dismissed_users (
	user_id      TEXT NOT NULL,
	dismissed_id TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, dismissed_id)
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	token_hash TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	auth_type  TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	avatar     TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

type documentStore struct {
	db  *sqlx.DB
	dsn string
}

// NewDocumentStore stores each user record as a jsonb document. dsn is used to open the
// LISTEN connections that back Subscribe.
func NewDocumentStore(db *sqlx.DB, dsn string) repository.ProfileStore {
	return &documentStore{db: db, dsn: dsn}
}

// Migrate creates the tables the document store and the auth session repository need.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (r *documentStore) Subscribe(ctx context.Context, userID string) (<-chan *domain.Record, error) {
	listener := pq.NewListener(r.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Postgres listener event")
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen for %s: %w", userID, err)
	}

	current, err := r.Read(ctx, userID)
	if err != nil {
		listener.Close()
		return nil, err
	}

	out := make(chan *domain.Record)
	go func() {
		defer close(out)
		defer listener.Close()

		if !send(ctx, out, current) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// nil means the connection was re-established and notifications may have
				// been missed.
				if n != nil && n.Extra != userID {
					continue
				}
				rec, err := r.Read(ctx, userID)
				if err != nil {
					log.Error().Err(err).Str("user_id", userID).Msg("Failed to reload record after notification")
					continue
				}
				if !send(ctx, out, rec) {
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

func (r *documentStore) Read(ctx context.Context, userID string) (*domain.Record, error) {
	var data []byte
	err := r.db.GetContext(ctx, &data, `SELECT data FROM user_documents WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func (r *documentStore) Write(ctx context.Context, userID string, patch domain.Patch) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serializes writers for this id even when the row does not exist yet.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return fmt.Errorf("failed to lock record %s: %w", userID, err)
	}

	rec := &domain.Record{}
	var data []byte
	err = tx.GetContext(ctx, &data, `SELECT data FROM user_documents WHERE id = $1`, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read record %s: %w", userID, err)
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

	query := `
		INSERT INTO user_documents (id, data)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query, userID, merged); err != nil {
		return fmt.Errorf("failed to write record %s: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, userID); err != nil {
		return fmt.Errorf("failed to notify record %s: %w", userID, err)
	}
	return tx.Commit()
}

func (r *documentStore) CreateIfAbsent(ctx context.Context, userID string, record *domain.Record) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to encode record %s: %w", userID, err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO user_documents (id, data) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		userID, data)
	if err != nil {
		return false, fmt.Errorf("failed to create record %s: %w", userID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, userID); err != nil {
		return false, fmt.Errorf("failed to notify record %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *documentStore) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	var docs [][]byte
	query := `
		SELECT data->'userProfile' FROM user_documents
		WHERE data ? 'userProfile'
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	profiles := make([]domain.UserProfile, 0, len(docs))
	for _, doc := range docs {
		var p domain.UserProfile
		if err := json.Unmarshal(doc, &p); err != nil {
			log.Warn().Err(err).Msg("Skipping undecodable profile")
			continue
		}
		if p.ID != "" {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

func (r *documentStore) AddDismissed(ctx context.Context, userID, dismissedID string) error {
	query := `
		INSERT INTO dismissed_users (user_id, dismissed_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, dismissed_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, dismissedID); err != nil {
		return fmt.Errorf("failed to add dismissed user: %w", err)
	}
	return nil
}

func (r *documentStore) DismissedIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	query := `SELECT dismissed_id FROM dismissed_users WHERE user_id = $1 ORDER BY created_at, dismissed_id`
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get dismissed users: %w", err)
	}
	return ids, nil
}

func (r *documentStore) Close() error {
	return r.db.Close()
}
