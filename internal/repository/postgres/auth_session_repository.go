package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository"
	"github.com/jmoiron/sqlx"
)

type authSessionRepository struct {
	db *sqlx.DB
}

func NewAuthSessionRepository(db *sqlx.DB) repository.AuthSessionRepository {
	return &authSessionRepository{db: db}
}

func (r *authSessionRepository) Create(ctx context.Context, session *domain.AuthSession) error {
	query := `
		INSERT INTO auth_sessions (token_hash, user_id, auth_type, name, avatar, email, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	return r.db.QueryRowContext(ctx, query,
		session.TokenHash, session.UserID, session.AuthType, session.Name, session.Avatar,
		session.Email, session.ExpiresAt,
	).Scan(&session.CreatedAt)
}

func (r *authSessionRepository) GetByToken(ctx context.Context, tokenHash string) (*domain.AuthSession, error) {
	var session domain.AuthSession
	query := `
		SELECT token_hash, user_id, auth_type, name, avatar, email, expires_at, created_at
		FROM auth_sessions WHERE token_hash = $1
	`
	err := r.db.GetContext(ctx, &session, query, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *authSessionRepository) DeleteByToken(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE token_hash = $1`, tokenHash)
	return err
}
