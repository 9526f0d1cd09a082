package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAuthSessions exercises repo against the AuthSessionRepository contract.
func RunAuthSessions(t *testing.T, repo repository.AuthSessionRepository) {
	t.Helper()
	ctx := context.Background()

	hash := "hash-" + uuid.NewString()
	session := &domain.AuthSession{
		TokenHash: hash,
		Identity:  domain.Identity{UserID: "u-" + uuid.NewString(), AuthType: domain.AuthGoogle, Name: "Ann"},
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Create(ctx, session))

	got, err := repo.GetByToken(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, got.UserID)
	assert.Equal(t, domain.AuthGoogle, got.AuthType)
	assert.Equal(t, "Ann", got.Name)
	assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
	assert.False(t, got.IsExpired())

	_, err = repo.GetByToken(ctx, "hash-missing-"+uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, repo.DeleteByToken(ctx, hash))
	_, err = repo.GetByToken(ctx, hash)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
