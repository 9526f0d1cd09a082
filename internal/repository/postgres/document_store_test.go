package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/gdugdh24/kindred-backend/internal/repository/storetest"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestDocumentStoreContract(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), db))

	store := NewDocumentStore(db, dsn)
	defer store.Close()

	storetest.Run(t, store)
}

func TestAuthSessionRepository(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(context.Background(), db))

	storetest.RunAuthSessions(t, NewAuthSessionRepository(db))
}
