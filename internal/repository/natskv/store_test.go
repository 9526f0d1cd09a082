package natskv

import (
	"context"
	"os"
	"testing"

	"github.com/gdugdh24/kindred-backend/internal/repository/storetest"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	nc, err := nats.Connect(url)
	require.NoError(t, err)

	store, err := Open(context.Background(), nc, "KINDRED_TEST_USERS", "KINDRED_TEST_DISMISSED")
	require.NoError(t, err)
	defer store.Close()

	storetest.Run(t, store)
}
