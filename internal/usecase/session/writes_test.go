package session

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteQueueAppliesInOrder(t *testing.T) {
	store := memory.NewStore()
	q := newWriteQueue(store, nil, time.Second)
	defer q.close()

	for i := 1; i <= 20; i++ {
		step := i
		q.push("u1", domain.Patch{
			OnboardingStep: &step,
			Revisions:      map[domain.FieldGroup]uint64{domain.GroupOnboarding: uint64(i)},
		})
	}
	q.flush()

	rec, err := store.Read(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, rec.OnboardingStep)
	assert.Equal(t, uint64(20), rec.Revision(domain.GroupOnboarding))
}

func TestWriteQueueAbandonsUnencodableWrite(t *testing.T) {
	store := memory.NewStore()
	q := newWriteQueue(store, nil, time.Second)

	bad := math.NaN()
	q.push("u1", domain.Patch{OnboardingProgress: &bad})
	step := 2
	q.push("u2", domain.Patch{OnboardingStep: &step})
	q.close()

	rec, err := store.Read(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, rec, "a write that cannot be encoded must never reach the store")

	rec, err = store.Read(context.Background(), "u2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.OnboardingStep)
}

func TestWriteQueueDropsPushesAfterClose(t *testing.T) {
	store := memory.NewStore()
	q := newWriteQueue(store, nil, time.Second)
	q.close()

	step := 1
	q.push("u1", domain.Patch{OnboardingStep: &step})
	q.flush()

	rec, err := store.Read(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
