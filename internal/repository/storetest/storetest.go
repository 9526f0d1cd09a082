// Package storetest holds the behaviour every repository.ProfileStore backend must share.
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

// Run exercises store against the ProfileStore contract. Every case works on fresh
// random ids so backends holding other data can be used.
func Run(t *testing.T, store repository.ProfileStore) {
	t.Helper()

	newID := func() string { return "test-" + uuid.NewString() }

	t.Run("ReadMissing", func(t *testing.T) {
		rec, err := store.Read(context.Background(), newID())
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("CreateIfAbsent", func(t *testing.T) {
		ctx := context.Background()
		id := newID()
		rec := domain.NewRecord(domain.UserProfile{ID: id, Name: "Ann"}, time.Now())

		created, err := store.CreateIfAbsent(ctx, id, rec)
		require.NoError(t, err)
		assert.True(t, created)

		other := domain.NewRecord(domain.UserProfile{ID: id, Name: "Overwritten"}, time.Now())
		created, err = store.CreateIfAbsent(ctx, id, other)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := store.Read(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Ann", got.UserProfile.Name)
		require.Len(t, got.Conversations, 1)
	})

	t.Run("WriteMerges", func(t *testing.T) {
		ctx := context.Background()
		id := newID()
		_, err := store.CreateIfAbsent(ctx, id, domain.NewRecord(domain.UserProfile{ID: id, Name: "Ann"}, time.Now()))
		require.NoError(t, err)

		step := 3
		require.NoError(t, store.Write(ctx, id, domain.Patch{
			OnboardingStep: &step,
			Revisions:      map[domain.FieldGroup]uint64{domain.GroupOnboarding: 2},
		}))
		seen := domain.LastSeen(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
		require.NoError(t, store.Write(ctx, id, domain.Patch{Presence: &seen}))

		got, err := store.Read(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 3, got.OnboardingStep)
		assert.Equal(t, "Ann", got.UserProfile.Name)
		assert.Equal(t, seen, got.UserProfile.OnlineStatus)
		assert.Len(t, got.Conversations, 1)
		assert.Equal(t, uint64(2), got.Revision(domain.GroupOnboarding))
	})

	t.Run("TimestampsRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		id := newID()
		at := time.Date(2024, 2, 29, 23, 59, 58, 123000000, time.UTC)
		convos := []domain.Conversation{domain.NewConversation(
			domain.UserProfile{ID: "p"},
			domain.Message{ID: "m", SenderID: id, Text: "hi", Timestamp: at},
			0,
		)}
		require.NoError(t, store.Write(ctx, id, domain.Patch{Conversations: &convos}))

		got, err := store.Read(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Len(t, got.Conversations, 1)
		assert.True(t, at.Equal(got.Conversations[0].Messages[0].Timestamp))
	})

	t.Run("SubscribeDeliversCurrentAndChanges", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		id := newID()

		updates, err := store.Subscribe(ctx, id)
		require.NoError(t, err)

		select {
		case rec := <-updates:
			assert.Nil(t, rec)
		case <-time.After(5 * time.Second):
			t.Fatal("no initial snapshot")
		}

		_, err = store.CreateIfAbsent(ctx, id, domain.NewRecord(domain.UserProfile{ID: id, Name: "Ann"}, time.Now()))
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			select {
			case rec := <-updates:
				return rec != nil && rec.UserProfile.Name == "Ann"
			default:
				return false
			}
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-updates:
				return !ok
			default:
				return false
			}
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("ListProfiles", func(t *testing.T) {
		ctx := context.Background()
		id := newID()
		_, err := store.CreateIfAbsent(ctx, id, domain.NewRecord(domain.UserProfile{ID: id, Name: "Listed"}, time.Now()))
		require.NoError(t, err)

		profiles, err := store.ListProfiles(ctx)
		require.NoError(t, err)
		found := false
		for _, p := range profiles {
			if p.ID == id {
				found = true
				assert.Equal(t, "Listed", p.Name)
			}
		}
		assert.True(t, found)
	})

	t.Run("Dismissed", func(t *testing.T) {
		ctx := context.Background()
		id := newID()

		ids, err := store.DismissedIDs(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, ids)

		require.NoError(t, store.AddDismissed(ctx, id, "a"))
		require.NoError(t, store.AddDismissed(ctx, id, "b"))
		require.NoError(t, store.AddDismissed(ctx, id, "a"))

		ids, err = store.DismissedIDs(ctx, id)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, ids)
	})
}
