package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInCreatesDefaultRecord(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")

	v := h.session.View()
	require.True(t, v.SignedIn)
	require.True(t, v.Loaded)
	require.NotNil(t, v.Profile)
	assert.Equal(t, "self", v.Profile.ID)
	assert.Equal(t, "Guest", v.Profile.Name)
	assert.True(t, v.Profile.OnlineStatus.IsOnline())
	assert.Equal(t, PageAIChat, v.ActivePage)
	assert.Zero(t, v.OnboardingProgress)

	rec := h.stored(t, "self")
	assert.Equal(t, "self", rec.UserProfile.ID)
	require.Len(t, rec.Conversations, 1)
	assert.Equal(t, "mock-user-2", rec.Conversations[0].ID)
}

func TestWelcomeMessageIsARequestAndNotCounted(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")

	v := h.session.View()
	require.Len(t, v.Requests, 1)
	assert.Empty(t, v.Conversations)
	assert.Equal(t, 1, v.Requests[0].UnreadCount)
	assert.Zero(t, v.UnreadTotal)
}

func TestSignInFallsBackToLocalDefaults(t *testing.T) {
	h := newHarness(t)
	h.store.failCreate = true
	h.signIn(t, "self")

	v := h.session.View()
	require.True(t, v.Loaded)
	assert.Equal(t, "self", v.Profile.ID)
	assert.Len(t, v.Requests, 1)
}

func TestSignInSameIdentityIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	require.NoError(t, h.session.UpdateProfile(context.Background(), "Sam", ""))
	h.signIn(t, "self")

	assert.Equal(t, "Sam", h.session.View().Profile.Name)
}

func TestSignOutClearsStateAndRecordsLastSeen(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	require.NoError(t, h.session.SetActivePage(context.Background(), PageSettings))

	require.NoError(t, h.session.SignOut(context.Background()))

	v := h.session.View()
	assert.False(t, v.SignedIn)
	assert.False(t, v.Loaded)
	assert.Nil(t, v.Profile)
	assert.Empty(t, v.Requests)
	assert.Equal(t, PageAIChat, v.ActivePage)
	assert.Empty(t, h.session.UserID())

	rec, err := h.store.Read(context.Background(), "self")
	require.NoError(t, err)
	_, ok := rec.UserProfile.OnlineStatus.LastSeenAt()
	assert.True(t, ok, "presence should be a last-seen timestamp, got %q", rec.UserProfile.OnlineStatus)

	assert.ErrorIs(t, h.session.SendMessage(context.Background(), "mock-user-1", "hi", ""), domain.ErrNotSignedIn)
}

func TestSwitchingIdentityTearsDownPreviousSession(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "first")
	h.signIn(t, "second")

	assert.Equal(t, "second", h.session.UserID())
	assert.Equal(t, "second", h.session.View().Profile.ID)

	rec, err := h.store.Read(context.Background(), "first")
	require.NoError(t, err)
	assert.False(t, rec.UserProfile.OnlineStatus.IsOnline())

	// Changes to the old record must not reach the new session.
	name := domain.GuestTemplate()
	name.ID, name.Name = "first", "Ghost"
	require.NoError(t, h.store.Store.Write(context.Background(), "first", domain.Patch{UserProfile: &name}))
	h.session.Flush()
	assert.Equal(t, "second", h.session.View().Profile.ID)
}

func TestPresenceReturnsOnlineForReturningUser(t *testing.T) {
	h := newHarness(t)
	p := guest("self").DefaultProfile()
	p.OnlineStatus = domain.LastSeen(time.Now().Add(-time.Hour))
	_, err := h.store.Store.CreateIfAbsent(context.Background(), "self", domain.NewRecord(p, time.Now()))
	require.NoError(t, err)

	h.signIn(t, "self")
	assert.True(t, h.stored(t, "self").UserProfile.OnlineStatus.IsOnline())
}

func TestSetPresence(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	ctx := context.Background()

	require.NoError(t, h.session.SetPresence(ctx, false))
	assert.False(t, h.stored(t, "self").UserProfile.OnlineStatus.IsOnline())

	require.NoError(t, h.session.SetPresence(ctx, true))
	assert.True(t, h.stored(t, "self").UserProfile.OnlineStatus.IsOnline())
}

func TestSnapshotKeepsNewerLocalWrite(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	h.session.Flush()
	ctx := context.Background()

	h.store.hold.Lock()
	require.NoError(t, h.session.UpdateProfile(ctx, "Local", ""))

	// Another device raises the notification flag while our profile write is in flight.
	on := true
	require.NoError(t, h.store.Store.Write(ctx, "self", domain.Patch{
		ShowExploreTabNotification: &on,
		Revisions:                  map[domain.FieldGroup]uint64{domain.GroupFlags: 1},
	}))

	require.Eventually(t, func() bool {
		return h.session.View().ShowExploreTabNotification
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, "Local", h.session.View().Profile.Name)

	h.store.hold.Unlock()
	h.session.Flush()
	assert.Equal(t, "Local", h.stored(t, "self").UserProfile.Name)
	require.Eventually(t, func() bool {
		v := h.session.View()
		return v.Profile.Name == "Local" && v.ShowExploreTabNotification
	}, waitFor, 5*time.Millisecond)
}

func TestSnapshotWithNewerRevisionWins(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	h.session.Flush()
	ctx := context.Background()

	h.store.hold.Lock()
	require.NoError(t, h.session.UpdateProfile(ctx, "Local", ""))

	remote := h.session.View().Profile
	remote.Name = "Remote"
	require.NoError(t, h.store.Store.Write(ctx, "self", domain.Patch{
		UserProfile: remote,
		Revisions:   map[domain.FieldGroup]uint64{domain.GroupProfile: 100},
	}))

	require.Eventually(t, func() bool {
		return h.session.View().Profile.Name == "Remote"
	}, waitFor, 5*time.Millisecond)
	h.store.hold.Unlock()
}

func TestWriteFailuresAreAbsorbed(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	h.session.Flush()
	h.store.FailWrites(errors.New("unavailable"))

	require.NoError(t, h.session.UpdateProfile(context.Background(), "Offline", ""))
	h.session.Flush()
	assert.Equal(t, "Offline", h.session.View().Profile.Name)

	h.store.FailWrites(nil)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	ctx := context.Background()

	assert.ErrorIs(t, h.session.UpdateProfile(ctx, "  ", ""), domain.ErrInvalidInput)

	require.NoError(t, h.session.UpdateProfile(ctx, "Sam", "https://example.com/a.png"))
	rec := h.stored(t, "self")
	assert.Equal(t, "Sam", rec.UserProfile.Name)
	assert.Equal(t, "https://example.com/a.png", rec.UserProfile.Avatar)

	before := h.store.writes.Load()
	require.NoError(t, h.session.UpdateProfile(ctx, "Sam", ""))
	h.session.Flush()
	assert.Equal(t, before, h.store.writes.Load())
}

func TestSetActivePageExploreClearsNotification(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	h.onboard(t)
	ctx := context.Background()

	require.True(t, h.session.View().ShowExploreTabNotification)
	require.NoError(t, h.session.SetActivePage(ctx, PageChat))
	assert.True(t, h.session.View().ShowExploreTabNotification)

	require.NoError(t, h.session.SetActivePage(ctx, PageExplore))
	v := h.session.View()
	assert.Equal(t, PageExplore, v.ActivePage)
	assert.False(t, v.ShowExploreTabNotification)
	assert.False(t, h.stored(t, "self").ShowExploreTabNotification)

	assert.ErrorIs(t, h.session.SetActivePage(ctx, Page("HOME")), domain.ErrInvalidInput)
}

func TestWatchStreamsViews(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	ctx, cancel := context.WithCancel(context.Background())

	views := h.session.Watch(ctx)
	first := <-views
	require.True(t, first.Loaded)

	require.NoError(t, h.session.UpdateProfile(context.Background(), "Streamed", ""))
	require.Eventually(t, func() bool {
		select {
		case v := <-views:
			return v.Profile != nil && v.Profile.Name == "Streamed"
		default:
			return false
		}
	}, waitFor, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-views:
			return !ok
		default:
			return false
		}
	}, waitFor, 5*time.Millisecond)
}

func TestViewEncodesWithoutHandlers(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	require.NoError(t, h.session.StartTranscript(context.Background()))

	v := h.session.View()
	require.True(t, v.Transcript[0].Selectable())
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"initial"`)
}

func TestOperationsRequireSignIn(t *testing.T) {
	s := New(Dependencies{Store: &countingStore{}, Generator: newFakeGenerator()})
	ctx := context.Background()

	assert.ErrorIs(t, s.ViewConversation(ctx, "x"), domain.ErrNotSignedIn)
	assert.ErrorIs(t, s.DismissCandidate(ctx, "x"), domain.ErrNotSignedIn)
	assert.ErrorIs(t, s.StartTranscript(ctx), domain.ErrNotSignedIn)
	assert.ErrorIs(t, s.MergeProfileTags(ctx, domain.Tags{}), domain.ErrNotSignedIn)
	_, err := s.ExploreCards()
	assert.ErrorIs(t, err, domain.ErrNotSignedIn)
	assert.False(t, s.View().SignedIn)
	require.NoError(t, s.SignOut(ctx))
}
