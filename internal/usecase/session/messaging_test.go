package session

import (
	"context"
	"testing"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendFirstMessageToRealUser(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "x", true)
	h.signIn(t, "self")

	require.NoError(t, h.session.SendMessage(context.Background(), "x", "hello there", ""))

	v := h.session.View()
	c := conversation(t, v, "x")
	assert.Zero(t, c.UnreadCount)
	require.Len(t, c.Messages, 1)
	assert.Equal(t, "self", c.Messages[0].SenderID)
	assert.Equal(t, "hello there", c.Messages[0].Text)
	assert.Equal(t, "x", c.Participant.ID)
	assert.Equal(t, "x", v.Conversations[0].ID, "self wrote first, so it is not a request")

	rec := h.stored(t, "self")
	assert.GreaterOrEqual(t, domain.FindConversation(rec.Conversations, "x"), 0)
	assert.True(t, rec.UserProfile.OnlineStatus.IsOnline())

	// The recipient sees it as an unread request from self.
	require.Eventually(t, func() bool {
		other, err := h.store.Read(context.Background(), "x")
		if err != nil || other == nil {
			return false
		}
		i := domain.FindConversation(other.Conversations, "self")
		return i >= 0 && other.Conversations[i].UnreadCount == 1
	}, waitFor, 5*time.Millisecond)

	other, err := h.store.Read(context.Background(), "x")
	require.NoError(t, err)
	requests, _ := Classify("x", other.Conversations)
	require.NotEmpty(t, requests)
	assert.Equal(t, "self", requests[0].ID)
}

func TestSendingTwiceKeepsOneConversation(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "x", true)
	h.signIn(t, "self")
	ctx := context.Background()

	require.NoError(t, h.session.SendMessage(ctx, "x", "one", ""))
	require.NoError(t, h.session.SendMessage(ctx, "x", "", "https://example.com/cat.png"))

	v := h.session.View()
	n := 0
	for _, c := range append(v.Requests, v.Conversations...) {
		if c.ID == "x" {
			n++
		}
	}
	assert.Equal(t, 1, n)
	c := conversation(t, v, "x")
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "https://example.com/cat.png", c.Messages[1].ImageURL)

	require.Eventually(t, func() bool {
		other, _ := h.store.Read(ctx, "x")
		i := domain.FindConversation(other.Conversations, "self")
		return i >= 0 && len(other.Conversations[i].Messages) == 2 && other.Conversations[i].UnreadCount == 2
	}, waitFor, 5*time.Millisecond)
}

func TestSendToParticipantWithoutRecordIsNotMirrored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ghost := guest("ghost").DefaultProfile()
	ghost.Name = "Ghost"
	self := guest("self").DefaultProfile()
	rec := domain.NewRecord(self, time.Now())
	rec.Conversations = domain.AppendMessage(rec.Conversations, ghost,
		domain.Message{ID: "m-ghost", SenderID: "ghost", Text: "boo", Timestamp: time.Now()}, 1)
	_, err := h.store.Store.CreateIfAbsent(ctx, "self", rec)
	require.NoError(t, err)
	h.signIn(t, "self")

	require.NoError(t, h.session.SendMessage(ctx, "ghost", "who are you?", ""))
	require.Len(t, conversation(t, h.session.View(), "ghost").Messages, 2)

	// Signing out waits for the delivery task.
	require.NoError(t, h.session.SignOut(ctx))
	other, err := h.store.Read(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, other)

	// When ghost signs in later they still get a full default record.
	ghostSession := New(h.deps())
	signInCtx, cancel := context.WithTimeout(ctx, waitFor)
	defer cancel()
	require.NoError(t, ghostSession.SignIn(signInCtx, guest("ghost")))
	t.Cleanup(func() { require.NoError(t, ghostSession.SignOut(context.Background())) })
	v := ghostSession.View()
	assert.Equal(t, domain.AuthGuest, v.Profile.AuthType)
	assert.NotEmpty(t, v.Profile.Name)
	require.Len(t, v.Requests, 1)
	assert.NotEqual(t, "self", v.Requests[0].ID)
}

func TestSendToUnknownParticipantIsDropped(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")

	require.NoError(t, h.session.SendMessage(context.Background(), "nobody", "hi", ""))

	v := h.session.View()
	assert.Empty(t, v.Conversations)
	assert.Len(t, v.Requests, 1)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")

	assert.ErrorIs(t, h.session.SendMessage(context.Background(), "mock-user-1", "  ", ""), domain.ErrInvalidInput)
	assert.ErrorIs(t, h.session.SendMessage(context.Background(), "self", "me", ""), domain.ErrInvalidInput)
}

func TestReplyingToRequestMovesItToConversations(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")

	require.NoError(t, h.session.SendMessage(context.Background(), "mock-user-2", "hey Benny", ""))

	v := h.session.View()
	assert.Empty(t, v.Requests)
	require.Len(t, v.Conversations, 1)
	assert.Equal(t, 1, v.UnreadTotal)
}

func TestSimulatedParticipantReplies(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")

	require.NoError(t, h.session.SendMessage(context.Background(), "mock-user-1", "hi Alex", ""))
	assert.Equal(t, []string{"mock-user-1"}, h.session.View().TypingParticipants)

	require.Eventually(t, func() bool { return h.timers.fire() > 0 }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		v := h.session.View()
		return len(conversation(t, v, "mock-user-1").Messages) == 2 && len(v.TypingParticipants) == 0
	}, waitFor, 5*time.Millisecond)

	c := conversation(t, h.session.View(), "mock-user-1")
	assert.Equal(t, "mock-user-1", c.Messages[1].SenderID)
	assert.Equal(t, "Sounds great!", c.Messages[1].Text)

	rec := h.stored(t, "self")
	i := domain.FindConversation(rec.Conversations, "mock-user-1")
	require.GreaterOrEqual(t, i, 0)
	assert.Len(t, rec.Conversations[i].Messages, 2)
}

func TestReplyIsDiscardedWhenParticipantDismissedBeforeTimer(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	ctx := context.Background()

	require.NoError(t, h.session.SendMessage(ctx, "mock-user-1", "hi Alex", ""))
	require.NoError(t, h.session.DismissCandidate(ctx, "mock-user-1"))

	require.Eventually(t, func() bool {
		return len(h.session.View().TypingParticipants) == 0
	}, waitFor, 5*time.Millisecond)
	h.timers.fire()

	_, replies := h.gen.calls()
	assert.Zero(t, replies)
	v := h.session.View()
	for _, c := range append(v.Requests, v.Conversations...) {
		assert.NotEqual(t, "mock-user-1", c.ID)
	}
	assert.NotContains(t, candidateIDs(v), "mock-user-1")
}

func TestReplyIsDiscardedWhenParticipantDismissedDuringGeneration(t *testing.T) {
	h := newHarness(t)
	h.gen.replyStarted = make(chan struct{}, 1)
	h.gen.replyRelease = make(chan struct{})
	h.signIn(t, "self")
	ctx := context.Background()

	require.NoError(t, h.session.SendMessage(ctx, "mock-user-1", "hi Alex", ""))
	require.Eventually(t, func() bool { return h.timers.fire() > 0 }, waitFor, 5*time.Millisecond)
	<-h.gen.replyStarted

	require.NoError(t, h.session.DismissCandidate(ctx, "mock-user-1"))
	close(h.gen.replyRelease)

	require.Eventually(t, func() bool {
		return len(h.session.View().TypingParticipants) == 0
	}, waitFor, 5*time.Millisecond)
	rec := h.stored(t, "self")
	assert.Less(t, domain.FindConversation(rec.Conversations, "mock-user-1"), 0)
}

func TestSignOutCancelsPendingReplies(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")

	require.NoError(t, h.session.SendMessage(context.Background(), "mock-user-3", "hi Casey", ""))
	require.NoError(t, h.session.SignOut(context.Background()))

	h.timers.fire()
	_, replies := h.gen.calls()
	assert.Zero(t, replies)
}

func TestViewConversationResetsUnread(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")
	ctx := context.Background()

	require.NoError(t, h.session.ViewConversation(ctx, "mock-user-2"))
	v := h.session.View()
	assert.Equal(t, "mock-user-2", v.ActiveConversation)
	assert.Zero(t, conversation(t, v, "mock-user-2").UnreadCount)
	assert.Zero(t, h.stored(t, "self").Conversations[0].UnreadCount)

	before := h.store.writes.Load()
	require.NoError(t, h.session.ViewConversation(ctx, "mock-user-2"))
	h.session.Flush()
	assert.Equal(t, before, h.store.writes.Load(), "viewing a read conversation must not write")

	require.NoError(t, h.session.ViewConversation(ctx, ""))
	assert.Empty(t, h.session.View().ActiveConversation)
}

func TestIncomingMessageFromOtherSession(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "self")

	other := &harness{store: h.store, gen: h.gen, timers: h.timers}
	other.session = New(other.deps())
	t.Cleanup(func() { require.NoError(t, other.session.SignOut(context.Background())) })
	other.seedUser(t, "y", true)
	other.signIn(t, "y")

	require.NoError(t, other.session.SendMessage(context.Background(), "self", "hi from y", ""))

	require.Eventually(t, func() bool {
		for _, c := range h.session.View().Requests {
			if c.ID == "y" {
				return c.UnreadCount == 1
			}
		}
		return false
	}, waitFor, 5*time.Millisecond)
	assert.Zero(t, h.session.View().UnreadTotal)
}
