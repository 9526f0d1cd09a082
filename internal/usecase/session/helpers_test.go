package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository/memory"
	"github.com/gdugdh24/kindred-backend/internal/textgen"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitFor = 2 * time.Second

type fakeGenerator struct {
	mu           sync.Mutex
	questions    []textgen.Question
	tags         domain.Tags
	followUp     string
	reply        string
	explanation  textgen.Explanation
	explainCalls int
	replyCalls   int

	// When set, SimulatedReply signals replyStarted and blocks until replyRelease or ctx.
	replyStarted chan struct{}
	replyRelease chan struct{}
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		followUp:    "What else do you enjoy?",
		reply:       "Sounds great!",
		explanation: textgen.Explanation{Rating: 80, Explanation: "You both like <strong>hiking</strong>."},
	}
}

func (g *fakeGenerator) QuestionsFor(ctx context.Context, goal domain.RelationshipType) []textgen.Question {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]textgen.Question(nil), g.questions...)
}

func (g *fakeGenerator) TagsFrom(ctx context.Context, text string) domain.Tags {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tags.Clone()
}

func (g *fakeGenerator) MatchExplanation(ctx context.Context, self, other domain.UserProfile) textgen.Explanation {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.explainCalls++
	return g.explanation
}

func (g *fakeGenerator) FollowUp(ctx context.Context, transcript []domain.AiChatMessage) string {
	return g.followUp
}

func (g *fakeGenerator) SimulatedReply(ctx context.Context, self, participant domain.UserProfile, history []domain.Message) string {
	g.mu.Lock()
	g.replyCalls++
	started, release := g.replyStarted, g.replyRelease
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return ""
		}
	}
	return g.reply
}

func (g *fakeGenerator) calls() (explain, reply int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.explainCalls, g.replyCalls
}

// manualTimers hands out reply timers that only fire when the test says so.
type manualTimers struct {
	mu      sync.Mutex
	pending []chan time.Time
}

func (m *manualTimers) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	m.mu.Lock()
	m.pending = append(m.pending, ch)
	m.mu.Unlock()
	return ch
}

func (m *manualTimers) fire() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.pending)
	for _, ch := range m.pending {
		ch <- time.Now()
	}
	m.pending = nil
	return n
}

// countingStore counts writes and can hold them back or fail record creation.
type countingStore struct {
	*memory.Store
	writes     atomic.Int64
	hold       sync.Mutex
	failCreate bool
}

func (s *countingStore) Write(ctx context.Context, userID string, patch domain.Patch) error {
	s.hold.Lock()
	s.hold.Unlock()
	s.writes.Add(1)
	return s.Store.Write(ctx, userID, patch)
}

func (s *countingStore) CreateIfAbsent(ctx context.Context, userID string, record *domain.Record) (bool, error) {
	if s.failCreate {
		return false, errors.New("store unavailable")
	}
	return s.Store.CreateIfAbsent(ctx, userID, record)
}

type harness struct {
	store   *countingStore
	gen     *fakeGenerator
	timers  *manualTimers
	session *Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  &countingStore{Store: memory.NewStore()},
		gen:    newFakeGenerator(),
		timers: &manualTimers{},
	}
	h.session = New(h.deps())
	t.Cleanup(func() {
		require.NoError(t, h.session.SignOut(context.Background()))
	})
	return h
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		Store:        h.store,
		Generator:    h.gen,
		After:        h.timers.After,
		ReplyDelay:   func() time.Duration { return time.Second },
		Shuffle:      func(int, func(i, j int)) {},
		WriteTimeout: time.Second,
	}
}

func guest(id string) domain.Identity {
	return domain.Identity{UserID: id, AuthType: domain.AuthGuest}
}

func (h *harness) signIn(t *testing.T, id string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, h.session.SignIn(ctx, guest(id)))
}

// seedUser stores a record for another user.
func (h *harness) seedUser(t *testing.T, id string, onboarded bool) domain.UserProfile {
	t.Helper()
	p := guest(id).DefaultProfile()
	p.Name = id
	p.OnboardingCompleted = onboarded
	if onboarded {
		p.RelationshipGoal = domain.RelationshipFriendship
	}
	_, err := h.store.Store.CreateIfAbsent(context.Background(), id, domain.NewRecord(p, time.Now()))
	require.NoError(t, err)
	return p
}

func (h *harness) onboard(t *testing.T) {
	t.Helper()
	tags := domain.Tags{Positive: []string{"hiking"}, Negative: []string{}}
	require.NoError(t, h.session.CompleteOnboarding(context.Background(), domain.RelationshipFriendship, tags))
}

func (h *harness) stored(t *testing.T, id string) *domain.Record {
	t.Helper()
	h.session.Flush()
	rec, err := h.store.Read(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func conversation(t *testing.T, v View, id string) domain.Conversation {
	t.Helper()
	for _, list := range [][]domain.Conversation{v.Requests, v.Conversations} {
		for _, c := range list {
			if c.ID == id {
				return c
			}
		}
	}
	t.Fatalf("conversation %s not found", id)
	return domain.Conversation{}
}

func candidateIDs(v View) []string {
	ids := make([]string, len(v.Candidates))
	for i, c := range v.Candidates {
		ids[i] = c.ID
	}
	return ids
}
