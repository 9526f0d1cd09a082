// Package session holds the live state of one signed-in user: their record mirrored from
// the profile store, derived lists for the view, and every operation that changes them.
//
// A Session serializes its state behind one mutex. Store I/O, text generation and reply
// timers always run with the mutex released; code re-reads state after reacquiring it.
// The store subscription is the only path that replaces confirmed state wholesale, and a
// snapshot only loses to local edits whose field-group revision is strictly newer.
package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/metrics"
	"github.com/gdugdh24/kindred-backend/internal/repository"
	"github.com/gdugdh24/kindred-backend/internal/textgen"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Generator is the text generation capability a session needs. textgen.Gateway
// implements it; none of its methods fail.
type Generator interface {
	QuestionsFor(ctx context.Context, goal domain.RelationshipType) []textgen.Question
	TagsFrom(ctx context.Context, text string) domain.Tags
	MatchExplanation(ctx context.Context, self, other domain.UserProfile) textgen.Explanation
	FollowUp(ctx context.Context, transcript []domain.AiChatMessage) string
	SimulatedReply(ctx context.Context, self, participant domain.UserProfile, history []domain.Message) string
}

type Dependencies struct {
	Store     repository.ProfileStore
	Generator Generator
	Metrics   *metrics.Metrics

	// Optional; defaults in withDefaults.
	Now          func() time.Time
	NewID        func() string
	ReplyDelay   func() time.Duration
	After        func(time.Duration) <-chan time.Time
	Shuffle      func(n int, swap func(i, j int))
	WriteTimeout time.Duration
}

// UniformDelay returns a ReplyDelay drawing uniformly from [lo, hi].
func UniformDelay(lo, hi time.Duration) func() time.Duration {
	return func() time.Duration {
		if hi <= lo {
			return lo
		}
		return lo + rand.N(hi-lo+1)
	}
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.ReplyDelay == nil {
		d.ReplyDelay = UniformDelay(time.Second, 5*time.Second)
	}
	if d.After == nil {
		d.After = time.After
	}
	if d.Shuffle == nil {
		d.Shuffle = rand.Shuffle
	}
	if d.WriteTimeout <= 0 {
		d.WriteTimeout = 10 * time.Second
	}
	return d
}

type Session struct {
	deps Dependencies

	// lifecycle serializes SignIn and SignOut.
	lifecycle sync.Mutex

	mu       sync.Mutex
	epoch    uint64
	signedIn bool
	identity domain.Identity
	ready    chan struct{}
	loaded   bool
	cancel   context.CancelFunc
	lifetime context.Context
	writes   *writeQueue
	tasks    *sync.WaitGroup

	// Confirmed-or-optimistic record. AiChatMessages is kept in transcript instead.
	record     *domain.Record
	transcript []TranscriptEntry
	revision   uint64
	pending    map[domain.FieldGroup]uint64

	candidates    []domain.UserProfile
	dismissed     map[string]bool
	regenSeq      uint64
	lastConvCount int
	questions     []textgen.Question
	explanations  map[string]textgen.Explanation
	aiBusy        int
	typing        map[string]int
	replies       map[string]map[uint64]context.CancelFunc
	replySeq      uint64
	activeConvo   string
	activePage    Page
	watchers      map[uint64]chan View
	watcherSeq    uint64
}

func New(deps Dependencies) *Session {
	s := &Session{
		deps:     deps.withDefaults(),
		watchers: make(map[uint64]chan View),
	}
	s.resetLocked()
	return s
}

func (s *Session) resetLocked() {
	s.loaded = false
	s.record = nil
	s.transcript = nil
	s.revision = 0
	s.pending = make(map[domain.FieldGroup]uint64)
	s.candidates = nil
	s.dismissed = make(map[string]bool)
	s.lastConvCount = 0
	s.questions = nil
	s.explanations = make(map[string]textgen.Explanation)
	s.aiBusy = 0
	s.typing = make(map[string]int)
	s.replies = make(map[string]map[uint64]context.CancelFunc)
	s.activeConvo = ""
	s.activePage = PageAIChat
}

// UserID returns the signed-in user's id, or "" when signed out.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.signedIn {
		return ""
	}
	return s.identity.UserID
}

// SignIn subscribes to identity's record, creating it with defaults when absent, and
// waits until the first snapshot has been applied. Signing in as another identity signs
// the current one out first; signing in again as the same identity only waits.
func (s *Session) SignIn(ctx context.Context, identity domain.Identity) error {
	s.lifecycle.Lock()
	s.mu.Lock()
	if s.signedIn && s.identity.UserID == identity.UserID {
		ready := s.ready
		s.mu.Unlock()
		s.lifecycle.Unlock()
		return waitReady(ctx, ready)
	}
	s.mu.Unlock()

	if err := s.signOut(ctx); err != nil {
		s.lifecycle.Unlock()
		return err
	}

	lifetime, cancel := context.WithCancel(context.Background())
	updates, err := s.deps.Store.Subscribe(lifetime, identity.UserID)
	if err != nil {
		cancel()
		s.lifecycle.Unlock()
		return fmt.Errorf("failed to subscribe to %s: %w", identity.UserID, err)
	}

	s.mu.Lock()
	s.resetLocked()
	s.epoch++
	epoch := s.epoch
	s.signedIn = true
	s.identity = identity
	s.lifetime = lifetime
	s.cancel = cancel
	s.ready = make(chan struct{})
	s.writes = newWriteQueue(s.deps.Store, s.deps.Metrics, s.deps.WriteTimeout)
	ready := s.ready
	s.tasks = &sync.WaitGroup{}
	s.tasks.Add(1)
	go s.watch(lifetime, s.tasks, epoch, identity, updates)
	s.mu.Unlock()
	s.lifecycle.Unlock()

	s.deps.Metrics.SessionStarted()
	log.Info().Str("user_id", identity.UserID).Str("auth_type", string(identity.AuthType)).Msg("Session signed in")
	return waitReady(ctx, ready)
}

func waitReady(ctx context.Context, ready <-chan struct{}) error {
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignOut records last-seen presence, stops the subscription and every pending task,
// and clears all state. It is a no-op when not signed in.
func (s *Session) SignOut(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.signOut(ctx)
}

func (s *Session) signOut(ctx context.Context) error {
	s.mu.Lock()
	if !s.signedIn {
		s.mu.Unlock()
		return nil
	}
	userID := s.identity.UserID
	if s.loaded {
		presence := domain.LastSeen(s.deps.Now())
		s.writes.push(userID, domain.Patch{Presence: &presence})
	}
	s.cancel()
	for _, byID := range s.replies {
		for _, cancel := range byID {
			cancel()
		}
	}
	writes, tasks := s.writes, s.tasks
	s.writes, s.tasks = nil, nil
	s.signedIn = false
	s.identity = domain.Identity{}
	s.epoch++
	s.resetLocked()
	s.publishLocked()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		tasks.Wait()
		writes.close()
		close(done)
	}()

	s.deps.Metrics.SessionEnded()
	log.Info().Str("user_id", userID).Msg("Session signed out")

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every write issued so far has been attempted against the store.
func (s *Session) Flush() {
	s.mu.Lock()
	writes := s.writes
	s.mu.Unlock()
	if writes != nil {
		writes.flush()
	}
}

func (s *Session) watch(ctx context.Context, tasks *sync.WaitGroup, epoch uint64, identity domain.Identity, updates <-chan *domain.Record) {
	defer tasks.Done()

	created := false
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-updates:
			if !ok {
				return
			}
			if rec != nil {
				s.applySnapshot(epoch, rec)
				continue
			}
			if created {
				continue
			}
			created = true
			defaults := domain.NewRecord(identity.DefaultProfile(), s.deps.Now())
			if _, err := s.deps.Store.CreateIfAbsent(ctx, identity.UserID, defaults); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Str("user_id", identity.UserID).Msg("Failed to create user record, continuing with local defaults")
				s.applySnapshot(epoch, defaults)
			}
		}
	}
}

// applySnapshot reconciles an authoritative record into local state. For each field
// group the snapshot wins unless a local write to that group carries a strictly newer
// revision than the snapshot has seen.
func (s *Session) applySnapshot(epoch uint64, snap *domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.signedIn || epoch != s.epoch {
		return
	}

	snap = snap.Clone()
	if s.record == nil {
		s.record = &domain.Record{}
	}
	keep := func(g domain.FieldGroup) bool {
		local, ok := s.pending[g]
		if ok && local > snap.Revision(g) {
			return true
		}
		delete(s.pending, g)
		return false
	}

	if !keep(domain.GroupProfile) {
		s.record.UserProfile = snap.UserProfile
	}
	if !keep(domain.GroupTranscript) {
		s.transcript = s.bindTranscript(snap.AiChatMessages)
	}
	if !keep(domain.GroupConversations) {
		s.record.Conversations = snap.Conversations
	}
	if !keep(domain.GroupOnboarding) {
		s.record.OnboardingStep = snap.OnboardingStep
		s.record.UserTags = snap.UserTags
		s.record.SelectedRelationshipGoal = snap.SelectedRelationshipGoal
		s.record.OnboardingProgress = snap.OnboardingProgress
	}
	if !keep(domain.GroupFlags) {
		s.record.ShowExploreTabNotification = snap.ShowExploreTabNotification
	}
	s.record.Revisions = snap.Revisions
	if rev := snap.MaxRevision(); rev > s.revision {
		s.revision = rev
	}
	if s.record.UserProfile.ID == "" {
		s.record.UserProfile.ID = s.identity.UserID
	}

	first := !s.loaded
	if first {
		s.loaded = true
		close(s.ready)
		if !s.record.UserProfile.OnlineStatus.IsOnline() {
			online := domain.PresenceOnline
			s.record.UserProfile.OnlineStatus = online
			s.writes.push(s.identity.UserID, domain.Patch{Presence: &online})
		}
	}
	s.conversationsChangedLocked(first)
	s.publishLocked()
}

// commitLocked stamps the next revision onto every group p touches, records it as
// pending and queues the write.
func (s *Session) commitLocked(p domain.Patch) {
	if p.IsEmpty() {
		return
	}
	if groups := p.Groups(); len(groups) > 0 {
		s.revision++
		p.Revisions = make(map[domain.FieldGroup]uint64, len(groups))
		for _, g := range groups {
			p.Revisions[g] = s.revision
			s.pending[g] = s.revision
		}
	}
	s.writes.push(s.identity.UserID, p)
}

func (s *Session) requireLoadedLocked() error {
	if !s.signedIn {
		return domain.ErrNotSignedIn
	}
	if !s.loaded {
		return domain.ErrSessionNotFound
	}
	return nil
}

// goLocked runs fn as a task of the current sign-in. fn must stop when ctx is done.
func (s *Session) goLocked(fn func(ctx context.Context)) {
	ctx := s.lifetime
	tasks := s.tasks
	tasks.Add(1)
	go func() {
		defer tasks.Done()
		fn(ctx)
	}()
}

// Watch streams the derived view, starting with the current one. Slow readers only see
// the latest view. The channel is closed when ctx is done.
func (s *Session) Watch(ctx context.Context) <-chan View {
	ch := make(chan View, 1)
	s.mu.Lock()
	s.watcherSeq++
	id := s.watcherSeq
	s.watchers[id] = ch
	ch <- s.viewLocked()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// watched reports whether any Watch channel is open.
func (s *Session) watched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers) > 0
}

// View returns the current derived view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) publishLocked() {
	s.pruneCandidatesLocked()
	if len(s.watchers) == 0 {
		return
	}
	v := s.viewLocked()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func (s *Session) viewLocked() View {
	v := View{
		SignedIn:           s.signedIn,
		Loaded:             s.loaded,
		Transcript:         []TranscriptEntry{},
		Requests:           []domain.Conversation{},
		Conversations:      []domain.Conversation{},
		Candidates:         []domain.UserProfile{},
		TypingParticipants: []string{},
		ActivePage:         s.activePage,
		ActiveConversation: s.activeConvo,
		AiTyping:           s.aiBusy > 0,
	}
	if s.record == nil {
		return v
	}

	profile := s.record.UserProfile.Clone()
	v.Profile = &profile
	for _, e := range s.transcript {
		e.Options = append([]string(nil), e.Options...)
		v.Transcript = append(v.Transcript, e)
	}
	v.OnboardingStep = s.record.OnboardingStep
	v.OnboardingProgress = s.record.OnboardingProgress
	v.UserTags = s.record.UserTags.Clone()
	v.SelectedRelationshipGoal = s.record.SelectedRelationshipGoal
	v.ShowExploreTabNotification = s.record.ShowExploreTabNotification
	v.Requests, v.Conversations = Classify(profile.ID, s.record.Conversations)
	v.UnreadTotal = UnreadTotal(v.Conversations)
	for _, c := range s.candidates {
		v.Candidates = append(v.Candidates, c.Clone())
	}
	for id := range s.typing {
		v.TypingParticipants = append(v.TypingParticipants, id)
	}
	sort.Strings(v.TypingParticipants)
	return v
}
