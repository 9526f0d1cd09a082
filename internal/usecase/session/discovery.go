package session

import (
	"context"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/textgen"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// conversationsChangedLocked regenerates candidates on the first load and whenever the
// number of conversations grew.
func (s *Session) conversationsChangedLocked(first bool) {
	n := len(s.record.Conversations)
	grew := n > s.lastConvCount
	s.lastConvCount = n
	if first || grew {
		s.startRegenerateLocked()
	}
}

func (s *Session) startRegenerateLocked() {
	if !s.record.UserProfile.OnboardingCompleted {
		s.regenSeq++
		s.candidates = nil
		return
	}
	seq, epoch := s.beginRegenerateLocked()
	s.goLocked(func(ctx context.Context) {
		s.regenerate(ctx, epoch, seq)
	})
}

func (s *Session) beginRegenerateLocked() (seq, epoch uint64) {
	s.regenSeq++
	return s.regenSeq, s.epoch
}

// RegenerateCandidates rebuilds the discovery candidates from the simulated roster and
// every profile in the store. Users who have not finished onboarding get none.
func (s *Session) RegenerateCandidates(ctx context.Context) error {
	s.mu.Lock()
	if err := s.requireLoadedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.record.UserProfile.OnboardingCompleted {
		s.regenSeq++
		s.candidates = nil
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}
	seq, epoch := s.beginRegenerateLocked()
	s.mu.Unlock()

	s.regenerate(ctx, epoch, seq)
	return nil
}

// regenerate fetches the roster and dismissed set concurrently. When either fetch fails
// only the simulated roster is used. A result is dropped if a newer regeneration started
// in the meantime.
func (s *Session) regenerate(ctx context.Context, epoch, seq uint64) {
	s.mu.Lock()
	selfID := s.identity.UserID
	s.mu.Unlock()

	var (
		profiles  []domain.UserProfile
		dismissed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = s.deps.Store.ListProfiles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		dismissed, err = s.deps.Store.DismissedIDs(gctx, selfID)
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("user_id", selfID).Msg("Failed to load roster, using simulated participants only")
		profiles, dismissed = nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch || seq != s.regenSeq || !s.loaded {
		return
	}
	for _, id := range dismissed {
		s.dismissed[id] = true
	}
	roster := append(domain.SimulatedRoster(s.deps.Now()), profiles...)
	candidates := FilterCandidates(roster, selfID, s.record.Conversations, s.dismissed)
	s.deps.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	s.candidates = candidates
	s.publishLocked()
}

// pruneCandidatesLocked drops candidates that stopped qualifying, keeping the order.
func (s *Session) pruneCandidatesLocked() {
	if len(s.candidates) == 0 || s.record == nil {
		return
	}
	if !s.record.UserProfile.OnboardingCompleted {
		s.candidates = nil
		return
	}
	s.candidates = FilterCandidates(s.candidates, s.record.UserProfile.ID, s.record.Conversations, s.dismissed)
}

func (s *Session) removeCandidateLocked(id string) {
	out := s.candidates[:0:0]
	for _, c := range s.candidates {
		if c.ID != id {
			out = append(out, c)
		}
	}
	s.candidates = out
}

// DismissCandidate hides userID from discovery for good and drops any conversation with
// them, cancelling replies they still had scheduled. Dismissals of real users are also
// recorded in the store.
func (s *Session) DismissCandidate(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return err
	}

	s.removeCandidateLocked(userID)
	s.cancelRepliesLocked(userID)
	s.dismissed[userID] = true
	delete(s.explanations, userID)
	if i := domain.FindConversation(s.record.Conversations, userID); i >= 0 {
		convos := domain.CloneConversations(s.record.Conversations)
		convos = append(convos[:i], convos[i+1:]...)
		s.record.Conversations = convos
		s.lastConvCount = len(convos)
		s.commitLocked(domain.Patch{Conversations: &convos})
	}
	if s.activeConvo == userID {
		s.activeConvo = ""
	}

	if !domain.IsSimulated(userID) {
		selfID := s.identity.UserID
		store, timeout := s.deps.Store, s.deps.WriteTimeout
		m := s.deps.Metrics
		parent := context.WithoutCancel(s.lifetime)
		tasks := s.tasks
		tasks.Add(1)
		go func() {
			defer tasks.Done()
			ctx, cancel := context.WithTimeout(parent, timeout)
			defer cancel()
			if err := store.AddDismissed(ctx, selfID, userID); err != nil {
				log.Warn().Err(err).Str("user_id", selfID).Str("dismissed_id", userID).Msg("Failed to record dismissal")
				m.StoreWriteFailed("dismissed")
			}
		}()
	}
	s.publishLocked()
	return nil
}

// ExploreCards lists incoming requests followed by discovery candidates.
func (s *Session) ExploreCards() ([]ExploreCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return nil, err
	}
	if !s.record.UserProfile.OnboardingCompleted {
		return nil, domain.ErrOnboardingIncomplete
	}

	requests, _ := Classify(s.record.UserProfile.ID, s.record.Conversations)
	cards := make([]ExploreCard, 0, len(requests)+len(s.candidates))
	for _, r := range requests {
		first := r.Messages[0].Text
		if first == "" {
			first = "Sent you a message!"
		}
		cards = append(cards, ExploreCard{ID: r.Participant.ID, User: r.Participant, Type: CardRequest, FirstMessage: first})
	}
	for _, c := range s.candidates {
		cards = append(cards, ExploreCard{ID: c.ID, User: c.Clone(), Type: CardMatch})
	}
	return cards, nil
}

// ExplainCandidate returns why userID could be a good match. Explanations are cached for
// the rest of the session.
func (s *Session) ExplainCandidate(ctx context.Context, userID string) (textgen.Explanation, error) {
	s.mu.Lock()
	if err := s.requireLoadedLocked(); err != nil {
		s.mu.Unlock()
		return textgen.Explanation{}, err
	}
	if e, ok := s.explanations[userID]; ok {
		s.mu.Unlock()
		return e, nil
	}
	self := s.record.UserProfile.Clone()
	other, ok := s.lookupProfileLocked(userID)
	epoch := s.epoch
	s.mu.Unlock()

	if !ok {
		rec, err := s.deps.Store.Read(ctx, userID)
		if err != nil {
			return textgen.Explanation{}, err
		}
		if rec == nil {
			return textgen.Explanation{}, domain.ErrRecordNotFound
		}
		other = rec.UserProfile
	}

	e := s.deps.Generator.MatchExplanation(ctx, self, other)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch == s.epoch {
		s.explanations[userID] = e
	}
	return e, nil
}

func (s *Session) lookupProfileLocked(id string) (domain.UserProfile, bool) {
	for _, c := range s.candidates {
		if c.ID == id {
			return c.Clone(), true
		}
	}
	if i := domain.FindConversation(s.record.Conversations, id); i >= 0 {
		return s.record.Conversations[i].Participant.Clone(), true
	}
	return domain.FindSimulated(id, s.deps.Now())
}
