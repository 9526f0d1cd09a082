package session

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/textgen"
	"github.com/rs/zerolog/log"
)

const (
	initialEntryID    = "initial"
	completionEntryID = "onboarding-complete"
	welcomeBackID     = "post-onboarding-welcome"

	initialQuestion   = "Welcome! I'm here to help you find a connection. What kind of relationship are you looking for?"
	completionMessage = "Perfect, that's everything for now! I've unlocked the Explore and Chat tabs for you. Go ahead and tap on Explore to see who you could match with!"
)

func questionEntryID(index int) string {
	return "q-" + strconv.Itoa(index)
}

// bindTranscript attaches option handlers to persisted entries that still offer choices.
func (s *Session) bindTranscript(msgs []domain.AiChatMessage) []TranscriptEntry {
	out := make([]TranscriptEntry, 0, len(msgs))
	for _, m := range msgs {
		m.Options = append([]string(nil), m.Options...)
		out = append(out, s.bindEntry(m))
	}
	return out
}

func (s *Session) bindEntry(m domain.AiChatMessage) TranscriptEntry {
	e := TranscriptEntry{AiChatMessage: m}
	if len(m.Options) == 0 {
		return e
	}
	switch {
	case m.ID == initialEntryID:
		e.OnSelect = func(ctx context.Context, option string) error {
			goal, err := domain.ParseRelationshipType(option)
			if err != nil {
				return err
			}
			return s.SelectGoal(ctx, goal)
		}
	case strings.HasPrefix(m.ID, "q-"):
		index, err := strconv.Atoi(strings.TrimPrefix(m.ID, "q-"))
		if err != nil {
			return e
		}
		e.OnSelect = func(ctx context.Context, option string) error {
			return s.AnswerQuestion(ctx, index, option)
		}
	}
	return e
}

func (s *Session) findEntryLocked(id string) int {
	for i := range s.transcript {
		if s.transcript[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) clearOptionsLocked(id string) {
	if i := s.findEntryLocked(id); i >= 0 {
		s.transcript[i].Options = nil
		s.transcript[i].OnSelect = nil
	}
}

func (s *Session) appendEntryLocked(sender domain.AiSender, id, text string, options []string) {
	if id == "" {
		id = s.deps.NewID()
	}
	s.transcript = append(s.transcript, s.bindEntry(domain.AiChatMessage{
		ID:      id,
		Sender:  sender,
		Text:    text,
		Options: options,
	}))
}

func (s *Session) transcriptPatchLocked(p *domain.Patch) {
	msgs := persistedTranscript(s.transcript)
	p.AiChatMessages = &msgs
}

// StartTranscript seeds an empty transcript: the relationship goal question before
// onboarding, a welcome back message after it.
func (s *Session) StartTranscript(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return err
	}
	if len(s.transcript) > 0 {
		return nil
	}

	profile := s.record.UserProfile
	if profile.OnboardingCompleted {
		text := fmt.Sprintf("Welcome back, %s! You can continue our chat to refine your profile, or head to the Explore page to see your matches.", profile.Name)
		s.appendEntryLocked(domain.AiSenderAI, welcomeBackID, text, nil)
	} else {
		goals := domain.RelationshipTypes()
		options := make([]string, len(goals))
		for i, g := range goals {
			options[i] = string(g)
		}
		s.appendEntryLocked(domain.AiSenderAI, initialEntryID, initialQuestion, options)
	}

	var p domain.Patch
	s.transcriptPatchLocked(&p)
	s.commitLocked(p)
	s.publishLocked()
	return nil
}

// SelectGoal answers the relationship goal question and asks the first onboarding
// question generated for goal. Without questions onboarding completes right away.
func (s *Session) SelectGoal(ctx context.Context, goal domain.RelationshipType) error {
	if _, err := domain.ParseRelationshipType(string(goal)); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.requireLoadedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.record.UserProfile.OnboardingCompleted {
		s.mu.Unlock()
		return domain.ErrOnboardingCompleted
	}
	if i := s.findEntryLocked(initialEntryID); i >= 0 && len(s.transcript[i].Options) == 0 {
		s.mu.Unlock()
		return domain.ErrUnknownOption
	}

	s.clearOptionsLocked(initialEntryID)
	s.appendEntryLocked(domain.AiSenderUser, "", string(goal), nil)
	tags := domain.Tags{Positive: []string{domain.Slug(string(goal))}, Negative: []string{}}
	s.record.SelectedRelationshipGoal = goal
	s.record.UserTags = tags
	s.questions = nil
	s.aiBusy++
	p := domain.Patch{SelectedRelationshipGoal: &goal, UserTags: &tags}
	s.transcriptPatchLocked(&p)
	s.commitLocked(p)
	s.publishLocked()
	epoch := s.epoch
	s.mu.Unlock()

	questions := s.deps.Generator.QuestionsFor(ctx, goal)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return domain.ErrNotSignedIn
	}
	s.aiBusy--
	if s.record.UserProfile.OnboardingCompleted || s.record.SelectedRelationshipGoal != goal {
		s.publishLocked()
		return nil
	}

	s.questions = questions
	p = domain.Patch{}
	if len(questions) == 0 {
		s.finishOnboardingLocked(goal, tags, &p)
	} else {
		s.appendEntryLocked(domain.AiSenderAI, questionEntryID(0), questions[0].Question, questions[0].Options)
		step := 1
		progress := float64(step) / float64(len(questions)+1) * 100
		s.record.OnboardingStep = step
		s.record.OnboardingProgress = progress
		p.OnboardingStep = &step
		p.OnboardingProgress = &progress
	}
	s.transcriptPatchLocked(&p)
	s.commitLocked(p)
	s.publishLocked()
	return nil
}

// AnswerQuestion records answer to onboarding question index and asks the next one.
// The last answer completes onboarding with the accumulated tags.
func (s *Session) AnswerQuestion(ctx context.Context, index int, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return err
	}
	if s.record.UserProfile.OnboardingCompleted {
		return domain.ErrOnboardingCompleted
	}
	id := questionEntryID(index)
	i := s.findEntryLocked(id)
	if i < 0 || !slices.Contains(s.transcript[i].Options, answer) {
		return domain.ErrUnknownOption
	}

	s.clearOptionsLocked(id)
	s.appendEntryLocked(domain.AiSenderUser, "", answer, nil)
	tags := s.record.UserTags.Clone()
	tags.Positive = append(tags.Positive, domain.Slug(answer))
	if tags.Negative == nil {
		tags.Negative = []string{}
	}
	s.record.UserTags = tags

	total := max(len(s.questions), index+1) + 1
	step := s.record.OnboardingStep + 1
	progress := min(float64(step)/float64(total)*100, 100)
	s.record.OnboardingStep = step
	s.record.OnboardingProgress = progress
	p := domain.Patch{UserTags: &tags, OnboardingStep: &step, OnboardingProgress: &progress}

	next := index + 1
	if next < len(s.questions) {
		q := s.questions[next]
		s.appendEntryLocked(domain.AiSenderAI, questionEntryID(next), q.Question, q.Options)
	} else {
		s.finishOnboardingLocked(s.record.SelectedRelationshipGoal, tags, &p)
	}
	s.transcriptPatchLocked(&p)
	s.commitLocked(p)
	s.publishLocked()
	return nil
}

func (s *Session) finishOnboardingLocked(goal domain.RelationshipType, tags domain.Tags, p *domain.Patch) {
	s.completeOnboardingLocked(goal, tags, p)
	s.appendEntryLocked(domain.AiSenderAI, completionEntryID, completionMessage, nil)
}

// SelectOption dispatches option to the handler of transcript entry messageID.
func (s *Session) SelectOption(ctx context.Context, messageID, option string) error {
	s.mu.Lock()
	if err := s.requireLoadedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	i := s.findEntryLocked(messageID)
	if i < 0 || !s.transcript[i].Selectable() || !slices.Contains(s.transcript[i].Options, option) {
		s.mu.Unlock()
		return domain.ErrUnknownOption
	}
	handler := s.transcript[i].OnSelect
	s.mu.Unlock()

	return handler(ctx, option)
}

// CompleteOnboarding marks the profile as onboarded with goal and tags, forces progress
// to 100 and raises the explore notification, all in one write.
func (s *Session) CompleteOnboarding(ctx context.Context, goal domain.RelationshipType, tags domain.Tags) error {
	if _, err := domain.ParseRelationshipType(string(goal)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return err
	}
	var p domain.Patch
	s.completeOnboardingLocked(goal, tags, &p)
	s.commitLocked(p)
	s.publishLocked()
	return nil
}

func (s *Session) completeOnboardingLocked(goal domain.RelationshipType, tags domain.Tags, p *domain.Patch) {
	tags = tags.Clone()
	if tags.Positive == nil {
		tags.Positive = []string{}
	}
	if tags.Negative == nil {
		tags.Negative = []string{}
	}
	profile := s.record.UserProfile.Clone()
	profile.OnboardingCompleted = true
	profile.RelationshipGoal = goal
	profile.Tags = tags
	progress := 100.0
	notify := true

	s.record.UserProfile = profile
	s.record.OnboardingProgress = progress
	s.record.ShowExploreTabNotification = notify
	p.UserProfile = &profile
	p.OnboardingProgress = &progress
	p.ShowExploreTabNotification = &notify

	s.startRegenerateLocked()
}

// MergeProfileTags unions tags into the profile tags of an onboarded user.
func (s *Session) MergeProfileTags(ctx context.Context, tags domain.Tags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return err
	}
	if !s.record.UserProfile.OnboardingCompleted {
		return domain.ErrOnboardingIncomplete
	}
	merged := s.record.UserProfile.Tags.Union(tags)
	if slices.Equal(merged.Positive, s.record.UserProfile.Tags.Positive) && slices.Equal(merged.Negative, s.record.UserProfile.Tags.Negative) {
		return nil
	}
	profile := s.record.UserProfile.Clone()
	profile.Tags = merged
	s.record.UserProfile = profile
	s.commitLocked(domain.Patch{UserProfile: &profile})
	s.publishLocked()
	return nil
}

// Chat continues the assistant conversation after onboarding. Tags found in text are
// merged into the profile in the background; the assistant answers with a follow-up
// question.
func (s *Session) Chat(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	if err := s.requireLoadedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.record.UserProfile.OnboardingCompleted {
		s.mu.Unlock()
		return domain.ErrOnboardingIncomplete
	}
	s.appendEntryLocked(domain.AiSenderUser, "", text, nil)
	var p domain.Patch
	s.transcriptPatchLocked(&p)
	s.commitLocked(p)
	history := persistedTranscript(s.transcript)
	s.aiBusy++
	s.publishLocked()
	epoch := s.epoch
	userID := s.identity.UserID
	s.goLocked(func(ctx context.Context) {
		s.extractTags(ctx, userID, text)
	})
	s.mu.Unlock()

	reply := s.deps.Generator.FollowUp(ctx, history)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return domain.ErrNotSignedIn
	}
	s.aiBusy--
	s.appendEntryLocked(domain.AiSenderAI, "response-"+s.deps.NewID(), reply, nil)
	p = domain.Patch{}
	s.transcriptPatchLocked(&p)
	s.commitLocked(p)
	s.publishLocked()
	return nil
}

func (s *Session) extractTags(ctx context.Context, userID, text string) {
	tags := s.deps.Generator.TagsFrom(ctx, text)
	if tags.IsEmpty() || ctx.Err() != nil {
		return
	}
	if err := s.MergeProfileTags(ctx, tags); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to merge extracted tags")
	}
}

// Questions returns the onboarding questions generated for the selected goal, if any.
func (s *Session) Questions() []textgen.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.questions)
}
