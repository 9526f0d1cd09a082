package session

import (
	"context"
	"strings"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// SendMessage appends a message from self to the conversation with participantID,
// creating it at the front when absent, persists it and marks self online. Simulated
// participants answer after a random delay; real participants get the message mirrored
// into their own record. An unresolvable participant drops the send.
func (s *Session) SendMessage(ctx context.Context, participantID, text, imageURL string) error {
	text = strings.TrimSpace(text)
	if participantID == "" || (text == "" && imageURL == "") {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	if err := s.requireLoadedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	epoch := s.epoch
	participant, ok := s.knownParticipantLocked(participantID)
	s.mu.Unlock()

	if !ok {
		rec, err := s.deps.Store.Read(ctx, participantID)
		if err != nil || rec == nil {
			log.Warn().Err(err).Str("participant_id", participantID).Msg("Failed to resolve participant, message dropped")
			return nil
		}
		participant = rec.UserProfile.Clone()
		if participant.ID == "" {
			participant.ID = participantID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.signedIn || epoch != s.epoch {
		return domain.ErrNotSignedIn
	}
	self := s.record.UserProfile.Clone()
	if participant.ID == self.ID {
		return domain.ErrInvalidInput
	}

	msg := domain.Message{
		ID:        s.deps.NewID(),
		SenderID:  self.ID,
		Text:      text,
		Timestamp: s.deps.Now().UTC(),
		ImageURL:  imageURL,
	}
	convos := domain.AppendMessage(s.record.Conversations, participant, msg, 0)
	online := domain.PresenceOnline
	s.record.Conversations = convos
	s.record.UserProfile.OnlineStatus = online
	s.commitLocked(domain.Patch{Conversations: &convos, Presence: &online})
	s.removeCandidateLocked(participant.ID)
	s.conversationsChangedLocked(false)

	if domain.IsSimulated(participant.ID) {
		s.scheduleReplyLocked(participant)
	} else {
		s.mirrorLocked(self, participant.ID, msg)
	}
	s.deps.Metrics.MessageSent(recipientKind(participant.ID))
	s.publishLocked()
	return nil
}

func recipientKind(id string) string {
	if domain.IsSimulated(id) {
		return "simulated"
	}
	return "user"
}

func (s *Session) knownParticipantLocked(id string) (domain.UserProfile, bool) {
	if i := domain.FindConversation(s.record.Conversations, id); i >= 0 {
		return s.record.Conversations[i].Participant.Clone(), true
	}
	return domain.FindSimulated(id, s.deps.Now())
}

// scheduleReplyLocked marks participant as typing and, after the reply delay, appends a
// generated reply. The reply is cancelled by sign-out and by dismissing participant; a
// reply whose conversation is gone by then is discarded. The typing mark is cleared on
// every path.
func (s *Session) scheduleReplyLocked(participant domain.UserProfile) {
	ctx, cancel := context.WithCancel(s.lifetime)
	s.replySeq++
	id := s.replySeq
	if s.replies[participant.ID] == nil {
		s.replies[participant.ID] = make(map[uint64]context.CancelFunc)
	}
	s.replies[participant.ID][id] = cancel
	s.typing[participant.ID]++
	epoch := s.epoch
	delay := s.deps.ReplyDelay()

	tasks := s.tasks
	tasks.Add(1)
	go func() {
		defer tasks.Done()
		defer cancel()
		defer s.finishReply(epoch, participant.ID, id)

		select {
		case <-ctx.Done():
			return
		case <-s.deps.After(delay):
		}

		s.mu.Lock()
		i := domain.FindConversation(s.record.Conversations, participant.ID)
		if ctx.Err() != nil || i < 0 {
			s.mu.Unlock()
			return
		}
		self := s.record.UserProfile.Clone()
		history := append([]domain.Message(nil), s.record.Conversations[i].Messages...)
		s.mu.Unlock()

		text := s.deps.Generator.SimulatedReply(ctx, self, participant, history)

		s.mu.Lock()
		defer s.mu.Unlock()
		if ctx.Err() != nil || epoch != s.epoch || domain.FindConversation(s.record.Conversations, participant.ID) < 0 {
			log.Debug().Str("participant_id", participant.ID).Msg("Discarding simulated reply")
			return
		}
		reply := domain.Message{
			ID:        s.deps.NewID(),
			SenderID:  participant.ID,
			Text:      text,
			Timestamp: s.deps.Now().UTC(),
		}
		convos := domain.AppendMessage(s.record.Conversations, participant, reply, 0)
		s.record.Conversations = convos
		s.commitLocked(domain.Patch{Conversations: &convos})
		s.publishLocked()
	}()
}

func (s *Session) finishReply(epoch uint64, participantID string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}
	if byID := s.replies[participantID]; byID != nil {
		delete(byID, id)
		if len(byID) == 0 {
			delete(s.replies, participantID)
		}
	}
	if s.typing[participantID] > 1 {
		s.typing[participantID]--
	} else {
		delete(s.typing, participantID)
	}
	s.publishLocked()
}

func (s *Session) cancelRepliesLocked(participantID string) {
	for _, cancel := range s.replies[participantID] {
		cancel()
	}
}

// mirrorLocked copies msg into the recipient's record with their unread counter raised.
// The write outlives sign-out so a message sent just before leaving still arrives.
func (s *Session) mirrorLocked(self domain.UserProfile, recipientID string, msg domain.Message) {
	ctx := context.WithoutCancel(s.lifetime)
	timeout := s.deps.WriteTimeout
	store := s.deps.Store

	tasks := s.tasks
	tasks.Add(1)
	go func() {
		defer tasks.Done()
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		rec, err := store.Read(ctx, recipientID)
		if err != nil {
			log.Warn().Err(err).Str("recipient_id", recipientID).Msg("Failed to read recipient record")
			s.deps.Metrics.StoreWriteFailed("mirror")
			return
		}
		// A merge write would create a record with no profile, which then shadows the
		// defaults the recipient gets on first sign-in.
		if rec == nil {
			log.Warn().Str("recipient_id", recipientID).Msg("Recipient has no record, message not delivered")
			return
		}
		convos := domain.AppendMessage(rec.Conversations, self, msg, 1)
		patch := domain.Patch{
			Conversations: &convos,
			Revisions:     map[domain.FieldGroup]uint64{domain.GroupConversations: rec.MaxRevision() + 1},
		}
		if err := store.Write(ctx, recipientID, patch); err != nil {
			log.Warn().Err(err).Str("recipient_id", recipientID).Msg("Failed to deliver message to recipient")
			s.deps.Metrics.StoreWriteFailed("mirror")
		}
	}()
}

// ViewConversation resets the unread counter of id and makes it the active conversation.
// Nothing is written when the counter is already zero. An empty id clears the pointer.
func (s *Session) ViewConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLoadedLocked(); err != nil {
		return err
	}
	s.activeConvo = id
	if id != "" {
		if i := domain.FindConversation(s.record.Conversations, id); i >= 0 && s.record.Conversations[i].UnreadCount > 0 {
			convos := domain.CloneConversations(s.record.Conversations)
			convos[i].UnreadCount = 0
			s.record.Conversations = convos
			s.commitLocked(domain.Patch{Conversations: &convos})
		}
	}
	s.publishLocked()
	return nil
}
