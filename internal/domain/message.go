package domain

import "time"

// Message is a single chat message. Messages are never edited after creation.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	ImageURL  string    `json:"imageUrl,omitempty"`
}

// Conversation holds the messages exchanged with one participant. ID always equals
// Participant.ID so there is at most one conversation per pair of users.
type Conversation struct {
	ID          string      `json:"id"`
	Participant UserProfile `json:"participant"`
	Messages    []Message   `json:"messages"`
	UnreadCount int         `json:"unreadCount"`
}

// NewConversation starts a conversation with participant containing first.
func NewConversation(participant UserProfile, first Message, unread int) Conversation {
	return Conversation{
		ID:          participant.ID,
		Participant: participant,
		Messages:    []Message{first},
		UnreadCount: unread,
	}
}

// LastMessage returns the most recent message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// HasMessageFrom reports whether senderID wrote any message in c.
func (c *Conversation) HasMessageFrom(senderID string) bool {
	for _, m := range c.Messages {
		if m.SenderID == senderID {
			return true
		}
	}
	return false
}

// IsRequest reports whether, from selfID's point of view, c is an unanswered request: the
// participant wrote first and self never replied. Empty conversations are never requests.
func (c *Conversation) IsRequest(selfID string) bool {
	if len(c.Messages) == 0 {
		return false
	}
	return c.Messages[0].SenderID == c.Participant.ID && !c.HasMessageFrom(selfID)
}

// Clone returns a deep copy.
func (c Conversation) Clone() Conversation {
	c.Participant = c.Participant.Clone()
	c.Messages = append([]Message(nil), c.Messages...)
	return c
}

// CloneConversations deep-copies a conversation list.
func CloneConversations(in []Conversation) []Conversation {
	if in == nil {
		return nil
	}
	out := make([]Conversation, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// FindConversation returns the index of the conversation with id, or -1.
func FindConversation(convos []Conversation, id string) int {
	for i := range convos {
		if convos[i].ID == id {
			return i
		}
	}
	return -1
}

// AppendMessage appends msg to the conversation with participant.ID, creating it at the
// front of the list when absent. unreadDelta is added to the counter of an existing
// conversation and used as the initial counter of a new one.
func AppendMessage(convos []Conversation, participant UserProfile, msg Message, unreadDelta int) []Conversation {
	out := CloneConversations(convos)
	if i := FindConversation(out, participant.ID); i >= 0 {
		out[i].Messages = append(out[i].Messages, msg)
		out[i].UnreadCount += unreadDelta
		return out
	}
	return append([]Conversation{NewConversation(participant, msg, unreadDelta)}, out...)
}

// AiSender identifies who wrote a transcript entry.
type AiSender string

const (
	AiSenderUser AiSender = "user"
	AiSenderAI   AiSender = "ai"
)

// AiChatMessage is the persisted form of an onboarding/assistant transcript entry.
type AiChatMessage struct {
	ID      string   `json:"id"`
	Sender  AiSender `json:"sender"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}
