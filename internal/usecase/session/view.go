package session

import (
	"context"
	"sort"
	"strings"

	"github.com/gdugdh24/kindred-backend/internal/domain"
)

// Page is the top-level screen the user is on.
type Page string

const (
	PageAIChat   Page = "AI_CHAT"
	PageExplore  Page = "EXPLORE"
	PageChat     Page = "CHAT"
	PageSettings Page = "SETTINGS"
)

func ParsePage(s string) (Page, error) {
	switch p := Page(strings.ToUpper(s)); p {
	case PageAIChat, PageExplore, PageChat, PageSettings:
		return p, nil
	}
	return "", domain.ErrInvalidInput
}

// TranscriptEntry is a transcript message as the view sees it. OnSelect is bound locally
// for entries that offer options and never leaves the process.
type TranscriptEntry struct {
	domain.AiChatMessage
	OnSelect func(ctx context.Context, option string) error `json:"-"`
}

// Selectable reports whether the entry still offers options with a handler attached.
func (e TranscriptEntry) Selectable() bool {
	return e.OnSelect != nil && len(e.Options) > 0
}

func persistedTranscript(entries []TranscriptEntry) []domain.AiChatMessage {
	out := make([]domain.AiChatMessage, len(entries))
	for i, e := range entries {
		msg := e.AiChatMessage
		msg.Options = append([]string(nil), e.Options...)
		if len(msg.Options) == 0 {
			msg.Options = nil
		}
		out[i] = msg
	}
	return out
}

// CardType tells explore cards for incoming requests apart from new matches.
type CardType string

const (
	CardRequest CardType = "request"
	CardMatch   CardType = "match"
)

type ExploreCard struct {
	ID           string             `json:"id"`
	User         domain.UserProfile `json:"user"`
	Type         CardType           `json:"type"`
	FirstMessage string             `json:"firstMessage,omitempty"`
}

// View is the derived state pushed to the view layer.
type View struct {
	SignedIn                   bool                    `json:"signedIn"`
	Loaded                     bool                    `json:"loaded"`
	Profile                    *domain.UserProfile     `json:"profile"`
	Transcript                 []TranscriptEntry       `json:"transcript"`
	AiTyping                   bool                    `json:"aiTyping"`
	OnboardingStep             int                     `json:"onboardingStep"`
	OnboardingProgress         float64                 `json:"onboardingProgress"`
	UserTags                   domain.Tags             `json:"userTags"`
	SelectedRelationshipGoal   domain.RelationshipType `json:"selectedRelationshipGoal,omitempty"`
	Requests                   []domain.Conversation   `json:"requests"`
	Conversations              []domain.Conversation   `json:"conversations"`
	UnreadTotal                int                     `json:"unreadTotal"`
	Candidates                 []domain.UserProfile    `json:"candidates"`
	ActiveConversation         string                  `json:"activeConversation,omitempty"`
	TypingParticipants         []string                `json:"typingParticipants"`
	ActivePage                 Page                    `json:"activePage"`
	ShowExploreTabNotification bool                    `json:"showExploreTabNotification"`
}

// Classify splits conversations into requests (the participant wrote first and selfID
// never replied) and everything else. Empty conversations are dropped. Both lists are
// ordered by latest message, newest first; ties keep their input order.
func Classify(selfID string, convos []domain.Conversation) (requests, conversations []domain.Conversation) {
	requests = []domain.Conversation{}
	conversations = []domain.Conversation{}
	for _, c := range convos {
		if len(c.Messages) == 0 {
			continue
		}
		if c.IsRequest(selfID) {
			requests = append(requests, c.Clone())
		} else {
			conversations = append(conversations, c.Clone())
		}
	}
	sortByLatest(requests)
	sortByLatest(conversations)
	return requests, conversations
}

func sortByLatest(convos []domain.Conversation) {
	sort.SliceStable(convos, func(i, j int) bool {
		a, _ := convos[i].LastMessage()
		b, _ := convos[j].LastMessage()
		return a.Timestamp.After(b.Timestamp)
	})
}

// UnreadTotal sums unread counters. Pass the conversations list from Classify: requests
// never count towards the badge.
func UnreadTotal(conversations []domain.Conversation) int {
	total := 0
	for _, c := range conversations {
		total += c.UnreadCount
	}
	return total
}

// FilterCandidates drops self, users who have not finished onboarding, anyone already in
// a conversation, dismissed users and repeated ids (the first occurrence wins).
func FilterCandidates(roster []domain.UserProfile, selfID string, convos []domain.Conversation, dismissed map[string]bool) []domain.UserProfile {
	inConversation := make(map[string]bool, len(convos))
	for _, c := range convos {
		inConversation[c.Participant.ID] = true
	}

	seen := make(map[string]bool, len(roster))
	out := make([]domain.UserProfile, 0, len(roster))
	for _, u := range roster {
		if seen[u.ID] {
			continue
		}
		if u.ID == selfID || !u.OnboardingCompleted || inConversation[u.ID] || dismissed[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u.Clone())
	}
	return out
}
