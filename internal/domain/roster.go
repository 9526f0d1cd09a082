package domain

import (
	"fmt"
	"time"
)

// Simulated participants are built-in counterparts whose replies come from the text
// generation gateway instead of another person.
const (
	simulatedAlex  = "mock-user-1"
	simulatedBenny = "mock-user-2"
	simulatedCasey = "mock-user-3"
	simulatedDana  = "mock-user-4"
)

// GuestTemplate is the profile shell used for anonymous sign-ins.
func GuestTemplate() UserProfile {
	return UserProfile{
		ID:           "guest-user",
		Name:         "Guest",
		Avatar:       "https://picsum.photos/seed/guest/200",
		Tags:         Tags{Positive: []string{}, Negative: []string{}},
		AuthType:     AuthGuest,
		OnlineStatus: PresenceOnline,
	}
}

// SimulatedRoster returns the built-in participants. Last-seen values are relative to now.
func SimulatedRoster(now time.Time) []UserProfile {
	return []UserProfile{
		{
			ID:                  simulatedAlex,
			Name:                "Alex",
			Avatar:              "https://picsum.photos/seed/alex/200",
			Tags:                Tags{Positive: []string{"hiking", "sci-fi movies", "dogs"}, Negative: []string{"crowds"}},
			OnboardingCompleted: true,
			RelationshipGoal:    RelationshipFriendship,
			AuthType:            AuthGuest,
			OnlineStatus:        PresenceOnline,
		},
		{
			ID:                  simulatedBenny,
			Name:                "Benny",
			Avatar:              "https://picsum.photos/seed/benny/200",
			Tags:                Tags{Positive: []string{"live music", "foodie", "travel"}, Negative: []string{"early mornings"}},
			OnboardingCompleted: true,
			RelationshipGoal:    RelationshipLongTerm,
			AuthType:            AuthGuest,
			OnlineStatus:        LastSeen(now.Add(-15 * time.Minute)),
		},
		{
			ID:                  simulatedCasey,
			Name:                "Casey",
			Avatar:              "https://picsum.photos/seed/casey/200",
			Tags:                Tags{Positive: []string{"gaming", "anime", "coffee"}, Negative: []string{"loud noises"}},
			OnboardingCompleted: true,
			RelationshipGoal:    RelationshipShortTerm,
			AuthType:            AuthGuest,
			OnlineStatus:        LastSeen(now.Add(-3 * time.Hour)),
		},
		{
			ID:                  simulatedDana,
			Name:                "Dana",
			Avatar:              "https://picsum.photos/seed/dana/200",
			Tags:                Tags{Positive: []string{"yoga", "reading", "cats"}, Negative: []string{"spicy food"}},
			OnboardingCompleted: true,
			RelationshipGoal:    RelationshipStudyBuddy,
			AuthType:            AuthGuest,
			OnlineStatus:        PresenceOnline,
		},
	}
}

// IsSimulated reports whether id belongs to the built-in roster.
func IsSimulated(id string) bool {
	switch id {
	case simulatedAlex, simulatedBenny, simulatedCasey, simulatedDana:
		return true
	}
	return false
}

// FindSimulated returns the roster entry for id.
func FindSimulated(id string, now time.Time) (UserProfile, bool) {
	for _, u := range SimulatedRoster(now) {
		if u.ID == id {
			return u, true
		}
	}
	return UserProfile{}, false
}

// NewRecord builds the initial document for a freshly signed-in user: an empty profile
// and a welcome chat opened by one of the simulated participants.
func NewRecord(profile UserProfile, now time.Time) *Record {
	return &Record{
		UserProfile:    profile,
		AiChatMessages: []AiChatMessage{},
		Conversations:  WelcomeConversations(profile, now),
		UserTags:       Tags{Positive: []string{}, Negative: []string{}},
	}
}

// WelcomeConversations seeds the inbox of a new user with a message from Benny.
func WelcomeConversations(self UserProfile, now time.Time) []Conversation {
	benny, _ := FindSimulated(simulatedBenny, now)
	if self.ID == benny.ID {
		return []Conversation{}
	}
	first := Message{
		ID:        fmt.Sprintf("msg-welcome-%s", self.ID),
		SenderID:  benny.ID,
		Text:      fmt.Sprintf("Hey %s! Saw your profile, we seem to have some stuff in common. How's it going?", self.Name),
		Timestamp: now.Add(-5 * time.Minute).UTC(),
	}
	return []Conversation{NewConversation(benny, first, 1)}
}
