package domain

import (
	"strings"
	"time"
)

// RelationshipType is what a user is looking for.
type RelationshipType string

const (
	RelationshipShortTerm  RelationshipType = "Short-term Relationship"
	RelationshipLongTerm   RelationshipType = "Long-term Relationship"
	RelationshipFriendship RelationshipType = "Friendship"
	RelationshipGymBuddy   RelationshipType = "Gym Buddy"
	RelationshipMovieBuddy RelationshipType = "Movie Buddy"
	RelationshipStudyBuddy RelationshipType = "Study Buddy"
)

// RelationshipTypes lists every goal in the order the onboarding chat offers them.
func RelationshipTypes() []RelationshipType {
	return []RelationshipType{
		RelationshipShortTerm,
		RelationshipLongTerm,
		RelationshipFriendship,
		RelationshipGymBuddy,
		RelationshipMovieBuddy,
		RelationshipStudyBuddy,
	}
}

// ParseRelationshipType returns the goal matching s exactly.
func ParseRelationshipType(s string) (RelationshipType, error) {
	for _, t := range RelationshipTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", ErrInvalidRelationshipType
}

// AuthType tells guest accounts apart from accounts backed by an external identity.
type AuthType string

const (
	AuthGuest  AuthType = "guest"
	AuthGoogle AuthType = "google"
)

// Presence is either PresenceOnline or an RFC3339 last-seen timestamp.
type Presence string

const PresenceOnline Presence = "online"

// LastSeen builds a last-seen presence value.
func LastSeen(t time.Time) Presence {
	return Presence(t.UTC().Format(time.RFC3339Nano))
}

func (p Presence) IsOnline() bool {
	return p == PresenceOnline
}

// LastSeenAt parses the timestamp form. ok is false for the online sentinel or garbage.
func (p Presence) LastSeenAt() (t time.Time, ok bool) {
	if p.IsOnline() {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, string(p))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Tags are the likes (Positive) and dislikes (Negative) attached to a profile.
type Tags struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

// IsEmpty reports whether both sets are empty.
func (t Tags) IsEmpty() bool {
	return len(t.Positive) == 0 && len(t.Negative) == 0
}

// Union returns the set union of t and other, keeping first-seen order and dropping duplicates.
func (t Tags) Union(other Tags) Tags {
	return Tags{
		Positive: unionStrings(t.Positive, other.Positive),
		Negative: unionStrings(t.Negative, other.Negative),
	}
}

// Clone returns a deep copy.
func (t Tags) Clone() Tags {
	return Tags{
		Positive: append([]string{}, t.Positive...),
		Negative: append([]string{}, t.Negative...),
	}
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Slug turns an answer like "Live Music" into the tag "live-music".
func Slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// UserProfile is the public part of a user's record.
type UserProfile struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	Avatar              string           `json:"avatar"`
	Tags                Tags             `json:"tags"`
	OnboardingCompleted bool             `json:"onboardingCompleted"`
	RelationshipGoal    RelationshipType `json:"relationshipGoal,omitempty"`
	AuthType            AuthType         `json:"authType"`
	OnlineStatus        Presence         `json:"onlineStatus"`
}

// MatchingGoal returns the goal used for matching. Profiles that have not finished
// onboarding have none.
func (p *UserProfile) MatchingGoal() (RelationshipType, bool) {
	if !p.OnboardingCompleted || p.RelationshipGoal == "" {
		return "", false
	}
	return p.RelationshipGoal, true
}

// Clone returns a deep copy.
func (p UserProfile) Clone() UserProfile {
	p.Tags = p.Tags.Clone()
	return p
}
