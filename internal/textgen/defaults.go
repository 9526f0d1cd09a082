package textgen

import (
	"fmt"

	"github.com/gdugdh24/kindred-backend/internal/domain"
)

const (
	DefaultFollowUp = "That's interesting! Can you tell me more?"
	DefaultReply    = "Haha, cool."

	// Default explanation ratings fall in [defaultRatingMin, defaultRatingMin+defaultRatingSpan).
	defaultRatingMin  = 20
	defaultRatingSpan = 50
)

var defaultQuestions = map[domain.RelationshipType][]Question{
	domain.RelationshipLongTerm: {{
		Question: "What's your ideal weekend?",
		Options:  []string{"Relaxing at home", "Exploring the outdoors", "Socializing with friends", "Trying new restaurants"},
	}},
	domain.RelationshipShortTerm: {{
		Question: "What's your idea of a perfect date?",
		Options:  []string{"A spontaneous adventure", "A fancy dinner", "A cozy night in", "A fun activity like bowling"},
	}},
	domain.RelationshipFriendship: {{
		Question: "What's your favorite way to spend a day off?",
		Options:  []string{"Gaming or watching shows", "Hiking or being active", "Trying a new cafe", "Chilling with a small group"},
	}},
	domain.RelationshipGymBuddy: {{
		Question: "What's your primary fitness goal?",
		Options:  []string{"Build muscle", "Lose weight", "Improve endurance", "Stay active and healthy"},
	}},
	domain.RelationshipMovieBuddy: {{
		Question: "What's your all-time favorite movie genre?",
		Options:  []string{"Sci-Fi/Fantasy", "Comedy", "Horror/Thriller", "Drama/Indie"},
	}},
	domain.RelationshipStudyBuddy: {{
		Question: "What's your study environment of choice?",
		Options:  []string{"Silent library", "Bustling coffee shop", "Quiet corner at home", "Collaborative study room"},
	}},
}

// DefaultQuestions returns the single built-in question for goal, or none for an unknown
// goal.
func DefaultQuestions(goal domain.RelationshipType) []Question {
	src := defaultQuestions[goal]
	out := make([]Question, len(src))
	for i, q := range src {
		out[i] = Question{Question: q.Question, Options: append([]string(nil), q.Options...)}
	}
	return out
}

// DefaultExplanation is the fixed explanation with a rating drawn by intn.
func DefaultExplanation(other domain.UserProfile, intn func(int) int) Explanation {
	return Explanation{
		Rating:      defaultRatingMin + intn(defaultRatingSpan),
		Explanation: fmt.Sprintf("You and %s seem to have some interesting things in common. It could be fun to chat!", other.Name),
	}
}
