// Package textgen is the text generation gateway: every AI-produced string the sessions
// need goes through Gateway, which tries an ordered list of providers and falls back to
// fixed defaults so callers never see an error.
package textgen

import (
	"context"

	"github.com/gdugdh24/kindred-backend/internal/domain"
)

// Question is one onboarding question with its answer options.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Explanation is a compatibility rating (0..100) with an HTML-ready explanation.
type Explanation struct {
	Rating      int    `json:"rating"`
	Explanation string `json:"explanation"`
}

// Provider is the capability every link of the chain implements. Errors mean "try the
// next one".
type Provider interface {
	Name() string
	QuestionsFor(ctx context.Context, goal domain.RelationshipType) ([]Question, error)
	TagsFrom(ctx context.Context, text string) (domain.Tags, error)
	MatchExplanation(ctx context.Context, self, other domain.UserProfile) (Explanation, error)
	FollowUp(ctx context.Context, transcript []domain.AiChatMessage) (string, error)
	SimulatedReply(ctx context.Context, self, participant domain.UserProfile, history []domain.Message) (string, error)
}

// Prompt is a single completion request.
type Prompt struct {
	System      string
	User        string
	JSON        bool
	Temperature float32
	TopP        float32
	Stop        []string
}

// Completer turns a prompt into raw model text. Gemini and OpenAI clients implement it.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}
