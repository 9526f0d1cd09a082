package textgen

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"golang.org/x/time/rate"
)

var (
	errEmptyCompletion = errors.New("empty completion")
	boldRe             = regexp.MustCompile(`\*\*(.*?)\*\*`)
)

// LLMProvider adapts a Completer and a PromptSet into a Provider.
type LLMProvider struct {
	name      string
	completer Completer
	prompts   PromptSet
	limiter   *rate.Limiter
}

var _ Provider = (*LLMProvider)(nil)

// NewLLMProvider returns a provider named name. limiter may be nil for no client-side
// rate limiting.
func NewLLMProvider(name string, completer Completer, prompts PromptSet, limiter *rate.Limiter) *LLMProvider {
	return &LLMProvider{name: name, completer: completer, prompts: prompts, limiter: limiter}
}

func (p *LLMProvider) Name() string { return p.name }

func (p *LLMProvider) complete(ctx context.Context, prompt Prompt) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}
	text, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

func (p *LLMProvider) QuestionsFor(ctx context.Context, goal domain.RelationshipType) ([]Question, error) {
	text, err := p.complete(ctx, p.prompts.Questions(goal))
	if err != nil {
		return nil, err
	}
	return decodeQuestions(text)
}

func (p *LLMProvider) TagsFrom(ctx context.Context, input string) (domain.Tags, error) {
	text, err := p.complete(ctx, p.prompts.Tags(input))
	if err != nil {
		return domain.Tags{}, err
	}
	var tags domain.Tags
	if err := decodeJSON(text, &tags); err != nil {
		return domain.Tags{}, err
	}
	if tags.Positive == nil {
		tags.Positive = []string{}
	}
	if tags.Negative == nil {
		tags.Negative = []string{}
	}
	return tags, nil
}

func (p *LLMProvider) MatchExplanation(ctx context.Context, self, other domain.UserProfile) (Explanation, error) {
	text, err := p.complete(ctx, p.prompts.Explanation(self, other))
	if err != nil {
		return Explanation{}, err
	}
	var parsed struct {
		Rating      *float64 `json:"rating"`
		Explanation string   `json:"explanation"`
	}
	if err := decodeJSON(text, &parsed); err != nil {
		return Explanation{}, err
	}
	if strings.TrimSpace(parsed.Explanation) == "" {
		return Explanation{}, errors.New("explanation missing from response")
	}

	rating := 50
	if parsed.Rating != nil {
		rating = clampRating(int(*parsed.Rating))
	}
	return Explanation{
		Rating:      rating,
		Explanation: FormatExplanation(parsed.Explanation),
	}, nil
}

func (p *LLMProvider) FollowUp(ctx context.Context, transcript []domain.AiChatMessage) (string, error) {
	return p.complete(ctx, p.prompts.FollowUp(transcript))
}

func (p *LLMProvider) SimulatedReply(ctx context.Context, self, participant domain.UserProfile, history []domain.Message) (string, error) {
	text, err := p.complete(ctx, p.prompts.Reply(self, participant, history))
	if err != nil {
		return "", err
	}
	text = StripSpeakerPrefix(text, participant.Name)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

// FormatExplanation turns **bold** markdown into <strong> tags.
func FormatExplanation(s string) string {
	return boldRe.ReplaceAllString(strings.TrimSpace(s), "<strong>$1</strong>")
}

// StripSpeakerPrefix drops a leading "Name:" the model sometimes puts before a reply.
func StripSpeakerPrefix(text, name string) string {
	text = strings.TrimSpace(text)
	if name != "" && strings.HasPrefix(text, name+":") {
		text = strings.TrimSpace(text[len(name)+1:])
	}
	return text
}

func clampRating(r int) int {
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	}
	return r
}
