package textgen

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/metrics"
	"github.com/rs/zerolog/log"
)

// Operation names used in logs and metrics.
const (
	OpQuestions   = "questions"
	OpTags        = "tags"
	OpExplanation = "explanation"
	OpFollowUp    = "follow_up"
	OpReply       = "reply"
)

// Gateway tries each provider in order, once, and returns the first success. When all of
// them fail it returns the hardcoded default for the operation.
type Gateway struct {
	providers []Provider
	metrics   *metrics.Metrics
	intn      func(int) int
	timeout   time.Duration
}

type Option func(*Gateway)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithRand replaces the random source used for default ratings.
func WithRand(intn func(int) int) Option {
	return func(g *Gateway) { g.intn = intn }
}

// WithCallTimeout bounds each provider attempt. Zero means no bound beyond the caller's
// context.
func WithCallTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

func NewGateway(providers []Provider, opts ...Option) *Gateway {
	g := &Gateway{providers: providers, intn: rand.IntN}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func firstSuccess[T any](ctx context.Context, g *Gateway, op string, call func(context.Context, Provider) (T, error)) (T, bool) {
	for _, p := range g.providers {
		callCtx, cancel := attemptCtx(ctx, g.timeout)
		v, err := call(callCtx, p)
		cancel()
		if err == nil {
			return v, true
		}
		g.metrics.ProviderFailed(p.Name(), op)
		log.Warn().Err(err).Str("provider", p.Name()).Str("operation", op).Msg("Text generation provider failed")
		if ctx.Err() != nil {
			break
		}
	}
	g.metrics.DefaultUsed(op)
	log.Warn().Str("operation", op).Msg("All text generation providers failed, using default")
	var zero T
	return zero, false
}

func attemptCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (g *Gateway) QuestionsFor(ctx context.Context, goal domain.RelationshipType) []Question {
	if qs, ok := firstSuccess(ctx, g, OpQuestions, func(ctx context.Context, p Provider) ([]Question, error) {
		return p.QuestionsFor(ctx, goal)
	}); ok {
		return qs
	}
	return DefaultQuestions(goal)
}

func (g *Gateway) TagsFrom(ctx context.Context, text string) domain.Tags {
	if tags, ok := firstSuccess(ctx, g, OpTags, func(ctx context.Context, p Provider) (domain.Tags, error) {
		return p.TagsFrom(ctx, text)
	}); ok {
		return tags
	}
	return domain.Tags{Positive: []string{}, Negative: []string{}}
}

func (g *Gateway) MatchExplanation(ctx context.Context, self, other domain.UserProfile) Explanation {
	if e, ok := firstSuccess(ctx, g, OpExplanation, func(ctx context.Context, p Provider) (Explanation, error) {
		return p.MatchExplanation(ctx, self, other)
	}); ok {
		return e
	}
	return DefaultExplanation(other, g.intn)
}

func (g *Gateway) FollowUp(ctx context.Context, transcript []domain.AiChatMessage) string {
	if s, ok := firstSuccess(ctx, g, OpFollowUp, func(ctx context.Context, p Provider) (string, error) {
		return p.FollowUp(ctx, transcript)
	}); ok {
		return s
	}
	return DefaultFollowUp
}

func (g *Gateway) SimulatedReply(ctx context.Context, self, participant domain.UserProfile, history []domain.Message) string {
	if s, ok := firstSuccess(ctx, g, OpReply, func(ctx context.Context, p Provider) (string, error) {
		return p.SimulatedReply(ctx, self, participant, history)
	}); ok {
		return s
	}
	return DefaultReply
}
