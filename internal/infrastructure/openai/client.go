// Package openai completes textgen prompts through any OpenAI-compatible chat API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdugdh24/kindred-backend/internal/textgen"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type Client struct {
	llm llms.Model
}

var _ textgen.Completer = (*Client)(nil)

func NewClient(apiKey, model, baseURL string) (*Client, error) {
	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &Client{llm: llm}, nil
}

// NewClientWithModel wraps an existing langchaingo model.
func NewClientWithModel(llm llms.Model) *Client {
	return &Client{llm: llm}
}

func (c *Client) Complete(ctx context.Context, p textgen.Prompt) (string, error) {
	var messages []llms.MessageContent
	if p.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, p.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, p.User))

	var opts []llms.CallOption
	if p.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(float64(p.Temperature)))
	}
	if p.TopP > 0 {
		opts = append(opts, llms.WithTopP(float64(p.TopP)))
	}
	if len(p.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(p.Stop))
	}
	if p.JSON {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
