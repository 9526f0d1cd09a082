package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdugdh24/kindred-backend/internal/textgen"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient completes textgen prompts with a Gemini model.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

var _ textgen.Completer = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
	}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Complete builds a model per call since generation settings differ between prompts and
// GenerativeModel is not safe to reconfigure concurrently.
func (c *GeminiClient) Complete(ctx context.Context, p textgen.Prompt) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	if p.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(p.System)}}
	}
	if p.Temperature > 0 {
		model.SetTemperature(p.Temperature)
	}
	if p.TopP > 0 {
		model.SetTopP(p.TopP)
	}
	if len(p.Stop) > 0 {
		model.StopSequences = p.Stop
	}
	if p.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(p.User))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no content generated")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
