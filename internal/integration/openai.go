package integration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"github.com/valter-silva-au/koscode/pkg/models"
)

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint,
// including Ollama's /v1 compatibility layer.
type OpenAIGenerator struct {
	client *openai.Client
}

// NewOpenAIGenerator creates an OpenAIGenerator. baseURL may be empty to use
// the public OpenAI API.
func NewOpenAIGenerator(baseURL, apiKey string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg)}
}

// Generate sends a system and a user message and returns the first choice's
// content. A response without choices yields "" rather than an error.
func (g *OpenAIGenerator) Generate(ctx context.Context, system, user string, sampling models.SamplingConfig) (string, error) {
	if sampling.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sampling.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: sampling.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: float32(sampling.Temperature),
	}
	if sampling.NumPredict > 0 {
		req.MaxTokens = sampling.NumPredict
	}

	slog.Debug("calling openai-compatible endpoint", "model", sampling.Model)
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("openai returned no choices", "model", sampling.Model)
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
