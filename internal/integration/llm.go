package integration

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// TextGenerator is implemented by every text-generation backend.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string, sampling models.SamplingConfig) (string, error)
}

// NewTextGenerator returns the backend selected by cfg.Provider. For the
// openai provider, BaseURL must point at the /v1 root of the endpoint.
func NewTextGenerator(cfg models.LLMConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaGenerator(cfg.BaseURL), nil
	case "openai":
		return NewOpenAIGenerator(cfg.BaseURL, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
