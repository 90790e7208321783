package core

import (
	"context"
	"log/slog"
	"strings"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// Critic derives the next repair instruction from the most recent failing
// test run.
type Critic struct {
	generator   TextGenerator
	store       ArtifactStore
	sampling    models.SamplingConfig
	window      int
	eventLogger EventLogger
}

// NewCritic creates a Critic that shows the model at most window trailing
// characters of the failure log. eventLogger may be nil.
func NewCritic(generator TextGenerator, store ArtifactStore, sampling models.SamplingConfig, window int, eventLogger EventLogger) *Critic {
	return &Critic{
		generator:   generator,
		store:       store,
		sampling:    sampling,
		window:      window,
		eventLogger: eventLogger,
	}
}

// FailureLog returns the trailing window of the most recent run's stderr,
// or "" if there is none.
func (c *Critic) FailureLog() string {
	text, ok, err := c.store.LatestRunError()
	if err != nil {
		slog.Warn("reading latest failure log", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return TrailingWindow(text, c.window)
}

// Instruction asks the critic model for the next step. It runs even when no
// failure log exists, and any generation failure yields "".
func (c *Critic) Instruction(ctx context.Context) string {
	text, err := c.generator.Generate(ctx, SystemCritic, BuildCritiquePrompt(c.FailureLog()), c.sampling)
	if err != nil {
		slog.Warn("critique generation failed, continuing with empty instruction", "error", err)
		logEvent(c.eventLogger, "llm.failed", map[string]any{"role": "critic", "error": err.Error()})
		return ""
	}
	return strings.TrimSpace(text)
}
