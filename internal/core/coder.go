package core

import (
	"context"
	"log/slog"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// Coder asks the code model for a patch implementing an instruction and
// hands the result to the PatchApplier.
type Coder struct {
	cfg         models.Config
	generator   TextGenerator
	store       ArtifactStore
	applier     *PatchApplier
	eventLogger EventLogger
}

// NewCoder creates a Coder. eventLogger may be nil.
func NewCoder(cfg models.Config, generator TextGenerator, store ArtifactStore, applier *PatchApplier, eventLogger EventLogger) *Coder {
	return &Coder{
		cfg:         cfg,
		generator:   generator,
		store:       store,
		applier:     applier,
		eventLogger: eventLogger,
	}
}

// Code generates a patch for instruction, saves the raw text as the last
// patch regardless of outcome, and applies it to the workspace.
func (c *Coder) Code(ctx context.Context, instruction string) models.ApplicationResult {
	raw, err := c.generator.Generate(ctx, SystemCoder, BuildCodePrompt(c.cfg, instruction), c.cfg.Coder)
	if err != nil {
		slog.Warn("patch generation failed, applying empty patch", "model", c.cfg.Coder.Model, "error", err)
		logEvent(c.eventLogger, "llm.failed", map[string]any{"role": "coder", "error": err.Error()})
		raw = ""
	}
	if _, err := c.store.SaveLastPatch(raw); err != nil {
		slog.Error("saving last patch", "error", err)
	}
	return c.applier.Apply(ctx, raw, c.cfg.Workspace)
}
