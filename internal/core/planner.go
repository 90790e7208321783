package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// Planner turns a task into a free-form plan and persists it. The plan is
// an audit artifact only; nothing reads it back.
type Planner struct {
	generator   TextGenerator
	store       ArtifactStore
	sampling    models.SamplingConfig
	eventLogger EventLogger
}

// NewPlanner creates a Planner. eventLogger may be nil.
func NewPlanner(generator TextGenerator, store ArtifactStore, sampling models.SamplingConfig, eventLogger EventLogger) *Planner {
	return &Planner{
		generator:   generator,
		store:       store,
		sampling:    sampling,
		eventLogger: eventLogger,
	}
}

// Plan generates and saves a plan for task. A generation failure is not an
// error: the (possibly empty) text is saved verbatim because plan quality
// does not gate execution. Only a failure to persist the plan is returned.
func (p *Planner) Plan(ctx context.Context, task models.Task) (string, string, error) {
	text, err := p.generator.Generate(ctx, SystemPlanner, BuildPlanPrompt(task), p.sampling)
	if err != nil {
		slog.Warn("plan generation failed, saving empty plan", "model", p.sampling.Model, "error", err)
		logEvent(p.eventLogger, "llm.failed", map[string]any{"role": "planner", "error": err.Error()})
		text = ""
	}

	path, err := p.store.SavePlan(text)
	if err != nil {
		return text, "", fmt.Errorf("saving plan: %w", err)
	}
	logEvent(p.eventLogger, "plan.saved", map[string]any{"path": path, "chars": len(text)})
	return text, path, nil
}
