package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/valter-silva-au/koscode/pkg/models"
)

// LoopState names a non-terminal step of the repair loop. Terminal states
// are models.LoopState values.
type LoopState string

const (
	StatePlanning            LoopState = "PLANNING"
	StatePreCheck            LoopState = "PRECHECK"
	StateGenerateInstruction LoopState = "GENERATE_INSTRUCTION"
	StateCodeGen             LoopState = "CODE_GEN"
	StateApply               LoopState = "APPLY"
	StatePostCheck           LoopState = "POSTCHECK"
)

// IterationController sequences planning, test checks, instruction
// generation, code generation and patch application. Iterations run strictly
// one after another; two controllers must not share a workspace.
type IterationController struct {
	planner     *Planner
	critic      *Critic
	coder       *Coder
	checks      *CheckRunner
	testCommand string
	stallLimit  int
	eventLogger EventLogger
	newRunID    func() string
}

// ControllerConfig bundles the collaborators of an IterationController.
type ControllerConfig struct {
	Planner     *Planner
	Critic      *Critic
	Coder       *Coder
	Checks      *CheckRunner
	TestCommand string
	// StallLimit stops the loop once a failing patch has been repeated
	// verbatim that many times in a row. Zero disables the check.
	StallLimit  int
	EventLogger EventLogger
}

// NewIterationController creates an IterationController.
func NewIterationController(cc ControllerConfig) *IterationController {
	return &IterationController{
		planner:     cc.Planner,
		critic:      cc.Critic,
		coder:       cc.Coder,
		checks:      cc.Checks,
		testCommand: cc.TestCommand,
		stallLimit:  cc.StallLimit,
		eventLogger: cc.EventLogger,
		newRunID:    func() string { return uuid.NewString() },
	}
}

// Loop plans once and then runs up to maxIters repair iterations. It stops
// with DONE_PASS as soon as a test check exits 0, and with DONE_EXHAUSTED
// once the budget is spent. The only errors returned are context
// cancellation and a failure to persist the plan; everything else is part
// of the outcome.
func (c *IterationController) Loop(ctx context.Context, task models.Task, maxIters int) (*models.LoopOutcome, error) {
	outcome := &models.LoopOutcome{RunID: c.newRunID(), State: models.StateExhausted}
	log := slog.With("run_id", outcome.RunID)

	c.transition(outcome.RunID, -1, StatePlanning)
	if _, _, err := c.planner.Plan(ctx, task); err != nil {
		return outcome, fmt.Errorf("planning: %w", err)
	}

	var lastPatch string
	var lastFailed bool
	repeats := 0

	for i := 0; i < maxIters; i++ {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		log.Info("iteration started", "iteration", i+1, "max", maxIters)
		rec := models.IterationRecord{Index: i, PostCheckExitCode: models.NotRun}

		c.transition(outcome.RunID, i, StatePreCheck)
		pre := c.checks.Run(ctx, c.testCommand)
		rec.PreCheckExitCode = pre.ExitCode
		if pre.ExitCode == 0 {
			outcome.Records = append(outcome.Records, rec)
			return c.finish(outcome, models.StatePass), nil
		}

		c.transition(outcome.RunID, i, StateGenerateInstruction)
		if i == 0 {
			rec.Instruction = InitialInstruction
		} else {
			rec.Instruction = c.critic.Instruction(ctx)
		}
		if err := ctx.Err(); err != nil {
			outcome.Records = append(outcome.Records, rec)
			return outcome, err
		}

		c.transition(outcome.RunID, i, StateCodeGen)
		applied := c.coder.Code(ctx, rec.Instruction)
		c.transition(outcome.RunID, i, StateApply)
		rec.PatchApplied = applied.Succeeded

		c.transition(outcome.RunID, i, StatePostCheck)
		post := c.checks.Run(ctx, c.testCommand)
		rec.PostCheckExitCode = post.ExitCode
		outcome.Records = append(outcome.Records, rec)
		log.Info("iteration finished", "iteration", i+1, "patch_applied", rec.PatchApplied, "exit", post.ExitCode)
		logEvent(c.eventLogger, "loop.iteration", map[string]any{
			"run_id":        outcome.RunID,
			"index":         i,
			"pre_exit":      rec.PreCheckExitCode,
			"post_exit":     rec.PostCheckExitCode,
			"patch_applied": rec.PatchApplied,
			"rejected":      applied.Rejected,
		})
		if post.ExitCode == 0 {
			return c.finish(outcome, models.StatePass), nil
		}

		if c.stallLimit > 0 {
			if !applied.Succeeded && lastFailed && applied.Sanitized == lastPatch {
				repeats++
			} else {
				repeats = 0
			}
			lastPatch, lastFailed = applied.Sanitized, !applied.Succeeded
			if repeats >= c.stallLimit {
				log.Warn("loop stalled on a repeating patch", "repeats", repeats)
				return c.finish(outcome, models.StateStalled), nil
			}
		}
	}

	return c.finish(outcome, models.StateExhausted), nil
}

func (c *IterationController) finish(outcome *models.LoopOutcome, state models.LoopState) *models.LoopOutcome {
	outcome.State = state
	slog.Info("loop finished", "run_id", outcome.RunID, "state", state, "iterations", len(outcome.Records))
	logEvent(c.eventLogger, "loop.finished", map[string]any{
		"run_id":     outcome.RunID,
		"state":      string(state),
		"iterations": len(outcome.Records),
	})
	return outcome
}

func (c *IterationController) transition(runID string, index int, state LoopState) {
	slog.Debug("loop state", "run_id", runID, "iteration", index, "state", state)
	logEvent(c.eventLogger, "loop.state", map[string]any{
		"run_id": runID,
		"index":  index,
		"state":  string(state),
	})
}
