package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// CommandNotStartedExitCode is reported when a command could not be started.
const CommandNotStartedExitCode = 127

// CheckRunner runs commands in the workspace and records their output as
// run artifacts, which later feed the critic.
type CheckRunner struct {
	executor    CommandExecutor
	store       ArtifactStore
	dir         string
	timeout     time.Duration
	eventLogger EventLogger
}

// NewCheckRunner creates a CheckRunner rooted at dir. eventLogger may be nil.
func NewCheckRunner(executor CommandExecutor, store ArtifactStore, dir string, timeout time.Duration, eventLogger EventLogger) *CheckRunner {
	return &CheckRunner{
		executor:    executor,
		store:       store,
		dir:         dir,
		timeout:     timeout,
		eventLogger: eventLogger,
	}
}

// Run executes command and persists run_<stamp>.out/.err. It always returns
// a result; start failures become exit code 127 with the error in stderr.
func (r *CheckRunner) Run(ctx context.Context, command string) models.CommandResult {
	res, err := r.executor.Run(ctx, command, r.dir, r.timeout)
	if res == nil {
		res = &models.CommandResult{}
	}
	if err != nil {
		res.ExitCode = CommandNotStartedExitCode
		res.Stderr += fmt.Sprintf("\n[error] %v\n", err)
	}

	stamp := r.store.NextStamp()
	if err := r.store.SaveRunOutput(stamp, res.Stdout, res.Stderr); err != nil {
		slog.Error("saving run output", "stamp", stamp, "error", err)
	}

	slog.Debug("command finished", "command", command, "exit", res.ExitCode, "timed_out", res.TimedOut)
	logEvent(r.eventLogger, "command.finished", map[string]any{
		"stamp":     stamp,
		"command":   command,
		"exit_code": res.ExitCode,
		"timed_out": res.TimedOut,
	})
	return *res
}
