package core

import (
	"context"
	"time"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// ArtifactStore persists plans, patches and run logs. Every artifact is
// written once and never modified or deleted by core.
// This interface is defined locally in core to avoid importing storage.
type ArtifactStore interface {
	// NextStamp returns a strictly increasing whole-second stamp used to
	// name the artifacts of one patch attempt or one command run.
	NextStamp() int64
	SavePlan(text string) (string, error)
	SaveLastPatch(text string) (string, error)
	SavePatch(stamp int64, text string) (string, error)
	SavePatchLog(stamp int64, log string) (string, error)
	SaveRejectLog(stamp int64, log string) (string, error)
	SaveRunOutput(stamp int64, stdout, stderr string) error
	// LatestRunError returns the stderr of the most recent run, or ok=false
	// if no run has been recorded yet.
	LatestRunError() (text string, ok bool, err error)
}

// TextGenerator is the text-generation capability. Implementations live in
// the integration package.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string, sampling models.SamplingConfig) (string, error)
}

// CommandExecutor runs a shell command in a directory with a timeout. A
// timeout is reported through the result (exit code 124), not as an error;
// an error means the command could not be started at all.
type CommandExecutor interface {
	Run(ctx context.Context, command, dir string, timeout time.Duration) (*models.CommandResult, error)
}

// PatchTool applies a patch file to a target directory.
type PatchTool interface {
	Apply(ctx context.Context, patchFile, targetRoot string) (*models.CommandResult, error)
}
