package integration

import (
	"context"
	"time"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// PatchCommand applies unified diffs with the POSIX patch tool, using -p0 so
// header paths are taken relative to the target directory as-is.
type PatchCommand struct {
	binary  string
	timeout time.Duration
}

// NewPatchCommand creates a PatchCommand. An empty binary defaults to "patch".
func NewPatchCommand(binary string, timeout time.Duration) *PatchCommand {
	if binary == "" {
		binary = "patch"
	}
	return &PatchCommand{binary: binary, timeout: timeout}
}

// Args returns the arguments passed to the patch binary.
func (p *PatchCommand) Args(patchFile, targetRoot string) []string {
	return []string{"-p0", "-d", targetRoot, "-i", patchFile}
}

// Apply runs patch against targetRoot. A nonzero exit (for example a hunk
// that no longer matches) is reported in the result, not as an error.
func (p *PatchCommand) Apply(ctx context.Context, patchFile, targetRoot string) (*models.CommandResult, error) {
	return runProcess(ctx, p.timeout, "", p.binary, p.Args(patchFile, targetRoot)...)
}
