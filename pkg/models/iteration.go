package models

// NotRun marks an exit code for a check that never executed.
const NotRun = -1

// TimeoutExitCode is the exit code synthesized for a command that exceeded
// its timeout.
const TimeoutExitCode = 124

// LoopState is a terminal state of the repair loop.
type LoopState string

const (
	StatePass      LoopState = "DONE_PASS"
	StateExhausted LoopState = "DONE_EXHAUSTED"
	StateStalled   LoopState = "DONE_STALLED"
)

// CommandResult captures the outcome of a command run in the workspace.
type CommandResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimedOut bool   `json:"timed_out"`
}

// IterationRecord is the audit entry for one loop iteration.
type IterationRecord struct {
	Index             int    `json:"index"`
	PreCheckExitCode  int    `json:"pre_check_exit_code"`
	Instruction       string `json:"instruction"`
	PatchApplied      bool   `json:"patch_applied"`
	PostCheckExitCode int    `json:"post_check_exit_code"`
}

// LoopOutcome is the final report of a loop run.
type LoopOutcome struct {
	RunID   string            `json:"run_id"`
	State   LoopState         `json:"state"`
	Records []IterationRecord `json:"records"`
}

// ApplyAttempts counts the iterations that reached the apply step.
func (o LoopOutcome) ApplyAttempts() int {
	n := 0
	for _, r := range o.Records {
		if r.PreCheckExitCode != 0 {
			n++
		}
	}
	return n
}
