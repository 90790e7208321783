package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// waitDelay bounds how long Run waits for output pipes after the process
// was killed, so a grandchild holding stdout cannot hang the loop.
const waitDelay = 2 * time.Second

// ShellExecutor runs command lines through a shell inside a working
// directory, optionally after an environment activation step such as
// sourcing a virtualenv.
type ShellExecutor struct {
	program  string
	activate string
}

// NewShellExecutor creates a ShellExecutor from the shell configuration.
func NewShellExecutor(cfg models.ShellConfig) *ShellExecutor {
	return &ShellExecutor{program: cfg.Program, activate: cfg.Activate}
}

// CommandLine returns the program and arguments used to run command.
func (e *ShellExecutor) CommandLine(command string) (string, []string) {
	line := command
	if e.activate != "" {
		line = e.activate + " && " + command
	}
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/c", line}
	}
	program := e.program
	if program == "" {
		program = "sh"
	}
	if program == "bash" {
		return program, []string{"-lc", line}
	}
	return program, []string{"-c", line}
}

// Run executes command in dir. Exceeding timeout is not an error: the result
// carries exit code 124 and a diagnostic line appended to stderr. An error is
// returned only if the shell could not be started.
func (e *ShellExecutor) Run(ctx context.Context, command, dir string, timeout time.Duration) (*models.CommandResult, error) {
	name, args := e.CommandLine(command)
	res, err := runProcess(ctx, timeout, dir, name, args...)
	if res != nil && res.TimedOut {
		res.Stderr += fmt.Sprintf("\n[timeout] command exceeded %s: %s\n", timeout, command)
	}
	return res, err
}

// runProcess runs name with args, capturing stdout and stderr separately.
func runProcess(ctx context.Context, timeout time.Duration, dir, name string, args ...string) (*models.CommandResult, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()

	result := &models.CommandResult{}
	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		result.ExitCode = models.TimeoutExitCode
		result.TimedOut = true
		return finish(result, &stdoutBuf, &stderrBuf), nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return finish(result, &stdoutBuf, &stderrBuf), nil
		}
		// Command could not be started (e.g., not found).
		return finish(result, &stdoutBuf, &stderrBuf), fmt.Errorf("executing %s: %w", name, err)
	}
	return finish(result, &stdoutBuf, &stderrBuf), nil
}

func finish(result *models.CommandResult, stdout, stderr *bytes.Buffer) *models.CommandResult {
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	return result
}
