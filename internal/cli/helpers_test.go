package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/koscode/internal/core"
	"github.com/valter-silva-au/koscode/internal/storage"
	"github.com/valter-silva-au/koscode/pkg/models"
)

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = origStdout

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading pipe: %v", err)
	}
	return string(out)
}

// stubGenerator replies by system prompt.
type stubGenerator struct {
	replies map[string]string
	err     error
}

func (g *stubGenerator) Generate(_ context.Context, system, _ string, _ models.SamplingConfig) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.replies[system], nil
}

// stubExecutor returns exit codes in order; the last one repeats.
type stubExecutor struct {
	exits    []int
	stdout   string
	stderr   string
	commands []string
}

func (e *stubExecutor) Run(_ context.Context, command, _ string, _ time.Duration) (*models.CommandResult, error) {
	e.commands = append(e.commands, command)
	code := 1
	if len(e.exits) > 0 {
		code = e.exits[0]
		if len(e.exits) > 1 {
			e.exits = e.exits[1:]
		}
	}
	return &models.CommandResult{ExitCode: code, Stdout: e.stdout, Stderr: e.stderr}, nil
}

type stubPatchTool struct {
	exitCode int
	calls    int
}

func (p *stubPatchTool) Apply(_ context.Context, _, _ string) (*models.CommandResult, error) {
	p.calls++
	return &models.CommandResult{ExitCode: p.exitCode}, nil
}

const testPatch = "--- app.py\n+++ app.py\n@@ -1,1 +1,2 @@\n def main():\n+    return 2"

// cliHarness builds real core services on a temp artifacts directory with
// stubbed generation, execution and patching.
type cliHarness struct {
	cfg   models.Config
	store storage.ArtifactStoreManager
	gen   *stubGenerator
	exec  *stubExecutor
	tool  *stubPatchTool
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	root := t.TempDir()
	cfg := *core.DefaultConfig()
	cfg.Workspace = filepath.Join(root, "workspace")
	cfg.Artifacts = filepath.Join(root, "artifacts")
	return &cliHarness{
		cfg:   cfg,
		store: storage.NewArtifactStoreManager(cfg.Artifacts),
		gen: &stubGenerator{replies: map[string]string{
			core.SystemPlanner: "steps:\n  - fix app.py",
			core.SystemCoder:   testPatch,
			core.SystemCritic:  "return 2 from main",
		}},
		exec: &stubExecutor{},
		tool: &stubPatchTool{},
	}
}

// install wires the harness into the package-level service variables and
// restores the previous values when the test ends.
func (h *cliHarness) install(t *testing.T) {
	t.Helper()
	origConfig, origPlanner, origCoder, origChecks, origController := Config, Planner, Coder, Checks, Controller
	origExit := osExit
	t.Cleanup(func() {
		Config, Planner, Coder, Checks, Controller = origConfig, origPlanner, origCoder, origChecks, origController
		osExit = origExit
	})

	applier := core.NewPatchApplier(h.store, h.tool, h.cfg.Patch.AllowedPaths, nil)
	Config = &h.cfg
	Planner = core.NewPlanner(h.gen, h.store, h.cfg.Planner, nil)
	Coder = core.NewCoder(h.cfg, h.gen, h.store, applier, nil)
	Checks = core.NewCheckRunner(h.exec, h.store, h.cfg.Workspace, h.cfg.Test.Timeout, nil)
	Controller = core.NewIterationController(core.ControllerConfig{
		Planner:     Planner,
		Critic:      core.NewCritic(h.gen, h.store, h.cfg.Critic, h.cfg.Loop.FailureWindow, nil),
		Coder:       Coder,
		Checks:      Checks,
		TestCommand: h.cfg.Test.Command,
	})
}

// exitRecorder replaces osExit and records the requested code.
type exitRecorder struct {
	code   int
	called bool
}

func recordExit(t *testing.T) *exitRecorder {
	t.Helper()
	rec := &exitRecorder{}
	orig := osExit
	osExit = func(code int) {
		rec.code = code
		rec.called = true
	}
	t.Cleanup(func() { osExit = orig })
	return rec
}

func writeTaskFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task.yaml")
	content := "goal: make main return 2\nconstraints: only app.py\nacceptance: tests pass\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing task file: %v", err)
	}
	return path
}

func readArtifact(t *testing.T, h *cliHarness, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.cfg.Artifacts, name))
	if err != nil {
		t.Fatalf("reading artifact %s: %v", name, err)
	}
	return string(data)
}

var errBoom = fmt.Errorf("boom")
