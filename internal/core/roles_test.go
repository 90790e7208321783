package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/koscode/pkg/models"
)

func TestPlanner_SavesGeneratedPlan(t *testing.T) {
	store := newMemArtifactStore()
	gen := &fakeGenerator{replies: map[string]string{SystemPlanner: "steps:\n  - add function"}}
	ev := &recordingEventLogger{}
	planner := NewPlanner(gen, store, models.SamplingConfig{Model: "planner-model"}, ev)

	task := models.Task{Goal: "add numbers", Constraints: "only app.py", Acceptance: "tests pass"}
	text, path, err := planner.Plan(context.Background(), task)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if text != "steps:\n  - add function" {
		t.Errorf("text = %q", text)
	}
	if path == "" || store.plan == nil || *store.plan != text {
		t.Error("plan was not persisted verbatim")
	}
	if len(gen.calls) != 1 || gen.calls[0].model != "planner-model" {
		t.Fatalf("generator calls = %+v", gen.calls)
	}
	if !strings.Contains(gen.calls[0].user, "# GOAL\nadd numbers") {
		t.Errorf("prompt missing goal section: %q", gen.calls[0].user)
	}
	if ev.count("plan.saved") != 1 {
		t.Error("expected a plan.saved event")
	}
}

func TestPlanner_GenerationFailureSavesEmptyPlan(t *testing.T) {
	store := newMemArtifactStore()
	gen := &fakeGenerator{errs: map[string]error{SystemPlanner: errors.New("connection refused")}}
	ev := &recordingEventLogger{}
	planner := NewPlanner(gen, store, models.SamplingConfig{}, ev)

	text, _, err := planner.Plan(context.Background(), models.Task{})
	if err != nil {
		t.Fatalf("generation failure should not be an error, got %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
	if store.plan == nil || *store.plan != "" {
		t.Error("empty plan should still be saved")
	}
	if ev.count("llm.failed") != 1 {
		t.Error("expected an llm.failed event")
	}
}

func TestPlanner_SaveFailure(t *testing.T) {
	store := newMemArtifactStore()
	store.savePlanErr = errors.New("read-only file system")
	planner := NewPlanner(&fakeGenerator{}, store, models.SamplingConfig{}, nil)

	if _, _, err := planner.Plan(context.Background(), models.Task{}); err == nil {
		t.Fatal("expected error when the plan cannot be saved")
	}
}

func TestCritic_FailureLogWindow(t *testing.T) {
	store := newMemArtifactStore()
	critic := NewCritic(&fakeGenerator{}, store, models.SamplingConfig{}, 5, nil)

	if got := critic.FailureLog(); got != "" {
		t.Errorf("FailureLog() with no runs = %q, want empty", got)
	}

	_ = store.SaveRunOutput(1, "", "older failure")
	_ = store.SaveRunOutput(2, "", "AssertionError: 0123456789")
	if got := critic.FailureLog(); got != "56789" {
		t.Errorf("FailureLog() = %q, want the trailing 5 characters of the newest run", got)
	}
}

func TestCritic_Instruction(t *testing.T) {
	store := newMemArtifactStore()
	_ = store.SaveRunOutput(1, "", "NameError: name 'add' is not defined")
	gen := &fakeGenerator{replies: map[string]string{SystemCritic: "  Define add(a, b).\n"}}
	critic := NewCritic(gen, store, models.SamplingConfig{Model: "critic-model"}, 2000, nil)

	got := critic.Instruction(context.Background())
	if got != "Define add(a, b)." {
		t.Errorf("Instruction() = %q", got)
	}
	if !strings.Contains(gen.calls[0].user, "NameError: name 'add' is not defined") {
		t.Errorf("critique prompt should embed the failure log: %q", gen.calls[0].user)
	}
}

func TestCritic_InstructionFailureIsEmpty(t *testing.T) {
	gen := &fakeGenerator{errs: map[string]error{SystemCritic: context.DeadlineExceeded}}
	ev := &recordingEventLogger{}
	critic := NewCritic(gen, newMemArtifactStore(), models.SamplingConfig{}, 2000, ev)

	if got := critic.Instruction(context.Background()); got != "" {
		t.Errorf("Instruction() = %q, want empty", got)
	}
	if ev.count("llm.failed") != 1 {
		t.Error("expected an llm.failed event")
	}
}

func testConfig(t *testing.T) models.Config {
	t.Helper()
	cfg := *DefaultConfig()
	cfg.Workspace = t.TempDir()
	cfg.Artifacts = t.TempDir()
	return cfg
}

func TestCoder_GeneratesAndApplies(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.Workspace, "app.py"), []byte("def main():\n    return 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newMemArtifactStore()
	tool := &fakePatchTool{}
	applier := NewPatchApplier(store, tool, cfg.Patch.AllowedPaths, nil)
	gen := &fakeGenerator{replies: map[string]string{SystemCoder: "```diff\n" + samplePatch + "\n```"}}
	coder := NewCoder(cfg, gen, store, applier, nil)

	result := coder.Code(context.Background(), "add an add function")

	if !result.Succeeded {
		t.Fatalf("expected success, log: %s", result.Log)
	}
	if store.lastPatch == nil || !strings.HasPrefix(*store.lastPatch, "```diff") {
		t.Error("raw generated text should be saved as the last patch")
	}
	if len(tool.calls) != 1 || tool.calls[0].targetRoot != cfg.Workspace {
		t.Errorf("patch tool calls = %+v, want one against the workspace", tool.calls)
	}

	prompt := gen.calls[0].user
	if !strings.Contains(prompt, "def main():\n    return 1") {
		t.Error("prompt should embed the target file")
	}
	if !strings.Contains(prompt, "Current tests/test_basic.py:\n```python\n(missing)") {
		t.Errorf("prompt should mark the absent test file as missing:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "\nadd an add function") {
		t.Error("prompt should end with the instruction")
	}
}

func TestCoder_GenerationFailureStillSavesLastPatch(t *testing.T) {
	cfg := testConfig(t)
	store := newMemArtifactStore()
	tool := &fakePatchTool{}
	applier := NewPatchApplier(store, tool, cfg.Patch.AllowedPaths, nil)
	gen := &fakeGenerator{errs: map[string]error{SystemCoder: errors.New("status 500")}}
	coder := NewCoder(cfg, gen, store, applier, nil)

	result := coder.Code(context.Background(), "anything")

	if result.Succeeded {
		t.Fatal("empty patch must not succeed")
	}
	if store.lastPatch == nil || *store.lastPatch != "" {
		t.Error("empty last patch should be saved")
	}
	if len(tool.calls) != 0 {
		t.Error("patch tool should not run for an empty patch")
	}
}

func TestCheckRunner_SavesOutput(t *testing.T) {
	store := newMemArtifactStore()
	exec := &fakeExecutor{exits: []int{1}, stderr: "FAILED tests/test_basic.py"}
	ev := &recordingEventLogger{}
	runner := NewCheckRunner(exec, store, "/work", 0, ev)

	res := runner.Run(context.Background(), "pytest -q")

	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
	if len(store.runErrs) != 1 || store.runErrs[0] != "FAILED tests/test_basic.py" {
		t.Errorf("run stderr not persisted: %v", store.runErrs)
	}
	if ev.count("command.finished") != 1 {
		t.Error("expected a command.finished event")
	}
}

func TestCheckRunner_StartFailure(t *testing.T) {
	store := newMemArtifactStore()
	exec := &fakeExecutor{startErr: errors.New("fork/exec /bin/bash: no such file or directory")}
	runner := NewCheckRunner(exec, store, "/work", 0, nil)

	res := runner.Run(context.Background(), "pytest -q")

	if res.ExitCode != CommandNotStartedExitCode {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, CommandNotStartedExitCode)
	}
	if !strings.Contains(res.Stderr, "[error]") {
		t.Errorf("Stderr = %q, want an error line", res.Stderr)
	}
	if len(store.runErrs) != 1 {
		t.Error("failed start should still be recorded as a run")
	}
}
