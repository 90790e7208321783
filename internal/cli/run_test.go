package cli

import (
	"context"
	"strings"
	"testing"
)

func TestRunCmd_NilChecks(t *testing.T) {
	orig := Checks
	defer func() { Checks = orig }()
	Checks = nil

	err := runCmd.RunE(runCmd, []string{"ls"})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestRunCmd_NoArgs(t *testing.T) {
	h := newCLIHarness(t)
	h.install(t)

	err := runCmd.RunE(runCmd, []string{})
	if err == nil || !strings.Contains(err.Error(), "command required") {
		t.Fatalf("expected command required error, got %v", err)
	}
}

func TestRunCmd_Help(t *testing.T) {
	h := newCLIHarness(t)
	h.install(t)

	var err error
	captureStdout(t, func() {
		err = runCmd.RunE(runCmd, []string{"--help"})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.exec.commands) != 0 {
		t.Errorf("--help should not run anything, ran %v", h.exec.commands)
	}
}

func TestRunCmd_Success(t *testing.T) {
	h := newCLIHarness(t)
	h.exec.exits = []int{0}
	h.exec.stdout = "3 passed"
	h.install(t)
	exit := recordExit(t)

	runCmd.SetContext(context.Background())
	var err error
	out := captureStdout(t, func() {
		err = runCmd.RunE(runCmd, []string{"pytest", "-q"})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exit.called {
		t.Errorf("osExit should not be called on success, got code %d", exit.code)
	}
	if len(h.exec.commands) != 1 || h.exec.commands[0] != "pytest -q" {
		t.Errorf("commands = %v, want [pytest -q]", h.exec.commands)
	}
	for _, want := range []string{"exit=0", "STDOUT:\n3 passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}

	stamps, err := h.store.ListStamps("run_", ".out")
	if err != nil || len(stamps) != 1 {
		t.Fatalf("expected one run artifact, got %v (err %v)", stamps, err)
	}
}

func TestRunCmd_FailureExitsWithCommandCode(t *testing.T) {
	h := newCLIHarness(t)
	h.exec.exits = []int{3}
	h.exec.stderr = "E   assert 1 == 2"
	h.install(t)
	exit := recordExit(t)

	runCmd.SetContext(context.Background())
	var err error
	out := captureStdout(t, func() {
		err = runCmd.RunE(runCmd, []string{"pytest"})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exit.called || exit.code != 3 {
		t.Errorf("osExit called=%v code=%d, want code 3", exit.called, exit.code)
	}
	if !strings.Contains(out, "STDERR:\nE   assert 1 == 2") {
		t.Errorf("expected stderr in output, got %q", out)
	}
}
