package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestPatchCommand_Args(t *testing.T) {
	p := NewPatchCommand("", time.Minute)
	got := p.Args("/artifacts/patch_1.diff", "/work")
	want := []string{"-p0", "-d", "/work", "-i", "/artifacts/patch_1.diff"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %q, want %q", got, want)
	}
	if p.binary != "patch" {
		t.Errorf("binary = %q, want patch", p.binary)
	}
}

func requirePatchBinary(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("patch"); err != nil {
		t.Skip("patch binary not available")
	}
}

func writePatchFixture(t *testing.T, workspace, patch string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(workspace, "app.py"), []byte("def main():\n    return 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	patchFile := filepath.Join(t.TempDir(), "patch_1.diff")
	if err := os.WriteFile(patchFile, []byte(patch), 0o644); err != nil {
		t.Fatal(err)
	}
	return patchFile
}

func TestPatchCommand_Apply(t *testing.T) {
	requirePatchBinary(t)
	workspace := t.TempDir()
	patchFile := writePatchFixture(t, workspace,
		"--- app.py\n+++ app.py\n@@ -1,2 +1,5 @@\n def main():\n     return 1\n+\n+def add(a, b):\n+    return a + b\n")

	res, err := NewPatchCommand("patch", time.Minute).Apply(context.Background(), patchFile, workspace)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, stdout %q, stderr %q", res.ExitCode, res.Stdout, res.Stderr)
	}
	data, err := os.ReadFile(filepath.Join(workspace, "app.py"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "def add(a, b):") {
		t.Errorf("app.py not patched:\n%s", data)
	}
}

func TestPatchCommand_ContextMismatch(t *testing.T) {
	requirePatchBinary(t)
	workspace := t.TempDir()
	patchFile := writePatchFixture(t, workspace,
		"--- app.py\n+++ app.py\n@@ -1,2 +1,2 @@\n-class Totally:\n-    different = True\n+class Other:\n+    pass\n")

	res, err := NewPatchCommand("patch", time.Minute).Apply(context.Background(), patchFile, workspace)
	if err != nil {
		t.Fatalf("a failed hunk should not be an error, got %v", err)
	}
	if res.ExitCode == 0 {
		t.Error("mismatched hunk should exit nonzero")
	}
}
