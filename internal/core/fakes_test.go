package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// memArtifactStore implements ArtifactStore in memory for testing.
type memArtifactStore struct {
	mu         sync.Mutex
	stamp      int64
	plan       *string
	lastPatch  *string
	patches    map[int64]string
	patchLogs  map[int64]string
	rejectLogs map[int64]string
	runErrs    []string
	runOuts    []string

	savePlanErr  error
	savePatchErr error
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{
		stamp:      1700000000,
		patches:    make(map[int64]string),
		patchLogs:  make(map[int64]string),
		rejectLogs: make(map[int64]string),
	}
}

func (s *memArtifactStore) NextStamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp++
	return s.stamp
}

func (s *memArtifactStore) SavePlan(text string) (string, error) {
	if s.savePlanErr != nil {
		return "", s.savePlanErr
	}
	s.plan = &text
	return "/artifacts/plan.yaml", nil
}

func (s *memArtifactStore) SaveLastPatch(text string) (string, error) {
	s.lastPatch = &text
	return "/artifacts/last_patch.diff", nil
}

func (s *memArtifactStore) SavePatch(stamp int64, text string) (string, error) {
	if s.savePatchErr != nil {
		return "", s.savePatchErr
	}
	s.patches[stamp] = text
	return fmt.Sprintf("/artifacts/patch_%d.diff", stamp), nil
}

func (s *memArtifactStore) SavePatchLog(stamp int64, log string) (string, error) {
	s.patchLogs[stamp] = log
	return fmt.Sprintf("/artifacts/patch_%d.log", stamp), nil
}

func (s *memArtifactStore) SaveRejectLog(stamp int64, log string) (string, error) {
	s.rejectLogs[stamp] = log
	return fmt.Sprintf("/artifacts/patch_%d.reject.log", stamp), nil
}

func (s *memArtifactStore) SaveRunOutput(_ int64, stdout, stderr string) error {
	s.runOuts = append(s.runOuts, stdout)
	s.runErrs = append(s.runErrs, stderr)
	return nil
}

func (s *memArtifactStore) LatestRunError() (string, bool, error) {
	if len(s.runErrs) == 0 {
		return "", false, nil
	}
	return s.runErrs[len(s.runErrs)-1], true, nil
}

// fakeGenerator implements TextGenerator, answering by system prompt.
type fakeGenerator struct {
	replies map[string]string
	errs    map[string]error
	calls   []genCall
}

type genCall struct {
	system string
	user   string
	model  string
}

func (g *fakeGenerator) Generate(_ context.Context, system, user string, sampling models.SamplingConfig) (string, error) {
	g.calls = append(g.calls, genCall{system: system, user: user, model: sampling.Model})
	if err := g.errs[system]; err != nil {
		return "", err
	}
	return g.replies[system], nil
}

func (g *fakeGenerator) callsFor(system string) []genCall {
	var out []genCall
	for _, c := range g.calls {
		if c.system == system {
			out = append(out, c)
		}
	}
	return out
}

// fakeExecutor implements CommandExecutor. Exit codes are consumed in order;
// the last one repeats once the sequence is exhausted.
type fakeExecutor struct {
	exits    []int
	stderr   string
	startErr error
	calls    []string
}

func (e *fakeExecutor) Run(_ context.Context, command, _ string, _ time.Duration) (*models.CommandResult, error) {
	e.calls = append(e.calls, command)
	if e.startErr != nil {
		return nil, e.startErr
	}
	code := 1
	if len(e.exits) > 0 {
		i := len(e.calls) - 1
		if i >= len(e.exits) {
			i = len(e.exits) - 1
		}
		code = e.exits[i]
	}
	return &models.CommandResult{ExitCode: code, Stdout: "collected 1 item", Stderr: e.stderr}, nil
}

// fakePatchTool implements PatchTool.
type fakePatchTool struct {
	exitCode int
	err      error
	calls    []patchCall
}

type patchCall struct {
	patchFile  string
	targetRoot string
}

func (p *fakePatchTool) Apply(_ context.Context, patchFile, targetRoot string) (*models.CommandResult, error) {
	p.calls = append(p.calls, patchCall{patchFile: patchFile, targetRoot: targetRoot})
	if p.err != nil {
		return nil, p.err
	}
	return &models.CommandResult{
		ExitCode: p.exitCode,
		Stdout:   "patching file app.py",
		Stderr:   "",
	}, nil
}

// recordingEventLogger implements EventLogger and keeps every event.
type recordingEventLogger struct {
	events []recordedEvent
}

type recordedEvent struct {
	eventType string
	data      map[string]any
}

func (l *recordingEventLogger) LogEvent(eventType string, data map[string]any) error {
	l.events = append(l.events, recordedEvent{eventType: eventType, data: data})
	return nil
}

func (l *recordingEventLogger) count(eventType string) int {
	n := 0
	for _, e := range l.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

// samplePatch is a minimal well-formed patch against app.py.
const samplePatch = `--- app.py
+++ app.py
@@ -1,2 +1,5 @@
 def main():
     return 1
+
+def add(a, b):
+    return a + b
`
