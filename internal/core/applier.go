package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
	"github.com/valter-silva-au/koscode/pkg/models"
)

// PatchApplier sanitizes generated patch text, enforces the path allow-list,
// and applies the result with the external patch tool. Every attempt leaves
// its sanitized patch and logs behind in the artifact store.
type PatchApplier struct {
	store       ArtifactStore
	tool        PatchTool
	allowed     map[string]bool
	eventLogger EventLogger
}

// NewPatchApplier creates a PatchApplier. eventLogger may be nil.
func NewPatchApplier(store ArtifactStore, tool PatchTool, allowedPaths []string, eventLogger EventLogger) *PatchApplier {
	allowed := make(map[string]bool, len(allowedPaths))
	for _, p := range allowedPaths {
		allowed[p] = true
	}
	return &PatchApplier{
		store:       store,
		tool:        tool,
		allowed:     allowed,
		eventLogger: eventLogger,
	}
}

// Apply runs the full sanitize → validate → persist → apply pipeline against
// targetRoot. It never returns an error: whitelist rejections and patch tool
// failures are both reported as Succeeded=false with a descriptive log.
func (a *PatchApplier) Apply(ctx context.Context, raw, targetRoot string) models.ApplicationResult {
	doc := PreparePatch(raw)
	clean := doc.Sanitized
	stamp := a.store.NextStamp()
	result := models.ApplicationResult{Sanitized: clean}

	_, violations := ValidatePaths(clean, a.allowed)
	if len(violations) > 0 {
		result.Rejected = true
		result.Violations = violations
		result.ArtifactPath = a.save(a.store.SavePatch, stamp, clean)
		msg := "disallowed paths: " + strings.Join(violations, ", ")
		a.save(a.store.SaveRejectLog, stamp, msg)
		result.Log = "patch contains disallowed paths: " + strings.Join(violations, ", ")
		slog.Warn("patch rejected by allow-list", "stamp", stamp, "declared", len(doc.Targets), "violations", violations)
		logEvent(a.eventLogger, "patch.rejected", map[string]any{
			"stamp":      stamp,
			"violations": violations,
		})
		return result
	}

	result.ArtifactPath = a.save(a.store.SavePatch, stamp, clean)
	result.Stats = PatchStatsOf(clean)

	if strings.TrimSpace(clean) == "" {
		result.Log = "patch is empty"
		a.save(a.store.SavePatchLog, stamp, result.Log)
		slog.Warn("generated patch is empty", "stamp", stamp)
		logEvent(a.eventLogger, "patch.failed", map[string]any{"stamp": stamp, "reason": "empty"})
		return result
	}
	if result.ArtifactPath == "" {
		result.Log = "patch could not be persisted"
		logEvent(a.eventLogger, "patch.failed", map[string]any{"stamp": stamp, "reason": "persist"})
		return result
	}

	res, err := a.tool.Apply(ctx, result.ArtifactPath, targetRoot)
	if err != nil {
		result.Log = fmt.Sprintf("running patch tool: %v", err)
		if res != nil {
			result.Log = res.Stdout + "\n" + res.Stderr + "\n" + result.Log
		}
	} else {
		result.Log = res.Stdout + "\n" + res.Stderr
		result.Succeeded = res.ExitCode == 0
	}
	a.save(a.store.SavePatchLog, stamp, result.Log)

	if result.Succeeded {
		slog.Info("patch applied", "stamp", stamp, "patch", result.ArtifactPath)
		logEvent(a.eventLogger, "patch.applied", statsData(stamp, result.Stats))
	} else {
		slog.Warn("patch failed to apply", "stamp", stamp, "patch", result.ArtifactPath)
		logEvent(a.eventLogger, "patch.failed", map[string]any{"stamp": stamp, "reason": "apply"})
	}
	return result
}

// save writes an artifact and logs, rather than propagates, store failures.
func (a *PatchApplier) save(write func(int64, string) (string, error), stamp int64, text string) string {
	path, err := write(stamp, text)
	if err != nil {
		slog.Error("writing patch artifact", "stamp", stamp, "error", err)
		return ""
	}
	return path
}

func statsData(stamp int64, stats *models.PatchStats) map[string]any {
	data := map[string]any{"stamp": stamp}
	if stats != nil {
		data["files"] = stats.Files
		data["hunks"] = stats.Hunks
		data["lines_added"] = stats.LinesAdded
		data["lines_removed"] = stats.LinesRemoved
	}
	return data
}

// PatchStatsOf parses a sanitized patch and counts files, hunks and changed
// lines. It returns nil when the text is not a parseable unified diff.
func PatchStatsOf(clean string) *models.PatchStats {
	if strings.TrimSpace(clean) == "" {
		return nil
	}
	text := clean
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(text))
	if err != nil || len(fileDiffs) == 0 {
		return nil
	}

	stats := &models.PatchStats{Files: len(fileDiffs)}
	for _, fd := range fileDiffs {
		stats.Hunks += len(fd.Hunks)
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				if strings.HasPrefix(line, "+") {
					stats.LinesAdded++
				} else if strings.HasPrefix(line, "-") {
					stats.LinesRemoved++
				}
			}
		}
	}
	return stats
}
