package core

import (
	"regexp"
	"strings"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// fencePattern matches the first fenced block, optionally tagged as a diff.
// The interior is captured lazily so only the first block is extracted.
var fencePattern = regexp.MustCompile("(?is)```(?:diff|patch|udiff)?[ \t]*\\r?\\n?(.*?)```")

// workspacePrefixes are repository-root markers models like to put in front
// of paths even though patches are applied from inside the workspace.
var workspacePrefixes = []string{"./workspace/", "workspace/", "./"}

// Sanitize turns raw generated text into a plain unified diff: it extracts the
// first fenced block if there is one, drops VCS metadata lines that a plain
// patch tool cannot consume, and normalizes header paths to bare relative
// names. Non-empty output always ends with exactly one newline, which the
// patch tool requires. It never fails; malformed input degrades to
// best-effort output.
func Sanitize(raw string) string {
	out := sanitizeOnce(raw)
	// Dropping a metadata line can expose leading whitespace that the next
	// pass would trim, so repeat until stable.
	for {
		next := sanitizeOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

// PreparePatch sanitizes raw generated text and records the paths its
// headers declare.
func PreparePatch(raw string) models.PatchDocument {
	clean := Sanitize(raw)
	return models.PatchDocument{Raw: raw, Sanitized: clean, Targets: DeclaredTargets(clean)}
}

func sanitizeOnce(raw string) string {
	text := stripFence(raw)

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if isVCSMetadata(line) {
			continue
		}
		switch {
		case strings.HasPrefix(line, "--- "):
			line = "--- " + normalizePath(line[4:], models.SideOld)
		case strings.HasPrefix(line, "+++ "):
			line = "+++ " + normalizePath(line[4:], models.SideNew)
		}
		out = append(out, line)
	}
	clean := strings.Join(out, "\n")
	if clean == "" {
		return ""
	}
	return clean + "\n"
}

func stripFence(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// vcsMetadata are git header lines a plain patch tool does not need.
var vcsMetadata = []string{
	"diff --git ",
	"index ",
	"new file mode ",
	"deleted file mode ",
	"old mode ",
	"new mode ",
}

func isVCSMetadata(line string) bool {
	for _, prefix := range vcsMetadata {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// normalizePath keeps the first token of a header (dropping timestamps) and
// strips root and side prefixes. The null device is left untouched.
func normalizePath(header string, side models.PatchSide) string {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return ""
	}
	p := fields[0]
	if p == models.NullDevice {
		return p
	}
	prefixes := append([]string{"a/"}, workspacePrefixes...)
	if side == models.SideNew {
		prefixes[0] = "b/"
	}
	// Strip to a fixed point so sanitizing twice yields the same path.
	for {
		before := p
		for _, prefix := range prefixes {
			p = strings.TrimPrefix(p, prefix)
		}
		if p == before {
			return p
		}
	}
}
