package core

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
	"github.com/valter-silva-au/koscode/pkg/models"
)

// unsafeHeaders are header forms the patch tool can take a file name from
// that are not "---"/"+++" lines. A valid unified hunk body never starts a
// line with any of them, so their presence anywhere rejects the document.
var unsafeHeaders = []string{
	"Index:",
	"Prereq:",
	"*** ",
	"***************",
	"diff --git ",
	"rename from ",
	"rename to ",
	"copy from ",
	"copy to ",
}

// Violation suffixes for problems that are not a plain disallowed path.
const (
	unsupportedHeader = " (unsupported header)"
	noFilePath        = "/dev/null on both sides (no file path)"
	orphanHunk        = "hunk without file headers"
	unparseableDiff   = "not a parseable unified diff"
)

// hunkHeader captures the old and new line counts of a unified hunk header.
// An omitted count means one line.
var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)

// DeclaredTargets returns every path declared by a "---" or "+++" header of
// a sanitized patch, in document order. Hunk bodies are skipped by their line
// counts, as the patch tool reads them, so a removed line that happens to
// start with "-- " is not taken for a header. The null device is skipped
// because it only signals that a file does not exist yet.
func DeclaredTargets(clean string) []models.PatchTarget {
	var targets []models.PatchTarget
	oldLeft, newLeft := 0, 0
	for _, line := range strings.Split(clean, "\n") {
		if oldLeft > 0 || newLeft > 0 {
			switch {
			case strings.HasPrefix(line, "+"):
				newLeft--
			case strings.HasPrefix(line, "-"):
				oldLeft--
			case strings.HasPrefix(line, "\\"):
				// "\ No newline at end of file" takes no slot.
			default:
				oldLeft--
				newLeft--
			}
			continue
		}
		if m := hunkHeader.FindStringSubmatch(line); m != nil {
			oldLeft, newLeft = hunkCount(m[1]), hunkCount(m[2])
			continue
		}

		var side models.PatchSide
		switch {
		case strings.HasPrefix(line, "--- "):
			side = models.SideOld
		case strings.HasPrefix(line, "+++ "):
			side = models.SideNew
		default:
			continue
		}
		fields := strings.Fields(line[4:])
		if len(fields) == 0 || fields[0] == models.NullDevice {
			continue
		}
		targets = append(targets, models.PatchTarget{Path: fields[0], Side: side})
	}
	return targets
}

func hunkCount(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// ValidatePaths checks every declared path of a sanitized patch against the
// allow-list. It returns the declared targets and the deduplicated, sorted
// violations. Any violation rejects the whole document.
//
// Besides disallowed paths, a document is rejected when its structure leaves
// room for the patch tool to pick a file the header scan cannot see: unsafe
// header forms, file sections naming /dev/null on both sides, hunks outside
// any file section, or text that does not parse as a unified diff.
func ValidatePaths(clean string, allowed map[string]bool) ([]models.PatchTarget, []string) {
	targets := DeclaredTargets(clean)

	seen := make(map[string]bool)
	var violations []string
	add := func(v string) {
		if seen[v] {
			return
		}
		seen[v] = true
		violations = append(violations, v)
	}

	for _, t := range targets {
		if !allowed[t.Path] {
			add(t.Path)
		}
	}
	for _, v := range structuralViolations(clean, allowed) {
		add(v)
	}

	sort.Strings(violations)
	return targets, violations
}

// structuralViolations parses the document the way a unified diff reader
// does and reports anything that could name a file outside the header scan.
func structuralViolations(clean string, allowed map[string]bool) []string {
	var out []string
	hunkHeaders := 0
	for _, line := range strings.Split(clean, "\n") {
		if strings.HasPrefix(line, "@@ ") {
			hunkHeaders++
		}
		for _, prefix := range unsafeHeaders {
			if strings.HasPrefix(line, prefix) {
				out = append(out, strings.TrimSpace(line)+unsupportedHeader)
				break
			}
		}
	}

	if strings.TrimSpace(clean) == "" {
		return out
	}
	text := clean
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		return append(out, unparseableDiff)
	}

	parsedHunks := 0
	for _, fd := range fileDiffs {
		parsedHunks += len(fd.Hunks)
		if fd.OrigName == models.NullDevice && fd.NewName == models.NullDevice {
			out = append(out, noFilePath)
		}
		// Names are unquoted by the parser, so check them as well as the
		// raw header tokens.
		for _, name := range []string{fd.OrigName, fd.NewName} {
			if name != "" && name != models.NullDevice && !allowed[name] {
				out = append(out, name)
			}
		}
	}
	if parsedHunks != hunkHeaders {
		out = append(out, orphanHunk)
	}
	return out
}
