package core

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/valter-silva-au/koscode/pkg/models"
)

// System prompts for the three generation roles.
const (
	SystemPlanner = `You are a software planner. Turn the task into a short, concrete implementation plan.
Output YAML only, with the keys: steps (list of short imperative strings), files (list of paths), risks (list).
Do not output prose outside the YAML document.`

	SystemCoder = `You are a careful programmer who repairs code by emitting unified diffs.
Output a single unified diff and nothing else: no explanations, no markdown.`

	SystemCritic = `You review failing test output and tell a programmer the single smallest next change
that would make the tests pass. Answer in one or two sentences.`
)

// InitialInstruction is the directive used on the first loop iteration,
// before any failure log exists.
const InitialInstruction = "Make the smallest change to the target file needed to make the tests pass; only add new functions."

// MissingFile is rendered in prompts in place of a file that does not exist.
const MissingFile = "(missing)"

// readOptional reads a file and reports whether it exists. Absence is a
// value, not an error; unreadable files are treated as absent too.
func readOptional(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func fileOrMissing(path string) string {
	if content, ok := readOptional(path); ok {
		return content
	}
	return MissingFile
}

// BuildPlanPrompt renders the planner user prompt for a task.
func BuildPlanPrompt(task models.Task) string {
	return strings.Join([]string{
		"# GOAL",
		task.Goal,
		"",
		"# CONSTRAINTS",
		task.Constraints,
		"",
		"# ACCEPTANCE",
		task.Acceptance,
		"Output YAML only.",
	}, "\n")
}

// fenceLanguage guesses a code fence tag from a file extension so the model
// sees the snapshot as code.
func fenceLanguage(path string) string {
	switch filepath.Ext(path) {
	case ".py":
		return "python"
	case ".go":
		return "go"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	}
	return ""
}

// BuildCodePrompt renders the coder user prompt: formatting constraints, a
// snapshot of the target file and its paired test file, then the instruction.
func BuildCodePrompt(cfg models.Config, instruction string) string {
	target := fileOrMissing(filepath.Join(cfg.Workspace, cfg.TargetFile))
	test := MissingFile
	if cfg.TestFile != "" {
		test = fileOrMissing(filepath.Join(cfg.Workspace, cfg.TestFile))
	}
	lang := fenceLanguage(cfg.TargetFile)

	lines := []string{
		"The working directory is ./" + filepath.Base(cfg.Workspace) + ".",
		"Output a unified diff only (no explanations) under these constraints:",
		"- The only file you may modify is " + cfg.TargetFile + " (never modify or add files under tests/).",
		"- Do not change the return value or behaviour of the existing entry point; add the functions needed to pass the tests.",
		"- Use relative paths without a/ or b/ prefixes. Use --- /dev/null for new files.",
		"- Do not output diff --git or index lines.",
		"- The diff must apply with: patch -p0 -d " + filepath.Base(cfg.Workspace) + ".",
		"",
		"Current " + cfg.TargetFile + ":",
		"```" + lang,
		target,
		"```",
	}
	if cfg.TestFile != "" {
		lines = append(lines,
			"Current "+cfg.TestFile+":",
			"```"+fenceLanguage(cfg.TestFile),
			test,
			"```",
		)
	}
	lines = append(lines, "", instruction)
	return strings.Join(lines, "\n")
}

// TrailingWindow returns at most the last n characters of s.
func TrailingWindow(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// BuildCritiquePrompt renders the critic user prompt around a failure log.
func BuildCritiquePrompt(failureLog string) string {
	return strings.Join([]string{
		"Most recent failure log:",
		"```",
		failureLog,
		"```",
		"Give only the single smallest next step that would make the tests pass.",
	}, "\n")
}
