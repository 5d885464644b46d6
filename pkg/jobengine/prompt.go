package jobengine

import (
	"regexp"
	"strings"
)

const baseSystemPrompt = "You are modifying a code repository to satisfy the user's request. " +
	"Respond with a single unified diff in `git diff --git` format, or the literal text NO_CHANGES if nothing needs to change."

// fallbackDirective is the per-iteration escalation state: after
// repeated apply failures the next prompt requests full-file
// replacement for the named files (or every changed file, if no file
// could be parsed out of the git-apply error).
type fallbackDirective struct {
	active bool
	global bool
	files  []string
}

func (f fallbackDirective) clear() fallbackDirective { return fallbackDirective{} }

func (f fallbackDirective) text() string {
	if !f.active {
		return ""
	}
	if f.global {
		return "FALLBACK MODE for all changed files: reply with the full replacement contents of each file instead of a patch."
	}
	return "FALLBACK MODE for files: " + strings.Join(f.files, ", ") + ": reply with the full replacement contents of these files instead of a patch."
}

// buildSystemPrompt composes the per-iteration system prompt from the
// pending failure feedback (highest precedence: git-apply stderr, else
// the validator's rejection text) and any active fallback directive.
func buildSystemPrompt(feedback string, fb fallbackDirective) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	if feedback != "" {
		b.WriteString("\n\nPrevious attempt feedback:\n")
		b.WriteString(feedback)
	}
	if text := fb.text(); text != "" {
		b.WriteString("\n\n")
		b.WriteString(text)
	}
	return b.String()
}

func buildUserPrompt(contextText, prompt string) string {
	return contextText + "\n\nRequest: " + prompt
}

var (
	reApplyFailed    = regexp.MustCompile(`patch failed: ([^:\s]+):`)
	reApplyNoApply   = regexp.MustCompile(`([^\s:]+): patch does not apply`)
)

// extractFallbackFiles scans git-apply stderr for the file paths it
// names as unapplicable, matching the two message shapes `git apply`
// produces (spec §4.1: "patch failed: <file>:" and "<file>: patch does
// not apply"). Returns nil (not an error) when no file can be parsed
// out, signalling the caller should fall back to global scope.
func extractFallbackFiles(stderr string) []string {
	seen := make(map[string]bool)
	var files []string
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	for _, m := range reApplyFailed.FindAllStringSubmatch(stderr, -1) {
		add(m[1])
	}
	for _, m := range reApplyNoApply.FindAllStringSubmatch(stderr, -1) {
		add(m[1])
	}
	return files
}

func truncatePrompt(prompt string, n int) string {
	if len(prompt) <= n {
		return prompt
	}
	return prompt[:n]
}

func countFileBlocks(diff string) int {
	return strings.Count(diff, "diff --git ")
}
