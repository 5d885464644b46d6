package diffvalidator

import (
	"regexp"
	"strings"
)

const noChangesToken = "NO_CHANGES"

// openFenceRe matches an opening markdown fence with an optional
// language tag, at the very start of the text.
var openFenceRe = regexp.MustCompile("^```[a-zA-Z0-9_-]*[ \t]*\n")

const diffHeaderPrefix = "diff --git "

// normalise trims whitespace, collapses an explicit NO_CHANGES signal,
// strips a single surrounding markdown fence, and locates the start of
// the diff body. Any non-empty lines preceding the first `diff --git`
// line are returned as preamble for the sanitise stage to scan — the
// model sometimes prefaces a fenced diff with a sentence of commentary
// ("Here's the diff:\ndiff --git ...") and that commentary must still
// be rejected by the sanitise stage's keyword scan, not silently
// dropped here.
func normalise(raw string) (text string, preamble []string, noChanges bool, ok bool) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	trimmed := strings.TrimSpace(raw)

	if strings.Contains(trimmed, noChangesToken) {
		return noChangesToken, nil, true, true
	}

	trimmed = stripSurroundingFence(trimmed)
	trimmed = strings.TrimSpace(trimmed)

	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, diffHeaderPrefix) {
			return strings.Join(lines[i:], "\n") + "\n", lines[:i], false, true
		}
	}
	return "", nil, false, false
}

func stripSurroundingFence(s string) string {
	loc := openFenceRe.FindStringIndex(s)
	if loc == nil {
		return s
	}
	rest := s[loc[1]:]
	rest = strings.TrimRight(rest, " \t\n")
	if !strings.HasSuffix(rest, "```") {
		return s
	}
	return rest[:len(rest)-3]
}
