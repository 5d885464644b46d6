package diffvalidator

import (
	"regexp"
	"strings"
)

// commentaryRe matches the model narrating what it's about to show
// instead of just showing it. Checked case-insensitively against both
// the preamble (text before the first diff header) and hunk bodies.
var commentaryRe = regexp.MustCompile(`(?i)^\s*(here'?s|sure|i'll|let me|i've|i have|this (diff|patch|change)|the (diff|patch|change)|below is|above is)\b`)

// sanitise rejects commentary-laced output: narration before the diff
// body, a second unmatched code fence, or narration inside a hunk.
func sanitise(text string, preamble []string) *Outcome {
	for _, line := range preamble {
		if commentaryRe.MatchString(line) {
			return rejected("commentary before diff body: " + strings.TrimSpace(line))
		}
	}

	// A trailing fence was already stripped in normalise; any other
	// ``` occurrence here means the model emitted more than one fenced
	// block, which we don't support.
	if strings.Contains(text, "```") {
		return rejected("unexpected code fence inside diff body")
	}

	for _, line := range strings.Split(text, "\n") {
		if isHunkBodyLine(line) && commentaryRe.MatchString(stripHunkMarker(line)) {
			return rejected("commentary inside hunk body: " + strings.TrimSpace(line))
		}
	}

	return nil
}

func isHunkBodyLine(line string) bool {
	return len(line) > 0 && (line[0] == '+' || line[0] == '-' || line[0] == ' ')
}

func stripHunkMarker(line string) string {
	if len(line) == 0 {
		return line
	}
	return line[1:]
}
