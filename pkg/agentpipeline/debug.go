package agentpipeline

import "context"

// maxDebugAttempts bounds the debug agent's self-repair loop (spec
// §4.5: "at most 2 consecutive debug attempts").
const maxDebugAttempts = 2

// maxBuildLogChars bounds how much of a failing build log is fed back
// to the LLM (spec §4.5: "up to the first 5000 characters").
const maxBuildLogChars = 5000

// DebugResult reports the outcome of the debug agent's attempts to fix
// a failing build.
type DebugResult struct {
	Attempts int
	Fixed    bool
	LastLog  string
}

// runDebug is invoked only when the build command has already failed
// once. It feeds the failing log back to the LLM, applies any fix
// through the normal validator pipeline, and re-runs the build, up to
// maxDebugAttempts times.
func (p *Pipeline) runDebug(ctx context.Context) *DebugResult {
	result := &DebugResult{}

	for attempt := 1; attempt <= maxDebugAttempts; attempt++ {
		result.Attempts = attempt

		success, output, err := p.RunBuild(ctx)
		result.LastLog = output
		if success {
			result.Fixed = true
			return result
		}
		if err != nil && output == "" {
			result.LastLog = err.Error()
		}

		log := truncate(result.LastLog, maxBuildLogChars)
		raw, llmErr := p.RequestLLM(ctx, debugSystemPrompt, debugUserPrompt(p.Prompt, log))
		if llmErr != nil {
			return result
		}

		applied, _ := p.applyFix(ctx, raw)
		if !applied {
			return result
		}
	}

	// One final build attempt after the last applied fix, to see if it
	// actually resolved the failure.
	success, output, _ := p.RunBuild(ctx)
	result.LastLog = output
	result.Fixed = success
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

const debugSystemPrompt = "You are fixing a failing build. Produce a unified diff that fixes the failure, or NO_CHANGES if nothing can be done."

func debugUserPrompt(prompt, buildLog string) string {
	return "Original request: " + prompt + "\n\nBuild failure log:\n" + buildLog
}
