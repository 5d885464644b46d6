package agentpipeline

import (
	"context"
	"strings"
)

// QAResult reports the outcome of the QA agent's test-generation pass.
// Per spec §4.5, failures here are warnings, never fatal.
type QAResult struct {
	ChangedFiles []string
	TestDiff     string
	Applied      bool
	TestsPassed  bool
	Output       string
	Warning      string
}

// runQA discovers the non-test source files this iteration touched,
// asks the LLM for a test diff exercising them with the project's
// built-in test runner, applies it through the normal validator, and
// runs the configured test command.
func (p *Pipeline) runQA(ctx context.Context) *QAResult {
	result := &QAResult{}

	changed, err := p.Git.ChangedFilesSincePreviousCommit(ctx)
	if err != nil {
		result.Warning = "could not list changed files: " + err.Error()
		return result
	}
	result.ChangedFiles = filterNonTestFiles(changed)
	if len(result.ChangedFiles) == 0 {
		result.Warning = "no non-test source files changed, nothing to cover"
		return result
	}

	raw, err := p.RequestLLM(ctx, qaSystemPrompt, qaUserPrompt(result.ChangedFiles))
	if err != nil {
		result.Warning = "LLM test-generation call failed: " + err.Error()
		return result
	}
	result.TestDiff = raw

	applied, reason := p.applyFix(ctx, raw)
	result.Applied = applied
	if !applied {
		if reason != "" {
			result.Warning = "generated test diff rejected: " + reason
		}
		return result
	}

	if p.RunTest == nil {
		return result
	}
	passed, output, runErr := p.RunTest(ctx)
	result.TestsPassed = passed
	result.Output = output
	if runErr != nil {
		result.Warning = "test command failed: " + runErr.Error()
	}
	return result
}

func filterNonTestFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		lower := strings.ToLower(p)
		if strings.Contains(lower, "_test.") || strings.Contains(lower, ".test.") ||
			strings.Contains(lower, "/test/") || strings.Contains(lower, "/tests/") ||
			strings.HasPrefix(lower, "test/") || strings.HasPrefix(lower, "tests/") {
			continue
		}
		out = append(out, p)
	}
	return out
}

const qaSystemPrompt = "You are writing tests using only the project's built-in test runner. Produce a unified diff adding tests, or NO_CHANGES."

func qaUserPrompt(changedFiles []string) string {
	return "Write tests covering these changed files:\n" + strings.Join(changedFiles, "\n")
}
