package agentpipeline

import (
	"context"
	"encoding/json"
	"fmt"
)

// uxChecks is the fixed set of checks the UX agent asks the LLM to
// evaluate, per spec §4.5.
var uxChecks = []string{
	"responsive breakpoints",
	"empty states",
	"loading states",
	"consistent spacing",
}

// uxReport is the structured JSON shape requested from the LLM.
type uxReport struct {
	Passed []string `json:"passed"`
	Failed []string `json:"failed"`
}

// UXResult reports the outcome of the UX agent's review-and-fix pass.
// Per spec §4.5, failures here are non-fatal.
type UXResult struct {
	Passed     []string
	Failed     []string
	FixesTried int
	FixesKept  int
	Warning    string
}

// runUX asks the LLM to grade the worktree against the fixed check
// list, then attempts one fix diff per failed item.
func (p *Pipeline) runUX(ctx context.Context) *UXResult {
	result := &UXResult{}

	raw, err := p.RequestLLM(ctx, uxSystemPrompt, uxUserPrompt())
	if err != nil {
		result.Warning = "LLM UX review call failed: " + err.Error()
		return result
	}

	var report uxReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		result.Warning = "LLM UX review returned unparseable JSON: " + err.Error()
		return result
	}
	result.Passed = report.Passed
	result.Failed = report.Failed

	for _, item := range report.Failed {
		result.FixesTried++
		raw, err := p.RequestLLM(ctx, uxSystemPrompt, uxFixUserPrompt(item))
		if err != nil {
			continue
		}
		applied, _ := p.applyFix(ctx, raw)
		if applied {
			result.FixesKept++
		}
	}
	return result
}

const uxSystemPrompt = "You are a UX reviewer. Respond only with JSON matching {\"passed\":[...],\"failed\":[...]}."

func uxUserPrompt() string {
	return fmt.Sprintf("Evaluate the current worktree against these checks: %v. Report which pass and which fail.", uxChecks)
}

func uxFixUserPrompt(failedCheck string) string {
	return "Produce a unified diff fixing this UX issue: " + failedCheck + ". Or NO_CHANGES if no fix applies."
}
