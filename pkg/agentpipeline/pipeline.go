package agentpipeline

import (
	"context"

	"github.com/vibe-engine/vibe-engine/pkg/artifact"
	"github.com/vibe-engine/vibe-engine/pkg/diffvalidator"
)

// LLMFunc requests a single completion from LLMRouter. The pipeline
// doesn't depend on llmrouter.Router directly so it can be exercised
// with a stub in tests without constructing a Router.
type LLMFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// BuildFunc runs the configured build command in the worktree.
type BuildFunc func(ctx context.Context) (success bool, output string, err error)

// TestFunc runs the configured test command in the worktree.
type TestFunc func(ctx context.Context) (success bool, output string, err error)

// Pipeline runs the four post-build agents in order: debug, QA, UX,
// security. Each agent's applied fixes go through the same Validator
// every engine iteration uses.
type Pipeline struct {
	WorktreeDir string
	Prompt      string
	Git         *artifact.GitRunner
	Validator   *diffvalidator.Validator
	RequestLLM  LLMFunc
	RunBuild    BuildFunc
	RunTest     TestFunc
}

// Report summarises everything the pipeline did for one job iteration.
type Report struct {
	Debug    *DebugResult
	QA       *QAResult
	UX       *UXResult
	Security SecurityReport
}

// Run executes debug (only if buildFailed), then QA, then UX, then
// security, returning as soon as security blocks (critical findings).
func (p *Pipeline) Run(ctx context.Context, buildFailed bool) Report {
	var report Report

	if buildFailed {
		report.Debug = p.runDebug(ctx)
	}

	report.QA = p.runQA(ctx)
	report.UX = p.runUX(ctx)
	report.Security = RunSecurityAgent(p.WorktreeDir)

	return report
}

// applyFix validates and applies a candidate diff the same way the
// main iteration loop does, returning whether anything was applied.
func (p *Pipeline) applyFix(ctx context.Context, raw string) (applied bool, rejectReason string) {
	outcome := p.Validator.Validate(ctx, raw, p.Prompt, p.WorktreeDir, p.Git)
	if !outcome.Accepted {
		return false, outcome.Errors[0]
	}
	if outcome.NoChanges {
		return false, ""
	}
	if err := p.Git.Apply(ctx, outcome.Diff); err != nil {
		return false, err.Error()
	}
	return true, ""
}
