package diffvalidator

import (
	"context"
	"strings"
)

// ApplyChecker probes whether a diff would apply cleanly, without
// writing anything durable. Satisfied by *artifact.GitRunner; declared
// here so this package stays free of a dependency on artifact's
// concrete type.
type ApplyChecker interface {
	ApplyCheck(ctx context.Context, diff string) error
}

// Validator runs the five-stage pipeline described in the component
// design: normalise, sanitise, structural validate, worktree-aware
// sanity checks, and an applicability probe against a real VCS.
type Validator struct {
	MaxDiffSize int
}

// New returns a Validator bounded to maxDiffSize lines.
func New(maxDiffSize int) *Validator {
	return &Validator{MaxDiffSize: maxDiffSize}
}

// Validate runs the full pipeline over raw, a single completion from
// LLMRouter. worktreeDir and prompt ground the worktree-aware sanity
// checks; checker performs the final dry-run apply probe.
func (v *Validator) Validate(ctx context.Context, raw, prompt, worktreeDir string, checker ApplyChecker) *Outcome {
	text, preamble, noChanges, ok := normalise(raw)
	if !ok {
		return rejected("output does not begin with a diff --git header")
	}
	if noChanges {
		return &Outcome{Accepted: true, NoChanges: true}
	}

	if out := sanitise(text, preamble); out != nil {
		return out
	}

	blocks, out := structuralValidate(text, v.MaxDiffSize)
	if out != nil {
		return out
	}

	if out := sanityCheck(blocks, worktreeDir, prompt); out != nil {
		return out
	}

	if checker != nil {
		if err := checker.ApplyCheck(ctx, text); err != nil {
			return rejected("diff does not apply: " + firstLine(err.Error()))
		}
	}

	return &Outcome{Accepted: true, Diff: text}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
