// Package preflight runs the ordered quality-gate stages (lint,
// typecheck, test, smoke) against a job's worktree, fail-fast, per
// spec §4.4.
package preflight

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/vibe-engine/vibe-engine/pkg/config"
)

// maxOutputBytes bounds how much stdout+stderr a single stage can
// accumulate before it's truncated, per spec §4.4 ("10 MiB output
// buffer").
const maxOutputBytes = 10 * 1024 * 1024

// StageName identifies one of the four fixed preflight stages.
type StageName string

const (
	StageLint      StageName = "lint"
	StageTypecheck StageName = "typecheck"
	StageTest      StageName = "test"
	StageSmoke     StageName = "smoke"
)

// Stage is one configured quality-gate command.
type Stage struct {
	Name    StageName
	Command string
}

// Result is the outcome of running a single stage.
type Result struct {
	Stage   StageName
	Success bool
	Output  string
	Err     error
}

// ProgressFunc receives streamed output as a stage runs, one chunk at a
// time, so the engine can forward it to LogFanOut live.
type ProgressFunc func(stage StageName, chunk string)

// Runner executes the configured stages in fixed order, stopping at the
// first failure.
type Runner struct {
	Stages  []Stage
	Timeout time.Duration
}

// New builds a Runner from cfg, including only stages whose command is
// configured and non-empty (spec §4.4: "included only if ... non-empty;
// if no stages are configured, preflight is skipped").
func New(cfg config.PreflightConfig, timeout time.Duration) *Runner {
	var stages []Stage
	if cfg.LintCommand != "" {
		stages = append(stages, Stage{StageLint, cfg.LintCommand})
	}
	if cfg.TypecheckCommand != "" {
		stages = append(stages, Stage{StageTypecheck, cfg.TypecheckCommand})
	}
	if cfg.TestCommand != "" {
		stages = append(stages, Stage{StageTest, cfg.TestCommand})
	}
	if cfg.SmokeCommand != "" {
		stages = append(stages, Stage{StageSmoke, cfg.SmokeCommand})
	}
	return &Runner{Stages: stages, Timeout: timeout}
}

// Run executes every configured stage in order in worktreeDir, stopping
// at (and returning) the first failing Result. Returns nil if every
// stage succeeds, including the zero-stage case.
func (r *Runner) Run(ctx context.Context, worktreeDir string, progress ProgressFunc) *Result {
	for _, stage := range r.Stages {
		result := r.runStage(ctx, worktreeDir, stage, progress)
		if !result.Success {
			return &result
		}
	}
	return nil
}

func (r *Runner) runStage(ctx context.Context, worktreeDir string, stage Stage, progress ProgressFunc) Result {
	stageCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(stageCtx, "sh", "-c", stage.Command)
	cmd.Dir = worktreeDir

	out := newBoundedWriter(maxOutputBytes, func(chunk []byte) {
		if progress != nil {
			progress(stage.Name, string(chunk))
		}
	})
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	output := out.String()

	if stageCtx.Err() == context.DeadlineExceeded {
		return Result{Stage: stage.Name, Success: false, Output: output, Err: context.DeadlineExceeded}
	}
	if err != nil {
		return Result{Stage: stage.Name, Success: false, Output: output, Err: err}
	}
	return Result{Stage: stage.Name, Success: true, Output: output}
}

// boundedWriter keeps at most limit bytes and forwards each kept chunk
// to onWrite for live streaming. A write that crosses the cap is
// truncated at the cap; once the cap is reached, further output is
// neither kept nor forwarded.
type boundedWriter struct {
	buf     bytes.Buffer
	limit   int
	onWrite func([]byte)
}

func newBoundedWriter(limit int, onWrite func([]byte)) *boundedWriter {
	return &boundedWriter{limit: limit, onWrite: onWrite}
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // silently drop once capped; caller still sees success
	}
	chunk := p
	if len(chunk) > remaining {
		chunk = chunk[:remaining]
	}
	w.buf.Write(chunk)
	if w.onWrite != nil {
		w.onWrite(chunk)
	}
	return len(p), nil
}

func (w *boundedWriter) String() string {
	return w.buf.String()
}
