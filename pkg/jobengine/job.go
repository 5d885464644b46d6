package jobengine

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/vibe-engine/vibe-engine/pkg/agentpipeline"
	"github.com/vibe-engine/vibe-engine/pkg/artifact"
	"github.com/vibe-engine/vibe-engine/pkg/config"
	"github.com/vibe-engine/vibe-engine/pkg/jobstore"
	"github.com/vibe-engine/vibe-engine/pkg/preflight"
)

// runShell executes command in dir via the shell and returns its
// combined stdout+stderr. Shared by the build-failure gate, the preview
// build, and AgentPipeline's RunBuild/RunTest hooks, so every caller
// runs the same command the same way.
func runShell(ctx context.Context, dir, command string) (string, error) {
	if command == "" {
		return "", nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// runJob drives a single claimed job from its current state
// (jobstore.StateCloning) through to completed or failed. Every
// returned value is already persisted and logged; runJob has nothing
// left to report to its caller.
func (e *Engine) runJob(ctx context.Context, job *jobstore.Job) {
	log := slog.With("job_id", job.ID, "tenant_id", job.TenantID)
	log.Info("jobengine: starting job")

	cacheDir, remoteURL, project, err := e.resolveSource(ctx, job)
	if err != nil {
		e.fail(ctx, job, "resolving project source: "+err.Error())
		return
	}

	worktreeDir, err := e.fs.NewWorktree(job.ID)
	if err != nil {
		e.fail(ctx, job, "allocating worktree: "+err.Error())
		return
	}
	if err := artifact.ResetWorktreeFrom(ctx, cacheDir, worktreeDir, job.SourceBranch); err != nil {
		e.fail(ctx, job, "checking out source branch: "+err.Error())
		return
	}

	git := artifact.NewGitRunner(worktreeDir)
	if err := git.CheckoutBranch(ctx, job.DestinationBranch); err != nil {
		e.fail(ctx, job, "checking out destination branch: "+err.Error())
		return
	}

	llm := e.llmFunc(job)
	buildCommand := e.buildCommand

	state := job.ExecutionState
	transition := func(to jobstore.ExecutionState) bool {
		if err := e.store.TransitionState(ctx, job.ID, state, to); err != nil {
			e.fail(ctx, job, fmt.Sprintf("transitioning %s -> %s: %v", state, to, err))
			return false
		}
		state = to
		return true
	}

	var pendingFeedback string
	var fb fallbackDirective
	consecutiveDiffFailures := 0
	consecutiveApplyFailures := 0

	for i := 1; i <= e.engineCfg.MaxIterations; i++ {
		if !transition(jobstore.StateBuildingContext) {
			return
		}
		if err := git.ResetHard(ctx); err != nil {
			e.fail(ctx, job, "resetting worktree at iteration start: "+err.Error())
			return
		}

		bundle := e.contextBuilder.Build(worktreeDir, job.Prompt)

		if !transition(jobstore.StateCallingLLM) {
			return
		}
		systemPrompt := buildSystemPrompt(pendingFeedback, fb)
		userPrompt := buildUserPrompt(bundle.Text, job.Prompt)
		raw, err := llm(ctx, systemPrompt, userPrompt)
		if err != nil {
			log.Warn("jobengine: LLM call failed", "iteration", i, "error", err)
			e.event(ctx, job.ID, "LLM call failed: "+err.Error(), jobstore.SeverityWarning)
			consecutiveDiffFailures++
			pendingFeedback = err.Error()
			if consecutiveDiffFailures >= 3 {
				e.fail(ctx, job, "LLM call failed 3 times consecutively")
				return
			}
			continue
		}

		if !transition(jobstore.StateApplyingDiff) {
			return
		}
		outcome := e.validator.Validate(ctx, raw, job.Prompt, worktreeDir, git)
		if !outcome.Accepted {
			consecutiveDiffFailures++
			pendingFeedback = outcome.Errors[0]
			e.event(ctx, job.ID, "diff rejected: "+outcome.Errors[0], jobstore.SeverityWarning)
			if consecutiveDiffFailures >= 3 {
				e.fail(ctx, job, "diff validation failed 3 times consecutively: "+outcome.Errors[0])
				return
			}
			continue
		}

		applied := false
		if !outcome.NoChanges {
			if err := git.Apply(ctx, outcome.Diff); err != nil {
				consecutiveApplyFailures++
				pendingFeedback = err.Error()
				if patchPath, werr := e.fs.WriteFailedPatch(job.ID, outcome.Diff); werr == nil {
					e.event(ctx, job.ID, "patch failed to apply, saved to "+patchPath+": "+truncatePrompt(err.Error(), 500), jobstore.SeverityWarning)
				} else {
					e.event(ctx, job.ID, "patch failed to apply: "+truncatePrompt(err.Error(), 500), jobstore.SeverityWarning)
				}
				if consecutiveApplyFailures >= 3 {
					e.fail(ctx, job, "patch apply failed 3 times consecutively")
					return
				}
				if consecutiveApplyFailures == 2 {
					files := extractFallbackFiles(err.Error())
					fb = fallbackDirective{active: true, files: files, global: len(files) == 0}
					e.event(ctx, job.ID, fb.text(), jobstore.SeverityWarning)
				}
				continue
			}
			applied = true
		}

		consecutiveDiffFailures = 0
		consecutiveApplyFailures = 0
		fb = fb.clear()
		pendingFeedback = ""

		if applied {
			if err := e.fs.WriteDiff(job.ID, outcome.Diff); err != nil {
				log.Warn("jobengine: persisting diff failed", "error", err)
			}
			count, err := e.store.RecordIteration(ctx, job.ID, outcome.Diff, countFileBlocks(outcome.Diff))
			if err != nil {
				e.fail(ctx, job, "recording iteration: "+err.Error())
				return
			}
			msg := fmt.Sprintf("VIBE iteration %d: %s", i, truncatePrompt(job.Prompt, 50))
			if err := git.CommitAll(ctx, e.gitCfg.AuthorName, e.gitCfg.AuthorEmail, msg); err != nil {
				e.fail(ctx, job, "committing applied diff: "+err.Error())
				return
			}
			e.event(ctx, job.ID, "applied diff for iteration "+fmt.Sprint(count), jobstore.SeverityInfo)
		} else {
			e.event(ctx, job.ID, "no changes required this iteration", jobstore.SeverityInfo)
		}

		if !transition(jobstore.StateRunningPreflight) {
			return
		}
		preflightStart := time.Now()
		preflightResult := e.preflightRunner.Run(ctx, worktreeDir, func(stage preflight.StageName, chunk string) {
			e.event(ctx, job.ID, fmt.Sprintf("[%s] %s", stage, chunk), jobstore.SeverityInfo)
		})
		if err := e.store.RecordPreflightDuration(ctx, job.ID, time.Since(preflightStart).Seconds()); err != nil {
			log.Warn("jobengine: recording preflight duration failed", "error", err)
		}
		if preflightResult != nil {
			e.event(ctx, job.ID, fmt.Sprintf("preflight stage %s failed: %s", preflightResult.Stage, truncatePrompt(preflightResult.Output, 2000)), jobstore.SeverityError)
			if i < e.engineCfg.MaxIterations {
				continue
			}
			e.fail(ctx, job, fmt.Sprintf("preflight stage %s failed after %d iterations", preflightResult.Stage, i))
			return
		}

		if e.runAgentsPreviewAndPublish(ctx, job, project, git, worktreeDir, buildCommand, remoteURL) {
			return
		}
		return
	}

	e.fail(ctx, job, fmt.Sprintf("exceeded MAX_ITERATIONS (%d) without reaching a terminal state", e.engineCfg.MaxIterations))
}

// runAgentsPreviewAndPublish runs the post-build agent pipeline, builds
// a preview, and publishes a PR (or tags a checkpoint for a no-remote
// project). Returns true once the job has reached a terminal state —
// the caller's job loop should stop regardless of outcome.
func (e *Engine) runAgentsPreviewAndPublish(ctx context.Context, job *jobstore.Job, project *jobstore.Project, git *artifact.GitRunner, worktreeDir, buildCommand, remoteURL string) bool {
	llm := e.llmFunc(job)
	buildFn := func(ctx context.Context) (bool, string, error) {
		out, err := runShell(ctx, worktreeDir, buildCommand)
		return err == nil, out, err
	}
	var testFn agentpipeline.TestFunc
	// QA's generated tests run with the same test command preflight uses;
	// left nil (skipped) when no test command is configured.
	for _, stage := range e.preflightRunner.Stages {
		if stage.Name == preflight.StageTest {
			cmd := stage.Command
			testFn = func(ctx context.Context) (bool, string, error) {
				out, err := runShell(ctx, worktreeDir, cmd)
				return err == nil, out, err
			}
			break
		}
	}

	buildOK, _, _ := buildFn(ctx)

	pipeline := &agentpipeline.Pipeline{
		WorktreeDir: worktreeDir,
		Prompt:      job.Prompt,
		Git:         git,
		Validator:   e.validator,
		RequestLLM:  llm,
		RunBuild:    buildFn,
		RunTest:     testFn,
	}
	report := pipeline.Run(ctx, !buildOK)
	e.logAgentReport(ctx, job.ID, report)

	if report.Security.Blocked {
		e.fail(ctx, job, fmt.Sprintf("security agent blocked job: %d critical finding(s)", report.Security.CriticalCount))
		return true
	}

	previewResult := e.previewBuilder.Build(ctx, job.ID, worktreeDir, runShell)
	if !previewResult.Built {
		e.event(ctx, job.ID, "preview build skipped or failed: "+errString(previewResult.Err), jobstore.SeverityWarning)
	}

	if err := e.store.TransitionState(ctx, job.ID, jobstore.StateRunningPreflight, jobstore.StateCreatingPR); err != nil {
		e.fail(ctx, job, "transitioning to creating_pr: "+err.Error())
		return true
	}

	title := "VIBE: " + truncatePrompt(job.Prompt, 72)
	result, err := e.publisher.Publish(ctx, git, job.ID, remoteURL, e.gitCfg.GitHubToken, job.SourceBranch, job.DestinationBranch, title, job.Prompt)
	if err != nil {
		e.fail(ctx, job, "publishing: "+err.Error())
		return true
	}

	if project != nil && previewResult.Built {
		if err := e.store.MarkPublished(ctx, job.TenantID, project.ID, previewResult.PreviewURL, job.ID); err != nil {
			slog.Warn("jobengine: marking project published failed", "job_id", job.ID, "error", err)
		}
	}

	if err := e.store.Complete(ctx, job.ID, result.PRURL, previewResult.PreviewURL); err != nil {
		slog.Error("jobengine: persisting job completion failed", "job_id", job.ID, "error", err)
		return true
	}
	e.event(ctx, job.ID, "job completed", jobstore.SeveritySuccess)
	if err := e.fs.RemoveWorktree(job.ID); err != nil {
		slog.Warn("jobengine: cleaning up worktree after completion", "job_id", job.ID, "error", err)
	}
	return true
}

func (e *Engine) logAgentReport(ctx context.Context, jobID string, report agentpipeline.Report) {
	if report.Debug != nil {
		sev := jobstore.SeverityInfo
		if !report.Debug.Fixed {
			sev = jobstore.SeverityWarning
		}
		e.event(ctx, jobID, fmt.Sprintf("debug agent: %d attempt(s), fixed=%v", report.Debug.Attempts, report.Debug.Fixed), sev)
	}
	if report.QA != nil && report.QA.Warning != "" {
		e.event(ctx, jobID, "QA agent: "+report.QA.Warning, jobstore.SeverityWarning)
	}
	if report.UX != nil && report.UX.Warning != "" {
		e.event(ctx, jobID, "UX agent: "+report.UX.Warning, jobstore.SeverityWarning)
	}
	e.event(ctx, jobID, fmt.Sprintf("security agent: %d critical, %d warning finding(s)", report.Security.CriticalCount, report.Security.WarningCount), jobstore.SeverityInfo)
}

// resolveSource determines the repo cache directory and remote URL a
// job's worktree is reset from: project mode reuses (or fetches) the
// project's cached clone, legacy mode clones job.RepositoryURL into an
// ephemeral cache keyed by job ID.
func (e *Engine) resolveSource(ctx context.Context, job *jobstore.Job) (cacheDir, remoteURL string, project *jobstore.Project, err error) {
	if job.ProjectID != "" {
		project, err = e.store.GetProject(ctx, job.TenantID, job.ProjectID)
		if err != nil {
			return "", "", nil, fmt.Errorf("loading project %s: %w", job.ProjectID, err)
		}
		if project.RemoteURL == "" {
			return project.LocalPath, "", project, nil
		}
		cacheDir = e.fs.RepoCachePath(project.ID)
		if err := artifact.CloneOrFetch(ctx, cacheDir, project.RemoteURL, job.SourceBranch); err != nil {
			return "", "", nil, fmt.Errorf("cloning project repo: %w", err)
		}
		return cacheDir, project.RemoteURL, project, nil
	}

	if job.RepositoryURL == "" {
		return "", "", nil, fmt.Errorf("job has neither project_id nor repository_url")
	}
	cacheDir = e.fs.RepoCachePath(job.ID)
	if err := artifact.CloneOrFetch(ctx, cacheDir, job.RepositoryURL, job.SourceBranch); err != nil {
		return "", "", nil, fmt.Errorf("cloning legacy repository: %w", err)
	}
	return cacheDir, job.RepositoryURL, nil, nil
}

// llmFunc returns an LLMFunc bound to job's configured model, routing
// every call (main iteration loop and every agentpipeline agent alike)
// through the same Router and accruing its token usage onto the job.
func (e *Engine) llmFunc(job *jobstore.Job) agentpipeline.LLMFunc {
	return func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		text, usage, err := e.router.Route(ctx, config.LLMModel(job.LLMModel), systemPrompt, userPrompt)
		if err != nil {
			return "", err
		}
		if aerr := e.store.AccrueUsage(ctx, job.ID, int64(usage.PromptTokens), int64(usage.CompletionTokens)); aerr != nil {
			slog.Warn("jobengine: accruing usage failed", "job_id", job.ID, "error", aerr)
		}
		return text, nil
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
