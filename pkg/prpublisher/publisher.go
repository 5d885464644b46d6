// Package prpublisher force-pushes a job's destination branch and opens
// a pull request on the upstream forge, or — for projects with no
// configured remote — only writes a checkpoint tag — spec §4.7.
package prpublisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vibe-engine/vibe-engine/pkg/artifact"
)

// ForgeClient is the external collaborator spec §1 treats as out of
// scope: "the PR-creation client for the forge". Only its interface is
// specified here; a concrete GitHub/GitLab implementation is injected
// by the composition root.
type ForgeClient interface {
	OpenPullRequest(ctx context.Context, remoteURL, sourceBranch, destinationBranch, title, body string) (prURL string, err error)
}

// Git is the subset of artifact.GitRunner this package depends on.
type Git interface {
	Tag(ctx context.Context, name string) error
	PushForce(ctx context.Context, remoteURL, branch, token string) error
}

// Publisher drives the "push + open PR + tag" sequence for a completed
// job.
type Publisher struct {
	forge ForgeClient
}

// New builds a Publisher over a ForgeClient. forge may be nil — any job
// for a project with no remote never calls it.
func New(forge ForgeClient) *Publisher {
	return &Publisher{forge: forge}
}

// Result carries what Publish produced, for JobEngine to persist onto
// the job record.
type Result struct {
	PRURL        string
	CheckpointTag string
	Skipped      bool // true for no-remote projects: tag-only, no push/PR
}

// Publish force-pushes destinationBranch to remoteURL (when remoteURL is
// non-empty), opens a PR from destinationBranch into sourceBranch, and
// tags HEAD with `vibe/job-<jobID>` regardless of whether a remote push
// happened. PR failures are returned to the caller — unlike
// PreviewBuilder, a PR-creation failure is not swallowed here, since the
// job's completion status depends on it; the engine decides whether that
// still counts as a completed job (spec §4.1: a no-remote project always
// completes).
func (p *Publisher) Publish(ctx context.Context, git Git, jobID, remoteURL, githubToken, sourceBranch, destinationBranch, title, body string) (Result, error) {
	tag := "vibe/job-" + jobID

	if remoteURL == "" {
		if err := git.Tag(ctx, tag); err != nil {
			return Result{}, fmt.Errorf("prpublisher: tagging checkpoint: %w", err)
		}
		slog.Info("prpublisher: no remote configured, tag-only checkpoint", "job_id", jobID, "tag", tag)
		return Result{CheckpointTag: tag, Skipped: true}, nil
	}

	if err := git.PushForce(ctx, remoteURL, destinationBranch, githubToken); err != nil {
		return Result{}, fmt.Errorf("prpublisher: pushing %s: %w", destinationBranch, err)
	}

	prURL, err := p.forge.OpenPullRequest(ctx, remoteURL, destinationBranch, sourceBranch, title, body)
	if err != nil {
		return Result{}, fmt.Errorf("prpublisher: opening pull request: %w", err)
	}

	if err := git.Tag(ctx, tag); err != nil {
		return Result{}, fmt.Errorf("prpublisher: tagging checkpoint: %w", err)
	}

	return Result{PRURL: prURL, CheckpointTag: tag}, nil
}

var _ Git = (*artifact.GitRunner)(nil)
