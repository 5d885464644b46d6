// Package artifact manages the on-disk scratch space a job touches:
// cached repository clones, per-job worktrees, persisted diffs, failed
// patch dumps, and preview build output.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vibe-engine/vibe-engine/pkg/config"
	"github.com/google/uuid"
)

// Filesystem roots every scoped directory a job lifecycle needs under
// the paths configured at startup (spec §6: REPOS_BASE_DIR,
// WORKTREES_BASE_DIR, PATCHES_DIR, JOBS_DIR, PREVIEWS_DIR, PUBLISHED_DIR).
type Filesystem struct {
	reposDir     string
	worktreesDir string
	patchesDir   string
	jobsDir      string
	previewsDir  string
	publishedDir string
}

// New creates a Filesystem rooted at the directories in cfg, creating
// every root eagerly so later per-job operations never race a missing
// parent directory.
func New(cfg config.PathsConfig) (*Filesystem, error) {
	fs := &Filesystem{
		reposDir:     cfg.ReposBaseDir,
		worktreesDir: cfg.WorktreesBaseDir,
		patchesDir:   cfg.PatchesDir,
		jobsDir:      cfg.JobsDir,
		previewsDir:  cfg.PreviewsDir,
		publishedDir: cfg.PublishedDir,
	}

	for _, dir := range []string{fs.reposDir, fs.worktreesDir, fs.patchesDir, fs.jobsDir, fs.previewsDir, fs.publishedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("artifact: creating root %s: %w", dir, err)
		}
	}
	return fs, nil
}

// RepoCachePath returns the directory a project's bare/working clone is
// cached at, keyed by project ID so repeated jobs against the same
// project reuse the fetch.
func (fs *Filesystem) RepoCachePath(projectID string) string {
	return filepath.Join(fs.reposDir, projectID)
}

// WorktreePath returns the scratch working tree for a single job
// iteration. Distinct from the repo cache so a bad apply never corrupts
// the cached clone other jobs read from.
func (fs *Filesystem) WorktreePath(jobID string) string {
	return filepath.Join(fs.worktreesDir, jobID)
}

// NewWorktree allocates a fresh worktree directory for jobID, removing
// any stale contents left by a previous iteration or crashed attempt.
func (fs *Filesystem) NewWorktree(jobID string) (string, error) {
	path := fs.WorktreePath(jobID)
	if err := os.RemoveAll(path); err != nil {
		return "", fmt.Errorf("artifact: clearing stale worktree for job %s: %w", jobID, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("artifact: creating worktree for job %s: %w", jobID, err)
	}
	return path, nil
}

// RemoveWorktree deletes a job's worktree. Best-effort: callers log but
// do not fail the job on cleanup errors.
func (fs *Filesystem) RemoveWorktree(jobID string) error {
	return os.RemoveAll(fs.WorktreePath(jobID))
}

// PatchPath returns where a diff that failed to apply is dumped for
// postmortem inspection, namespaced by job and a random suffix so
// repeated failures within one job don't clobber each other.
func (fs *Filesystem) PatchPath(jobID string) string {
	return filepath.Join(fs.patchesDir, fmt.Sprintf("%s-%s.patch", jobID, uuid.NewString()))
}

// WriteFailedPatch persists a diff that failed to apply, for operator
// debugging. Errors writing the dump are non-fatal to the job itself.
func (fs *Filesystem) WriteFailedPatch(jobID, diff string) (string, error) {
	path := fs.PatchPath(jobID)
	if err := os.WriteFile(path, []byte(diff), 0o644); err != nil {
		return "", fmt.Errorf("artifact: writing failed patch for job %s: %w", jobID, err)
	}
	return path, nil
}

// DiffPath returns where a job's accepted (applied) diff is persisted
// for later retrieval (last_diff in the job record references this).
func (fs *Filesystem) DiffPath(jobID string) string {
	return filepath.Join(fs.jobsDir, jobID+".diff")
}

// WriteDiff persists the diff that was applied for jobID.
func (fs *Filesystem) WriteDiff(jobID, diff string) error {
	if err := os.WriteFile(fs.DiffPath(jobID), []byte(diff), 0o644); err != nil {
		return fmt.Errorf("artifact: writing diff for job %s: %w", jobID, err)
	}
	return nil
}

// PreviewPath returns the per-job directory preview output is copied
// into and served from (spec §4.6: `<previews>/<job_id>/`).
func (fs *Filesystem) PreviewPath(jobID string) string {
	return filepath.Join(fs.previewsDir, jobID)
}

// PublishedPath returns the directory a project's most recent published
// build lives in, keyed by project rather than job.
func (fs *Filesystem) PublishedPath(projectID string) string {
	return filepath.Join(fs.publishedDir, projectID)
}

// RemoveProject deletes everything a project owns on disk: its
// repo cache and published output. Best-effort, matching the "removes
// the on-disk tree (best-effort)" project-delete contract in spec §3.
func (fs *Filesystem) RemoveProject(projectID string) error {
	var firstErr error
	if err := os.RemoveAll(fs.RepoCachePath(projectID)); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := os.RemoveAll(fs.PublishedPath(projectID)); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
