// Package preview builds a static preview artifact from a job's
// worktree after a successful build — spec §4.6.
package preview

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// candidateOutputDirs is the fixed priority order spec §4.6 names for
// locating a build's output directory.
var candidateOutputDirs = []string{"dist", "build", "out", ".next", "public"}

// Builder runs a project's configured build command and, on success,
// copies the located output directory into a per-job preview root.
type Builder struct {
	buildCommand string
	previewsDir  string
}

// New builds a Builder over buildCommand (run in the worktree) and the
// ArtifactFilesystem previews root.
func New(buildCommand, previewsDir string) *Builder {
	return &Builder{buildCommand: buildCommand, previewsDir: previewsDir}
}

// Result describes what Build produced. Failures are never fatal to the
// caller (spec §4.6): check Built/Err, don't propagate an error.
type Result struct {
	Built      bool
	PreviewURL string
	OutputDir  string
	Err        error
}

// RunBuildFunc executes the configured build command in dir, returning
// combined output and any error. Injected so Builder doesn't spawn
// processes itself; the job engine passes the same shell helper it uses
// for its build and test commands.
type RunBuildFunc func(ctx context.Context, dir, command string) (output string, err error)

// Build runs build() in worktreeDir, locates the build output directory,
// and copies it into <previewsDir>/<jobID>/. Every failure path returns
// a Result with Built=false and a logged reason; the caller treats this
// as best-effort and continues regardless.
func (b *Builder) Build(ctx context.Context, jobID, worktreeDir string, build RunBuildFunc) Result {
	if _, err := build(ctx, worktreeDir, b.buildCommand); err != nil {
		slog.Warn("preview: build command failed", "job_id", jobID, "error", err)
		return Result{Err: fmt.Errorf("preview: running build: %w", err)}
	}

	srcDir, ok := b.locateOutputDir(worktreeDir)
	if !ok {
		slog.Warn("preview: no known output directory found", "job_id", jobID, "worktree", worktreeDir)
		return Result{Err: fmt.Errorf("preview: no output directory among %v", candidateOutputDirs)}
	}

	destDir := filepath.Join(b.previewsDir, jobID)
	if err := os.RemoveAll(destDir); err != nil {
		slog.Warn("preview: clearing previous preview", "job_id", jobID, "error", err)
		return Result{Err: fmt.Errorf("preview: clearing destination: %w", err)}
	}
	if err := copyTree(srcDir, destDir); err != nil {
		slog.Warn("preview: copying build output", "job_id", jobID, "error", err)
		return Result{Err: fmt.Errorf("preview: copying output: %w", err)}
	}

	return Result{
		Built:      true,
		PreviewURL: "/previews/" + jobID + "/index.html",
		OutputDir:  destDir,
	}
}

func (b *Builder) locateOutputDir(worktreeDir string) (string, bool) {
	for _, name := range candidateOutputDirs {
		candidate := filepath.Join(worktreeDir, name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// copyTree recursively copies src into dst, creating directories as
// needed and preserving regular file permissions.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
