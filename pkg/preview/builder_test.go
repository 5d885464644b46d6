package preview

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_CopiesDistDirectoryAndPublishesURL(t *testing.T) {
	worktree := t.TempDir()
	previews := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(worktree, "dist"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(worktree, "dist", "index.html"), []byte("<html></html>"), 0o644))

	b := New("npm run build", previews)
	result := b.Build(context.Background(), "job-1", worktree, func(ctx context.Context, dir, cmd string) (string, error) {
		assert.Equal(t, worktree, dir)
		return "", nil
	})

	require.True(t, result.Built)
	assert.Equal(t, "/previews/job-1/index.html", result.PreviewURL)
	content, err := os.ReadFile(filepath.Join(previews, "job-1", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(content))
}

func TestBuild_PrefersBuildOverOut(t *testing.T) {
	worktree := t.TempDir()
	previews := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(worktree, "build"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(worktree, "build", "index.html"), []byte("build-output"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(worktree, "out"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(worktree, "out", "index.html"), []byte("out-output"), 0o644))

	b := New("make build", previews)
	result := b.Build(context.Background(), "job-2", worktree, func(ctx context.Context, dir, cmd string) (string, error) {
		return "", nil
	})

	require.True(t, result.Built)
	content, err := os.ReadFile(filepath.Join(previews, "job-2", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "build-output", string(content))
}

func TestBuild_NonFatalWhenBuildCommandFails(t *testing.T) {
	worktree := t.TempDir()
	previews := t.TempDir()

	b := New("npm run build", previews)
	result := b.Build(context.Background(), "job-3", worktree, func(ctx context.Context, dir, cmd string) (string, error) {
		return "", assertError("build failed")
	})

	assert.False(t, result.Built)
	assert.Error(t, result.Err)
}

func TestBuild_NonFatalWhenNoOutputDirFound(t *testing.T) {
	worktree := t.TempDir()
	previews := t.TempDir()

	b := New("npm run build", previews)
	result := b.Build(context.Background(), "job-4", worktree, func(ctx context.Context, dir, cmd string) (string, error) {
		return "", nil
	})

	assert.False(t, result.Built)
	assert.Error(t, result.Err)
}

type assertError string

func (e assertError) Error() string { return string(e) }
