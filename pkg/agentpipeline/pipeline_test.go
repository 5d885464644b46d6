package agentpipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/vibe-engine/vibe-engine/pkg/artifact"
	"github.com/vibe-engine/vibe-engine/pkg/diffvalidator"
	"github.com/stretchr/testify/require"
)

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('hi')\n"), 0o644))
	run("add", "-A")
	run("commit", "-m", "initial")
	return dir
}

func newTestPipeline(t *testing.T, dir string, llm LLMFunc, build BuildFunc, test TestFunc) *Pipeline {
	t.Helper()
	return &Pipeline{
		WorktreeDir: dir,
		Prompt:      "fix the widget",
		Git:         artifact.NewGitRunner(dir),
		Validator:   diffvalidator.New(5000),
		RequestLLM:  llm,
		RunBuild:    build,
		RunTest:     test,
	}
}

func TestRunDebug_StopsWhenLLMReportsNoChanges(t *testing.T) {
	dir := initGitRepo(t)
	calls := 0
	p := newTestPipeline(t, dir,
		func(context.Context, string, string) (string, error) { return "NO_CHANGES", nil },
		func(context.Context) (bool, string, error) { calls++; return false, "build failed: syntax error", nil },
		nil,
	)

	result := p.runDebug(context.Background())
	require.NotNil(t, result)
	require.False(t, result.Fixed)
	require.Equal(t, 1, result.Attempts)
}

func TestRunDebug_NoChangesLeavesBuildUnfixed(t *testing.T) {
	dir := initGitRepo(t)
	first := true
	p := newTestPipeline(t, dir,
		func(context.Context, string, string) (string, error) { return "NO_CHANGES", nil },
		func(context.Context) (bool, string, error) {
			if first {
				first = false
				return false, "build failed", nil
			}
			return true, "", nil
		},
		nil,
	)

	result := p.runDebug(context.Background())
	require.NotNil(t, result)
	// The first build fails, the LLM returns NO_CHANGES (nothing applied),
	// so the loop can't retry a second build and reports unresolved.
	require.False(t, result.Fixed)
}

func TestRunQA_NoChangedFilesWarnsWithoutFailing(t *testing.T) {
	dir := initGitRepo(t)
	p := newTestPipeline(t, dir,
		func(context.Context, string, string) (string, error) { return "NO_CHANGES", nil },
		nil,
		nil,
	)

	result := p.runQA(context.Background())
	require.NotNil(t, result)
	require.NotEmpty(t, result.Warning)
	require.False(t, result.Applied)
}

func TestRunUX_ParsesStructuredReport(t *testing.T) {
	dir := initGitRepo(t)
	p := newTestPipeline(t, dir,
		func(_ context.Context, _ string, userPrompt string) (string, error) {
			return `{"passed":["responsive breakpoints","empty states","loading states"],"failed":["consistent spacing"]}`, nil
		},
		nil,
		nil,
	)

	result := p.runUX(context.Background())
	require.NotNil(t, result)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "consistent spacing", result.Failed[0])
}

func TestRunUX_UnparseableJSONWarns(t *testing.T) {
	dir := initGitRepo(t)
	p := newTestPipeline(t, dir,
		func(context.Context, string, string) (string, error) { return "not json", nil },
		nil,
		nil,
	)

	result := p.runUX(context.Background())
	require.NotEmpty(t, result.Warning)
}
