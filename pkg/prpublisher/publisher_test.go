package prpublisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGit struct {
	tagged     []string
	pushed     bool
	pushErr    error
	tagErr     error
}

func (g *fakeGit) Tag(ctx context.Context, name string) error {
	if g.tagErr != nil {
		return g.tagErr
	}
	g.tagged = append(g.tagged, name)
	return nil
}

func (g *fakeGit) PushForce(ctx context.Context, remoteURL, branch, token string) error {
	if g.pushErr != nil {
		return g.pushErr
	}
	g.pushed = true
	return nil
}

type fakeForge struct {
	prURL string
	err   error
}

func (f *fakeForge) OpenPullRequest(ctx context.Context, remoteURL, sourceBranch, destinationBranch, title, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.prURL, nil
}

func TestPublish_NoRemoteTagsOnlyAndSkips(t *testing.T) {
	git := &fakeGit{}
	p := New(&fakeForge{})

	result, err := p.Publish(context.Background(), git, "job-1", "", "", "main", "vibe/job-1", "t", "b")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "vibe/job-job-1", result.CheckpointTag)
	assert.Empty(t, result.PRURL)
	assert.False(t, git.pushed)
	assert.Equal(t, []string{"vibe/job-job-1"}, git.tagged)
}

func TestPublish_WithRemotePushesOpensAndTags(t *testing.T) {
	git := &fakeGit{}
	forge := &fakeForge{prURL: "https://github.com/acme/widget/pull/7"}
	p := New(forge)

	result, err := p.Publish(context.Background(), git, "job-2", "https://github.com/acme/widget.git", "tok", "main", "vibe/job-2", "t", "b")
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, "https://github.com/acme/widget/pull/7", result.PRURL)
	assert.Equal(t, "vibe/job-job-2", result.CheckpointTag)
	assert.True(t, git.pushed)
}

func TestPublish_PropagatesPushFailure(t *testing.T) {
	git := &fakeGit{pushErr: errors.New("network error")}
	p := New(&fakeForge{})

	_, err := p.Publish(context.Background(), git, "job-3", "https://github.com/acme/widget.git", "tok", "main", "vibe/job-3", "t", "b")
	assert.Error(t, err)
}

func TestPublish_PropagatesForgeFailure(t *testing.T) {
	git := &fakeGit{}
	forge := &fakeForge{err: errors.New("forge rejected PR")}
	p := New(forge)

	_, err := p.Publish(context.Background(), git, "job-4", "https://github.com/acme/widget.git", "tok", "main", "vibe/job-4", "t", "b")
	assert.Error(t, err)
	assert.Empty(t, git.tagged, "tag must not be created when PR creation fails")
}
