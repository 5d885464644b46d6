package preflight

import (
	"context"
	"testing"
	"time"

	"github.com/vibe-engine/vibe-engine/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_OnlyIncludesConfiguredStages(t *testing.T) {
	r := New(config.PreflightConfig{LintCommand: "true", TestCommand: "true"}, time.Second)
	require.Len(t, r.Stages, 2)
	assert.Equal(t, StageLint, r.Stages[0].Name)
	assert.Equal(t, StageTest, r.Stages[1].Name)
}

func TestNew_NoStagesConfigured(t *testing.T) {
	r := New(config.PreflightConfig{}, time.Second)
	assert.Empty(t, r.Stages)
}

func TestRun_SkippedWhenNoStagesConfigured(t *testing.T) {
	r := New(config.PreflightConfig{}, time.Second)
	result := r.Run(context.Background(), t.TempDir(), nil)
	assert.Nil(t, result)
}

func TestRun_SucceedsThroughAllStages(t *testing.T) {
	r := New(config.PreflightConfig{LintCommand: "true", TestCommand: "true"}, 5*time.Second)
	result := r.Run(context.Background(), t.TempDir(), nil)
	assert.Nil(t, result)
}

func TestRun_FailsFastOnFirstFailingStage(t *testing.T) {
	r := New(config.PreflightConfig{
		LintCommand: "false",
		TestCommand: "true",
	}, 5*time.Second)

	var ran []StageName
	result := r.Run(context.Background(), t.TempDir(), func(stage StageName, _ string) {
		ran = append(ran, stage)
	})

	require.NotNil(t, result)
	assert.Equal(t, StageLint, result.Stage)
	assert.False(t, result.Success)
}

func TestRun_TimesOutSlowStage(t *testing.T) {
	r := New(config.PreflightConfig{LintCommand: "sleep 2"}, 50*time.Millisecond)
	result := r.Run(context.Background(), t.TempDir(), nil)
	require.NotNil(t, result)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
}

func TestBoundedWriter_CapsOutput(t *testing.T) {
	w := newBoundedWriter(5, nil)
	n, err := w.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n) // Write reports full length even though truncated internally
	assert.Equal(t, "hello", w.String())
}
