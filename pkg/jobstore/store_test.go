package jobstore

import (
	"context"
	stdsql "database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestStore starts a throwaway Postgres container, applies the
// embedded migrations against it, and returns a ready Store.
func newTestStore(t *testing.T) *Store {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	require.NoError(t, runMigrations(db, "jobstore_test"))

	store := NewFromDB(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGetProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateProject(ctx, Project{
		TenantID:  "tenant-a",
		Name:      "widget-app",
		RemoteURL: "https://example.test/widget.git",
		LocalPath: "/repos/widget",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	fetched, err := store.GetProject(ctx, "tenant-a", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "widget-app", fetched.Name)

	_, err = store.GetProject(ctx, "tenant-b", created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateJobAndClaim(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	proj, err := store.CreateProject(ctx, Project{TenantID: "t1", Name: "p", LocalPath: "/x"})
	require.NoError(t, err)

	job, err := store.CreateJob(ctx, Job{
		TenantID:          "t1",
		ProjectID:         proj.ID,
		Prompt:            "add a footer",
		DestinationBranch: "vibe/add-footer",
	})
	require.NoError(t, err)
	assert.Equal(t, StateQueued, job.ExecutionState)

	claimed, err := store.ClaimNextQueuedJob(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, StateCloning, claimed.ExecutionState)
	assert.Equal(t, "worker-1", claimed.ClaimedBy)

	_, err = store.ClaimNextQueuedJob(ctx, "worker-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimNextQueuedJob_SkipsSecondJobSameProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	proj, err := store.CreateProject(ctx, Project{TenantID: "t1", Name: "p", LocalPath: "/x"})
	require.NoError(t, err)

	first, err := store.CreateJob(ctx, Job{TenantID: "t1", ProjectID: proj.ID, Prompt: "a", DestinationBranch: "vibe/a"})
	require.NoError(t, err)
	second, err := store.CreateJob(ctx, Job{TenantID: "t1", ProjectID: proj.ID, Prompt: "b", DestinationBranch: "vibe/b"})
	require.NoError(t, err)

	claimed, err := store.ClaimNextQueuedJob(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, claimed.ID)

	// second job's project is already in flight (first is now "cloning"),
	// so it must not be claimable yet.
	_, err = store.ClaimNextQueuedJob(ctx, "worker-2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Complete(ctx, first.ID, "", ""))

	claimed2, err := store.ClaimNextQueuedJob(ctx, "worker-2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, claimed2.ID)
}

func TestTransitionState_RejectsStaleExpectedState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, Job{TenantID: "t1", Prompt: "a", DestinationBranch: "vibe/a"})
	require.NoError(t, err)

	require.NoError(t, store.TransitionState(ctx, job.ID, StateQueued, StateCloning))

	err = store.TransitionState(ctx, job.ID, StateQueued, StateBuildingContext)
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestAppendAndReplayEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, Job{TenantID: "t1", Prompt: "a", DestinationBranch: "vibe/a"})
	require.NoError(t, err)

	_, err = store.AppendEvent(ctx, job.ID, "cloning repository", SeverityInfo, 1000)
	require.NoError(t, err)
	e2, err := store.AppendEvent(ctx, job.ID, "calling llm", SeverityInfo, 2000)
	require.NoError(t, err)

	all, err := store.AllEvents(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "cloning repository", all[0].Message)

	after, err := store.EventsSince(ctx, job.ID, e2.EventID-1)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "calling llm", after[0].Message)
}

func TestBudgetUpsertAndUsageAggregation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b, err := store.SetBudget(ctx, "t1", 50.0)
	require.NoError(t, err)
	assert.Equal(t, 50.0, b.LimitUSD)

	b2, err := store.SetBudget(ctx, "t1", 75.0)
	require.NoError(t, err)
	assert.Equal(t, 75.0, b2.LimitUSD)

	job, err := store.CreateJob(ctx, Job{TenantID: "t1", Prompt: "a", DestinationBranch: "vibe/a", LLMModel: "claude"})
	require.NoError(t, err)
	require.NoError(t, store.AccrueUsage(ctx, job.ID, 1000, 200))

	totals, err := store.TenantTokenTotals(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, [2]int64{1000, 200}, totals["claude"])

	rows, err := store.UsageByDateModel(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "claude", rows[0].Model)
	assert.EqualValues(t, 1000, rows[0].InputTokens)
}

func TestDeleteProjectCascadesJobsAndEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	proj, err := store.CreateProject(ctx, Project{TenantID: "t1", Name: "p", LocalPath: "/x"})
	require.NoError(t, err)
	job, err := store.CreateJob(ctx, Job{TenantID: "t1", ProjectID: proj.ID, Prompt: "a", DestinationBranch: "vibe/a"})
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, job.ID, "queued", SeverityInfo, 1)
	require.NoError(t, err)

	require.NoError(t, store.DeleteProject(ctx, "t1", proj.ID))

	_, err = store.GetJob(ctx, "t1", job.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	events, err := store.AllEvents(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}
