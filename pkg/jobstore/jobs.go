package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateJob inserts a new job in the queued state.
func (s *Store) CreateJob(ctx context.Context, j Job) (*Job, error) {
	if j.TenantID == "" {
		return nil, NewValidationError("tenant_id", "must not be empty")
	}
	if j.Prompt == "" {
		return nil, NewValidationError("prompt", "must not be empty")
	}
	if j.DestinationBranch == "" {
		return nil, NewValidationError("destination_branch", "must not be empty")
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.SourceBranch == "" {
		j.SourceBranch = "main"
	}
	if j.LLMModel == "" {
		j.LLMModel = "claude"
	}
	j.ExecutionState = StateQueued

	const q = `
		INSERT INTO jobs (id, tenant_id, project_id, repository_url, prompt,
		                  source_branch, destination_branch, execution_state, llm_model)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING initiated_at, last_modified`
	err := s.db.QueryRowContext(ctx, q, j.ID, j.TenantID, nullIfEmpty(j.ProjectID),
		nullIfEmpty(j.RepositoryURL), j.Prompt, j.SourceBranch, j.DestinationBranch,
		j.ExecutionState, j.LLMModel,
	).Scan(&j.InitiatedAt, &j.LastModified)
	if err != nil {
		return nil, fmt.Errorf("jobstore: creating job: %w", err)
	}
	return &j, nil
}

const jobColumns = `
	id, tenant_id, COALESCE(project_id, ''), COALESCE(repository_url, ''), prompt,
	source_branch, destination_branch, execution_state, COALESCE(pr_link, ''),
	COALESCE(preview_url, ''), iteration_count, initiated_at, last_modified,
	llm_model, prompt_tokens, completion_tokens, total_tokens,
	preflight_seconds, total_job_seconds, files_changed_count,
	COALESCE(last_diff, ''), COALESCE(claimed_by, ''), COALESCE(last_error, '')`

func scanJob(row interface{ Scan(...interface{}) error }) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.TenantID, &j.ProjectID, &j.RepositoryURL, &j.Prompt,
		&j.SourceBranch, &j.DestinationBranch, &j.ExecutionState, &j.PRLink,
		&j.PreviewURL, &j.IterationCount, &j.InitiatedAt, &j.LastModified,
		&j.LLMModel, &j.PromptTokens, &j.CompletionTokens, &j.TotalTokens,
		&j.PreflightSeconds, &j.TotalJobSeconds, &j.FilesChangedCount,
		&j.LastDiff, &j.ClaimedBy, &j.LastError,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetJob fetches a job scoped to tenantID.
func (s *Store) GetJob(ctx context.Context, tenantID, id string) (*Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 AND tenant_id = $2`
	j, err := scanJob(s.db.QueryRowContext(ctx, q, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: fetching job: %w", err)
	}
	return j, nil
}

// ListJobs returns every job for tenantID, most recent first.
func (s *Store) ListJobs(ctx context.Context, tenantID string) ([]Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE tenant_id = $1 ORDER BY initiated_at DESC`
	return queryJobs(ctx, s.db, q, tenantID)
}

// ListJobsByProject returns every job for a project, scoped to tenantID.
func (s *Store) ListJobsByProject(ctx context.Context, tenantID, projectID string) ([]Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE tenant_id = $1 AND project_id = $2 ORDER BY initiated_at DESC`
	return queryJobs(ctx, s.db, q, tenantID, projectID)
}

func queryJobs(ctx context.Context, db *sql.DB, q string, args ...interface{}) ([]Job, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("jobstore: listing jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("jobstore: scanning job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// ClaimNextQueuedJob claims the oldest queued job whose project has no
// other job currently in flight, using SELECT ... FOR UPDATE SKIP LOCKED
// behind a transaction-scoped advisory lock so concurrent engine workers
// never pick the same job or two jobs belonging to the same project at
// once. Returns ErrNotFound when there is nothing claimable right now.
func (s *Store) ClaimNextQueuedJob(ctx context.Context, workerID string) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("jobstore: beginning claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Claims run one at a time, so the in-flight check below always sees
	// every earlier claim as committed.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('jobstore_claim'))`); err != nil {
		return nil, fmt.Errorf("jobstore: taking claim lock: %w", err)
	}

	const selectQ = `
		SELECT j.id FROM jobs j
		WHERE j.execution_state = 'queued'
		  AND NOT EXISTS (
		      SELECT 1 FROM jobs j2
		      WHERE j2.project_id IS NOT DISTINCT FROM j.project_id
		        AND j2.project_id IS NOT NULL
		        AND j2.id <> j.id
		        AND j2.execution_state NOT IN ('queued', 'completed', 'failed')
		  )
		ORDER BY j.initiated_at ASC
		LIMIT 1
		FOR UPDATE OF j SKIP LOCKED`

	var id string
	if err := tx.QueryRowContext(ctx, selectQ).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("jobstore: selecting claimable job: %w", err)
	}

	const updateQ = `
		UPDATE jobs SET execution_state = 'cloning', claimed_by = $1, last_modified = now()
		WHERE id = $2
		RETURNING ` + jobColumns

	j, err := scanJob(tx.QueryRowContext(ctx, updateQ, workerID, id))
	if err != nil {
		return nil, fmt.Errorf("jobstore: claiming job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("jobstore: committing claim: %w", err)
	}
	return j, nil
}

// TransitionState moves a job from one state to another, failing with
// ErrConcurrentModification if the job is no longer in the expected
// "from" state (another worker already moved it, or it was cancelled).
func (s *Store) TransitionState(ctx context.Context, id string, from, to ExecutionState) error {
	const q = `
		UPDATE jobs SET execution_state = $1, last_modified = now()
		WHERE id = $2 AND execution_state = $3`
	res, err := s.db.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return fmt.Errorf("jobstore: transitioning job state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("jobstore: checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// RecordIteration increments the iteration counter and stores the latest
// applied diff text, returning the new count.
func (s *Store) RecordIteration(ctx context.Context, id, diff string, filesChanged int) (int, error) {
	const q = `
		UPDATE jobs SET iteration_count = iteration_count + 1, last_diff = $1,
		       files_changed_count = $2, last_modified = now()
		WHERE id = $3
		RETURNING iteration_count`
	var count int
	if err := s.db.QueryRowContext(ctx, q, diff, filesChanged, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("jobstore: recording iteration: %w", err)
	}
	return count, nil
}

// AccrueUsage adds an LLM call's tokens to a job's cumulative prompt,
// completion and total token counts. Only token columns are updated.
func (s *Store) AccrueUsage(ctx context.Context, id string, promptTokens, completionTokens int64) error {
	const q = `
		UPDATE jobs SET prompt_tokens = prompt_tokens + $1,
		       completion_tokens = completion_tokens + $2,
		       total_tokens = total_tokens + $3,
		       last_modified = now()
		WHERE id = $4`
	_, err := s.db.ExecContext(ctx, q, promptTokens, completionTokens, promptTokens+completionTokens, id)
	if err != nil {
		return fmt.Errorf("jobstore: accruing usage: %w", err)
	}
	return nil
}

// RecordPreflightDuration adds elapsed preflight time to the job's total.
func (s *Store) RecordPreflightDuration(ctx context.Context, id string, seconds float64) error {
	const q = `
		UPDATE jobs SET preflight_seconds = preflight_seconds + $1, last_modified = now()
		WHERE id = $2`
	_, err := s.db.ExecContext(ctx, q, seconds, id)
	if err != nil {
		return fmt.Errorf("jobstore: recording preflight duration: %w", err)
	}
	return nil
}

// Complete marks a job completed with its PR link and preview URL, and
// stamps total_job_seconds against initiated_at.
func (s *Store) Complete(ctx context.Context, id, prLink, previewURL string) error {
	const q = `
		UPDATE jobs SET execution_state = 'completed', pr_link = $1, preview_url = $2,
		       total_job_seconds = EXTRACT(EPOCH FROM (now() - initiated_at)),
		       last_modified = now()
		WHERE id = $3`
	res, err := s.db.ExecContext(ctx, q, nullIfEmpty(prLink), nullIfEmpty(previewURL), id)
	if err != nil {
		return fmt.Errorf("jobstore: completing job: %w", err)
	}
	return requireOneRow(res)
}

// Fail marks a job failed and records the terminal error message.
func (s *Store) Fail(ctx context.Context, id, errMsg string) error {
	const q = `
		UPDATE jobs SET execution_state = 'failed', last_error = $1,
		       total_job_seconds = EXTRACT(EPOCH FROM (now() - initiated_at)),
		       last_modified = now()
		WHERE id = $2`
	res, err := s.db.ExecContext(ctx, q, errMsg, id)
	if err != nil {
		return fmt.Errorf("jobstore: failing job: %w", err)
	}
	return requireOneRow(res)
}

// RecoverOrphans resets jobs stuck in a non-terminal, claimed state back
// to queued, for a worker whose claimed_by no longer corresponds to a
// live engine process. Returns the number of jobs recovered.
func (s *Store) RecoverOrphans(ctx context.Context, stuckBefore []string) (int64, error) {
	const q = `
		UPDATE jobs SET execution_state = 'queued', claimed_by = NULL, last_modified = now()
		WHERE claimed_by = ANY($1) AND execution_state NOT IN ('queued', 'completed', 'failed')`
	res, err := s.db.ExecContext(ctx, q, stuckBefore)
	if err != nil {
		return 0, fmt.Errorf("jobstore: recovering orphaned jobs: %w", err)
	}
	return res.RowsAffected()
}
