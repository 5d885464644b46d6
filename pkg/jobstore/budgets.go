package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetBudget fetches a tenant's configured spend limit. Returns ErrNotFound
// if no budget has ever been set for the tenant.
func (s *Store) GetBudget(ctx context.Context, tenantID string) (*Budget, error) {
	const q = `SELECT tenant_id, limit_usd, updated_at FROM tenant_budgets WHERE tenant_id = $1`
	var b Budget
	err := s.db.QueryRowContext(ctx, q, tenantID).Scan(&b.TenantID, &b.LimitUSD, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: fetching budget: %w", err)
	}
	return &b, nil
}

// SetBudget upserts a tenant's spend limit.
func (s *Store) SetBudget(ctx context.Context, tenantID string, limitUSD float64) (*Budget, error) {
	if limitUSD < 0 {
		return nil, NewValidationError("limit_usd", "must not be negative")
	}
	const q = `
		INSERT INTO tenant_budgets (tenant_id, limit_usd, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tenant_id) DO UPDATE SET limit_usd = $2, updated_at = now()
		RETURNING tenant_id, limit_usd, updated_at`
	var b Budget
	err := s.db.QueryRowContext(ctx, q, tenantID, limitUSD).Scan(&b.TenantID, &b.LimitUSD, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("jobstore: setting budget: %w", err)
	}
	return &b, nil
}

// UsageByDateModel returns per (UTC date, model) token aggregates for a
// tenant across every job that actually consumed tokens, oldest first.
// Groups with zero tokens on both columns (jobs that never ran a
// completion) are excluded. Cost-per-token is a billing concern, not
// this store's — callers multiply by the model's rate table themselves
// (see pkg/billing), this query only aggregates raw token counts and
// job counts.
func (s *Store) UsageByDateModel(ctx context.Context, tenantID string) ([]UsageRow, error) {
	const q = `
		SELECT to_char(initiated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       llm_model,
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COUNT(*)
		FROM jobs
		WHERE tenant_id = $1
		GROUP BY day, llm_model
		HAVING SUM(prompt_tokens) + SUM(completion_tokens) > 0
		ORDER BY day ASC, llm_model ASC`
	rows, err := s.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("jobstore: aggregating usage: %w", err)
	}
	defer rows.Close()

	var out []UsageRow
	for rows.Next() {
		var r UsageRow
		if err := rows.Scan(&r.Date, &r.Model, &r.InputTokens, &r.OutputTokens, &r.JobCount); err != nil {
			return nil, fmt.Errorf("jobstore: scanning usage row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExportJobs returns one row per job for a tenant, suitable for CSV
// emission (pkg/billing adds the computed CostUSD column).
func (s *Store) ExportJobs(ctx context.Context, tenantID string) ([]ExportRow, error) {
	const q = `
		SELECT to_char(initiated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       llm_model, prompt_tokens, completion_tokens, id
		FROM jobs WHERE tenant_id = $1 ORDER BY initiated_at ASC`
	rows, err := s.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("jobstore: exporting jobs: %w", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var r ExportRow
		if err := rows.Scan(&r.Date, &r.Model, &r.InputTokens, &r.OutputTokens, &r.JobID); err != nil {
			return nil, fmt.Errorf("jobstore: scanning export row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TenantTokenTotals sums raw prompt/completion tokens for a tenant across
// every job, per model, for the billing admission gate to convert into a
// cumulative spend figure.
func (s *Store) TenantTokenTotals(ctx context.Context, tenantID string) (map[string][2]int64, error) {
	const q = `
		SELECT llm_model, COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0)
		FROM jobs WHERE tenant_id = $1 GROUP BY llm_model`
	rows, err := s.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("jobstore: summing token totals: %w", err)
	}
	defer rows.Close()

	out := map[string][2]int64{}
	for rows.Next() {
		var model string
		var prompt, completion int64
		if err := rows.Scan(&model, &prompt, &completion); err != nil {
			return nil, fmt.Errorf("jobstore: scanning token totals: %w", err)
		}
		out[model] = [2]int64{prompt, completion}
	}
	return out, rows.Err()
}
