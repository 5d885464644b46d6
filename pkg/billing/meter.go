// Package billing meters LLM token usage per tenant, computes cost
// against a fixed per-model rate table, and gates job admission against
// a tenant's configured spend ceiling — spec §4.8.
package billing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/vibe-engine/vibe-engine/pkg/config"
	"github.com/vibe-engine/vibe-engine/pkg/jobstore"
)

// rate is a model's cost per million tokens, in USD.
type rate struct {
	input  float64
	output float64
}

// rates is the fixed rate table from spec §4.8. Unknown models fall
// back to the claude row.
var rates = map[config.LLMModel]rate{
	config.ModelClaude: {input: 3.0, output: 15.0},
	config.ModelGPT:    {input: 10.0, output: 30.0},
}

func rateFor(model string) rate {
	if r, ok := rates[config.LLMModel(model)]; ok {
		return r
	}
	return rates[config.ModelClaude]
}

// Cost computes the USD cost of one completion given its model and raw
// token counts.
func Cost(model string, promptTokens, completionTokens int64) float64 {
	r := rateFor(model)
	return float64(promptTokens)/1e6*r.input + float64(completionTokens)/1e6*r.output
}

// Store is the subset of jobstore.Store the meter depends on, so tests
// can exercise the gate without a live database.
type Store interface {
	TenantTokenTotals(ctx context.Context, tenantID string) (map[string][2]int64, error)
	GetBudget(ctx context.Context, tenantID string) (*jobstore.Budget, error)
	SetBudget(ctx context.Context, tenantID string, limitUSD float64) (*jobstore.Budget, error)
	UsageByDateModel(ctx context.Context, tenantID string) ([]jobstore.UsageRow, error)
	ExportJobs(ctx context.Context, tenantID string) ([]jobstore.ExportRow, error)
}

// Meter computes tenant spend and gates admission of new jobs.
type Meter struct {
	store Store
}

// New builds a Meter over store.
func New(store Store) *Meter {
	return &Meter{store: store}
}

// Spend returns a tenant's cumulative USD spend summed over every job
// ever run, across all models.
func (m *Meter) Spend(ctx context.Context, tenantID string) (float64, error) {
	totals, err := m.store.TenantTokenTotals(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("billing: summing tenant spend: %w", err)
	}
	var total float64
	for model, counts := range totals {
		total += Cost(model, counts[0], counts[1])
	}
	return total, nil
}

// CanAdmit reports whether tenantID may place a new job into the queue.
// A tenant with no budget configured is always admitted (spec §4.9: "a
// tenant with zero spend and zero budget may create jobs only if budget
// is null"). A zero budget blocks unconditionally.
func (m *Meter) CanAdmit(ctx context.Context, tenantID string) (bool, error) {
	budget, err := m.store.GetBudget(ctx, tenantID)
	if err != nil {
		if err == jobstore.ErrNotFound {
			return true, nil
		}
		return false, fmt.Errorf("billing: fetching budget: %w", err)
	}
	spend, err := m.Spend(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return spend < budget.LimitUSD, nil
}

// SetBudget upserts a tenant's spend ceiling.
func (m *Meter) SetBudget(ctx context.Context, tenantID string, limitUSD float64) (*jobstore.Budget, error) {
	return m.store.SetBudget(ctx, tenantID, limitUSD)
}

// UsageRow is one (date, model) aggregate with cost computed, for the
// REST usage response.
type UsageRow struct {
	Date            string
	Model           string
	InputTokens     int64
	OutputTokens    int64
	CostUSD         float64
	JobCount        int
}

// Usage returns per (UTC date, model) usage rows for tenantID with cost
// computed from the rate table, plus cumulative spend and the
// configured budget limit (0 if none set).
func (m *Meter) Usage(ctx context.Context, tenantID string) (rows []UsageRow, totalSpend float64, budgetLimit float64, err error) {
	raw, err := m.store.UsageByDateModel(ctx, tenantID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("billing: aggregating usage: %w", err)
	}
	for _, r := range raw {
		cost := Cost(r.Model, r.InputTokens, r.OutputTokens)
		rows = append(rows, UsageRow{
			Date: r.Date, Model: r.Model, InputTokens: r.InputTokens,
			OutputTokens: r.OutputTokens, CostUSD: cost, JobCount: r.JobCount,
		})
		totalSpend += cost
	}
	if budget, err := m.store.GetBudget(ctx, tenantID); err == nil {
		budgetLimit = budget.LimitUSD
	} else if err != jobstore.ErrNotFound {
		return nil, 0, 0, fmt.Errorf("billing: fetching budget: %w", err)
	}
	return rows, totalSpend, budgetLimit, nil
}

// ExportRow is one per-job row with cost computed, for CSV emission.
type ExportRow struct {
	Date         string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	JobID        string
}

// Export returns one row per job for tenantID with cost computed.
func (m *Meter) Export(ctx context.Context, tenantID string) ([]ExportRow, error) {
	raw, err := m.store.ExportJobs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("billing: exporting jobs: %w", err)
	}
	out := make([]ExportRow, 0, len(raw))
	for _, r := range raw {
		out = append(out, ExportRow{
			Date: r.Date, Model: r.Model, InputTokens: r.InputTokens,
			OutputTokens: r.OutputTokens, CostUSD: Cost(r.Model, r.InputTokens, r.OutputTokens),
			JobID: r.JobID,
		})
	}
	return out, nil
}

// WriteCSV renders rows to w in the spec §6 export format:
// date,model,input_tokens,output_tokens,cost_usd,task_id
func WriteCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "model", "input_tokens", "output_tokens", "cost_usd", "task_id"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.Date, r.Model,
			strconv.FormatInt(r.InputTokens, 10),
			strconv.FormatInt(r.OutputTokens, 10),
			strconv.FormatFloat(r.CostUSD, 'f', 6, 64),
			r.JobID,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
