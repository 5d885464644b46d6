package billing

import (
	"bytes"
	"context"
	"testing"

	"github.com/vibe-engine/vibe-engine/pkg/jobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	totals map[string]map[string][2]int64 // tenant -> model -> [prompt, completion]
	budgets map[string]float64
	hasBudget map[string]bool
	usage   map[string][]jobstore.UsageRow
	exports map[string][]jobstore.ExportRow
}

func newStubStore() *stubStore {
	return &stubStore{
		totals:    map[string]map[string][2]int64{},
		budgets:   map[string]float64{},
		hasBudget: map[string]bool{},
		usage:     map[string][]jobstore.UsageRow{},
		exports:   map[string][]jobstore.ExportRow{},
	}
}

func (s *stubStore) TenantTokenTotals(ctx context.Context, tenantID string) (map[string][2]int64, error) {
	return s.totals[tenantID], nil
}

func (s *stubStore) GetBudget(ctx context.Context, tenantID string) (*jobstore.Budget, error) {
	if !s.hasBudget[tenantID] {
		return nil, jobstore.ErrNotFound
	}
	return &jobstore.Budget{TenantID: tenantID, LimitUSD: s.budgets[tenantID]}, nil
}

func (s *stubStore) SetBudget(ctx context.Context, tenantID string, limitUSD float64) (*jobstore.Budget, error) {
	s.budgets[tenantID] = limitUSD
	s.hasBudget[tenantID] = true
	return &jobstore.Budget{TenantID: tenantID, LimitUSD: limitUSD}, nil
}

func (s *stubStore) UsageByDateModel(ctx context.Context, tenantID string) ([]jobstore.UsageRow, error) {
	return s.usage[tenantID], nil
}

func (s *stubStore) ExportJobs(ctx context.Context, tenantID string) ([]jobstore.ExportRow, error) {
	return s.exports[tenantID], nil
}

func TestCost_UsesRateTableAndClaudeFallback(t *testing.T) {
	assert.InDelta(t, 3.0+15.0, Cost("claude", 1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 10.0+30.0, Cost("gpt", 1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 3.0+15.0, Cost("unknown-model", 1_000_000, 1_000_000), 1e-9)
}

func TestCanAdmit_NilBudgetAlwaysAdmits(t *testing.T) {
	store := newStubStore()
	m := New(store)
	ok, err := m.CanAdmit(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAdmit_ZeroBudgetBlocksUnconditionally(t *testing.T) {
	store := newStubStore()
	_, err := store.SetBudget(context.Background(), "tenant-a", 0)
	require.NoError(t, err)
	m := New(store)
	ok, err := m.CanAdmit(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAdmit_BlocksWhenSpendMeetsOrExceedsBudget(t *testing.T) {
	store := newStubStore()
	store.totals["tenant-a"] = map[string][2]int64{"claude": {1_000_000, 0}} // $3 spend
	_, err := store.SetBudget(context.Background(), "tenant-a", 3.0)
	require.NoError(t, err)
	m := New(store)
	ok, err := m.CanAdmit(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.False(t, ok, "spend equal to budget must block")
}

func TestCanAdmit_AllowsWhenUnderBudget(t *testing.T) {
	store := newStubStore()
	store.totals["tenant-a"] = map[string][2]int64{"claude": {1_000_000, 0}} // $3 spend
	_, err := store.SetBudget(context.Background(), "tenant-a", 10.0)
	require.NoError(t, err)
	m := New(store)
	ok, err := m.CanAdmit(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUsage_ComputesCostAndTotals(t *testing.T) {
	store := newStubStore()
	store.usage["tenant-a"] = []jobstore.UsageRow{
		{Date: "2026-07-29", Model: "claude", InputTokens: 1_000_000, OutputTokens: 0, JobCount: 1},
		{Date: "2026-07-30", Model: "gpt", InputTokens: 0, OutputTokens: 1_000_000, JobCount: 1},
	}
	_, err := store.SetBudget(context.Background(), "tenant-a", 100)
	require.NoError(t, err)

	m := New(store)
	rows, total, limit, err := m.Usage(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.InDelta(t, 3.0, rows[0].CostUSD, 1e-9)
	assert.InDelta(t, 30.0, rows[1].CostUSD, 1e-9)
	assert.InDelta(t, 33.0, total, 1e-9)
	assert.Equal(t, 100.0, limit)
}

func TestWriteCSV_FormatsRows(t *testing.T) {
	rows := []ExportRow{
		{Date: "2026-07-30", Model: "claude", InputTokens: 500, OutputTokens: 100, CostUSD: 0.0027, JobID: "job-1"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	out := buf.String()
	assert.Contains(t, out, "date,model,input_tokens,output_tokens,cost_usd,task_id")
	assert.Contains(t, out, "2026-07-30,claude,500,100,0.002700,job-1")
}
