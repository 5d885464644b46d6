// Package jobstore is the durable store of projects, jobs, lifecycle
// events, and per-tenant budgets, with transactional state transitions
// and tenant-scoped queries — spec §3.
package jobstore

import "time"

// ExecutionState is a Job's position in the state machine (spec §4.1).
type ExecutionState string

const (
	StateQueued          ExecutionState = "queued"
	StateCloning         ExecutionState = "cloning"
	StateBuildingContext ExecutionState = "building_context"
	StateCallingLLM      ExecutionState = "calling_llm"
	StateApplyingDiff    ExecutionState = "applying_diff"
	StateRunningPreflight ExecutionState = "running_preflight"
	StateCreatingPR      ExecutionState = "creating_pr"
	StateCompleted       ExecutionState = "completed"
	StateFailed          ExecutionState = "failed"
)

// IsTerminal reports whether s is a terminal state.
func (s ExecutionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Project owns a cached on-disk working tree (spec §3).
type Project struct {
	ID              string
	TenantID        string
	Name            string
	RemoteURL       string
	LocalPath       string
	CreatedAt       time.Time
	PublishedURL    string
	PublishedAt     *time.Time
	PublishedJobID  string
}

// Job is the unit of pipeline execution (spec §3).
type Job struct {
	ID                string
	TenantID          string
	ProjectID         string
	RepositoryURL     string
	Prompt            string
	SourceBranch      string
	DestinationBranch string
	ExecutionState    ExecutionState
	PRLink            string
	PreviewURL        string
	IterationCount    int
	InitiatedAt       time.Time
	LastModified      time.Time
	LLMModel          string
	PromptTokens      int64
	CompletionTokens  int64
	TotalTokens       int64
	PreflightSeconds  float64
	TotalJobSeconds   float64
	FilesChangedCount int
	LastDiff          string
	ClaimedBy         string
	LastError         string
}

// Event is an append-only log entry (spec §3).
type Event struct {
	EventID   int64
	JobID     string
	Message   string
	Severity  string
	EventTime int64
}

// Event severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
	SeveritySuccess = "success"
)

// Budget is a tenant's cumulative spend limit (spec §3).
type Budget struct {
	TenantID  string
	LimitUSD  float64
	UpdatedAt time.Time
}

// UsageRow is one (date, model) aggregate row from the usage query
// (spec §4.8).
type UsageRow struct {
	Date             string
	Model            string
	InputTokens      int64
	OutputTokens     int64
	CostUSD          float64
	JobCount         int
}

// ExportRow is one per-job row for CSV emission (spec §6).
type ExportRow struct {
	Date             string
	Model            string
	InputTokens      int64
	OutputTokens     int64
	CostUSD          float64
	JobID            string
}
