package api

import "github.com/vibe-engine/vibe-engine/pkg/jobstore"

// JobResponse is the wire shape of a Job.
type JobResponse struct {
	ID                string `json:"id"`
	TenantID          string `json:"tenant_id"`
	ProjectID         string `json:"project_id,omitempty"`
	RepositoryURL     string `json:"repository_url,omitempty"`
	Prompt            string `json:"prompt"`
	SourceBranch      string `json:"source_branch"`
	DestinationBranch string `json:"destination_branch"`
	ExecutionState    string `json:"execution_state"`
	PRLink            string `json:"pr_link,omitempty"`
	PreviewURL        string `json:"preview_url,omitempty"`
	IterationCount    int    `json:"iteration_count"`
	InitiatedAt       string `json:"initiated_at"`
	LastModified      string `json:"last_modified"`
	LLMModel          string `json:"llm_model"`
	PromptTokens      int64  `json:"prompt_tokens"`
	CompletionTokens  int64  `json:"completion_tokens"`
	TotalTokens       int64  `json:"total_tokens"`
	FilesChangedCount int    `json:"files_changed_count"`
	LastError         string `json:"last_error,omitempty"`
}

func jobResponse(j *jobstore.Job) JobResponse {
	return JobResponse{
		ID: j.ID, TenantID: j.TenantID, ProjectID: j.ProjectID,
		RepositoryURL: j.RepositoryURL, Prompt: j.Prompt, SourceBranch: j.SourceBranch,
		DestinationBranch: j.DestinationBranch, ExecutionState: string(j.ExecutionState),
		PRLink: j.PRLink, PreviewURL: j.PreviewURL, IterationCount: j.IterationCount,
		InitiatedAt: j.InitiatedAt.UTC().Format(timeFormat), LastModified: j.LastModified.UTC().Format(timeFormat),
		LLMModel: j.LLMModel, PromptTokens: j.PromptTokens, CompletionTokens: j.CompletionTokens,
		TotalTokens: j.TotalTokens, FilesChangedCount: j.FilesChangedCount, LastError: j.LastError,
	}
}

func jobResponses(jobs []jobstore.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobResponse(&jobs[i]))
	}
	return out
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

// ProjectResponse is the wire shape of a Project.
type ProjectResponse struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id"`
	Name           string `json:"name"`
	RemoteURL      string `json:"remote_url,omitempty"`
	LocalPath      string `json:"local_path"`
	CreatedAt      string `json:"created_at"`
	PublishedURL   string `json:"published_url,omitempty"`
	PublishedJobID string `json:"published_job_id,omitempty"`
}

func projectResponse(p *jobstore.Project) ProjectResponse {
	return ProjectResponse{
		ID: p.ID, TenantID: p.TenantID, Name: p.Name, RemoteURL: p.RemoteURL,
		LocalPath: p.LocalPath, CreatedAt: p.CreatedAt.UTC().Format(timeFormat),
		PublishedURL: p.PublishedURL, PublishedJobID: p.PublishedJobID,
	}
}

// UsageResponse is the wire shape of GET /billing/usage/:tenantId.
type UsageResponse struct {
	Rows        []UsageRowResponse `json:"rows"`
	TotalSpend  float64            `json:"total_spend_usd"`
	BudgetLimit float64            `json:"budget_limit_usd"`
}

// UsageRowResponse is one (date, model) usage aggregate.
type UsageRowResponse struct {
	Date         string  `json:"date"`
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	JobCount     int     `json:"job_count"`
}
