// Package config provides the process-wide configuration surface, loaded
// once at startup from the environment (spec §6) and validated fail-fast.
package config

import (
	"time"
)

// LLMModel identifies a supported LLM provider variant.
type LLMModel string

// Supported LLM model variants. Unknown values fall back to ModelClaude
// for rate-table lookups (see pkg/billing).
const (
	ModelClaude LLMModel = "claude"
	ModelGPT    LLMModel = "gpt"
)

// IsValid reports whether m is a known model variant.
func (m LLMModel) IsValid() bool {
	return m == ModelClaude || m == ModelGPT
}

// Config is the umbrella configuration object read once at process startup
// and threaded through every other component. Nothing in the system reloads
// it at runtime.
type Config struct {
	// Database holds the durable store connection settings.
	Database DatabaseConfig

	// Paths holds the on-disk roots used by ArtifactFilesystem.
	Paths PathsConfig

	// Engine holds JobEngine tunables.
	Engine EngineConfig

	// Preflight holds the configured quality-gate stage commands.
	Preflight PreflightConfig

	// Git holds committer identity and remote-auth configuration.
	Git GitConfig

	// HTTPPort is the port the REST/SSE API server listens on.
	HTTPPort string
}

// DatabaseConfig configures the durable JobStore.
type DatabaseConfig struct {
	Path string // DATABASE_PATH — DSN or file path depending on the backing store.
}

// PathsConfig configures ArtifactFilesystem's on-disk roots.
type PathsConfig struct {
	ReposBaseDir     string // REPOS_BASE_DIR
	WorktreesBaseDir string // WORKTREES_BASE_DIR
	PatchesDir       string // PATCHES_DIR
	JobsDir          string // JOBS_DIR
	PreviewsDir      string // PREVIEWS_DIR
	PublishedDir     string // PUBLISHED_DIR
}

// EngineConfig configures JobEngine iteration and polling bounds.
type EngineConfig struct {
	MaxIterations        int           // MAX_ITERATIONS (default 6)
	ExecutorPollInterval time.Duration // EXECUTOR_POLL_INTERVAL (default 5s)
	MaxContextSize       int           // MAX_CONTEXT_SIZE chars (default 50000)
	MaxDiffSize          int           // MAX_DIFF_SIZE lines (default 5000)
	PreflightTimeout     time.Duration // PREFLIGHT_TIMEOUT (default 300s)
}

// PreflightConfig holds the ordered, optionally-empty quality-gate commands.
// A stage whose command string is empty is skipped entirely (spec §4.4).
type PreflightConfig struct {
	LintCommand      string // LINT_COMMAND
	TypecheckCommand string // TYPECHECK_COMMAND
	TestCommand      string // TEST_COMMAND
	SmokeCommand     string // SMOKE_COMMAND
	BuildCommand     string // BUILD_COMMAND — falls back to "npm run build" if unset.
}

// GitConfig holds committer identity and remote-auth configuration.
type GitConfig struct {
	AuthorName  string // GIT_AUTHOR_NAME
	AuthorEmail string // GIT_AUTHOR_EMAIL
	GitHubToken string // GITHUB_TOKEN
}

// DefaultBuildCommand is used when BUILD_COMMAND is unset.
const DefaultBuildCommand = "npm run build"

func (p PreflightConfig) buildCommand() string {
	if p.BuildCommand == "" {
		return DefaultBuildCommand
	}
	return p.BuildCommand
}

// BuildCommand returns the effective build command, applying the
// npm-run-build fallback described in spec §6.
func (c Config) BuildCommand() string {
	return c.Preflight.buildCommand()
}
