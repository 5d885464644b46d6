package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

// Load assembles the process-wide Config from environment variables,
// optionally preloading a .env file from envDir first. Missing optional
// variables fall back to production-ready defaults; missing required
// variables produce a *ValidationError so the process can fail fast at
// startup (spec §7 — configuration errors never surface at job time).
func Load(envDir string) (*Config, error) {
	if envDir != "" {
		envPath := filepath.Join(envDir, ".env")
		_ = godotenv.Load(envPath) // missing .env is not fatal — env may already be set
	}

	cfg := defaults()
	override, err := fromEnv()
	if err != nil {
		return nil, err
	}

	// mergo overlays only the non-zero fields explicitly set from the
	// environment onto the defaults, leaving unset fields at their default.
	if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: merging environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() Config {
	return Config{
		Paths: PathsConfig{
			ReposBaseDir:     "./data/repos",
			WorktreesBaseDir: "./data/worktrees",
			PatchesDir:       "./data/patches",
			JobsDir:          "./data/jobs",
			PreviewsDir:      "./data/previews",
			PublishedDir:     "./data/published",
		},
		Engine: EngineConfig{
			MaxIterations:        6,
			ExecutorPollInterval: 5 * time.Second,
			MaxContextSize:       50000,
			MaxDiffSize:          5000,
			PreflightTimeout:     300 * time.Second,
		},
		HTTPPort: "8080",
	}
}

func fromEnv() (Config, error) {
	var cfg Config

	cfg.Database.Path = os.Getenv("DATABASE_PATH")

	cfg.Paths.ReposBaseDir = os.Getenv("REPOS_BASE_DIR")
	cfg.Paths.WorktreesBaseDir = os.Getenv("WORKTREES_BASE_DIR")
	cfg.Paths.PatchesDir = os.Getenv("PATCHES_DIR")
	cfg.Paths.JobsDir = os.Getenv("JOBS_DIR")
	cfg.Paths.PreviewsDir = os.Getenv("PREVIEWS_DIR")
	cfg.Paths.PublishedDir = os.Getenv("PUBLISHED_DIR")

	if v := os.Getenv("MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, NewValidationError("MAX_ITERATIONS", err)
		}
		cfg.Engine.MaxIterations = n
	}
	if v := os.Getenv("EXECUTOR_POLL_INTERVAL"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return cfg, NewValidationError("EXECUTOR_POLL_INTERVAL", err)
		}
		cfg.Engine.ExecutorPollInterval = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("MAX_CONTEXT_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, NewValidationError("MAX_CONTEXT_SIZE", err)
		}
		cfg.Engine.MaxContextSize = n
	}
	if v := os.Getenv("MAX_DIFF_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, NewValidationError("MAX_DIFF_SIZE", err)
		}
		cfg.Engine.MaxDiffSize = n
	}
	if v := os.Getenv("PREFLIGHT_TIMEOUT"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return cfg, NewValidationError("PREFLIGHT_TIMEOUT", err)
		}
		cfg.Engine.PreflightTimeout = time.Duration(ms) * time.Millisecond
	}

	cfg.Preflight.LintCommand = os.Getenv("LINT_COMMAND")
	cfg.Preflight.TypecheckCommand = os.Getenv("TYPECHECK_COMMAND")
	cfg.Preflight.TestCommand = os.Getenv("TEST_COMMAND")
	cfg.Preflight.SmokeCommand = os.Getenv("SMOKE_COMMAND")
	cfg.Preflight.BuildCommand = os.Getenv("BUILD_COMMAND")

	cfg.Git.AuthorName = os.Getenv("GIT_AUTHOR_NAME")
	cfg.Git.AuthorEmail = os.Getenv("GIT_AUTHOR_EMAIL")
	cfg.Git.GitHubToken = os.Getenv("GITHUB_TOKEN")

	if v := os.Getenv("HTTP_PORT"); v != "" {
		cfg.HTTPPort = v
	}

	return cfg, nil
}

// Validate checks invariants that cross multiple fields. Per-field parse
// errors are already caught in fromEnv; this catches required-but-missing
// values and cross-field nonsense.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return NewValidationError("DATABASE_PATH", ErrMissingRequiredField)
	}
	if c.Engine.MaxIterations < 1 {
		return NewValidationError("MAX_ITERATIONS", fmt.Errorf("must be at least 1"))
	}
	if c.Engine.MaxContextSize < 1 {
		return NewValidationError("MAX_CONTEXT_SIZE", fmt.Errorf("must be positive"))
	}
	if c.Engine.MaxDiffSize < 1 {
		return NewValidationError("MAX_DIFF_SIZE", fmt.Errorf("must be positive"))
	}
	if c.Git.AuthorName == "" {
		return NewValidationError("GIT_AUTHOR_NAME", ErrMissingRequiredField)
	}
	if c.Git.AuthorEmail == "" {
		return NewValidationError("GIT_AUTHOR_EMAIL", ErrMissingRequiredField)
	}
	return nil
}
