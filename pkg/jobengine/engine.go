// Package jobengine drives a Job from queued through a terminal state:
// clone/open worktree, build context, call the LLM, validate and apply
// its diff, run preflight, run the supplementary agent pipeline, build
// a preview, and publish a PR — spec §4.1. One Engine processes at most
// one job at a time; run several Engine instances (one per process, or
// several goroutines sharing a Store) for throughput.
package jobengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vibe-engine/vibe-engine/pkg/artifact"
	"github.com/vibe-engine/vibe-engine/pkg/config"
	"github.com/vibe-engine/vibe-engine/pkg/contextbuilder"
	"github.com/vibe-engine/vibe-engine/pkg/diffvalidator"
	"github.com/vibe-engine/vibe-engine/pkg/jobstore"
	"github.com/vibe-engine/vibe-engine/pkg/llmrouter"
	"github.com/vibe-engine/vibe-engine/pkg/preflight"
	"github.com/vibe-engine/vibe-engine/pkg/preview"
	"github.com/vibe-engine/vibe-engine/pkg/prpublisher"
)

// errNothingClaimable is returned internally by processOnce when there is
// no queued job this engine may run right now, whether because the
// queue is empty or because the only claimable job's tenant is over
// budget. Either way the caller should back off and poll again.
var errNothingClaimable = errors.New("jobengine: nothing claimable")

// Store is the subset of jobstore.Store the engine depends on.
type Store interface {
	ClaimNextQueuedJob(ctx context.Context, workerID string) (*jobstore.Job, error)
	GetProject(ctx context.Context, tenantID, id string) (*jobstore.Project, error)
	TransitionState(ctx context.Context, id string, from, to jobstore.ExecutionState) error
	RecordIteration(ctx context.Context, id, diff string, filesChanged int) (int, error)
	AccrueUsage(ctx context.Context, id string, promptTokens, completionTokens int64) error
	RecordPreflightDuration(ctx context.Context, id string, seconds float64) error
	Complete(ctx context.Context, id, prLink, previewURL string) error
	Fail(ctx context.Context, id, errMsg string) error
	AppendEvent(ctx context.Context, jobID, message, severity string, eventTime int64) (*jobstore.Event, error)
	MarkPublished(ctx context.Context, tenantID, id, previewURL, jobID string) error
	RecoverOrphans(ctx context.Context, stuckBefore []string) (int64, error)
}

// Admitter gates job admission against a tenant's configured budget.
// Satisfied by *billing.Meter.
type Admitter interface {
	CanAdmit(ctx context.Context, tenantID string) (bool, error)
}

// Engine owns every collaborator one job iteration needs and polls Store
// for work.
type Engine struct {
	id       string
	store    Store
	fs       *artifact.Filesystem
	admitter Admitter

	contextBuilder  *contextbuilder.Builder
	router          *llmrouter.Router
	validator       *diffvalidator.Validator
	preflightRunner *preflight.Runner
	previewBuilder  *preview.Builder
	publisher       *prpublisher.Publisher

	gitCfg       config.GitConfig
	engineCfg    config.EngineConfig
	buildCommand string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds an Engine. id identifies this engine instance as a
// claimed_by value and as the key startup orphan recovery sweeps for.
func New(
	id string,
	store Store,
	fs *artifact.Filesystem,
	admitter Admitter,
	contextBuilder *contextbuilder.Builder,
	router *llmrouter.Router,
	validator *diffvalidator.Validator,
	preflightRunner *preflight.Runner,
	previewBuilder *preview.Builder,
	publisher *prpublisher.Publisher,
	gitCfg config.GitConfig,
	engineCfg config.EngineConfig,
	buildCommand string,
) *Engine {
	return &Engine{
		id:              id,
		store:           store,
		fs:              fs,
		admitter:        admitter,
		contextBuilder:  contextBuilder,
		router:          router,
		validator:       validator,
		preflightRunner: preflightRunner,
		previewBuilder:  previewBuilder,
		publisher:       publisher,
		gitCfg:          gitCfg,
		engineCfg:       engineCfg,
		buildCommand:    buildCommand,
		stopCh:          make(chan struct{}),
	}
}

// Start recovers any job orphaned by a previous crash of this same
// engine instance, then begins the poll loop in a goroutine.
func (e *Engine) Start(ctx context.Context) {
	if n, err := e.store.RecoverOrphans(ctx, []string{e.id}); err != nil {
		slog.Error("jobengine: startup orphan recovery failed", "engine_id", e.id, "error", err)
	} else if n > 0 {
		slog.Warn("jobengine: recovered orphaned jobs from previous run", "engine_id", e.id, "count", n)
	}

	e.wg.Add(1)
	go e.run(ctx)
}

// Stop signals the poll loop to stop and waits for it to exit. A job
// already running is run to completion first; the stop signal is only
// checked between jobs.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	log := slog.With("engine_id", e.id)
	log.Info("jobengine: started")

	for {
		select {
		case <-e.stopCh:
			log.Info("jobengine: stopping")
			return
		case <-ctx.Done():
			log.Info("jobengine: context cancelled")
			return
		default:
			if err := e.processOnce(ctx); err != nil {
				if errors.Is(err, errNothingClaimable) {
					e.sleep(e.engineCfg.ExecutorPollInterval)
					continue
				}
				log.Error("jobengine: error processing job", "error", err)
				e.sleep(time.Second)
			}
		}
	}
}

func (e *Engine) sleep(d time.Duration) {
	select {
	case <-e.stopCh:
	case <-time.After(d):
	}
}

// processOnce claims one job and, if its tenant is within budget, runs
// it to completion. A job belonging to an over-budget tenant is
// released back to queued so other jobs can be tried; the engine will
// see it again on a later poll once the tenant's spend state changes.
func (e *Engine) processOnce(ctx context.Context) error {
	job, err := e.store.ClaimNextQueuedJob(ctx, e.id)
	if errors.Is(err, jobstore.ErrNotFound) {
		return errNothingClaimable
	}
	if err != nil {
		return fmt.Errorf("jobengine: claiming job: %w", err)
	}

	ok, err := e.admitter.CanAdmit(ctx, job.TenantID)
	if err != nil {
		return fmt.Errorf("jobengine: checking budget admission for job %s: %w", job.ID, err)
	}
	if !ok {
		if relErr := e.store.TransitionState(ctx, job.ID, jobstore.StateCloning, jobstore.StateQueued); relErr != nil {
			return fmt.Errorf("jobengine: releasing over-budget job %s: %w", job.ID, relErr)
		}
		slog.Warn("jobengine: tenant over budget, releasing job to queue", "job_id", job.ID, "tenant_id", job.TenantID)
		return errNothingClaimable
	}

	e.runJob(ctx, job)
	return nil
}

// fail marks a job failed, logging the persistence error (if any)
// instead of returning it: a failure to record a failure must never
// crash the poll loop.
func (e *Engine) fail(ctx context.Context, job *jobstore.Job, reason string) {
	e.event(ctx, job.ID, reason, jobstore.SeverityError)
	if err := e.store.Fail(ctx, job.ID, reason); err != nil {
		slog.Error("jobengine: failed to persist job failure", "job_id", job.ID, "error", err)
	}
	if err := e.fs.RemoveWorktree(job.ID); err != nil {
		slog.Warn("jobengine: cleaning up worktree after failure", "job_id", job.ID, "error", err)
	}
}

func (e *Engine) event(ctx context.Context, jobID, message, severity string) {
	if _, err := e.store.AppendEvent(ctx, jobID, message, severity, time.Now().UnixMilli()); err != nil {
		slog.Warn("jobengine: appending event failed", "job_id", jobID, "error", err)
	}
}

var _ Store = (*jobstore.Store)(nil)
