// vibe-engine runs the autonomous code-modification pipeline: the HTTP
// API, the job engine poll loop, and every collaborator between them.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vibe-engine/vibe-engine/pkg/api"
	"github.com/vibe-engine/vibe-engine/pkg/artifact"
	"github.com/vibe-engine/vibe-engine/pkg/billing"
	"github.com/vibe-engine/vibe-engine/pkg/config"
	"github.com/vibe-engine/vibe-engine/pkg/contextbuilder"
	"github.com/vibe-engine/vibe-engine/pkg/diffvalidator"
	"github.com/vibe-engine/vibe-engine/pkg/forgeclient"
	"github.com/vibe-engine/vibe-engine/pkg/jobengine"
	"github.com/vibe-engine/vibe-engine/pkg/jobstore"
	"github.com/vibe-engine/vibe-engine/pkg/llmrouter"
	"github.com/vibe-engine/vibe-engine/pkg/logfanout"
	"github.com/vibe-engine/vibe-engine/pkg/preflight"
	"github.com/vibe-engine/vibe-engine/pkg/preview"
	"github.com/vibe-engine/vibe-engine/pkg/prpublisher"
	"github.com/vibe-engine/vibe-engine/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	slog.Info("starting", "version", version.Full())

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs, err := artifact.New(cfg.Paths)
	if err != nil {
		log.Fatalf("initializing artifact filesystem: %v", err)
	}

	store, err := jobstore.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to job store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("closing job store", "error", err)
		}
	}()
	slog.Info("connected to job store")

	meter := billing.New(store)
	fanout := logfanout.New(store, store)

	router := llmrouter.New()
	router.Register(config.ModelClaude, llmrouter.UnconfiguredTransport{Model: string(config.ModelClaude)})
	router.Register(config.ModelGPT, llmrouter.UnconfiguredTransport{Model: string(config.ModelGPT)})

	builder := contextbuilder.New(cfg.Engine.MaxContextSize)
	validator := diffvalidator.New(cfg.Engine.MaxDiffSize)
	preflightRunner := preflight.New(cfg.Preflight, cfg.Engine.PreflightTimeout)
	previewBuilder := preview.New(cfg.BuildCommand(), cfg.Paths.PreviewsDir)

	var forge prpublisher.ForgeClient
	if cfg.Git.GitHubToken != "" {
		forge = forgeclient.NewGitHubClient(cfg.Git.GitHubToken)
	}
	publisher := prpublisher.New(forge) // nil forge is fine: no-remote projects never call it

	engineID := getEnv("ENGINE_ID", uuid.NewString())
	engine := jobengine.New(
		engineID, store, fs, meter, builder, router, validator,
		preflightRunner, previewBuilder, publisher, cfg.Git, cfg.Engine, cfg.BuildCommand(),
	)
	engine.Start(ctx)
	defer engine.Stop()
	slog.Info("job engine started", "engine_id", engineID)

	server := api.NewServer(store, meter, fanout)
	addr := ":" + cfg.HTTPPort
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := server.Start(addr); err != nil {
			slog.Error("http server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutting down http server", "error", err)
	}
}
