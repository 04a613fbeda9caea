package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	nexus "github.com/3bi-io/nexus-core"
	"github.com/3bi-io/nexus-core/backend"
	"github.com/3bi-io/nexus-core/backend/gateway"
	"github.com/3bi-io/nexus-core/backend/inferapi"
	"github.com/3bi-io/nexus-core/backend/local"
	"github.com/3bi-io/nexus-core/capability"
	"github.com/3bi-io/nexus-core/collab"
	"github.com/3bi-io/nexus-core/config"
	"github.com/3bi-io/nexus-core/executor"
	"github.com/3bi-io/nexus-core/interaction"
	"github.com/3bi-io/nexus-core/orchestrator"
	"github.com/3bi-io/nexus-core/router"
	"github.com/3bi-io/nexus-core/server"
	"github.com/3bi-io/nexus-core/stats"
	"github.com/3bi-io/nexus-core/telemetry"
	"github.com/3bi-io/nexus-core/utils"
)

func main() {
	logger := utils.Must(zap.NewProduction())
	defer logger.Sync()
	sugar := logger.Sugar()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.LoadConfig(*configPath, sugar)
	if err != nil {
		sugar.Fatalw("Failed to load config", "error", err)
	}

	store := stats.NewStore()
	detector := capability.NewRuntimeDetector(
		cfg.LocalRuntime.Allowed, cfg.LocalRuntime.Url, 2*time.Second, sugar)
	selector := router.NewSelector(detector, store, sugar)

	gatewayClient := gateway.NewClient(
		cfg.Gateway.BaseUrl, cfg.Gateway.ApiKey,
		config.ParseTimeout(cfg.Gateway.Timeout, 60*time.Second), sugar)
	inferenceClient := inferapi.NewClient(
		cfg.Inference.BaseUrl, cfg.Inference.ApiKey,
		config.ParseTimeout(cfg.Inference.Timeout, 90*time.Second), sugar)

	// Pipelines are loaded by the embedding application; the registry
	// starts empty and the selector routes around an empty local backend
	// via the capability gate.
	pipelines := local.NewRegistry()

	invokers := map[nexus.Backend]backend.Invoker{
		nexus.BackendLocal:     pipelines,
		nexus.BackendPrimary:   gatewayClient,
		nexus.BackendSecondary: inferenceClient,
	}
	sink := telemetry.NewPrometheusSink("nexus", sugar)
	exec := executor.New(selector, store, invokers, sink, sugar)

	interactions, cleanup, err := newInteractionLog(cfg, sugar)
	if err != nil {
		sugar.Fatalw("Failed to create interaction log", "error", err)
	}
	defer cleanup()

	collaborators := collab.NewClient(
		cfg.Collaborators.BaseUrl, cfg.Collaborators.ApiKey,
		config.ParseTimeout(cfg.Collaborators.Timeout, 30*time.Second), sugar)

	orch := orchestrator.New(
		orchestrator.Config{
			DefaultModel:  cfg.Models.Default,
			AdvancedModel: cfg.Models.Advanced,
			SystemPrompt:  cfg.SystemPrompt,
		},
		orchestrator.Collaborators{
			Coordinator:  collaborators,
			Agents:       collaborators,
			Searcher:     collaborators,
			Memory:       collaborators,
			Behaviors:    collaborators,
			Telemetry:    sink,
			Interactions: interactions,
			Streamer:     gatewayClient,
		},
		sugar,
	)

	auth := server.NewAuthenticator(cfg.ApiKey, cfg.JwtSecret, sugar)
	api := server.New(orch, exec, store, auth, sink.Handler(), sugar)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	address := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: corsMiddleware.Handler(api.Routes()),
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownSignal
		sugar.Infow("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			sugar.Fatalw("Server forced to shutdown", "error", err)
		}
	}()

	sugar.Infow("Starting server", "address", address)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		sugar.Fatalw("Failed to start server", "error", err)
	}

	sugar.Infow("Server exited gracefully")
}

func newInteractionLog(cfg *config.Config, sugar *zap.SugaredLogger) (orchestrator.InteractionLog, func(), error) {
	if cfg.ValkeyEndpoint == "" {
		sugar.Infow("Using in-memory interaction log")
		return interaction.NewMemoryLog(), func() {}, nil
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.ValkeyEndpoint},
	})
	if err != nil {
		return nil, nil, err
	}
	sugar.Infow("Using Valkey interaction log", "endpoint", cfg.ValkeyEndpoint)
	return interaction.NewValkeyLog(client), client.Close, nil
}
