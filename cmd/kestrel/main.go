// Kestrel - Identity verification decisions that deploy in 60 seconds.
// Copyright (c) 2025 opensource.identity
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-identity/kestrel/internal/api"
	"github.com/opensource-identity/kestrel/internal/baseline"
	"github.com/opensource-identity/kestrel/internal/bus"
	"github.com/opensource-identity/kestrel/internal/cache"
	"github.com/opensource-identity/kestrel/internal/domain"
	"github.com/opensource-identity/kestrel/internal/engine"
	"github.com/opensource-identity/kestrel/internal/ledger"
	"github.com/opensource-identity/kestrel/internal/repository"
	"github.com/opensource-identity/kestrel/internal/rules"
	"github.com/opensource-identity/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Alert Rule Engine
	ruleEngine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, ruleEngine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	// Initialize Decision Engine
	decisionEngine := engine.New(engine.Config{
		Repository: repo,
		Cache:      cacheImpl,
		Bus:        busImpl,
		Ledger:     ledger.New(repo),
		Rules:      ruleEngine,
		Baselines:  baseline.NewRepositoryStore(repo),
		Logger:     logger,
	})
	slog.Info("decision engine initialized")

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, decisionEngine)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("KESTREL_TENANTS"); envTenants != "" {
			// Could parse comma-separated list here
			tenantIDs = []string{envTenants}
		}

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, decisionEngine, repo, cacheImpl, busImpl, ruleEngine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// loadRulesFromDatabase loads alert rules from the database into the engine.
// All rules must be configured via POST /rules API - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListAlertRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 KESTREL                  ║")
	fmt.Println("  ║      Identity Risk Decision Engine        ║")
	fmt.Println("  ║      Every verification, accounted.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /evaluate                - Evaluate a verification attempt")
	fmt.Println("    GET  /decisions/{id}          - Get decision by verification ID")
	fmt.Println("    GET  /users/{id}/decisions    - List a user's decisions")
	fmt.Println("    GET  /alerts                  - List fraud alerts")
	fmt.Println("    GET  /audit/{user}/records    - List audit ledger records")
	fmt.Println("    GET  /audit/{user}/verify     - Verify audit chain integrity")
	fmt.Println("    GET  /policies                - List tenant policies")
	fmt.Println("    PUT  /policies/{industry}     - Override an industry policy")
	fmt.Println("    GET  /rules                   - List alert rules")
	fmt.Println("    POST /rules                   - Create an alert rule")
	fmt.Println("    POST /rules/reload            - Hot-reload rules from database")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println()
}
