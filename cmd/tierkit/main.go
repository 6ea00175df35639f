// Tierkit - Tiered discount bundles for merchants.
// Copyright (c) 2025 pricevault
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pricevault/tierkit/internal/api"
	"github.com/pricevault/tierkit/internal/bus"
	"github.com/pricevault/tierkit/internal/cache"
	"github.com/pricevault/tierkit/internal/domain"
	"github.com/pricevault/tierkit/internal/engine"
	"github.com/pricevault/tierkit/internal/repository"
	"github.com/pricevault/tierkit/internal/stats"
	"github.com/pricevault/tierkit/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro edition via environment
	if os.Getenv("TIERKIT_EDITION") == "pro" {
		cfg = domain.ProConfig()
	}

	// Initialize structured logger
	initLogger(cfg.Logging)

	// Log startup
	slog.Info("starting tierkit",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"edition", cfg.Edition,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"audit", cfg.Audit,
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

	// Initialize Evaluator
	evaluator, err := engine.NewEvaluator()
	if err != nil {
		slog.Error("failed to initialize evaluator", "error", err)
		os.Exit(1)
	}
	slog.Info("evaluator initialized", "engine_version", engine.EngineVersion)

	// Initialize Stats Service
	statsSvc := stats.NewService(repo, cacheImpl)
	slog.Info("stats service initialized")

	// Initialize async Worker. Required in async audit mode; otherwise opt-in.
	var asyncWorker *worker.Worker
	if cfg.Audit == domain.AuditAsync || os.Getenv("TIERKIT_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl)

		shopIDs := parseShopList(os.Getenv("TIERKIT_SHOPS"))
		if len(shopIDs) == 0 {
			slog.Warn("async worker enabled but TIERKIT_SHOPS is empty; no shops will be processed")
		}

		workerCfg := worker.Config{
			ShopIDs:     shopIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "shop_count", len(shopIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, evaluator, statsSvc, Version, cfg.Audit)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("tierkit is ready",
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

	slog.Info("tierkit shutdown complete")
}

// initLogger configures the default slog logger from the logging config.
// TIERKIT_DEBUG=true overrides the configured level.
func initLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if os.Getenv("TIERKIT_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseShopList splits a comma-separated shop list from the environment.
func parseShopList(raw string) []string {
	if raw == "" {
		return nil
	}

	var shops []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			shops = append(shops, s)
		}
	}
	return shops
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               📦 TIERKIT                  ║")
	fmt.Println("  ║      Tiered Discount Bundle Engine        ║")
	fmt.Println("  ║        Buy more, pay less.                ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Edition:  %s\n", cfg.Edition)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /evaluate                - Evaluate a cart")
	fmt.Println("    GET    /evaluations/{id}        - Get evaluation by ID")
	fmt.Println("    GET    /discounts               - List discount configurations")
	fmt.Println("    POST   /discounts               - Save a discount configuration")
	fmt.Println("    GET    /discounts/{productId}   - Get a discount configuration")
	fmt.Println("    PUT    /discounts/{productId}   - Replace a discount configuration")
	fmt.Println("    DELETE /discounts/{productId}   - Disable a discount configuration")
	fmt.Println("    GET    /widgets                 - List widget settings")
	fmt.Println("    POST   /widgets                 - Save widget settings")
	fmt.Println("    GET    /widgets/{productId}     - Get widget settings")
	fmt.Println("    PUT    /widgets/{productId}     - Replace widget settings")
	fmt.Println("    DELETE /widgets/{productId}     - Disable widget settings")
	fmt.Println("    GET    /storefront/widget       - Storefront widget payload")
	fmt.Println("    GET    /stats                   - Evaluation stats")
	fmt.Println("    GET    /health                  - Health check")
	fmt.Println()
}
