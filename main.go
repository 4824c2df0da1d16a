package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fieldline/assistant/internal/adapter/llm"
	"github.com/fieldline/assistant/internal/config"
	"github.com/fieldline/assistant/internal/event"
	"github.com/fieldline/assistant/internal/planner"
	"github.com/fieldline/assistant/internal/planstore"
	"github.com/fieldline/assistant/internal/policy"
	store "github.com/fieldline/assistant/internal/repository"
	"github.com/fieldline/assistant/internal/seed"
	"github.com/fieldline/assistant/internal/service"
	"github.com/fieldline/assistant/internal/tools"
	transport "github.com/fieldline/assistant/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()
	log := logger.Sugar()

	log.Infow("starting assistant",
		"http_port", cfg.HTTPPort,
		"database", cfg.DatabaseURL,
		"llm_base_url", cfg.LLMBaseURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize planner components
	registry := planner.NewRegistry(policyEngine)
	tools.RegisterBuiltins(registry)

	matcher := planner.NewMatcher()
	for _, pattern := range tools.DefaultPatterns() {
		matcher.Register(pattern)
	}

	executor := planner.NewExecutor(registry, cfg.StepTimeout, log)
	plans := planstore.New(db, cfg.PlanTTL, log)

	// Initialize LLM client
	llmClient := llm.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)

	// Initialize event bus
	bus := event.NewBus(log)

	// Initialize service
	svc := service.New(db, llmClient, registry, matcher, executor, plans, bus, cfg, log)

	if cfg.SeedDemo {
		if err := seed.Demo(ctx, db); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
		log.Infow("seeded demo data")
	}

	server := transport.NewServer(svc, db, bus)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Infow("assistant started", "port", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down assistant")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("graceful shutdown failed", "error", err)
	}

	log.Infow("assistant stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
