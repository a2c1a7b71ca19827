package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calvella/bucketsync/internal/classifier"
	"github.com/calvella/bucketsync/internal/config"
	"github.com/calvella/bucketsync/internal/handler"
	"github.com/calvella/bucketsync/internal/infra/cache"
	"github.com/calvella/bucketsync/internal/infra/investec"
	"github.com/calvella/bucketsync/internal/infra/llm"
	"github.com/calvella/bucketsync/internal/infra/observability"
	"github.com/calvella/bucketsync/internal/infra/resilience"
	"github.com/calvella/bucketsync/internal/infra/search"
	"github.com/calvella/bucketsync/internal/infra/store"
	"github.com/calvella/bucketsync/internal/port"
	"github.com/calvella/bucketsync/internal/scheduler"
	"github.com/calvella/bucketsync/internal/syncer"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = godotenv.Load()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("gemini", cfg.GeminiEnabled()),
		zap.Bool("ollama", cfg.OllamaEnabled()),
		zap.Bool("search", cfg.SearchEnabled()),
		zap.Strings("buckets", cfg.Buckets),
		zap.String("city", cfg.City),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "bucketsync")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	ctx := context.Background()

	// --- Bank client ---
	bank := investec.NewClient(cfg.InvestecAPIURL, cfg.InvestecAPIKey, cfg.InvestecClientID, cfg.InvestecClientSecret)

	// --- Optional classifier providers ---
	var searcher port.Searcher
	if cfg.SearchEnabled() {
		sc, err := search.NewGoogleClient(
			ctx,
			cfg.SearchAPIKey,
			cfg.SearchEngineID,
			resilience.NewCircuitBreaker("google-search"),
			cache.New[string](24*time.Hour),
			metrics,
			logger,
		)
		if err != nil {
			logger.Fatal("failed to init search provider", zap.Error(err))
		}
		searcher = sc
		logger.Info("search provider enabled")
	}

	var gemini port.BuiltinSearchChatProvider
	if cfg.GeminiEnabled() {
		gc, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, resilience.NewCircuitBreaker("gemini"), metrics)
		if err != nil {
			logger.Fatal("failed to init gemini provider", zap.Error(err))
		}
		gemini = gc
		logger.Info("gemini provider enabled", zap.String("model", cfg.GeminiModel))
	}

	var ollama port.ChatProvider
	if cfg.OllamaEnabled() {
		oc, err := llm.NewOllamaClient(cfg.OllamaHost, cfg.OllamaPort, cfg.OllamaModel, resilience.NewCircuitBreaker("ollama"), metrics)
		if err != nil {
			logger.Fatal("failed to init ollama provider", zap.Error(err))
		}
		ollama = oc
		logger.Info("ollama provider enabled", zap.String("model", cfg.OllamaModel))
	}

	// --- Pipeline ---
	clf := classifier.New(cfg.Buckets, cfg.City, gemini, ollama, searcher, metrics, logger)
	sync := syncer.New(bank, clf, metrics, logger)

	stores := port.StoreFactory(func(ctx context.Context) (port.TransactionStore, error) {
		return store.Open(ctx, cfg.DatabaseURL, logger)
	})

	// Startup run. The first store open is fatal so schema and connectivity
	// problems surface before the scheduler is armed.
	st, err := stores(ctx)
	if err != nil {
		logger.Fatal("failed to initialize persistence", zap.Error(err))
	}
	sync.Run(ctx, st)
	st.Close()

	// --- Scheduler ---
	sched, err := scheduler.New(sync, stores, logger)
	if err != nil {
		logger.Fatal("failed to create scheduler", zap.Error(err))
	}
	sched.Start()

	// --- Admin server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler.NewRouter(metrics, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("admin server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("admin server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	// Stop future ticks; an in-flight run completes before we exit.
	<-sched.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin server forced shutdown", zap.Error(err))
	}

	logger.Info("stopped")
}
