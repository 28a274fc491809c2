package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recruitflow/unipile-sync/internal/api"
	"github.com/recruitflow/unipile-sync/internal/config"
	"github.com/recruitflow/unipile-sync/internal/dispatch"
	"github.com/recruitflow/unipile-sync/internal/orchestrator"
	"github.com/recruitflow/unipile-sync/internal/store"
	"github.com/recruitflow/unipile-sync/internal/unipile"
	"github.com/recruitflow/unipile-sync/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	provider := unipile.NewClient(unipile.Config{
		BaseURL:      cfg.UnipileBaseURL,
		APIKey:       cfg.UnipileAPIKey,
		Timeout:      cfg.ProviderTimeout,
		RetryMax:     cfg.ProviderRetryMax,
		RetryWaitMin: cfg.ProviderRetryWaitMin,
		RetryWaitMax: cfg.ProviderRetryWaitMax,
	}, logger)

	scheduler := worker.NewRetryScheduler(redisStore.Client(), cfg.RetryBaseDelay, logger)
	handlers := dispatch.DefaultHandlers(pgStore, pgStore, logger)
	dispatcher := dispatch.NewDispatcher(pgStore, scheduler, handlers, cfg.MaxEventAttempts, logger)

	pool := worker.NewPool(cfg.NumWorkers, dispatcher, logger)
	pool.Start(ctx)

	reprocessor := worker.NewReprocessor(pgStore, redisStore.Client(), pool, cfg.MaxEventAttempts, logger)
	reprocessorDone := make(chan struct{})
	go func() {
		reprocessor.Start(ctx)
		close(reprocessorDone)
	}()

	orch := orchestrator.New(pgStore, pgStore, provider, redisStore, logger)

	router := api.NewRouter(api.Deps{
		Webhooks: api.NewWebhookHandler(pgStore, pool, logger),
		Jobs:     api.NewJobHandler(pgStore, orch, provider),
		Accounts: api.NewAccountHandler(provider, pgStore),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// The reprocessor submits into the pool, so it must be fully stopped
	// before the pool's channel closes.
	cancel()
	<-reprocessorDone
	pool.Stop()

	logger.Info("server stopped")
}
