// Package main is the entrypoint for the maintenance job API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/marniemm/jobsvc/internal/api"
	"github.com/marniemm/jobsvc/internal/api/handler"
	mw "github.com/marniemm/jobsvc/internal/api/middleware"
	"github.com/marniemm/jobsvc/internal/api/response"
	"github.com/marniemm/jobsvc/internal/cache"
	"github.com/marniemm/jobsvc/internal/config"
	"github.com/marniemm/jobsvc/internal/files"
	"github.com/marniemm/jobsvc/internal/notify"
	"github.com/marniemm/jobsvc/internal/store"
	"github.com/marniemm/jobsvc/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := newLogger(os.Getenv("MMM_ENV"))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// newLogger picks a console handler for development and JSON elsewhere.
func newLogger(env string) *slog.Logger {
	if env == "development" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func run(logger *slog.Logger) error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "base_url", cfg.Server.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and document storage
	pgStore := store.NewPostgresStore(pool)

	docStore, err := files.NewDiskStore(cfg.Media.Dir)
	if err != nil {
		return fmt.Errorf("create media store: %w", err)
	}
	slog.Info("media store ready", "dir", cfg.Media.Dir)

	// 6. Email delivery
	var mailer notify.Mailer
	if cfg.Email.SkipSend {
		mailer = notify.NewLogMailer(logger)
		slog.Info("email delivery disabled, using log mailer")
	} else {
		mailer = notify.NewSMTPMailer(cfg.Email)
		slog.Info("smtp mailer ready", "host", cfg.Email.SMTPHost)
	}
	composer := notify.NewComposer(cfg.Server.BaseURL, cfg.Email.From)
	resolver := notify.NewResolver(pgStore, logger)

	// 7. Workflow service
	svc := workflow.NewService(pgStore, docStore, composer, mailer, resolver, redisCache, logger)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RequestsPerMinute)
	maxUpload := cfg.Media.MaxUploadBytes

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		CreateJobHandler: handler.NewCreateJobHandler(svc),
		ListJobsHandler:  handler.NewListJobsHandler(svc),
		GetJobHandler:    handler.NewGetJobHandler(svc),
		JobStatusHandler: handler.NewJobStatusHandler(svc),

		CompleteInspectionHandler:  handler.NewCompleteInspectionHandler(svc),
		UploadQuoteHandler:         handler.NewUploadQuoteHandler(svc, maxUpload),
		AcceptQuoteHandler:         handler.NewAcceptQuoteHandler(svc),
		RejectQuoteHandler:         handler.NewRejectQuoteHandler(svc),
		UploadDepositPOPHandler:    handler.NewUploadDepositPOPHandler(svc, maxUpload),
		CompleteOnsiteWorkHandler:  handler.NewCompleteOnsiteWorkHandler(svc),
		SubmitDocumentationHandler: handler.NewSubmitDocumentationHandler(svc, maxUpload),
		UploadFinalPOPHandler:      handler.NewUploadFinalPOPHandler(svc, maxUpload),

		DownloadDocumentHandler: handler.NewDownloadDocumentHandler(svc),

		CreateUserHandler:   handler.NewCreateUserHandler(pgStore),
		ListUsersHandler:    handler.NewListUsersHandler(pgStore),
		CreateAPIKeyHandler: handler.NewCreateAPIKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
