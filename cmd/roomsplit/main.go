package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"roomsplit/internal/auth"
	"roomsplit/internal/backend"
	"roomsplit/internal/cache"
	"roomsplit/internal/cli"
	apphttp "roomsplit/internal/http"
	"roomsplit/internal/live"
	"roomsplit/internal/log"
	"roomsplit/internal/services"
	"roomsplit/internal/storage"
)

const sessionCleanupInterval = time.Hour

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	startCtx := context.Background()
	logger.InfoContext(startCtx, "Starting roomsplit server", "port", cfg.Port, "media_backend", cfg.MediaBackend)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	integrations, err := backend.NewFactory(logger.Logger).Create(startCtx, backend.FromAppConfig(cfg))
	if err != nil {
		logger.ErrorContext(startCtx, "Failed to initialize integrations", log.FieldError, err)
		repo.Close()
		os.Exit(1)
	}

	hub := live.NewHub(repo)
	dashboards := services.NewDashboardService(repo, repo, cfg.DashboardCacheSize, cfg.DashboardCacheTTL)
	hub.AddListener(dashboards.Invalidate)

	caches := cache.NewManager()
	if c := dashboards.Cache(); c != nil {
		caches.Register("dashboard", c)
	}
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		SecureCookie:   cfg.SecureCookie,
		RateLimit:      cfg.RateLimit,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, apphttp.Deps{
		Identity: auth.NewService(repo, cfg.SessionTTL),
		Expenses: services.NewExpenseService(services.ExpenseServiceDeps{
			Store:       repo,
			Profiles:    repo,
			Media:       integrations.Media,
			Categorizer: integrations.Categorizer,
			Publisher:   integrations.EventPublisher(),
			Notifier:    hub,
		}),
		Profiles:   services.NewProfileService(repo, integrations.Media, hub),
		Dashboards: dashboards,
		Snapshots:  hub,
		Logger:     logger,
		Ready:      repo.Ping,
		MediaRoot:  integrations.LocalMediaRoot,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := integrations.Cleanup(); err != nil {
			logger.WarnContext(ctx, "Failed to release integrations", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.WarnContext(ctx, "Failed to close database", log.FieldError, err)
		}
	})

	go cleanSessions(ctx, logger, repo)

	logger.InfoContext(ctx, "Listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorContext(ctx, "Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.InfoContext(context.Background(), "Server stopped gracefully")
}

// cleanSessions purges expired sessions until ctx is done.
func cleanSessions(ctx context.Context, logger *log.Logger, repo *storage.SQLiteRepository) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpiredSessions(ctx)
			if err != nil {
				logger.WarnContext(ctx, "Session cleanup failed", log.FieldError, err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "Expired sessions removed", "count", n)
			}
		}
	}
}
