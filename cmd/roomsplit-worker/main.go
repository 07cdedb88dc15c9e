package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"roomsplit/internal/backend"
	"roomsplit/internal/cli"
	"roomsplit/internal/log"
	"roomsplit/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	startCtx := context.Background()
	logger.InfoContext(startCtx, "Starting roomsplit-worker", "sync_interval", cfg.SyncInterval)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	integrations, err := backend.NewFactory(logger.Logger).Create(startCtx, backend.FromAppConfig(cfg))
	if err != nil {
		logger.ErrorContext(startCtx, "Failed to initialize integrations", log.FieldError, err)
		repo.Close()
		os.Exit(1)
	}
	defer integrations.Cleanup()

	if integrations.Exporter == nil {
		logger.InfoContext(startCtx, "Ledger export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	syncWorker := worker.NewSyncWorker(repo, integrations.Exporter, integrations.Media)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	g, gctx := errgroup.WithContext(ctx)

	if integrations.AMQP != nil {
		g.Go(func() error {
			return integrations.AMQP.ConsumeWithReconnect(gctx, syncWorker.Handlers())
		})
	} else {
		logger.InfoContext(startCtx, "Skipping AMQP message consumption - no AMQP_URL provided")
	}

	g.Go(func() error {
		return syncWorker.RunPeriodic(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorContext(context.Background(), "Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.InfoContext(context.Background(), "Worker stopped gracefully")
}
