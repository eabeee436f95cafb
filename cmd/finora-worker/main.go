package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finora/internal/backend"
	"finora/internal/cli"
	"finora/internal/identity"
	"finora/internal/log"
	"finora/internal/services"
	"finora/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting finora-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.RequireServiceRoleKey(); err != nil {
		logger.Error("Worker configuration invalid", "error", err)
		os.Exit(1)
	}

	result := cli.InitBackend(context.Background(), logger, cfg)

	// Privileged client: owners are checked before charging or exporting.
	accounts := identity.NewClient(identity.Config{
		URL:            cfg.StoreURL,
		APIKey:         cfg.StoreAnonKey,
		ServiceRoleKey: cfg.StoreServiceRoleKey,
		Logger:         logger.Logger,
	})

	processor := services.NewBillingProcessor(
		result.Repository,
		result.Publisher,
		cfg.BillingBatchSize,
		cfg.BillingRecordTransactions,
		logger.Logger,
	).WithAccounts(accounts)
	schedulerCfg := services.DefaultBillingSchedulerConfig()
	schedulerCfg.Interval = cfg.BillingInterval
	scheduler := services.NewBillingScheduler(processor, schedulerCfg, logger.Logger)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Billing scheduler stop error", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start billing scheduler", "error", err)
		os.Exit(1)
	}

	// Export runs only with both a broker and a spreadsheet.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	exporter, err := backend.NewFactory(logger.Logger).CreateExporter(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", "error", err)
		os.Exit(1)
	}

	switch {
	case result.AMQP == nil:
		logger.Info("Skipping ledger event export - AMQP not configured")
	case exporter == nil:
		logger.Info("Skipping ledger event export - no GOOGLE_SPREADSHEET_ID provided")
	default:
		exportWorker := worker.NewExportWorker(result.Repository, exporter, logger.Logger).WithAccounts(accounts)
		go func() {
			if err := result.AMQP.Consume(ctx, exportWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Ledger event consumption failed", "error", err)
			}
		}()
		logger.Info("Consuming ledger events for export", "queue", cfg.AMQPQueue)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped", "billing_runs", scheduler.Runs())
}
