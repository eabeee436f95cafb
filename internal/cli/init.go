// Package cli provides common CLI initialization utilities shared by
// cmd/finora and cmd/finora-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finora/internal/backend"
	"finora/internal/config"
	"finora/internal/log"
)

// SetupLogger initializes structured logging at the given level and
// component. The logger becomes the process default.
func SetupLogger(level, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured data store and optional broker.
// Exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "type", backendCfg.Type)
		os.Exit(1)
	}
	return result
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return shutdownOn(sigChan, logger, timeout, cleanup)
}

func shutdownOn(sigChan <-chan os.Signal, logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
