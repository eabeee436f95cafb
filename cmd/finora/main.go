package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finora/internal/cache"
	"finora/internal/cli"
	"finora/internal/core"
	apphttp "finora/internal/http"
	"finora/internal/identity"
	"finora/internal/log"
	"finora/internal/middleware/ratelimit"
	"finora/internal/services"
)

const (
	categoryCacheSize = 256
	categoryCacheTTL  = 10 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	// LOG_LEVEL is read before the rest of the config so validation
	// failures are logged at the requested level.
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	result := cli.InitBackend(context.Background(), logger, cfg)

	categoryCache := cache.NewLRUCache[[]core.Category](categoryCacheSize, categoryCacheTTL)
	caches := cache.NewManager(logger.Logger)
	caches.Register("categories", categoryCache)
	caches.StartCleanup(categoryCacheTTL)

	catalog := services.NewCategoryCatalog(result.Repository, categoryCache)
	srv := apphttp.NewServer(apphttp.Options{
		Addr:   ":" + cfg.Port,
		AppURL: cfg.AppURL,
		Identity: identity.Config{
			URL:    cfg.StoreURL,
			APIKey: cfg.StoreAnonKey,
		},
		SecureCookies: cfg.SessionCookieSecure,
		Repository:    result.Repository,
		Ledger:        services.NewLedgerService(result.Repository, result.Publisher, logger.Logger),
		Dashboard:     services.NewDashboardService(result.Repository, catalog),
		Categories:    catalog,
		RateLimit:     ratelimit.DefaultConfig(),
		Logger:        logger,
	})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting finora server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events_enabled", result.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
