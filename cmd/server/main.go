package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/datadesk/datadesk/internal/config"
	"github.com/datadesk/datadesk/internal/logging"
	"github.com/datadesk/datadesk/internal/pipeline"
	"github.com/datadesk/datadesk/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"session_ttl", cfg.Session.TTL,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// The dashboard page inlines this stylesheet, so a missing asset is a
	// deployment error worth failing on.
	stylesheet, err := os.ReadFile(cfg.Assets.StylesheetPath)
	if err != nil {
		slog.Error("failed to read stylesheet", "path", cfg.Assets.StylesheetPath, "error", err)
		os.Exit(1)
	}

	service := pipeline.NewService(cfg)

	// Expire idle sessions in the background
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.Registry().StartCleanup(jobCtx, cfg.Session.CleanupInterval)

	server := web.NewServer(cfg, service, string(stylesheet))

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight file ingestions to finish (with timeout)
		if active := service.ActiveIngests(); active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
			if err := service.WaitForIngest(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
