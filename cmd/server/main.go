package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/fairway/internal/api"
	"github.com/mcoot/fairway/internal/config"
	"github.com/mcoot/fairway/internal/factory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := factory.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	logger.Info("application configured",
		slog.String("storage", cfg.Storage),
		slog.Bool("archive", cfg.Archive.Enabled()),
		slog.Bool("allow_zero_scores", cfg.Rules.AllowZeroScores),
		slog.Int("award_points", cfg.Points.AwardAmount),
	)

	if err := app.StartWorkers(ctx); err != nil {
		logger.Error("failed to start workers", slog.String("error", err.Error()))
		return
	}

	server := api.NewServer(app.Router(), cfg.Server, logger)
	server.OnShutdown(app.HubManager.CloseAll)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return
		}
	}

	logger.Info("server stopped")
}
