package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"festhub/internal/app"
	"festhub/internal/config"
	"festhub/internal/logger"
)

func main() {
	// Initialize structured logger
	slogger := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(slogger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	a, err := app.New(cfg, deps.DB, deps.NSQProducer, slogger)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	slog.Info("festhub push subsystem starting",
		"api", cfg.EnableAPI, "worker", cfg.EnableWorker)

	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
