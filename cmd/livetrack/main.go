package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/internal/server"
	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/config"
	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := server.NewApp(logger, ctx, cfg)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
