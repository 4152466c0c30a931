package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sim-daas/Midnight-Blues/internal/app"
	"github.com/sim-daas/Midnight-Blues/internal/config"
	"github.com/sim-daas/Midnight-Blues/internal/lib/logger"
	"github.com/sim-daas/Midnight-Blues/internal/metrics"
)

func main() {
	cfg := config.MustLoad()

	log := logger.Setup(cfg.Env)
	log.Info("starting worker", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	metrics.RegisterWorker()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := app.NewWorker(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := app.NewMetricsServer(cfg.Prometheus.Addr(), log)

	err = app.ServeGroup(ctx,
		[]func() error{
			func() error { return worker.Run(ctx) },
			metricsServer.Run,
		},
		func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.GracefulShutdownTimeout)
			defer cancel()

			if err := metricsServer.Close(); err != nil {
				log.Error("failed to close metrics server", slog.Any("error", err))
			}
			return worker.Shutdown(shutdownCtx)
		},
	)
	if err != nil {
		log.Error("worker stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}
