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
	log.Info("starting lace-api", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	metrics.RegisterAPI()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := app.NewAPI(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize api", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := app.NewMetricsServer(cfg.Prometheus.Addr(), log)

	err = app.ServeGroup(ctx,
		[]func() error{api.Run, metricsServer.Run},
		func() error {
			log.Info("stopping lace-api...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.GracefulShutdownTimeout)
			defer cancel()

			if err := metricsServer.Close(); err != nil {
				log.Error("failed to close metrics server", slog.Any("error", err))
			}
			return api.Shutdown(shutdownCtx)
		},
	)
	if err != nil {
		log.Error("lace-api stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("lace-api stopped")
}
