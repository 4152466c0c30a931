package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sim-daas/Midnight-Blues/internal/config"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/kafka/dlq"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/kafka/purchase"
	chrep "github.com/sim-daas/Midnight-Blues/internal/infrastructure/repository/clickhouse"
	"github.com/sim-daas/Midnight-Blues/internal/service"
)

type PurchaseConsumer interface {
	Consume(ctx context.Context) error
	Close() error
}

type closer interface {
	Close() error
}

type flusher interface {
	Shutdown()
}

// Worker drains the purchase event topic into the ClickHouse history table.
type Worker struct {
	log         *slog.Logger
	consumer    PurchaseConsumer
	dlqProducer closer
	repository  closer
	service     flusher
}

func NewWorker(ctx context.Context, cfg config.Config, log *slog.Logger) (*Worker, error) {
	conn, err := chrep.Connect(ctx, cfg.PurchaseClickHouse, log)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse: %w", err)
	}

	historyRepo := chrep.NewHistoryRepository(conn, log)
	if err := historyRepo.EnsureSchema(ctx); err != nil {
		_ = historyRepo.Close()
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}

	dlqProducer, err := dlq.NewDLQProducer(cfg.Kafka, log)
	if err != nil {
		_ = historyRepo.Close()
		return nil, fmt.Errorf("create dlq producer: %w", err)
	}

	historyServ := service.NewHistoryService(historyRepo, dlqProducer, cfg.ServiceConfig, log)

	consumer, err := purchase.NewPurchaseConsumer(cfg.Kafka, log, historyServ)
	if err != nil {
		historyServ.Shutdown()
		_ = dlqProducer.Close()
		_ = historyRepo.Close()
		return nil, fmt.Errorf("create purchase consumer: %w", err)
	}

	return &Worker{
		log:         log.With(slog.String("component", "worker")),
		consumer:    consumer,
		dlqProducer: dlqProducer,
		repository:  historyRepo,
		service:     historyServ,
	}, nil
}

// Run blocks until ctx is cancelled or the consumer group fails.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started, consuming messages...")
	return w.consumer.Consume(ctx)
}

// Shutdown stops consumption, flushes the pending batch and then releases the
// repository and the DLQ producer, in that order.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.log.Info("shutting down worker...")

	if err := w.consumer.Close(); err != nil {
		w.log.Error("failed to close message consumer", slog.Any("error", err))
	}

	done := make(chan struct{})
	go func() {
		w.service.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.log.Warn("history flush did not finish before shutdown deadline")
	}

	if err := w.repository.Close(); err != nil {
		w.log.Error("failed to close repository", slog.Any("error", err))
	}
	if err := w.dlqProducer.Close(); err != nil {
		w.log.Error("failed to close dlq producer", slog.Any("error", err))
	}

	w.log.Info("worker stopped")
	return ctx.Err()
}
