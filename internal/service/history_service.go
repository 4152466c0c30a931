package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/sim-daas/Midnight-Blues/internal/config"
	"github.com/sim-daas/Midnight-Blues/internal/domain"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/repository/reperrors"
	"github.com/sim-daas/Midnight-Blues/internal/metrics"
	"github.com/sim-daas/Midnight-Blues/internal/service/serverrors"
)

const defaultFlushInterval = 2 * time.Second

type HistoryRepository interface {
	SaveEventsAndReturnFailedIDs(ctx context.Context, events []domain.PurchaseEvent) ([]string, error)
}

type DLQProducer interface {
	Send(ctx context.Context, message []byte, err error) error
}

// HistoryService collects purchase events from the bus into batches and stores
// them in the history repository. Batches go out when full or on every flush
// tick, through a bounded pool of writers.
type HistoryService struct {
	retryConf   config.RetrySaveBatchConfig
	repo        HistoryRepository
	dlqProducer DLQProducer
	log         *slog.Logger

	mu        sync.Mutex
	batch     []domain.PurchaseEvent
	batchSize int

	flushTicker *time.Ticker
	stop        chan struct{}
	flushDone   chan struct{}
	stopOnce    sync.Once
	workerPool  chan struct{}
	wg          sync.WaitGroup
}

func NewHistoryService(repo HistoryRepository, dlq DLQProducer, cfg config.ServiceConfig, log *slog.Logger) *HistoryService {
	batchSize := max(cfg.BatchSize, 1)
	workers := max(cfg.WorkerCount, 1)
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}

	s := &HistoryService{
		retryConf:   cfg.RetrySaveBatchConfig,
		repo:        repo,
		dlqProducer: dlq,
		log:         log.With(slog.String("component", "history_service")),
		batch:       make([]domain.PurchaseEvent, 0, batchSize),
		batchSize:   batchSize,
		flushTicker: time.NewTicker(interval),
		stop:        make(chan struct{}),
		flushDone:   make(chan struct{}),
		workerPool:  make(chan struct{}, workers),
	}

	go s.autoFlush()
	return s
}

// ProcessMessage decodes one bus message and queues it. Messages that cannot
// be decoded or are incomplete go straight to the DLQ.
func (s *HistoryService) ProcessMessage(ctx context.Context, message []byte) {
	metrics.ProcessedMessages.Inc()
	start := time.Now()
	defer func() {
		metrics.MessageProcessingTime.Observe(time.Since(start).Seconds())
	}()

	var event domain.PurchaseEvent
	if err := json.Unmarshal(message, &event); err != nil {
		s.log.Error("failed to unmarshal message", slog.Any("error", err))
		s.sendToDLQ(ctx, message, fmt.Errorf("%w: %v", serverrors.ErrUnmarshalMessage, err))
		return
	}
	if err := validateEvent(event); err != nil {
		s.log.Warn("dropping invalid purchase event",
			slog.String("purchase_id", event.PurchaseID),
			slog.Any("error", err),
		)
		s.sendToDLQ(ctx, message, err)
		return
	}

	s.addToBatch(ctx, event)
}

// Shutdown stops the flush loop, flushes what is left and waits for in-flight
// batches. The loop must be gone before wg.Wait so no flush starts after it.
func (s *HistoryService) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.flushDone

	s.mu.Lock()
	s.flushTicker.Stop()
	batch := s.takeBatchLocked()
	s.mu.Unlock()

	if len(batch) > 0 {
		s.flushBatch(context.Background(), batch)
	}

	s.wg.Wait()
	s.log.Info("history service stopped")
}

func (s *HistoryService) flushBatch(ctx context.Context, batch []domain.PurchaseEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// blocks while every writer is busy
		s.workerPool <- struct{}{}
		defer s.releaseWorker()

		if err := s.retryAndFilterFailedBatch(ctx, &batch); err != nil {
			s.handleFinalBatchFailure(ctx, batch, err)
		}
	}()
}

func (s *HistoryService) addToBatch(ctx context.Context, event domain.PurchaseEvent) {
	s.mu.Lock()
	s.batch = append(s.batch, event)
	if len(s.batch) < s.batchSize {
		s.mu.Unlock()
		return
	}
	batch := s.takeBatchLocked()
	s.mu.Unlock()

	// the consumer session may end before the batch is written
	s.flushBatch(context.WithoutCancel(ctx), batch)
}

func (s *HistoryService) takeBatchLocked() []domain.PurchaseEvent {
	if len(s.batch) == 0 {
		return nil
	}
	batch := append([]domain.PurchaseEvent(nil), s.batch...)
	s.batch = s.batch[:0]
	return batch
}

func (s *HistoryService) autoFlush() {
	defer close(s.flushDone)
	for {
		select {
		case <-s.stop:
			return
		case <-s.flushTicker.C:
			s.mu.Lock()
			batch := s.takeBatchLocked()
			s.mu.Unlock()
			if len(batch) > 0 {
				s.flushBatch(context.Background(), batch)
			}
		}
	}
}

func (s *HistoryService) releaseWorker() {
	if r := recover(); r != nil {
		s.log.Error("panic in history writer", slog.Any("recover", r))
	}
	<-s.workerPool
}

func (s *HistoryService) retryAndFilterFailedBatch(ctx context.Context, batch *[]domain.PurchaseEvent) error {
	return retry.Do(
		func() error {
			return s.saveAndFilterBatch(ctx, batch)
		},
		retry.Context(ctx),
		retry.Attempts(s.retryConf.Attempts),
		retry.Delay(s.retryConf.Delay),
		retry.MaxDelay(s.retryConf.MaxDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(reperrors.IsRetryableError),
	)
}

// saveAndFilterBatch narrows batch down to the events that were not stored, so
// a retry only resends those.
func (s *HistoryService) saveAndFilterBatch(ctx context.Context, batch *[]domain.PurchaseEvent) error {
	size := len(*batch)
	failedIDs, err := s.repo.SaveEventsAndReturnFailedIDs(ctx, *batch)
	if err == nil && len(failedIDs) > 0 {
		err = fmt.Errorf("%d of %d events not stored", len(failedIDs), size)
	}
	if err == nil {
		metrics.SavedRecords.Add(float64(size))
		return nil
	}

	s.log.Warn("batch save attempt failed",
		slog.Int("batch_size", size),
		slog.Int("failed_count", len(failedIDs)),
		slog.Any("error", err),
	)
	*batch = filterByIDs(*batch, failedIDs)
	if saved := size - len(*batch); saved > 0 {
		metrics.SavedRecords.Add(float64(saved))
	}
	return err
}

func (s *HistoryService) handleFinalBatchFailure(ctx context.Context, batch []domain.PurchaseEvent, saveErr error) {
	s.log.Error("batch save failed after retries",
		slog.Int("remaining_count", len(batch)),
		slog.Any("error", saveErr),
	)

	for _, e := range batch {
		message, err := json.Marshal(e)
		if err != nil {
			s.log.Error("failed to marshal purchase event for DLQ",
				slog.String("purchase_id", e.PurchaseID),
				slog.Any("error", err),
			)
			continue
		}
		s.sendToDLQ(ctx, message, saveErr)
	}
}

func (s *HistoryService) sendToDLQ(ctx context.Context, message []byte, cause error) {
	if err := s.dlqProducer.Send(ctx, message, cause); err != nil {
		s.log.Error("failed to send message to DLQ", slog.Any("error", err))
	}
}

func validateEvent(e domain.PurchaseEvent) error {
	switch {
	case e.PurchaseID == "":
		return fmt.Errorf("%w: purchase_id is empty", serverrors.ErrInvalidPurchase)
	case e.FanAddress == "" || e.SongID == "":
		return fmt.Errorf("%w: fan_address and song_id are required", serverrors.ErrInvalidPurchase)
	case e.Cost <= 0:
		return fmt.Errorf("%w: cost must be positive", serverrors.ErrInvalidPurchase)
	case e.TxHash == "":
		return fmt.Errorf("%w: tx_hash is empty", serverrors.ErrInvalidPurchase)
	}
	return nil
}

// filterByIDs keeps the events whose purchase id is in ids, in place. An error
// without ids means nothing was stored, so the whole batch is kept.
func filterByIDs(events []domain.PurchaseEvent, ids []string) []domain.PurchaseEvent {
	if len(ids) == 0 {
		return events
	}
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	idx := 0
	for _, e := range events {
		if _, ok := idSet[e.PurchaseID]; ok {
			events[idx] = e
			idx++
		}
	}
	return events[:idx]
}
