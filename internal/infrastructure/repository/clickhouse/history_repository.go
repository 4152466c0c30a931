package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/sim-daas/Midnight-Blues/internal/domain"
)

const createHistoryTable = `
	CREATE TABLE IF NOT EXISTS purchase_history (
		purchase_id String,
		fan_address String,
		artist_address String,
		song_id String,
		title String,
		tier UInt8,
		genre LowCardinality(String),
		cost Int64,
		base_units String,
		tx_hash String,
		balance_after Int64,
		spent_after Int64,
		timestamp DateTime64(3, 'UTC'),
		created_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree() ORDER BY (fan_address, purchase_id)`

// HistoryRepository stores purchase events in ClickHouse. Replays of the same
// purchase id collapse on merge.
type HistoryRepository struct {
	db  driver.Conn
	log *slog.Logger
}

func NewHistoryRepository(db driver.Conn, log *slog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With(slog.String("component", "history_repository")),
	}
}

// EnsureSchema creates the history table when it is missing.
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	if err := r.db.Exec(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("create purchase_history: %w", err)
	}
	return nil
}

// SaveEventsAndReturnFailedIDs inserts events in one batch. On error it
// returns the ids that were not stored.
func (r *HistoryRepository) SaveEventsAndReturnFailedIDs(ctx context.Context, events []domain.PurchaseEvent) ([]string, error) {
	if len(events) == 0 {
		return nil, nil
	}

	batch, err := r.db.PrepareBatch(ctx, `
		INSERT INTO purchase_history (
			purchase_id, fan_address, artist_address, song_id, title,
			tier, genre, cost, base_units, tx_hash,
			balance_after, spent_after, timestamp
		)`)
	if err != nil {
		r.log.Error("failed to prepare batch", slog.Any("error", err))
		return extractIDs(events), fmt.Errorf("prepare batch: %w", err)
	}

	var (
		failedIDs   []string
		appendedIDs []string
		errs        []error
	)
	for _, e := range events {
		if err := batch.Append(
			e.PurchaseID, e.FanAddress, e.ArtistAddress, e.SongID, e.Title,
			uint8(e.Tier), e.Genre, e.Cost, e.BaseUnits, e.TxHash,
			e.BalanceAfter, e.SpentAfter, e.Timestamp,
		); err != nil {
			r.log.Warn("failed to append event",
				slog.String("purchase_id", e.PurchaseID),
				slog.Any("error", err),
			)
			failedIDs = append(failedIDs, e.PurchaseID)
			errs = append(errs, err)
			continue
		}
		appendedIDs = append(appendedIDs, e.PurchaseID)
	}

	if len(appendedIDs) > 0 {
		if err := batch.Send(); err != nil {
			r.log.Error("failed to send batch", slog.Any("error", err))
			failedIDs = append(failedIDs, appendedIDs...)
			errs = append(errs, err)
		}
	} else if err := batch.Abort(); err != nil {
		r.log.Debug("abort empty batch", slog.Any("error", err))
	}

	if len(failedIDs) == 0 {
		r.log.Info("purchase events saved", slog.Int("count", len(events)))
		return nil, nil
	}

	r.log.Warn("some purchase events were not saved",
		slog.Int("failed", len(failedIDs)),
		slog.Int("total", len(events)),
	)
	return failedIDs, fmt.Errorf("failed to save %d of %d events: %w", len(failedIDs), len(events), errors.Join(errs...))
}

func (r *HistoryRepository) Close() error {
	return r.db.Close()
}

func extractIDs(events []domain.PurchaseEvent) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.PurchaseID)
	}
	return ids
}
