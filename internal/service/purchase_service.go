package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sim-daas/Midnight-Blues/internal/domain"
	"github.com/sim-daas/Midnight-Blues/internal/infrastructure/wallet"
	"github.com/sim-daas/Midnight-Blues/internal/ledger"
	"github.com/sim-daas/Midnight-Blues/internal/metrics"
	"github.com/sim-daas/Midnight-Blues/internal/service/serverrors"
)

// TransferSubmitter moves amountBaseUnits to destination on chain and returns the
// transaction reference. It may be slow and may fail; it is never retried here.
type TransferSubmitter interface {
	SubmitTransfer(ctx context.Context, destination string, amountBaseUnits *big.Int) (domain.TransferReceipt, error)
}

type EventPublisher interface {
	PublishPurchase(ctx context.Context, event domain.PurchaseEvent) error
}

type SongCatalog interface {
	FindByID(id string) (domain.Song, error)
	Artist() domain.Artist
}

type FanLedger interface {
	Get(address string) (domain.FanAccount, bool)
	GetOrCreate(ctx context.Context, address string) (domain.FanAccount, error)
	CommitPurchase(ctx context.Context, address string, record domain.PurchaseRecord, cost int64) (domain.FanAccount, error)
}

type Transaction struct {
	TxHash    string `json:"txHash"`
	Amount    int64  `json:"amount"`
	BaseUnits string `json:"baseUnits"`
}

type PurchaseResult struct {
	Transaction Transaction           `json:"transaction"`
	Song        domain.Song           `json:"song"`
	Record      domain.PurchaseRecord `json:"purchase"`
	Account     domain.FanAccount     `json:"-"`
}

// PurchaseService runs the validate, submit, commit sequence. Requests for the
// same fan are serialized for the whole sequence.
type PurchaseService struct {
	catalog       SongCatalog
	ledger        FanLedger
	submitter     TransferSubmitter
	publisher     EventPublisher
	locks         *ledger.KeyedMutex
	submitTimeout time.Duration
	log           *slog.Logger
	now           func() time.Time
	newID         func() string
}

func NewPurchaseService(
	catalog SongCatalog,
	fans FanLedger,
	submitter TransferSubmitter,
	publisher EventPublisher,
	submitTimeout time.Duration,
	log *slog.Logger,
) *PurchaseService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &PurchaseService{
		catalog:       catalog,
		ledger:        fans,
		submitter:     submitter,
		publisher:     publisher,
		locks:         ledger.NewKeyedMutex(),
		submitTimeout: submitTimeout,
		log:           log.With(slog.String("component", "purchase_service")),
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
	}
}

// Account returns the fan's ledger entry, creating it on first lookup.
func (s *PurchaseService) Account(ctx context.Context, fan string) (domain.FanAccount, error) {
	if fan == "" {
		return domain.FanAccount{}, serverrors.MissingFields("address")
	}
	return s.ledger.GetOrCreate(ctx, fan)
}

// History returns the fan's purchases without creating an account.
func (s *PurchaseService) History(fan string) []domain.PurchaseRecord {
	acc, ok := s.ledger.Get(fan)
	if !ok {
		return []domain.PurchaseRecord{}
	}
	return acc.Purchases
}

func (s *PurchaseService) Purchase(ctx context.Context, fan, songID string) (PurchaseResult, error) {
	start := time.Now()
	outcome := "failed"
	defer func() {
		metrics.PurchaseResults.WithLabelValues(outcome).Inc()
		metrics.PurchaseDuration.Observe(time.Since(start).Seconds())
	}()

	var missing []string
	if strings.TrimSpace(fan) == "" {
		missing = append(missing, "fanAddress")
	}
	if strings.TrimSpace(songID) == "" {
		missing = append(missing, "songId")
	}
	if len(missing) > 0 {
		outcome = "rejected"
		return PurchaseResult{}, serverrors.MissingFields(missing...)
	}

	log := s.log.With(slog.String("fan", fan), slog.String("song_id", songID))

	song, err := s.catalog.FindByID(songID)
	if err != nil {
		outcome = "rejected"
		return PurchaseResult{}, serverrors.New(serverrors.ErrNotFound, serverrors.CodeSongNotFound, "Song not found").
			WithDetail("songId", songID).
			Wrap(err)
	}

	if s.submitter == nil {
		outcome = "unavailable"
		return PurchaseResult{}, serverrors.New(serverrors.ErrCollaboratorUnavailable, serverrors.CodeCollaboratorUnavailable,
			"Wallet service not available")
	}

	unlock, err := s.locks.Lock(ctx, fan)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("wait for fan lock: %w", err)
	}
	defer unlock()

	acc, err := s.ledger.GetOrCreate(ctx, fan)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("load fan account: %w", err)
	}

	if acc.Balance < song.RequiredTokens {
		outcome = "rejected"
		log.Info("purchase rejected: insufficient balance",
			slog.Int64("required", song.RequiredTokens),
			slog.Int64("available", acc.Balance),
		)
		return PurchaseResult{}, serverrors.InsufficientBalance(song.RequiredTokens, acc.Balance)
	}
	if owned, ok := acc.Owns(song.ID); ok {
		outcome = "rejected"
		log.Info("purchase rejected: already owned", slog.String("tx_hash", owned.TxHash))
		return PurchaseResult{}, serverrors.New(serverrors.ErrBusinessRule, serverrors.CodeAlreadyPurchased, "Song already purchased").
			WithDetail("purchase", owned)
	}

	artist := s.catalog.Artist()
	amount := wallet.TokensToBaseUnits(song.RequiredTokens)

	receipt, err := s.submit(ctx, artist.Address, amount)
	if err != nil {
		if errors.Is(err, serverrors.ErrCollaboratorUnavailable) {
			outcome = "unavailable"
		}
		log.Error("transfer submission failed", slog.Any("error", err))
		return PurchaseResult{}, err
	}

	record := domain.PurchaseRecord{
		PurchaseID: s.newID(),
		SongID:     song.ID,
		Title:      song.Title,
		Cost:       song.RequiredTokens,
		TxHash:     receipt.TxHash,
		Timestamp:  s.now().UTC(),
	}

	// The transfer already happened; a cancelled request must not drop the commit.
	commitCtx := context.WithoutCancel(ctx)
	updated, err := s.ledger.CommitPurchase(commitCtx, fan, record, song.RequiredTokens)
	if err != nil {
		log.Error("transfer submitted but ledger commit failed, reconcile manually",
			slog.String("tx_hash", receipt.TxHash),
			slog.Any("error", err),
		)
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return PurchaseResult{}, serverrors.InsufficientBalance(song.RequiredTokens, acc.Balance).Wrap(err)
		case errors.Is(err, ledger.ErrAlreadyPurchased):
			return PurchaseResult{}, serverrors.New(serverrors.ErrBusinessRule, serverrors.CodeAlreadyPurchased, "Song already purchased").Wrap(err)
		}
		return PurchaseResult{}, fmt.Errorf("commit purchase %s: %w", receipt.TxHash, err)
	}

	outcome = "committed"
	metrics.TokensSpent.Add(float64(song.RequiredTokens))
	log.Info("purchase committed",
		slog.String("tx_hash", receipt.TxHash),
		slog.Int64("cost", song.RequiredTokens),
		slog.Int64("balance", updated.Balance),
	)

	s.publish(commitCtx, domain.PurchaseEvent{
		PurchaseID:    record.PurchaseID,
		FanAddress:    fan,
		ArtistAddress: artist.Address,
		SongID:        song.ID,
		Title:         song.Title,
		Tier:          song.Tier,
		Genre:         song.Genre,
		Cost:          song.RequiredTokens,
		BaseUnits:     amount.String(),
		TxHash:        receipt.TxHash,
		BalanceAfter:  updated.Balance,
		SpentAfter:    updated.Spent,
		Timestamp:     record.Timestamp,
	})

	return PurchaseResult{
		Transaction: Transaction{
			TxHash:    receipt.TxHash,
			Amount:    song.RequiredTokens,
			BaseUnits: amount.String(),
		},
		Song:    song,
		Record:  record,
		Account: updated,
	}, nil
}

// submit bounds the collaborator call by submitTimeout and classifies its errors.
func (s *PurchaseService) submit(ctx context.Context, destination string, amount *big.Int) (domain.TransferReceipt, error) {
	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := s.submitter.SubmitTransfer(submitCtx, destination, amount)
	metrics.SubmissionDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil && receipt.TxHash == "":
		return domain.TransferReceipt{}, serverrors.New(serverrors.ErrCollaboratorFailure, serverrors.CodeSubmissionFailed,
			"Failed to process purchase").WithDetail("details", "collaborator returned no transaction reference")
	case err == nil:
		return receipt, nil
	case errors.Is(err, wallet.ErrUnavailable):
		return domain.TransferReceipt{}, serverrors.New(serverrors.ErrCollaboratorUnavailable, serverrors.CodeCollaboratorUnavailable,
			"Wallet service not available").Wrap(err)
	case errors.Is(submitCtx.Err(), context.DeadlineExceeded):
		return domain.TransferReceipt{}, serverrors.New(serverrors.ErrCollaboratorFailure, serverrors.CodeSubmissionFailed,
			"Transfer submission timed out").
			WithDetail("timeout", s.submitTimeout.String()).
			Wrap(err)
	default:
		return domain.TransferReceipt{}, serverrors.New(serverrors.ErrCollaboratorFailure, serverrors.CodeSubmissionFailed,
			"Failed to process purchase").
			WithDetail("details", err.Error()).
			Wrap(err)
	}
}

func (s *PurchaseService) publish(ctx context.Context, event domain.PurchaseEvent) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.publisher.PublishPurchase(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		s.log.Warn("failed to publish purchase event",
			slog.String("purchase_id", event.PurchaseID),
			slog.Any("error", err),
		)
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}

// NoopPublisher drops events; used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishPurchase(context.Context, domain.PurchaseEvent) error { return nil }
