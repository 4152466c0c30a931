// Package ledger owns every fan account: balances, cumulative spend and purchase
// history. Each mutation is applied to a copy of the current snapshot, persisted
// through a Backend as a whole document, and only then made visible.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sim-daas/Midnight-Blues/internal/domain"
	"github.com/sim-daas/Midnight-Blues/internal/metrics"
)

var (
	ErrAccountNotFound     = errors.New("fan account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyPurchased    = errors.New("song already purchased")
	ErrInvalidCost         = errors.New("purchase cost must be positive")
)

// Entry is the persisted form of a fan account. The address is the snapshot key.
type Entry struct {
	Balance   int64                   `json:"balance"`
	Spent     int64                   `json:"spent"`
	Purchases []domain.PurchaseRecord `json:"purchases"`
}

// Snapshot is the complete ledger document keyed by fan address.
type Snapshot map[string]Entry

// Backend loads and stores whole snapshots.
type Backend interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// Store is safe for concurrent use. Writes are serialized by mu; readers get copies.
type Store struct {
	mu             sync.RWMutex
	accounts       Snapshot
	backend        Backend
	initialBalance int64
	log            *slog.Logger
}

func NewStore(ctx context.Context, backend Backend, initialBalance int64, log *slog.Logger) (*Store, error) {
	if initialBalance < 0 {
		return nil, fmt.Errorf("initial balance must not be negative, got %d", initialBalance)
	}

	snapshot, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if snapshot == nil {
		snapshot = make(Snapshot)
	}

	log.Info("ledger loaded", slog.Int("accounts", len(snapshot)))

	return &Store{
		accounts:       snapshot,
		backend:        backend,
		initialBalance: initialBalance,
		log:            log.With(slog.String("component", "ledger")),
	}, nil
}

// GetOrCreate returns the account for address, creating it with the initial
// balance when it does not exist yet. A new account is persisted before return.
func (s *Store) GetOrCreate(ctx context.Context, address string) (domain.FanAccount, error) {
	if acc, ok := s.Get(address); ok {
		return acc, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.accounts[address]; ok {
		return toAccount(address, entry), nil
	}

	entry := Entry{Balance: s.initialBalance, Purchases: []domain.PurchaseRecord{}}
	next := s.accounts.with(address, entry)
	if err := s.backend.Save(ctx, next); err != nil {
		return domain.FanAccount{}, fmt.Errorf("persist new account: %w", err)
	}
	s.accounts = next
	metrics.AccountsCreated.Inc()

	s.log.Info("fan account created",
		slog.String("fan", address),
		slog.Int64("balance", entry.Balance),
	)
	return toAccount(address, entry), nil
}

func (s *Store) Get(address string) (domain.FanAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.accounts[address]
	if !ok {
		return domain.FanAccount{}, false
	}
	return toAccount(address, entry), true
}

// CommitPurchase debits cost, adds it to spent and appends record, re-checking
// balance and ownership against the current state. Nothing changes unless the
// new snapshot was saved.
func (s *Store) CommitPurchase(ctx context.Context, address string, record domain.PurchaseRecord, cost int64) (domain.FanAccount, error) {
	if cost <= 0 {
		return domain.FanAccount{}, ErrInvalidCost
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[address]
	if !ok {
		return domain.FanAccount{}, ErrAccountNotFound
	}
	if current.Balance < cost {
		return domain.FanAccount{}, fmt.Errorf("%w: requires %d, available %d", ErrInsufficientBalance, cost, current.Balance)
	}
	if _, owned := toAccount(address, current).Owns(record.SongID); owned {
		return domain.FanAccount{}, fmt.Errorf("%w: %s", ErrAlreadyPurchased, record.SongID)
	}

	purchases := make([]domain.PurchaseRecord, len(current.Purchases), len(current.Purchases)+1)
	copy(purchases, current.Purchases)
	updated := Entry{
		Balance:   current.Balance - cost,
		Spent:     current.Spent + cost,
		Purchases: append(purchases, record),
	}

	next := s.accounts.with(address, updated)
	if err := s.backend.Save(ctx, next); err != nil {
		return domain.FanAccount{}, fmt.Errorf("persist purchase: %w", err)
	}
	s.accounts = next

	return toAccount(address, updated), nil
}

// Len returns the number of accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Close flushes the current snapshot one last time.
func (s *Store) Close(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.backend.Save(ctx, s.accounts); err != nil {
		s.log.Error("final ledger flush failed", slog.Any("error", err))
		return err
	}
	s.log.Info("ledger flushed", slog.Int("accounts", len(s.accounts)))
	return nil
}

// with returns a shallow copy of the snapshot with address set to entry.
func (sn Snapshot) with(address string, entry Entry) Snapshot {
	next := make(Snapshot, len(sn)+1)
	for k, v := range sn {
		next[k] = v
	}
	next[address] = entry
	return next
}

func toAccount(address string, e Entry) domain.FanAccount {
	return domain.FanAccount{
		Address:   address,
		Balance:   e.Balance,
		Spent:     e.Spent,
		Purchases: e.Purchases,
	}.Clone()
}
