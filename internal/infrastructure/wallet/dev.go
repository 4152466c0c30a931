package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sim-daas/Midnight-Blues/internal/domain"
)

// DevSubmitter stands in for the wallet gateway on a developer machine: it waits
// a little and fabricates a transaction hash. It keeps a running balance so the
// balance endpoint has something to show.
type DevSubmitter struct {
	delay       time.Duration
	unavailable atomic.Bool
	log         *slog.Logger

	mu      sync.Mutex
	balance *big.Int
}

// devGenesisTokens is the balance the fabricated genesis wallet starts with.
const devGenesisTokens = 1_000_000

func NewDevSubmitter(delay time.Duration, log *slog.Logger) *DevSubmitter {
	return &DevSubmitter{
		delay:   delay,
		log:     log.With(slog.String("component", "dev_wallet")),
		balance: TokensToBaseUnits(devGenesisTokens),
	}
}

// SetUnavailable makes subsequent calls fail with ErrUnavailable.
func (d *DevSubmitter) SetUnavailable(v bool) {
	d.unavailable.Store(v)
}

func (d *DevSubmitter) SubmitTransfer(ctx context.Context, destination string, amount *big.Int) (domain.TransferReceipt, error) {
	if d.unavailable.Load() {
		return domain.TransferReceipt{}, fmt.Errorf("%w: dev wallet disabled", ErrUnavailable)
	}

	timer := time.NewTimer(d.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return domain.TransferReceipt{}, fmt.Errorf("%w: %v", ErrSubmission, ctx.Err())
	}

	d.mu.Lock()
	if d.balance.Cmp(amount) < 0 {
		d.mu.Unlock()
		return domain.TransferReceipt{}, fmt.Errorf("%w: dev wallet balance too low", ErrSubmission)
	}
	d.balance.Sub(d.balance, amount)
	d.mu.Unlock()

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return domain.TransferReceipt{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	hash := hex.EncodeToString(buf)

	d.log.Debug("fabricated transfer",
		slog.String("destination", destination),
		slog.String("amount", amount.String()),
		slog.String("tx_hash", hash),
	)
	return domain.TransferReceipt{TxHash: hash, Amount: new(big.Int).Set(amount)}, nil
}

func (d *DevSubmitter) Ready(context.Context) error {
	if d.unavailable.Load() {
		return fmt.Errorf("%w: dev wallet disabled", ErrUnavailable)
	}
	return nil
}

func (d *DevSubmitter) Balance(context.Context) (domain.WalletBalance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return domain.WalletBalance{
		Unshielded: BaseUnitsToTokens(d.balance).String(),
		Shielded:   "0",
	}, nil
}
