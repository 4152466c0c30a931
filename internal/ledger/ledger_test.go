package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sim-daas/Midnight-Blues/internal/domain"
)

type memoryBackend struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	failErr error
}

func (b *memoryBackend) Load(context.Context) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		return Snapshot{}, nil
	}
	var sn Snapshot
	err := json.Unmarshal(b.data, &sn)
	return sn, err
}

func (b *memoryBackend) Save(_ context.Context, sn Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failErr != nil {
		return b.failErr
	}
	data, err := json.Marshal(sn)
	if err != nil {
		return err
	}
	b.data = data
	b.saves++
	return nil
}

func (b *memoryBackend) bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, backend *memoryBackend) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), backend, 10000, discardLogger())
	require.NoError(t, err)
	return store
}

func record(songID string, cost int64) domain.PurchaseRecord {
	return domain.PurchaseRecord{
		PurchaseID: "p-" + songID,
		SongID:     songID,
		Title:      "Title " + songID,
		Cost:       cost,
		TxHash:     "tx-" + songID,
		Timestamp:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestGetOrCreate_CreatesOnceAndPersists(t *testing.T) {
	backend := &memoryBackend{}
	store := newTestStore(t, backend)
	ctx := context.Background()

	acc, err := store.GetOrCreate(ctx, "fan1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), acc.Balance)
	assert.Equal(t, int64(0), acc.Spent)
	assert.Empty(t, acc.Purchases)
	assert.Equal(t, 1, backend.saves)

	_, err = store.GetOrCreate(ctx, "fan1")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.saves, "existing account must not be persisted again")

	reloaded, err := NewStore(ctx, backend, 10000, discardLogger())
	require.NoError(t, err)
	got, ok := reloaded.Get("fan1")
	require.True(t, ok)
	assert.Equal(t, int64(10000), got.Balance)
}

func TestGetOrCreate_AddressesAreCaseSensitive(t *testing.T) {
	store := newTestStore(t, &memoryBackend{})
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "Fan")
	require.NoError(t, err)
	_, err = store.GetOrCreate(ctx, "fan")
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
}

func TestGetOrCreate_SaveFailureLeavesNoAccount(t *testing.T) {
	backend := &memoryBackend{failErr: errors.New("disk full")}
	store := newTestStore(t, backend)

	_, err := store.GetOrCreate(context.Background(), "fan1")
	require.Error(t, err)
	_, ok := store.Get("fan1")
	assert.False(t, ok)
}

func TestCommitPurchase_Scenario(t *testing.T) {
	store := newTestStore(t, &memoryBackend{})
	ctx := context.Background()
	_, err := store.GetOrCreate(ctx, "fan1")
	require.NoError(t, err)

	acc, err := store.CommitPurchase(ctx, "fan1", record("song-1", 250), 250)
	require.NoError(t, err)
	assert.Equal(t, int64(9750), acc.Balance)
	assert.Equal(t, int64(250), acc.Spent)
	assert.Len(t, acc.Purchases, 1)

	acc, err = store.CommitPurchase(ctx, "fan1", record("song-2", 500), 500)
	require.NoError(t, err)
	assert.Equal(t, int64(9250), acc.Balance)
	assert.Equal(t, int64(750), acc.Spent)
	assert.Len(t, acc.Purchases, 2)
	assert.Equal(t, "song-1", acc.Purchases[0].SongID)
	assert.Equal(t, "song-2", acc.Purchases[1].SongID)
}

func TestCommitPurchase_RejectsWithoutMutation(t *testing.T) {
	backend := &memoryBackend{}
	store, err := NewStore(context.Background(), backend, 100, discardLogger())
	require.NoError(t, err)
	ctx := context.Background()
	_, err = store.GetOrCreate(ctx, "fan1")
	require.NoError(t, err)
	before := backend.bytes()

	_, err = store.CommitPurchase(ctx, "fan1", record("song-1", 250), 250)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = store.CommitPurchase(ctx, "fan1", record("song-1", 0), 0)
	assert.ErrorIs(t, err, ErrInvalidCost)

	_, err = store.CommitPurchase(ctx, "nobody", record("song-1", 10), 10)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	assert.Equal(t, before, backend.bytes())
	acc, _ := store.Get("fan1")
	assert.Equal(t, int64(100), acc.Balance)
}

func TestCommitPurchase_Duplicate(t *testing.T) {
	store := newTestStore(t, &memoryBackend{})
	ctx := context.Background()
	_, err := store.GetOrCreate(ctx, "fan1")
	require.NoError(t, err)

	_, err = store.CommitPurchase(ctx, "fan1", record("song-1", 250), 250)
	require.NoError(t, err)
	_, err = store.CommitPurchase(ctx, "fan1", record("song-1", 250), 250)
	assert.ErrorIs(t, err, ErrAlreadyPurchased)

	acc, _ := store.Get("fan1")
	assert.Equal(t, int64(9750), acc.Balance)
	assert.Len(t, acc.Purchases, 1)
}

func TestCommitPurchase_SaveFailureKeepsState(t *testing.T) {
	backend := &memoryBackend{}
	store := newTestStore(t, backend)
	ctx := context.Background()
	_, err := store.GetOrCreate(ctx, "fan1")
	require.NoError(t, err)

	backend.failErr = errors.New("disk full")
	_, err = store.CommitPurchase(ctx, "fan1", record("song-1", 250), 250)
	require.Error(t, err)

	acc, _ := store.Get("fan1")
	assert.Equal(t, int64(10000), acc.Balance)
	assert.Empty(t, acc.Purchases)
}

func TestGet_ReturnsCopies(t *testing.T) {
	store := newTestStore(t, &memoryBackend{})
	ctx := context.Background()
	_, err := store.GetOrCreate(ctx, "fan1")
	require.NoError(t, err)
	_, err = store.CommitPurchase(ctx, "fan1", record("song-1", 250), 250)
	require.NoError(t, err)

	acc, _ := store.Get("fan1")
	acc.Purchases[0].Title = "mutated"

	again, _ := store.Get("fan1")
	assert.Equal(t, "Title song-1", again.Purchases[0].Title)
}

func TestClose_Flushes(t *testing.T) {
	backend := &memoryBackend{}
	store := newTestStore(t, backend)
	_, err := store.GetOrCreate(context.Background(), "fan1")
	require.NoError(t, err)

	require.NoError(t, store.Close(context.Background()))
	assert.Equal(t, 2, backend.saves)
}
