package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sim-daas/Midnight-Blues/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	var cfg config.Config
	cfg.HTTP = config.HTTP{Host: "127.0.0.1", Port: 0, AllowedOrigins: []string{"*"}}
	cfg.Ledger = config.Ledger{
		Backend:        ledgerBackendFile,
		Path:           filepath.Join(t.TempDir(), "data", "fan-balances.json"),
		InitialBalance: 10000,
	}
	cfg.Catalog.Path = "../../fixtures/catalog.json"
	cfg.Wallet = config.Wallet{Mode: walletModeDev}
	cfg.Purchase.SubmitTimeout = time.Second
	cfg.Proof = config.Proof{Mode: proofModeStub, Threshold: 50}
	return cfg
}

func TestAPI_PurchaseIsFlushedOnShutdown(t *testing.T) {
	cfg := testConfig(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	api, err := NewAPI(context.Background(), cfg, log)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/purchase-song",
		strings.NewReader(`{"fanAddress":"mn_addr_fan_carol","songId":"song-001"}`))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, api.Shutdown(context.Background()))

	data, err := os.ReadFile(cfg.Ledger.Path)
	require.NoError(t, err)
	var snapshot map[string]struct {
		Balance int64 `json:"balance"`
		Spent   int64 `json:"spent"`
	}
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Equal(t, int64(9900), snapshot["mn_addr_fan_carol"].Balance)
	assert.Equal(t, int64(100), snapshot["mn_addr_fan_carol"].Spent)
}

func TestNewAPI_RejectsUnknownModes(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"ledger backend", func(c *config.Config) { c.Ledger.Backend = "postgres" }, "unknown ledger backend"},
		{"wallet mode", func(c *config.Config) { c.Wallet.Mode = "lace" }, "unknown wallet mode"},
		{"proof mode", func(c *config.Config) { c.Proof.Mode = "plonk" }, "unknown proof mode"},
		{"catalog", func(c *config.Config) { c.Catalog.Path = "missing.json" }, "load catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			_, err := NewAPI(context.Background(), cfg, log)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestServeGroup_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})
	shutdownCalled := false

	done := make(chan error, 1)
	go func() {
		done <- ServeGroup(ctx,
			[]func() error{func() error { <-stop; return nil }},
			func() error { shutdownCalled = true; close(stop); return nil },
		)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.True(t, shutdownCalled)
	case <-time.After(time.Second):
		t.Fatal("ServeGroup did not return")
	}
}
