package wallet

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTokensToBaseUnits(t *testing.T) {
	assert.Equal(t, "250000000000000", TokensToBaseUnits(250).String())
	assert.Equal(t, "0", TokensToBaseUnits(0).String())
}

func TestBaseUnitsToTokens(t *testing.T) {
	v, err := ParseBaseUnits("9750000000000000")
	require.NoError(t, err)
	assert.Equal(t, "9750", BaseUnitsToTokens(v).String())

	v, err = ParseBaseUnits("1500000000000")
	require.NoError(t, err)
	assert.Equal(t, "1.5", BaseUnitsToTokens(v).String())

	_, err = ParseBaseUnits("12abc")
	assert.Error(t, err)
}

func TestGatewayClient_SubmitTransfer(t *testing.T) {
	var got transferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transfers", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(transferResponse{TxHash: "00ff", Amount: got.Amount})
	}))
	defer srv.Close()

	c := NewGatewayClient(srv.URL+"/", time.Second, 30*time.Minute, discard())
	receipt, err := c.SubmitTransfer(context.Background(), "mn_addr_artist", TokensToBaseUnits(250))
	require.NoError(t, err)

	assert.Equal(t, "00ff", receipt.TxHash)
	assert.Equal(t, 0, receipt.Amount.Cmp(TokensToBaseUnits(250)))
	assert.Equal(t, "mn_addr_artist", got.Destination)
	assert.Equal(t, "250000000000000", got.Amount)
	assert.Equal(t, int64(1800), got.TTLSeconds)
	assert.True(t, got.PayFees)
}

func TestGatewayClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unavailable", http.StatusServiceUnavailable, `{"error":"wallet syncing"}`, ErrUnavailable},
		{"failure", http.StatusInternalServerError, `{"error":"insufficient dust"}`, ErrSubmission},
		{"missing hash", http.StatusOK, `{}`, ErrSubmission},
		{"garbage", http.StatusOK, `not json`, ErrSubmission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewGatewayClient(srv.URL, time.Second, time.Minute, discard())
			_, err := c.SubmitTransfer(context.Background(), "dest", big.NewInt(1))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGatewayClient_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewGatewayClient(url, time.Second, time.Minute, discard())
	_, err := c.SubmitTransfer(context.Background(), "dest", big.NewInt(1))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGatewayClient_ReadyAndBalance(t *testing.T) {
	synced := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/health":
			_ = json.NewEncoder(w).Encode(healthResponse{Ready: true, Synced: synced})
		case "/v1/balance":
			_ = json.NewEncoder(w).Encode(balanceResponse{Unshielded: "2000000000000000", Shielded: "0"})
		}
	}))
	defer srv.Close()

	c := NewGatewayClient(srv.URL, time.Second, time.Minute, discard())
	assert.ErrorIs(t, c.Ready(context.Background()), ErrUnavailable)

	synced = true
	assert.NoError(t, c.Ready(context.Background()))

	bal, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2000", bal.Unshielded)
	assert.Equal(t, "0", bal.Shielded)
}

func TestDevSubmitter(t *testing.T) {
	d := NewDevSubmitter(time.Millisecond, discard())

	receipt, err := d.SubmitTransfer(context.Background(), "artist", TokensToBaseUnits(250))
	require.NoError(t, err)
	assert.Len(t, receipt.TxHash, 64)

	bal, err := d.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "999750", bal.Unshielded)

	d.SetUnavailable(true)
	assert.ErrorIs(t, d.Ready(context.Background()), ErrUnavailable)
	_, err = d.SubmitTransfer(context.Background(), "artist", big.NewInt(1))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDevSubmitter_ContextTimeout(t *testing.T) {
	d := NewDevSubmitter(time.Second, discard())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.SubmitTransfer(ctx, "artist", big.NewInt(1))
	assert.ErrorIs(t, err, ErrSubmission)

	bal, _ := d.Balance(context.Background())
	assert.Equal(t, "1000000", bal.Unshielded)
}
