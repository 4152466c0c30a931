// Package wallet talks to the wallet that signs and submits transfers. The
// gateway sidecar owns keys, proving and chain sync; this package only knows its
// HTTP contract.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/sim-daas/Midnight-Blues/internal/domain"
)

type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration
	log        *slog.Logger
}

func NewGatewayClient(baseURL string, timeout, ttl time.Duration, log *slog.Logger) *GatewayClient {
	return &GatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		ttl:        ttl,
		log:        log.With(slog.String("component", "wallet_gateway")),
	}
}

type transferRequest struct {
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	TTLSeconds  int64  `json:"ttlSeconds"`
	PayFees     bool   `json:"payFees"`
}

type transferResponse struct {
	TxHash string `json:"txHash"`
	Amount string `json:"amount"`
}

type gatewayError struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Ready  bool `json:"ready"`
	Synced bool `json:"synced"`
}

type balanceResponse struct {
	Unshielded string `json:"unshielded"`
	Shielded   string `json:"shielded"`
}

// SubmitTransfer sends amount base units to destination. It is never retried here:
// a transfer is not idempotent.
func (c *GatewayClient) SubmitTransfer(ctx context.Context, destination string, amount *big.Int) (domain.TransferReceipt, error) {
	payload := transferRequest{
		Destination: destination,
		Amount:      amount.String(),
		TTLSeconds:  int64(c.ttl / time.Second),
		PayFees:     true,
	}

	c.log.Info("submitting transfer",
		slog.String("destination", destination),
		slog.String("amount", payload.Amount),
	)

	var out transferResponse
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", payload, &out); err != nil {
		return domain.TransferReceipt{}, err
	}
	if out.TxHash == "" {
		return domain.TransferReceipt{}, fmt.Errorf("%w: gateway returned no transaction hash", ErrSubmission)
	}

	sent := amount
	if out.Amount != "" {
		parsed, err := ParseBaseUnits(out.Amount)
		if err != nil {
			return domain.TransferReceipt{}, fmt.Errorf("%w: %v", ErrSubmission, err)
		}
		sent = parsed
	}

	c.log.Info("transfer submitted", slog.String("tx_hash", out.TxHash))
	return domain.TransferReceipt{TxHash: out.TxHash, Amount: sent}, nil
}

// Ready reports whether the gateway's wallet is synced and able to send.
func (c *GatewayClient) Ready(ctx context.Context) error {
	var out healthResponse
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, &out); err != nil {
		return err
	}
	if !out.Ready || !out.Synced {
		return fmt.Errorf("%w: wallet not synced", ErrUnavailable)
	}
	return nil
}

func (c *GatewayClient) Balance(ctx context.Context) (domain.WalletBalance, error) {
	var out balanceResponse
	if err := c.do(ctx, http.MethodGet, "/v1/balance", nil, &out); err != nil {
		return domain.WalletBalance{}, err
	}

	unshielded, err := ParseBaseUnits(out.Unshielded)
	if err != nil {
		return domain.WalletBalance{}, err
	}
	shielded, err := ParseBaseUnits(out.Shielded)
	if err != nil {
		return domain.WalletBalance{}, err
	}
	return domain.WalletBalance{
		Unshielded: BaseUnitsToTokens(unshielded).String(),
		Shielded:   BaseUnitsToTokens(shielded).String(),
	}, nil
}

func (c *GatewayClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrSubmission, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		var ge gatewayError
		if json.Unmarshal(data, &ge) == nil && ge.Error != "" {
			msg = ge.Error
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			return fmt.Errorf("%w: %s", ErrUnavailable, msg)
		}
		return fmt.Errorf("%w: gateway status %d: %s", ErrSubmission, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrSubmission, err)
	}
	return nil
}
