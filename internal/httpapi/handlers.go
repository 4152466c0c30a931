package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sim-daas/Midnight-Blues/internal/catalog"
	"github.com/sim-daas/Midnight-Blues/internal/domain"
	"github.com/sim-daas/Midnight-Blues/internal/service"
	"github.com/sim-daas/Midnight-Blues/internal/service/serverrors"
)

const walletProbeTimeout = 2 * time.Second

type walletHealth struct {
	Mode  string `json:"mode"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

type healthResponse struct {
	Status   string       `json:"status"`
	Message  string       `json:"message"`
	Services Services     `json:"services"`
	Wallet   walletHealth `json:"wallet"`
}

// health always answers 200; wallet readiness is reported, not enforced.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	wh := walletHealth{Mode: h.opts.WalletMode}
	if h.wallet == nil {
		wh.Error = "wallet not configured"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), walletProbeTimeout)
		defer cancel()
		if err := h.wallet.Ready(ctx); err != nil {
			wh.Error = err.Error()
		} else {
			wh.Ready = true
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Message:  "Midnight Lace API Server is running",
		Services: h.opts.Services,
		Wallet:   wh,
	})
}

type artistRef struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

func (h *Handler) listSongs(w http.ResponseWriter, _ *http.Request) {
	artist := h.catalog.Artist()
	writeJSON(w, http.StatusOK, map[string]any{
		"songs":         h.catalog.List(),
		"artistAddress": artist.Address,
		"artist":        artistRef{Address: artist.Address, Name: artist.Name},
	})
}

func (h *Handler) getSong(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	song, err := h.catalog.FindByID(id)
	if err != nil {
		if errors.Is(err, catalog.ErrSongNotFound) {
			err = serverrors.New(serverrors.ErrNotFound, serverrors.CodeSongNotFound, "Song not found").
				WithDetail("songId", id).
				Wrap(err)
		}
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

func (h *Handler) listArtists(w http.ResponseWriter, _ *http.Request) {
	artists := h.catalog.Artists()
	out := make([]artistRef, 0, len(artists))
	for _, a := range artists {
		out = append(out, artistRef{Address: a.Address, Name: a.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"artists": out})
}

func (h *Handler) fanBalance(w http.ResponseWriter, r *http.Request) {
	acc, err := h.purchases.Account(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) fanPurchases(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	writeJSON(w, http.StatusOK, map[string]any{
		"address":   address,
		"purchases": h.purchases.History(address),
	})
}

type purchaseRequest struct {
	FanAddress string `json:"fanAddress"`
	SongID     string `json:"songId"`
}

type fanSummary struct {
	Address       string `json:"address"`
	Balance       int64  `json:"balance"`
	Spent         int64  `json:"spent"`
	PurchaseCount int    `json:"purchaseCount"`
}

type purchaseResponse struct {
	Success     bool                  `json:"success"`
	Message     string                `json:"message"`
	Transaction service.Transaction   `json:"transaction"`
	Song        domain.Song           `json:"song"`
	Purchase    domain.PurchaseRecord `json:"purchase"`
	Fan         fanSummary            `json:"fan"`
}

func (h *Handler) purchaseSong(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	res, err := h.purchases.Purchase(r.Context(), req.FanAddress, req.SongID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.log.Debug("purchase served",
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.String("tx_hash", res.Transaction.TxHash),
	)
	writeJSON(w, http.StatusOK, purchaseResponse{
		Success:     true,
		Message:     "Song purchased successfully",
		Transaction: res.Transaction,
		Song:        res.Song,
		Purchase:    res.Record,
		Fan: fanSummary{
			Address:       res.Account.Address,
			Balance:       res.Account.Balance,
			Spent:         res.Account.Spent,
			PurchaseCount: len(res.Account.Purchases),
		},
	})
}

func (h *Handler) walletBalance(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		writeError(w, r, h.log, serverrors.New(serverrors.ErrCollaboratorUnavailable,
			serverrors.CodeCollaboratorUnavailable, "Wallet service not available"))
		return
	}
	b, err := h.wallet.Balance(r.Context())
	if err != nil {
		writeError(w, r, h.log, serverrors.New(serverrors.ErrCollaboratorUnavailable,
			serverrors.CodeCollaboratorUnavailable, "Wallet balance not available").Wrap(err))
		return
	}
	writeJSON(w, http.StatusOK, b)
}
