// Package httpapi is the REST façade of the lace-api binary.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/sim-daas/Midnight-Blues/internal/domain"
	"github.com/sim-daas/Midnight-Blues/internal/proof"
	"github.com/sim-daas/Midnight-Blues/internal/service"
)

type Catalog interface {
	List() []domain.Song
	FindByID(id string) (domain.Song, error)
	Artist() domain.Artist
	Artists() []domain.Artist
}

type Purchases interface {
	Account(ctx context.Context, fan string) (domain.FanAccount, error)
	History(fan string) []domain.PurchaseRecord
	Purchase(ctx context.Context, fan, songID string) (service.PurchaseResult, error)
}

type Proofs interface {
	CheckTransfer(fan, artist string) (service.TransferCheck, error)
	RequestProof(ctx context.Context, fan, artist string, amount *int64) (proof.Proof, error)
	UnlockContent(ctx context.Context, p *proof.Proof, artist string) (service.UnlockedContent, error)
}

// Wallet is the optional status side of the transfer collaborator.
type Wallet interface {
	Ready(ctx context.Context) error
	Balance(ctx context.Context) (domain.WalletBalance, error)
}

// Services are the upstream endpoints reported by /api/health.
type Services struct {
	ProofServer   string `json:"proofServer"`
	Indexer       string `json:"indexer"`
	Node          string `json:"node"`
	WalletGateway string `json:"walletGateway,omitempty"`
}

type Options struct {
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	WalletMode     string
	Services       Services
}

type Handler struct {
	catalog   Catalog
	purchases Purchases
	proofs    Proofs
	wallet    Wallet
	opts      Options
	log       *slog.Logger
}

// NewHandler wires the façade. wallet may be nil when no collaborator is configured.
func NewHandler(catalog Catalog, purchases Purchases, proofs Proofs, wallet Wallet, opts Options, log *slog.Logger) *Handler {
	return &Handler{
		catalog:   catalog,
		purchases: purchases,
		proofs:    proofs,
		wallet:    wallet,
		opts:      opts,
		log:       log.With(slog.String("component", "http")),
	}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware(h.log))
	r.Use(recoverMiddleware(h.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", headerRequestID},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Not found"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/songs", h.listSongs)
		r.Get("/songs/{id}", h.getSong)
		r.Get("/artists", h.listArtists)
		r.Get("/fan/balance/{address}", h.fanBalance)
		r.Get("/fan/purchases/{address}", h.fanPurchases)
		r.Get("/check-transfer", h.checkTransfer)
		r.Get("/wallet/balance", h.walletBalance)

		r.Group(func(r chi.Router) {
			if h.opts.RateLimit > 0 {
				r.Use(newRateLimiter(h.opts.RateLimit, h.opts.RateBurst, h.log).Handler)
			}
			r.Post("/purchase-song", h.purchaseSong)
			r.Post("/request-proof", h.requestProof)
			r.Post("/unlock-content", h.unlockContent)
		})
	})
	return r
}
