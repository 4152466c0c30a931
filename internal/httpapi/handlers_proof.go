package httpapi

import (
	"net/http"

	"github.com/sim-daas/Midnight-Blues/internal/proof"
)

func (h *Handler) checkTransfer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	check, err := h.proofs.CheckTransfer(q.Get("fanAddress"), q.Get("artistAddress"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

type proofRequest struct {
	FanAddress    string `json:"fanAddress"`
	ArtistAddress string `json:"artistAddress"`
	Amount        *int64 `json:"amount"`
}

func (h *Handler) requestProof(w http.ResponseWriter, r *http.Request) {
	var req proofRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	p, err := h.proofs.RequestProof(r.Context(), req.FanAddress, req.ArtistAddress, req.Amount)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"proof":   p,
		"message": "ZK proof generated successfully",
	})
}

type unlockRequest struct {
	Proof         *proof.Proof `json:"proof"`
	ArtistAddress string       `json:"artistAddress"`
}

func (h *Handler) unlockContent(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	content, err := h.proofs.UnlockContent(r.Context(), req.Proof, req.ArtistAddress)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"content": content.Content,
		"artist":  artistRef{Address: content.Artist.Address, Name: content.Artist.Name},
		"message": "Content unlocked successfully!",
	})
}
