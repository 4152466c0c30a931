package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sim-daas/Midnight-Blues/internal/catalog"
	"github.com/sim-daas/Midnight-Blues/internal/domain"
	"github.com/sim-daas/Midnight-Blues/internal/metrics"
	"github.com/sim-daas/Midnight-Blues/internal/proof"
	"github.com/sim-daas/Midnight-Blues/internal/service/serverrors"
)

type TransferCatalog interface {
	FindArtist(address string) (domain.Artist, error)
	FindTransfer(fan, artist string) (domain.Transfer, error)
}

type TransferCheck struct {
	Verified  bool            `json:"verified"`
	Transfer  domain.Transfer `json:"transfer"`
	Threshold int64           `json:"threshold"`
	Message   string          `json:"message"`
}

type UnlockedContent struct {
	Content string        `json:"content"`
	Artist  domain.Artist `json:"artist"`
}

// ProofService lets a fan prove they paid an artist more than the threshold
// and trade that proof for the artist's exclusive content.
type ProofService struct {
	catalog   TransferCatalog
	prover    proof.Prover
	threshold int64
	log       *slog.Logger
}

func NewProofService(catalog TransferCatalog, prover proof.Prover, threshold int64, log *slog.Logger) *ProofService {
	return &ProofService{
		catalog:   catalog,
		prover:    prover,
		threshold: threshold,
		log:       log.With(slog.String("component", "proof_service"), slog.String("scheme", prover.Scheme())),
	}
}

func (s *ProofService) Threshold() int64 { return s.threshold }

// CheckTransfer looks up the recorded transfer from fan to artist. The amount
// must be strictly above the threshold.
func (s *ProofService) CheckTransfer(fan, artist string) (TransferCheck, error) {
	if missing := missingFields(map[string]string{"fanAddress": fan, "artistAddress": artist}, "fanAddress", "artistAddress"); len(missing) > 0 {
		return TransferCheck{}, serverrors.MissingFields(missing...)
	}

	t, err := s.catalog.FindTransfer(fan, artist)
	if err != nil {
		return TransferCheck{}, serverrors.New(serverrors.ErrNotFound, serverrors.CodeTransferNotFound,
			"No transfer found from this fan to the artist").
			WithDetail("verified", false).
			Wrap(err)
	}

	check := TransferCheck{
		Verified:  t.Amount > s.threshold,
		Transfer:  t,
		Threshold: s.threshold,
	}
	if check.Verified {
		check.Message = fmt.Sprintf("Transfer of %d tDust exceeds threshold of %d", t.Amount, s.threshold)
	} else {
		check.Message = fmt.Sprintf("Transfer of %d tDust does not meet minimum threshold of %d", t.Amount, s.threshold)
	}
	return check, nil
}

func (s *ProofService) RequestProof(ctx context.Context, fan, artist string, amount *int64) (proof.Proof, error) {
	missing := missingFields(map[string]string{"fanAddress": fan, "artistAddress": artist}, "fanAddress", "artistAddress")
	if amount == nil {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return proof.Proof{}, serverrors.MissingFields(missing...)
	}
	if *amount < 0 {
		return proof.Proof{}, serverrors.New(serverrors.ErrValidation, serverrors.CodeInvalidAmount, "Amount must not be negative")
	}

	p, err := s.prover.Prove(ctx, proof.Statement{
		FanAddress:    fan,
		ArtistAddress: artist,
		Amount:        *amount,
		Threshold:     s.threshold,
	})
	switch {
	case errors.Is(err, proof.ErrStatementFalse):
		metrics.ProofsIssued.WithLabelValues("below_threshold").Inc()
		return proof.Proof{}, serverrors.New(serverrors.ErrForbidden, serverrors.CodeBelowThreshold,
			fmt.Sprintf("Transfer amount (%d tDust) does not meet threshold (%d tDust)", *amount, s.threshold)).
			WithDetail("verified", false)
	case err != nil:
		metrics.ProofsIssued.WithLabelValues("error").Inc()
		s.log.Error("proof generation failed", slog.String("fan", fan), slog.Any("error", err))
		return proof.Proof{}, fmt.Errorf("generate proof: %w", err)
	}

	metrics.ProofsIssued.WithLabelValues("issued").Inc()
	s.log.Info("proof issued", slog.String("proof_id", p.ProofID), slog.String("fan", fan))
	return p, nil
}

// UnlockContent releases the artist's secret content for a verified proof.
func (s *ProofService) UnlockContent(ctx context.Context, p *proof.Proof, artist string) (UnlockedContent, error) {
	var missing []string
	if p == nil {
		missing = append(missing, "proof")
	}
	if strings.TrimSpace(artist) == "" {
		missing = append(missing, "artistAddress")
	}
	if len(missing) > 0 {
		return UnlockedContent{}, serverrors.MissingFields(missing...)
	}

	if err := s.verify(ctx, *p, artist); err != nil {
		metrics.ProofsIssued.WithLabelValues("rejected").Inc()
		s.log.Info("proof rejected", slog.String("proof_id", p.ProofID), slog.Any("error", err))
		return UnlockedContent{}, serverrors.New(serverrors.ErrForbidden, serverrors.CodeInvalidProof,
			"Invalid or unverified proof").Wrap(err)
	}

	a, err := s.catalog.FindArtist(artist)
	if err != nil {
		return UnlockedContent{}, serverrors.New(serverrors.ErrNotFound, serverrors.CodeArtistNotFound, "Artist not found").Wrap(err)
	}

	metrics.ProofsIssued.WithLabelValues("redeemed").Inc()
	return UnlockedContent{
		Content: a.SecretContent,
		Artist:  domain.Artist{Address: a.Address, Name: a.Name},
	}, nil
}

func (s *ProofService) verify(ctx context.Context, p proof.Proof, artist string) error {
	if !p.Verified {
		return errors.New("proof is not marked verified")
	}
	if p.ZKProof == "" {
		return errors.New("proof carries no data")
	}
	if p.Scheme != "" && p.Scheme != s.prover.Scheme() {
		return fmt.Errorf("unsupported proof scheme %q", p.Scheme)
	}
	if p.ArtistAddress == "" {
		return errors.New("proof names no artist")
	}
	if !strings.EqualFold(p.ArtistAddress, artist) {
		return errors.New("proof was issued for another artist")
	}
	if p.Threshold < s.threshold {
		return fmt.Errorf("proof threshold %d is below %d", p.Threshold, s.threshold)
	}
	return s.prover.Verify(ctx, p, artist)
}

// missingFields returns the names, in order, whose values are blank.
func missingFields(values map[string]string, order ...string) []string {
	var missing []string
	for _, name := range order {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

var _ TransferCatalog = (*catalog.Provider)(nil)
