// Package proof issues and checks "fan paid the artist more than a threshold"
// proofs. The amount stays private; the threshold and artist are public.
package proof

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrStatementFalse = errors.New("statement does not hold")
	ErrInvalidProof   = errors.New("invalid proof")
)

// Statement is what the fan wants to prove.
type Statement struct {
	FanAddress    string
	ArtistAddress string
	Amount        int64
	Threshold     int64
}

func (s Statement) String() string {
	return fmt.Sprintf("Fan %s sent > %d tDust to Artist %s", s.FanAddress, s.Threshold, s.ArtistAddress)
}

// Proof is the envelope handed to the client and sent back to unlock content.
type Proof struct {
	ProofID       string    `json:"proofId"`
	Statement     string    `json:"statement"`
	Verified      bool      `json:"verified"`
	Timestamp     time.Time `json:"timestamp"`
	ZKProof       string    `json:"zkProof"`
	Scheme        string    `json:"scheme,omitempty"`
	Threshold     int64     `json:"threshold"`
	ArtistAddress string    `json:"artistAddress,omitempty"`
}

// Prover issues proofs and checks them against the artist they are redeemed for.
type Prover interface {
	Prove(ctx context.Context, st Statement) (Proof, error)
	Verify(ctx context.Context, p Proof, artist string) error
	Scheme() string
}

func newProofID(now time.Time) string {
	return fmt.Sprintf("proof_%d", now.UnixMilli())
}
