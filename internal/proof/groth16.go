package proof

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/logger"
)

const SchemeGroth16 = "groth16-bn254"

// ThresholdCircuit proves Amount > Threshold without revealing Amount. Artist
// is the field element of the artist address, so a proof only verifies for
// the artist it was issued to.
type ThresholdCircuit struct {
	Threshold frontend.Variable `gnark:",public"`
	Artist    frontend.Variable `gnark:",public"`
	Amount    frontend.Variable `gnark:",secret"`
}

func (c *ThresholdCircuit) Define(api frontend.API) error {
	api.AssertIsLessOrEqual(api.Add(c.Threshold, 1), c.Amount)
	// an input that appears in no constraint is not bound by the proof
	api.AssertIsDifferent(c.Artist, 0)
	return nil
}

// artistElement maps an address to a BN254 scalar: sha256 of the lower-cased
// address reduced modulo the field order.
func artistElement(address string) *big.Int {
	sum := sha256.Sum256([]byte(strings.ToLower(address)))
	e := new(big.Int).SetBytes(sum[:])
	return e.Mod(e, ecc.BN254.ScalarField())
}

// Groth16Prover holds the compiled circuit and its keys, generated once at start.
type Groth16Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
	now func() time.Time
}

func NewGroth16Prover() (*Groth16Prover, error) {
	// gnark writes its own zerolog output otherwise
	logger.Disable()

	var circuit ThresholdCircuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("compile threshold circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	return &Groth16Prover{ccs: ccs, pk: pk, vk: vk, now: time.Now}, nil
}

func (g *Groth16Prover) Scheme() string { return SchemeGroth16 }

func (g *Groth16Prover) Prove(ctx context.Context, st Statement) (Proof, error) {
	if err := ctx.Err(); err != nil {
		return Proof{}, err
	}
	if st.Amount <= st.Threshold {
		return Proof{}, ErrStatementFalse
	}
	if st.ArtistAddress == "" {
		return Proof{}, errors.New("artist address is required")
	}

	assignment := ThresholdCircuit{
		Threshold: st.Threshold,
		Artist:    artistElement(st.ArtistAddress),
		Amount:    st.Amount,
	}
	witness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		return Proof{}, fmt.Errorf("build witness: %w", err)
	}
	zk, err := groth16.Prove(g.ccs, g.pk, witness)
	if err != nil {
		return Proof{}, fmt.Errorf("prove: %w", err)
	}

	var buf bytes.Buffer
	if _, err := zk.WriteTo(&buf); err != nil {
		return Proof{}, fmt.Errorf("encode proof: %w", err)
	}

	now := g.now().UTC()
	return Proof{
		ProofID:       newProofID(now),
		Statement:     st.String(),
		Verified:      true,
		Timestamp:     now,
		ZKProof:       base64.StdEncoding.EncodeToString(buf.Bytes()),
		Scheme:        SchemeGroth16,
		Threshold:     st.Threshold,
		ArtistAddress: st.ArtistAddress,
	}, nil
}

// Verify checks the proof against the threshold it claims and the artist it
// is redeemed for.
func (g *Groth16Prover) Verify(ctx context.Context, p Proof, artist string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if artist == "" {
		return fmt.Errorf("%w: artist mismatch", ErrInvalidProof)
	}
	raw, err := base64.StdEncoding.DecodeString(p.ZKProof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	zk := groth16.NewProof(ecc.BN254)
	if _, err := zk.ReadFrom(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%w: cannot decode proof", ErrInvalidProof)
	}

	public := ThresholdCircuit{Threshold: p.Threshold, Artist: artistElement(artist)}
	publicWitness, err := frontend.NewWitness(&public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("%w: cannot build public witness", ErrInvalidProof)
	}
	if err := groth16.Verify(zk, g.vk, publicWitness); err != nil {
		return fmt.Errorf("%w: verification failed", ErrInvalidProof)
	}
	return nil
}
