package proof

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

const SchemeStub = "stub"

// StubProver fabricates an opaque blob. It checks the statement but proves nothing.
type StubProver struct {
	now func() time.Time
}

func NewStubProver() *StubProver {
	return &StubProver{now: time.Now}
}

type stubBlob struct {
	Witness      string   `json:"witness"`
	PublicInputs []string `json:"publicInputs"`
	Proof        string   `json:"proof"`
}

func (p *StubProver) Scheme() string { return SchemeStub }

func (p *StubProver) Prove(ctx context.Context, st Statement) (Proof, error) {
	if err := ctx.Err(); err != nil {
		return Proof{}, err
	}
	if st.Amount <= st.Threshold {
		return Proof{}, ErrStatementFalse
	}

	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return Proof{}, err
	}
	blob, err := json.Marshal(stubBlob{
		Witness:      "hidden",
		PublicInputs: []string{st.ArtistAddress},
		Proof:        "mock_proof_data_" + hex.EncodeToString(nonce),
	})
	if err != nil {
		return Proof{}, err
	}

	now := p.now().UTC()
	return Proof{
		ProofID:       newProofID(now),
		Statement:     st.String(),
		Verified:      true,
		Timestamp:     now,
		ZKProof:       base64.StdEncoding.EncodeToString(blob),
		Scheme:        SchemeStub,
		Threshold:     st.Threshold,
		ArtistAddress: st.ArtistAddress,
	}, nil
}

// Verify only checks the blob is well formed and names artist as a public input.
func (p *StubProver) Verify(_ context.Context, pr Proof, artist string) error {
	raw, err := base64.StdEncoding.DecodeString(pr.ZKProof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	var blob stubBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if artist == "" || !slices.ContainsFunc(blob.PublicInputs, func(in string) bool {
		return strings.EqualFold(in, artist)
	}) {
		return fmt.Errorf("%w: artist mismatch", ErrInvalidProof)
	}
	return nil
}
