package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sim-daas/Midnight-Blues/internal/catalog"
	"github.com/sim-daas/Midnight-Blues/internal/proof"
	"github.com/sim-daas/Midnight-Blues/internal/service/serverrors"
)

func newProofService(t *testing.T) *ProofService {
	t.Helper()
	return NewProofService(testCatalog(t), proof.NewStubProver(), 50, discardLogger())
}

func amountPtr(v int64) *int64 { return &v }

func TestCheckTransfer(t *testing.T) {
	s := newProofService(t)

	check, err := s.CheckTransfer(testFan, testArtist)
	require.NoError(t, err)
	assert.True(t, check.Verified)
	assert.Equal(t, int64(75), check.Transfer.Amount)
	assert.Equal(t, int64(50), check.Threshold)
	assert.Equal(t, "Transfer of 75 tDust exceeds threshold of 50", check.Message)

	check, err = s.CheckTransfer("MN_ADDR_FAN_BOB", testArtist)
	require.NoError(t, err)
	assert.False(t, check.Verified)
	assert.Contains(t, check.Message, "does not meet minimum threshold")

	_, err = s.CheckTransfer("mn_addr_stranger", testArtist)
	requireKind(t, err, serverrors.ErrNotFound, serverrors.CodeTransferNotFound)
	assert.ErrorIs(t, err, catalog.ErrTransferNotFound)

	_, err = s.CheckTransfer("", "")
	se := requireKind(t, err, serverrors.ErrValidation, serverrors.CodeMissingFields)
	assert.Equal(t, []string{"fanAddress", "artistAddress"}, se.Details["fields"])
}

func TestRequestProof(t *testing.T) {
	s := newProofService(t)
	ctx := context.Background()

	p, err := s.RequestProof(ctx, testFan, testArtist, amountPtr(75))
	require.NoError(t, err)
	assert.True(t, p.Verified)
	assert.Equal(t, testArtist, p.ArtistAddress)
	assert.Equal(t, int64(50), p.Threshold)

	_, err = s.RequestProof(ctx, testFan, testArtist, amountPtr(50))
	requireKind(t, err, serverrors.ErrForbidden, serverrors.CodeBelowThreshold)

	_, err = s.RequestProof(ctx, testFan, testArtist, amountPtr(-1))
	requireKind(t, err, serverrors.ErrValidation, serverrors.CodeInvalidAmount)

	_, err = s.RequestProof(ctx, testFan, "", nil)
	se := requireKind(t, err, serverrors.ErrValidation, serverrors.CodeMissingFields)
	assert.Equal(t, []string{"artistAddress", "amount"}, se.Details["fields"])
}

func TestUnlockContent(t *testing.T) {
	s := newProofService(t)
	ctx := context.Background()

	p, err := s.RequestProof(ctx, testFan, testArtist, amountPtr(100))
	require.NoError(t, err)

	content, err := s.UnlockContent(ctx, &p, testArtist)
	require.NoError(t, err)
	assert.Equal(t, "backstage pass", content.Content)
	assert.Equal(t, "Midnight Blues", content.Artist.Name)
	assert.Empty(t, content.Artist.SecretContent)
}

func TestUnlockContent_Rejections(t *testing.T) {
	s := newProofService(t)
	ctx := context.Background()

	valid, err := s.RequestProof(ctx, testFan, testArtist, amountPtr(100))
	require.NoError(t, err)

	unverified := valid
	unverified.Verified = false
	_, err = s.UnlockContent(ctx, &unverified, testArtist)
	requireKind(t, err, serverrors.ErrForbidden, serverrors.CodeInvalidProof)

	empty := valid
	empty.ZKProof = ""
	_, err = s.UnlockContent(ctx, &empty, testArtist)
	requireKind(t, err, serverrors.ErrForbidden, serverrors.CodeInvalidProof)

	_, err = s.UnlockContent(ctx, &valid, "mn_addr_other_artist")
	requireKind(t, err, serverrors.ErrForbidden, serverrors.CodeInvalidProof)

	lowered := valid
	lowered.Threshold = 10
	_, err = s.UnlockContent(ctx, &lowered, testArtist)
	requireKind(t, err, serverrors.ErrForbidden, serverrors.CodeInvalidProof)

	_, err = s.UnlockContent(ctx, nil, "")
	se := requireKind(t, err, serverrors.ErrValidation, serverrors.CodeMissingFields)
	assert.Equal(t, []string{"proof", "artistAddress"}, se.Details["fields"])
}

func TestUnlockContent_UnknownArtist(t *testing.T) {
	s := newProofService(t)
	ctx := context.Background()

	p, err := s.RequestProof(ctx, testFan, "mn_addr_ghost", amountPtr(100))
	require.NoError(t, err)

	_, err = s.UnlockContent(ctx, &p, "mn_addr_ghost")
	requireKind(t, err, serverrors.ErrNotFound, serverrors.CodeArtistNotFound)
}

func TestUnlockContent_ProofIsBoundToArtist(t *testing.T) {
	ctx := context.Background()
	provers := []proof.Prover{proof.NewStubProver()}
	if !testing.Short() {
		g, err := proof.NewGroth16Prover()
		require.NoError(t, err)
		provers = append(provers, g)
	}

	for _, prover := range provers {
		t.Run(prover.Scheme(), func(t *testing.T) {
			s := NewProofService(testCatalog(t), prover, 50, discardLogger())

			issued, err := s.RequestProof(ctx, testFan, testArtist, amountPtr(100))
			require.NoError(t, err)

			_, err = s.UnlockContent(ctx, &issued, lateArtist)
			requireKind(t, err, serverrors.ErrForbidden, serverrors.CodeInvalidProof)

			stripped := issued
			stripped.ArtistAddress = ""
			_, err = s.UnlockContent(ctx, &stripped, lateArtist)
			requireKind(t, err, serverrors.ErrForbidden, serverrors.CodeInvalidProof)
			_, err = s.UnlockContent(ctx, &stripped, testArtist)
			requireKind(t, err, serverrors.ErrForbidden, serverrors.CodeInvalidProof)

			relabelled := issued
			relabelled.ArtistAddress = lateArtist
			_, err = s.UnlockContent(ctx, &relabelled, lateArtist)
			requireKind(t, err, serverrors.ErrForbidden, serverrors.CodeInvalidProof)

			content, err := s.UnlockContent(ctx, &issued, testArtist)
			require.NoError(t, err)
			assert.Equal(t, "backstage pass", content.Content)
		})
	}
}
