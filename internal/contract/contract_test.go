package contract

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSource = `
contract SecretContentAccess {
  public artist: Bytes<32>;
  private threshold: Uint<64>;
  witness transferAmount(): Uint<64>;
  circuit TransferVerifier(): Boolean { return transferAmount() > threshold; }
}`

func newTestDeployer() *Deployer {
	return NewDeployer("ws://localhost:9944", "http://localhost:6300", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(validSource))

	err := Validate("contract Foo { circuit Bar() }")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"witness", "public", "private", "TransferVerifier", "SecretContentAccess"}, verr.Missing)
	assert.Contains(t, err.Error(), "witness, public, private")
}

func TestValidate_RepositoryContract(t *testing.T) {
	code, err := Load(filepath.Join("..", "..", "contract", "transfer-verifier.cmp"))
	require.NoError(t, err)
	assert.NoError(t, Validate(code))
}

func TestDeployInitializeSave(t *testing.T) {
	d := newTestDeployer()
	ctx := context.Background()

	info, err := d.Deploy(ctx, validSource)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^0x[0-9a-f]{40}$`), info.Address)
	assert.Equal(t, "ws://localhost:9944", info.Network)
	assert.False(t, info.Initialized)

	info, err = d.Initialize(ctx, info, "mn_addr_artist", 50)
	require.NoError(t, err)
	assert.True(t, info.Initialized)
	assert.Equal(t, &ArtistThreshold{Address: "mn_addr_artist", Threshold: 50}, info.ArtistThreshold)

	path := filepath.Join(t.TempDir(), "out", "deployment-info.json")
	require.NoError(t, Save(path, info))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got DeploymentInfo
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, info.Address, got.Address)
	assert.Equal(t, int64(50), got.ArtistThreshold.Threshold)
}

func TestDeploy_RejectsInvalidSource(t *testing.T) {
	_, err := newTestDeployer().Deploy(context.Background(), "nothing here")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDeploy_Cancelled(t *testing.T) {
	d := newTestDeployer()
	d.delay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Deploy(ctx, validSource)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cmp"))
	assert.ErrorContains(t, err, "contract file not found")
}

func TestInitialize_Validation(t *testing.T) {
	d := newTestDeployer()
	_, err := d.Initialize(context.Background(), DeploymentInfo{}, "", 50)
	assert.Error(t, err)
	_, err = d.Initialize(context.Background(), DeploymentInfo{}, "a", -1)
	assert.Error(t, err)
}
