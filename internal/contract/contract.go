// Package contract performs the local, mock deployment of the transfer
// verifier contract: it checks the source, fabricates an address and records
// the deployment.
package contract

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	requiredKeywords = []string{"circuit", "contract", "witness", "public", "private"}
	requiredNames    = []string{"TransferVerifier", "SecretContentAccess"}
)

// ValidationError lists everything the source lacks.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("contract missing required keywords: %s", strings.Join(e.Missing, ", "))
}

type ArtistThreshold struct {
	Address   string `json:"address"`
	Threshold int64  `json:"threshold"`
}

type DeploymentInfo struct {
	Address         string           `json:"address"`
	Network         string           `json:"network"`
	ProofServer     string           `json:"proofServer,omitempty"`
	DeployedAt      time.Time        `json:"deployedAt"`
	Initialized     bool             `json:"initialized"`
	ArtistThreshold *ArtistThreshold `json:"artistThreshold,omitempty"`
}

func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("contract file not found: %s", path)
		}
		return "", fmt.Errorf("read contract: %w", err)
	}
	return string(data), nil
}

// Validate is a keyword scan, not a compiler.
func Validate(code string) error {
	var missing []string
	for _, kw := range append(append([]string(nil), requiredKeywords...), requiredNames...) {
		if !strings.Contains(code, kw) {
			missing = append(missing, kw)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

type Deployer struct {
	network     string
	proofServer string
	delay       time.Duration
	log         *slog.Logger
	now         func() time.Time
}

func NewDeployer(network, proofServer string, delay time.Duration, log *slog.Logger) *Deployer {
	return &Deployer{
		network:     network,
		proofServer: proofServer,
		delay:       delay,
		log:         log.With(slog.String("component", "contract_deployer")),
		now:         time.Now,
	}
}

// Deploy pretends to publish code and returns a fabricated 0x address.
func (d *Deployer) Deploy(ctx context.Context, code string) (DeploymentInfo, error) {
	if err := Validate(code); err != nil {
		return DeploymentInfo{}, err
	}

	d.log.Info("deploying contract",
		slog.String("network", d.network),
		slog.String("proof_server", d.proofServer),
		slog.Int("size", len(code)),
	)
	if err := sleep(ctx, d.delay); err != nil {
		return DeploymentInfo{}, fmt.Errorf("deploy: %w", err)
	}

	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return DeploymentInfo{}, fmt.Errorf("fabricate address: %w", err)
	}

	info := DeploymentInfo{
		Address:     "0x" + hex.EncodeToString(buf),
		Network:     d.network,
		ProofServer: d.proofServer,
		DeployedAt:  d.now().UTC(),
	}
	d.log.Info("contract deployed", slog.String("address", info.Address))
	return info, nil
}

// Initialize sets the unlock threshold for artist.
func (d *Deployer) Initialize(ctx context.Context, info DeploymentInfo, artist string, threshold int64) (DeploymentInfo, error) {
	if artist == "" {
		return DeploymentInfo{}, errors.New("artist address is required")
	}
	if threshold < 0 {
		return DeploymentInfo{}, fmt.Errorf("threshold must not be negative, got %d", threshold)
	}

	d.log.Info("initializing contract",
		slog.String("artist", artist),
		slog.Int64("threshold", threshold),
	)
	if err := sleep(ctx, d.delay/2); err != nil {
		return DeploymentInfo{}, fmt.Errorf("initialize: %w", err)
	}

	info.Initialized = true
	info.ArtistThreshold = &ArtistThreshold{Address: artist, Threshold: threshold}
	return info, nil
}

func Save(path string, info DeploymentInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal deployment info: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write deployment info: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
