// Package jsonfile persists the ledger snapshot as one indented JSON document.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sim-daas/Midnight-Blues/internal/ledger"
)

type LedgerFile struct {
	path string
	log  *slog.Logger
}

func NewLedgerFile(path string, log *slog.Logger) *LedgerFile {
	return &LedgerFile{
		path: path,
		log:  log.With(slog.String("component", "ledger_file")),
	}
}

// Load returns an empty snapshot when the file does not exist yet.
func (f *LedgerFile) Load(_ context.Context) (ledger.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.log.Info("ledger file not found, starting empty", slog.String("path", f.path))
		return ledger.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return ledger.Snapshot{}, nil
	}

	var snapshot ledger.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return snapshot, nil
}

// Save rewrites the whole document through a temp file and a rename, so a crash
// never leaves a half written ledger behind.
func (f *LedgerFile) Save(ctx context.Context, snapshot ledger.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
