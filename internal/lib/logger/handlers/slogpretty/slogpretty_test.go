package slogpretty

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	opts := PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo}}
	log := slog.New(opts.NewPrettyHandler(&buf)).With(slog.String("component", "ledger"))

	log.Debug("hidden")
	log.WithGroup("req").Error("save failed", slog.Any("error", errors.New("disk full")), slog.Int("attempt", 2))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "ERROR:")
	assert.Contains(t, out, "save failed")
	assert.Contains(t, out, `"component": "ledger"`)
	assert.Contains(t, out, `"req.error": "disk full"`)
	assert.Contains(t, out, `"req.attempt": 2`)
}
