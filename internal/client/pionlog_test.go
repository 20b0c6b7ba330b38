package client

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPionLoggerFactory(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l := NewPionLoggerFactory(log).NewLogger("ice")
	l.Infof("gathered %d candidates", 3)
	l.Trace("hidden")

	out := buf.String()
	assert.Contains(t, out, "mod=ice")
	assert.Contains(t, out, "gathered 3 candidates")
	assert.NotContains(t, out, "hidden")
}
