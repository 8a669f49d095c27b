package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown", slog.Int("steps", 7))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "steps=7")
	assert.NotContains(t, out, "\x1b[", "no color codes outside a terminal")
}

func TestStdLoggerForwards(t *testing.T) {
	var buf bytes.Buffer
	std := StdLogger(New(&buf, slog.LevelDebug), slog.LevelError)

	std.Printf("broker said %s", "no")

	assert.Contains(t, buf.String(), "broker said no")
	assert.Contains(t, buf.String(), "ERR")
}
