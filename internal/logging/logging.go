// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logging builds the colored slog handler shared by all binaries.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a logger writing tinted records at or above level to w.
// Color is disabled unless w is a terminal-like *os.File.
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	_, isFile := w.(*os.File)
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isFile,
	}))
}

// Setup installs a stderr logger as the slog and log package default.
func Setup(level slog.Leveler) *slog.Logger {
	logger := New(os.Stderr, level)
	slog.SetDefault(logger)
	return logger
}

// StdLogger adapts logger to a *log.Logger emitting at level, for libraries
// that take a Println/Printf style logger.
func StdLogger(logger *slog.Logger, level slog.Level) *log.Logger {
	return slog.NewLogLogger(logger.Handler(), level)
}
