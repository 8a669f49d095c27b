// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/step_counter/internal/app"
	"github.com/relabs-tech/step_counter/internal/config"
	"github.com/relabs-tech/step_counter/internal/logging"
)

func main() {
	configPath := flag.String("config", "./stepcounter_config.txt", "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup(slog.LevelInfo).Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunStepCounter(ctx, cfg, logger); err != nil {
		logger.Error("fatal", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}
