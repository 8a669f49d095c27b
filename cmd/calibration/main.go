// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Measures the resting acceleration magnitude used as the baseline by the
// deviation step detector.
//
// Output:
//
//	Prints a BASELINE_G line for the config file and writes a JSON report
//	with the baseline, its standard deviation and a stillness confidence.
//
// Run:
//
//	go run ./cmd/calibration -config ./stepcounter_config.txt
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
	outPath := flag.String("out", "./stepcounter_calibration.json", "calibration report path (empty to skip)")
	samples := flag.Int("samples", 0, "override CALIBRATION_SAMPLES")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup(slog.LevelInfo).Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)
	if *samples > 0 {
		cfg.CalibrationSamples = *samples
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := app.RunCalibration(ctx, cfg, logger, os.Stdout, *outPath); err != nil {
		logger.Error("calibration failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}
