// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/relabs-tech/step_counter/internal/calibrate"
	"github.com/relabs-tech/step_counter/internal/config"
	"github.com/relabs-tech/step_counter/internal/sensors"
)

// Confidence floor; a finished run never reports hard zero.
const confFloor = 0.05

// CalibrationReport is the JSON document written by the calibration tool.
type CalibrationReport struct {
	Timestamp  time.Time          `json:"timestamp"`
	Sensor     string             `json:"sensor"`
	Axes       string             `json:"axes"`
	Baseline   calibrate.Baseline `json:"baseline"`
	Confidence float64            `json:"confidence"`
}

// stillnessConfidence maps a standard deviation to 0..1: 1 up to good,
// confFloor from bad on, linear in between.
func stillnessConfidence(std, good, bad float64) float64 {
	if good <= 0 || bad <= good {
		return 1
	}
	switch {
	case std <= good:
		return 1
	case std >= bad:
		return confFloor
	}
	c := 1 - (std-good)/(bad-good)
	if c < confFloor {
		c = confFloor
	}
	return c
}

// RunCalibration measures the resting magnitude with the configured sensor,
// prints the result to w and, when outPath is set, stores the report there.
func RunCalibration(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer, outPath string) (CalibrationReport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	src, closer, err := sensors.Open(cfg, logger)
	if err != nil {
		return CalibrationReport{}, fmt.Errorf("open sensor: %w", err)
	}
	defer closer.Close()

	fmt.Fprintln(w, "=== Baseline calibration ===")
	fmt.Fprintln(w, "Place the device on a stable surface and do not touch it.")
	fmt.Fprintf(w, "Capturing %d samples, %v apart...\n", cfg.CalibrationSamples, cfg.CalibrationDelay)

	b, err := calibrate.Run(ctx, src, calibrate.Options{
		Samples:                cfg.CalibrationSamples,
		Delay:                  cfg.CalibrationDelay,
		Axes:                   cfg.Axes,
		MaxConsecutiveFailures: cfg.CalibrationMaxFailures,
		StillnessLimit:         cfg.CalibrationStillnessG,
		Logger:                 logger,
	})
	if err != nil {
		return CalibrationReport{}, err
	}

	report := CalibrationReport{
		Timestamp:  time.Now().UTC(),
		Sensor:     cfg.Sensor,
		Axes:       cfg.Axes.String(),
		Baseline:   b,
		Confidence: stillnessConfidence(b.StdDev, cfg.CalibrationStillnessG, 4*cfg.CalibrationStillnessG),
	}

	fmt.Fprintf(w, "Baseline: %.4f g  std=%.4f g  samples=%d  failures=%d  confidence=%.2f\n",
		b.Magnitude, b.StdDev, b.Samples, b.Failures, report.Confidence)
	fmt.Fprintln(w, "Add this line to the config file to skip calibration at startup:")
	fmt.Fprintf(w, "BASELINE_G=%.4f\n", b.Magnitude)

	if outPath != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return report, fmt.Errorf("marshal calibration report: %w", err)
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return report, fmt.Errorf("write calibration report: %w", err)
		}
		fmt.Fprintf(w, "Saved to %s\n", outPath)
	}
	return report, nil
}
