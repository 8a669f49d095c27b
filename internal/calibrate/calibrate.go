// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibrate estimates the resting acceleration magnitude of a
// stationary sensor.
package calibrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/step_counter/internal/motion"
)

// ErrSensorUnavailable means calibration could not collect usable samples.
var ErrSensorUnavailable = errors.New("sensor unavailable during calibration")

const (
	DefaultSamples                = 100
	DefaultDelay                  = 10 * time.Millisecond
	DefaultMaxConsecutiveFailures = 5
	DefaultStillnessLimit         = 0.05 // g
)

// Options control one calibration run.
type Options struct {
	Samples                int
	Delay                  time.Duration
	Axes                   motion.Axes
	MaxConsecutiveFailures int
	// StillnessLimit is the standard deviation (g) above which the device is
	// reported as probably moving. Zero disables the warning.
	StillnessLimit float64
	Logger         *slog.Logger
}

// Baseline is the result of a calibration run.
type Baseline struct {
	Magnitude float64 `json:"magnitude"`
	StdDev    float64 `json:"stddev"`
	Samples   int     `json:"samples"`
	Failures  int     `json:"failures"`
}

// Run draws opts.Samples reads from src, opts.Delay apart, and averages the
// magnitudes of the successful ones. Failed reads do not contribute. The run
// is aborted with ErrSensorUnavailable after MaxConsecutiveFailures failed
// reads in a row, or when no read succeeded.
func Run(ctx context.Context, src motion.Source, opts Options) (Baseline, error) {
	if opts.Samples <= 0 {
		return Baseline{}, fmt.Errorf("calibration sample count must be > 0, got %d", opts.Samples)
	}
	if opts.Delay < 0 {
		return Baseline{}, fmt.Errorf("calibration delay must be >= 0, got %v", opts.Delay)
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("calibrating baseline, keep the device still",
		slog.Int("samples", opts.Samples),
		slog.Duration("delay", opts.Delay),
		slog.String("axes", opts.Axes.String()))

	var timer *time.Timer
	if opts.Delay > 0 {
		timer = time.NewTimer(opts.Delay)
		defer timer.Stop()
	}

	mags := make([]float64, 0, opts.Samples)
	failures, streak := 0, 0
	for i := 0; i < opts.Samples; i++ {
		if i > 0 && timer != nil {
			timer.Reset(opts.Delay)
			select {
			case <-ctx.Done():
				return Baseline{}, ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return Baseline{}, err
		}

		s, err := src.Read()
		if err != nil {
			failures++
			streak++
			logger.Warn("calibration read failed",
				slog.Int("sample", i),
				slog.Int("consecutive", streak),
				slog.Any("error", err))
			if streak >= opts.MaxConsecutiveFailures {
				return Baseline{}, fmt.Errorf("%w: %d consecutive read failures: %w", ErrSensorUnavailable, streak, err)
			}
			continue
		}
		streak = 0
		mags = append(mags, motion.Magnitude(s, opts.Axes))
	}

	if len(mags) == 0 {
		return Baseline{}, fmt.Errorf("%w: no successful reads out of %d", ErrSensorUnavailable, opts.Samples)
	}

	mean, std := stat.MeanStdDev(mags, nil)
	if len(mags) < 2 {
		std = 0
	}
	b := Baseline{
		Magnitude: mean,
		StdDev:    std,
		Samples:   len(mags),
		Failures:  failures,
	}

	if opts.StillnessLimit > 0 && std > opts.StillnessLimit {
		logger.Warn("device moved during calibration, baseline may be biased",
			slog.Float64("stddev_g", std),
			slog.Float64("limit_g", opts.StillnessLimit))
	}
	logger.Info("calibration complete",
		slog.Float64("baseline_g", b.Magnitude),
		slog.Float64("stddev_g", b.StdDev),
		slog.Int("samples", b.Samples),
		slog.Int("failures", b.Failures))

	return b, nil
}
