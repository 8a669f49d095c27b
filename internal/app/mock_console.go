// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/relabs-tech/step_counter/internal/config"
	"github.com/relabs-tech/step_counter/internal/motion"
	"github.com/relabs-tech/step_counter/internal/notify"
	"github.com/relabs-tech/step_counter/internal/sensors"
	"github.com/relabs-tech/step_counter/internal/step"
)

// RunMockConsole runs the full pipeline against the mock walker and prints
// step changes to w, without any broker or hardware.
func RunMockConsole(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer) error {
	if logger == nil {
		logger = slog.Default()
	}
	mockCfg := *cfg
	mockCfg.Sensor = config.SensorMock
	// The walker never stands still; use its resting magnitude.
	if mockCfg.NeedsCalibration() {
		mockCfg.BaselineG = motion.WalkRestingMagnitude(mockCfg.Axes)
		mockCfg.HasBaselineG = true
	}

	src, closer, err := sensors.Open(&mockCfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	baseline, err := resolveBaseline(ctx, &mockCfg, src, logger)
	if err != nil {
		return err
	}
	detector, err := step.New(mockCfg.StepConfig(baseline))
	if err != nil {
		return err
	}

	publisher := notify.NewPublisher(newStepPrinter(w), notify.PublisherOptions{
		Cadence: notify.CadenceOnChange,
		Format:  notify.FormatDecimal,
		Logger:  logger,
	})
	return NewPipeline(src, mockCfg.Axes, detector, baseline, publisher, nil, logger).
		Run(ctx, mockCfg.SampleInterval)
}
