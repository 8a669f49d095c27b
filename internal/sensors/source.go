// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides the accelerometer drivers behind motion.Source.
package sensors

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/relabs-tech/step_counter/internal/config"
	"github.com/relabs-tech/step_counter/internal/motion"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open initializes the sensor selected by cfg.Sensor and wraps it in the
// configured retry budget. The closer releases the underlying bus.
func Open(cfg *config.Config, logger *slog.Logger) (*motion.RetrySource, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		src    motion.Source
		closer io.Closer = nopCloser{}
	)

	switch cfg.Sensor {
	case config.SensorMock:
		logger.Info("using mock walking source",
			slog.Duration("step_period", cfg.MockStepPeriod),
			slog.Float64("pulse_g", cfg.MockPulseG),
			slog.Float64("noise_g", cfg.MockNoiseG))
		src = motion.NewWalkSource(cfg.MockStepPeriod, cfg.MockPulseG, cfg.MockNoiseG)

	case config.SensorLSM6DSO:
		dev, err := OpenLSM6DSO(cfg.I2CBus, cfg.LSM6DSOAddr, logger)
		if err != nil {
			return nil, nil, err
		}
		src, closer = dev, dev

	case config.SensorMPU9250:
		dev, err := OpenMPU9250(cfg.MPU9250SPIDevice, cfg.MPU9250CSPin, cfg.MPU9250AccelRange, logger)
		if err != nil {
			return nil, nil, err
		}
		src, closer = dev, dev

	default:
		return nil, nil, fmt.Errorf("unknown sensor %q", cfg.Sensor)
	}

	return motion.NewRetrySource(src, cfg.ReadRetries, cfg.ReadRetryBackoff, logger), closer, nil
}
