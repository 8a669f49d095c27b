// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/step_counter/internal/motion"
)

// accelCounts reads raw accelerometer counts; *mpu9250.MPU9250 satisfies it.
type accelCounts interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
}

// LSB per g for ACCEL_FS_SEL 0..3 (±2, ±4, ±8, ±16 g).
var mpu9250LSBPerG = [...]float64{16384, 8192, 4096, 2048}

// MPU9250 reads the accelerometer of an InvenSense MPU9250 over SPI.
type MPU9250 struct {
	name    string
	imu     accelCounts
	lsbPerG float64
}

// OpenMPU9250 initializes the MPU9250 on spiDev with chip select csPin,
// applies the accelerometer range (0=±2g … 3=±16g) and runs the driver's
// bias calibration.
func OpenMPU9250(spiDev, csPin string, accelRange byte, logger *slog.Logger) (*MPU9250, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if int(accelRange) >= len(mpu9250LSBPerG) {
		return nil, fmt.Errorf("mpu9250: accel range must be 0-3, got %d", accelRange)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("mpu9250: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("mpu9250: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("mpu9250: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("mpu9250: device creation: %w", err)
	}
	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("mpu9250: initialization: %w", err)
	}
	if err := imu.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("mpu9250: set accel range: %w", err)
	}
	logger.Info("mpu9250 accelerometer range set",
		slog.Int("range", int(accelRange)),
		slog.Int("full_scale_g", []int{2, 4, 8, 16}[accelRange]))

	// Bias calibration only trims offsets; a failure leaves usable raw data.
	if err := imu.Calibrate(); err != nil {
		logger.Warn("mpu9250 calibration failed", slog.Any("error", err))
	} else {
		logger.Info("mpu9250 calibration complete")
	}

	return newMPU9250(spiDev, imu, accelRange), nil
}

func newMPU9250(name string, imu accelCounts, accelRange byte) *MPU9250 {
	return &MPU9250{name: name, imu: imu, lsbPerG: mpu9250LSBPerG[accelRange]}
}

// Read returns the current acceleration in g.
func (s *MPU9250) Read() (motion.Sample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("mpu9250 %s accel X: %w", s.name, err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("mpu9250 %s accel Y: %w", s.name, err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("mpu9250 %s accel Z: %w", s.name, err)
	}

	return motion.Sample{
		X: float64(ax) / s.lsbPerG,
		Y: float64(ay) / s.lsbPerG,
		Z: float64(az) / s.lsbPerG,
	}, nil
}

// Close is a no-op; the SPI port stays owned by the periph host.
func (s *MPU9250) Close() error { return nil }
