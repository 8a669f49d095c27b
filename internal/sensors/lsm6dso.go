// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/step_counter/internal/motion"
)

// LSM6DSO registers.
const (
	lsm6dsoWhoAmI  = 0x0F
	lsm6dsoCtrl1XL = 0x10
	lsm6dsoCtrl3C  = 0x12
	lsm6dsoOutXLA  = 0x28

	lsm6dsoID = 0x6C

	// CTRL1_XL: ODR 104 Hz, ±2 g full scale.
	lsm6dsoAccel104Hz2g = 0x40
	// CTRL3_C: register auto-increment (IF_INC) with block data update.
	lsm6dsoIfIncBDU = 0x44

	// Sensitivity at ±2 g.
	lsm6dsoGPerLSB = 0.000061

	DefaultLSM6DSOAddr = 0x6B
)

// regConn is the register transport; *i2c.Dev satisfies it.
type regConn interface {
	Tx(w, r []byte) error
}

// LSM6DSO reads the accelerometer of an ST LSM6DSO over I2C. It performs a
// single bus transaction per Read and does not retry; wrap it in a
// motion.RetrySource.
type LSM6DSO struct {
	dev   regConn
	close func() error
}

// OpenLSM6DSO opens the I2C bus (empty name = first bus), checks WHO_AM_I
// and configures 104 Hz / ±2 g.
func OpenLSM6DSO(busName string, addr uint16, logger *slog.Logger) (*LSM6DSO, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("lsm6dso: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("lsm6dso: open I2C bus %q: %w", busName, err)
	}

	s, err := newLSM6DSO(&i2c.Dev{Bus: bus, Addr: addr})
	if err != nil {
		bus.Close()
		return nil, err
	}
	s.close = bus.Close
	logger.Info("lsm6dso configured",
		slog.String("bus", bus.String()),
		slog.String("addr", fmt.Sprintf("0x%02X", addr)),
		slog.String("mode", "104Hz ±2g"))
	return s, nil
}

func newLSM6DSO(dev regConn) (*LSM6DSO, error) {
	id := make([]byte, 1)
	if err := dev.Tx([]byte{lsm6dsoWhoAmI}, id); err != nil {
		return nil, fmt.Errorf("lsm6dso: read WHO_AM_I: %w", err)
	}
	if id[0] != lsm6dsoID {
		return nil, fmt.Errorf("lsm6dso: unexpected WHO_AM_I 0x%02X, want 0x%02X", id[0], lsm6dsoID)
	}
	if err := dev.Tx([]byte{lsm6dsoCtrl3C, lsm6dsoIfIncBDU}, nil); err != nil {
		return nil, fmt.Errorf("lsm6dso: write CTRL3_C: %w", err)
	}
	if err := dev.Tx([]byte{lsm6dsoCtrl1XL, lsm6dsoAccel104Hz2g}, nil); err != nil {
		return nil, fmt.Errorf("lsm6dso: write CTRL1_XL: %w", err)
	}
	return &LSM6DSO{dev: dev}, nil
}

// Read burst-reads OUTX_L_A..OUTZ_H_A and converts to g.
func (s *LSM6DSO) Read() (motion.Sample, error) {
	buf := make([]byte, 6)
	if err := s.dev.Tx([]byte{lsm6dsoOutXLA}, buf); err != nil {
		return motion.Sample{}, fmt.Errorf("lsm6dso: read accel: %w", err)
	}
	return motion.Sample{
		X: float64(int16(binary.LittleEndian.Uint16(buf[0:2]))) * lsm6dsoGPerLSB,
		Y: float64(int16(binary.LittleEndian.Uint16(buf[2:4]))) * lsm6dsoGPerLSB,
		Z: float64(int16(binary.LittleEndian.Uint16(buf[4:6]))) * lsm6dsoGPerLSB,
	}, nil
}

// Close releases the bus.
func (s *LSM6DSO) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
