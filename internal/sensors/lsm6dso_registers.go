// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"strconv"
	"strings"
)

// RegisterInfo describes one device register.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"`
	Default     byte       `json:"default"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// BitField describes a field inside a register. Bits is "7:4" or "2".
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// Extract returns the field value contained in the register value v.
func (f BitField) Extract(v byte) (byte, error) {
	hi, lo, err := parseBits(f.Bits)
	if err != nil {
		return 0, err
	}
	width := hi - lo + 1
	return (v >> lo) & byte(1<<width-1), nil
}

func parseBits(bits string) (hi, lo uint, err error) {
	parts := strings.SplitN(bits, ":", 2)
	h, err := strconv.ParseUint(parts[0], 10, 3)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid bit range %q", bits)
	}
	l := h
	if len(parts) == 2 {
		if l, err = strconv.ParseUint(parts[1], 10, 3); err != nil {
			return 0, 0, fmt.Errorf("invalid bit range %q", bits)
		}
	}
	if l > h {
		return 0, 0, fmt.Errorf("invalid bit range %q", bits)
	}
	return uint(h), uint(l), nil
}

// RegisterValue is a register read back from the device.
type RegisterValue struct {
	RegisterInfo
	Value byte `json:"value"`
}

// lsm6dsoRegisterMap lists the accelerometer registers the counter touches
// or that help when debugging a board.
func lsm6dsoRegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: lsm6dsoWhoAmI, Name: "WHO_AM_I", Description: "Device identification", Access: "R", Default: lsm6dsoID},
		{Address: lsm6dsoCtrl1XL, Name: "CTRL1_XL", Description: "Accelerometer control 1", Access: "RW", Default: 0x00,
			BitFields: []BitField{
				{Bits: "7:4", Name: "ODR_XL", Description: "Output data rate", Values: "0=Off, 1=12.5Hz, 2=26Hz, 3=52Hz, 4=104Hz, 5=208Hz, 6=416Hz, 7=833Hz, 8=1.66kHz"},
				{Bits: "3:2", Name: "FS_XL", Description: "Full scale", Values: "0=±2g, 1=±16g, 2=±4g, 3=±8g"},
				{Bits: "1", Name: "LPF2_XL_EN", Description: "Second low-pass filter stage", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: lsm6dsoCtrl3C, Name: "CTRL3_C", Description: "Control 3", Access: "RW", Default: 0x04,
			BitFields: []BitField{
				{Bits: "7", Name: "BOOT", Description: "Reboot memory content"},
				{Bits: "6", Name: "BDU", Description: "Block data update", Values: "0=Continuous, 1=Wait for MSB and LSB read"},
				{Bits: "2", Name: "IF_INC", Description: "Register auto-increment", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "SW_RESET", Description: "Software reset"},
			}},
		{Address: 0x1E, Name: "STATUS_REG", Description: "Data ready status", Access: "R", Default: 0x00,
			BitFields: []BitField{
				{Bits: "2", Name: "TDA", Description: "Temperature data available"},
				{Bits: "1", Name: "GDA", Description: "Gyroscope data available"},
				{Bits: "0", Name: "XLDA", Description: "Accelerometer data available"},
			}},
		{Address: lsm6dsoOutXLA, Name: "OUTX_L_A", Description: "Accel X low byte", Access: "R"},
		{Address: lsm6dsoOutXLA + 1, Name: "OUTX_H_A", Description: "Accel X high byte", Access: "R"},
		{Address: lsm6dsoOutXLA + 2, Name: "OUTY_L_A", Description: "Accel Y low byte", Access: "R"},
		{Address: lsm6dsoOutXLA + 3, Name: "OUTY_H_A", Description: "Accel Y high byte", Access: "R"},
		{Address: lsm6dsoOutXLA + 4, Name: "OUTZ_L_A", Description: "Accel Z low byte", Access: "R"},
		{Address: lsm6dsoOutXLA + 5, Name: "OUTZ_H_A", Description: "Accel Z high byte", Access: "R"},
	}
}

// DumpRegisters reads every mapped register one at a time.
func (s *LSM6DSO) DumpRegisters() ([]RegisterValue, error) {
	regs := lsm6dsoRegisterMap()
	out := make([]RegisterValue, 0, len(regs))
	buf := make([]byte, 1)
	for _, r := range regs {
		if err := s.dev.Tx([]byte{r.Address}, buf); err != nil {
			return out, fmt.Errorf("lsm6dso: read %s (0x%02X): %w", r.Name, r.Address, err)
		}
		out = append(out, RegisterValue{RegisterInfo: r, Value: buf[0]})
	}
	return out, nil
}
