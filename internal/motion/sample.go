// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion defines acceleration samples and the sources that produce them.
package motion

import (
	"fmt"
	"math"
	"strings"
)

// Sample is a single accelerometer reading in units of g.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Source is anything that can deliver acceleration samples.
// Implementations may retry internally but must not block indefinitely.
type Source interface {
	Read() (Sample, error)
}

// Axes selects which axes contribute to a magnitude.
type Axes uint8

const (
	AxisX Axes = 1 << iota
	AxisY
	AxisZ

	AllAxes = AxisX | AxisY | AxisZ
)

// ParseAxes parses an axis selection such as "xyz", "xy" or "y".
func ParseAxes(s string) (Axes, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty axis selection")
	}

	var a Axes
	for _, r := range s {
		var bit Axes
		switch r {
		case 'x':
			bit = AxisX
		case 'y':
			bit = AxisY
		case 'z':
			bit = AxisZ
		default:
			return 0, fmt.Errorf("unknown axis %q in %q", r, s)
		}
		if a&bit != 0 {
			return 0, fmt.Errorf("axis %q repeated in %q", r, s)
		}
		a |= bit
	}
	return a, nil
}

func (a Axes) String() string {
	var b strings.Builder
	if a&AxisX != 0 {
		b.WriteByte('x')
	}
	if a&AxisY != 0 {
		b.WriteByte('y')
	}
	if a&AxisZ != 0 {
		b.WriteByte('z')
	}
	return b.String()
}

// Magnitude returns the Euclidean norm of the selected axes of s.
// A zero axis selection means all axes. The result is never negative.
func Magnitude(s Sample, axes Axes) float64 {
	if axes == 0 {
		axes = AllAxes
	}

	var sum float64
	if axes&AxisX != 0 {
		sum += s.X * s.X
	}
	if axes&AxisY != 0 {
		sum += s.Y * s.Y
	}
	if axes&AxisZ != 0 {
		sum += s.Z * s.Z
	}
	return math.Sqrt(sum)
}
