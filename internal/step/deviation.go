// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package step

import (
	"math"
	"time"
)

type deviationDetector struct {
	baseline    float64
	threshold   float64
	minInterval time.Duration

	armed      bool
	lastStep   time.Time
	hasStepped bool
	count      uint64
}

func (d *deviationDetector) Update(m float64, now time.Time) bool {
	if !finite(m) {
		return false
	}

	if math.Abs(m-d.baseline) <= d.threshold {
		d.armed = false
		return false
	}

	// Above threshold the detector always ends up armed, including when the
	// interval guard swallowed the step, so a held excursion is never
	// counted late.
	wasArmed := d.armed
	d.armed = true
	if wasArmed {
		return false
	}
	if d.hasStepped && now.Sub(d.lastStep) <= d.minInterval {
		return false
	}

	d.count++
	d.lastStep = now
	d.hasStepped = true
	return true
}

func (d *deviationDetector) Count() uint64 { return d.count }

func (d *deviationDetector) Policy() Policy { return PolicyDeviation }

func (d *deviationDetector) State() State {
	return State{Armed: d.armed, LastStep: d.lastStep, HasStepped: d.hasStepped}
}
