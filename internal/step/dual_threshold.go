// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package step

import "time"

// dualThresholdDetector has no time-based debounce; the gap between low and
// high is what stops chatter.
type dualThresholdDetector struct {
	high float64
	low  float64

	overThreshold bool
	lastStep      time.Time
	hasStepped    bool
	count         uint64
}

func (d *dualThresholdDetector) Update(m float64, now time.Time) bool {
	if !finite(m) {
		return false
	}

	if m > d.high && !d.overThreshold {
		d.count++
		d.overThreshold = true
		d.lastStep = now
		d.hasStepped = true
		return true
	}
	if m < d.low {
		d.overThreshold = false
	}
	return false
}

func (d *dualThresholdDetector) Count() uint64 { return d.count }

func (d *dualThresholdDetector) Policy() Policy { return PolicyDualThreshold }

func (d *dualThresholdDetector) State() State {
	return State{Armed: d.overThreshold, LastStep: d.lastStep, HasStepped: d.hasStepped}
}
