// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package step turns a stream of acceleration magnitudes into a step count.
//
// Two hysteresis policies are available behind the Detector interface:
//
//   - PolicyDeviation counts an excursion of |m - baseline| above a single
//     threshold, re-arming once the deviation falls back under it, with a
//     minimum interval between counted steps.
//   - PolicyDualThreshold counts when m rises above a high threshold and
//     re-arms only when m drops below a separate low threshold.
//
// A Detector is owned by a single sampling loop and is not safe for
// concurrent use.
package step

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every construction-time validation failure.
var ErrInvalidConfig = errors.New("invalid step detector config")

// Policy selects the detection algorithm.
type Policy int

const (
	PolicyDeviation Policy = iota + 1
	PolicyDualThreshold
)

func (p Policy) String() string {
	switch p {
	case PolicyDeviation:
		return "deviation"
	case PolicyDualThreshold:
		return "dual_threshold"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts the names produced by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deviation", "a":
		return PolicyDeviation, nil
	case "dual_threshold", "b":
		return PolicyDualThreshold, nil
	default:
		return 0, fmt.Errorf("unknown step policy %q", s)
	}
}

// Config holds the thresholds for one run. Fields not used by the selected
// policy are ignored.
type Config struct {
	Policy Policy

	// PolicyDeviation
	Baseline    float64       // resting magnitude in g
	Threshold   float64       // allowed deviation from Baseline in g
	MinInterval time.Duration // minimum time between counted steps

	// PolicyDualThreshold
	High float64 // g
	Low  float64 // g
}

// Validate reports configuration errors wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch c.Policy {
	case PolicyDeviation:
		if !finite(c.Baseline) || c.Baseline < 0 {
			return fmt.Errorf("%w: baseline must be a finite value >= 0, got %v", ErrInvalidConfig, c.Baseline)
		}
		if !finite(c.Threshold) || c.Threshold <= 0 {
			return fmt.Errorf("%w: threshold must be a finite value > 0, got %v", ErrInvalidConfig, c.Threshold)
		}
		if c.MinInterval < 0 {
			return fmt.Errorf("%w: minimum step interval must be >= 0, got %v", ErrInvalidConfig, c.MinInterval)
		}
	case PolicyDualThreshold:
		if !finite(c.High) || !finite(c.Low) {
			return fmt.Errorf("%w: thresholds must be finite (high=%v low=%v)", ErrInvalidConfig, c.High, c.Low)
		}
		if c.Low >= c.High {
			return fmt.Errorf("%w: low threshold %v must be below high threshold %v", ErrInvalidConfig, c.Low, c.High)
		}
	default:
		return fmt.Errorf("%w: unknown policy %v", ErrInvalidConfig, c.Policy)
	}
	return nil
}

// State is a snapshot of the hysteresis state.
type State struct {
	Armed      bool      `json:"armed"`
	LastStep   time.Time `json:"last_step"`
	HasStepped bool      `json:"has_stepped"`
}

// Detector consumes one magnitude per tick and emits at most one step.
type Detector interface {
	// Update feeds the magnitude observed at now and reports whether a step
	// was counted. It never fails.
	Update(magnitude float64, now time.Time) bool
	Count() uint64
	State() State
	Policy() Policy
}

// New validates cfg and builds the detector for its policy.
func New(cfg Config) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Policy {
	case PolicyDeviation:
		return &deviationDetector{
			baseline:    cfg.Baseline,
			threshold:   cfg.Threshold,
			minInterval: cfg.MinInterval,
		}, nil
	default:
		return &dualThresholdDetector{high: cfg.High, low: cfg.Low}, nil
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
