// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrReplayDone is returned once a ReplaySource has run out of samples.
var ErrReplayDone = errors.New("replay exhausted")

// ReplaySource plays back a fixed list of samples, optionally injecting
// read errors at chosen indices.
type ReplaySource struct {
	samples []Sample
	fail    map[int]error
	next    int
	Loop    bool
}

// NewReplaySource returns a source that yields samples in order.
func NewReplaySource(samples ...Sample) *ReplaySource {
	return &ReplaySource{samples: samples, fail: map[int]error{}}
}

// FailAt makes the read at position i return err instead of a sample.
func (r *ReplaySource) FailAt(i int, err error) *ReplaySource {
	r.fail[i] = err
	return r
}

func (r *ReplaySource) Read() (Sample, error) {
	if r.next >= len(r.samples) {
		if !r.Loop || len(r.samples) == 0 {
			return Sample{}, ErrReplayDone
		}
		r.next = 0
	}
	i := r.next
	r.next++
	if err, ok := r.fail[i]; ok {
		return Sample{}, err
	}
	return r.samples[i], nil
}

// Reads reports how many reads have been served, including failed ones.
func (r *ReplaySource) Reads() int {
	return r.next
}

// Sideways sway of the walker on X/Y.
const walkSwayG = 0.05

// WalkRestingMagnitude is the magnitude WalkSource reads between impacts,
// which is what a still calibration of the same device would report.
func WalkRestingMagnitude(axes Axes) float64 {
	return Magnitude(Sample{X: walkSwayG, Z: 1}, axes)
}

// WalkSource synthesises the signal of a person walking with the sensor
// strapped on: 1 g of gravity on Z plus a heel-strike pulse every stride.
type WalkSource struct {
	start      time.Time
	now        func() time.Time
	stepPeriod time.Duration
	pulseG     float64
	noiseG     float64
	rng        *rand.Rand
}

// NewWalkSource creates a mock source taking one step per stepPeriod with
// peak impacts of pulseG above gravity.
func NewWalkSource(stepPeriod time.Duration, pulseG, noiseG float64) *WalkSource {
	if stepPeriod <= 0 {
		stepPeriod = 600 * time.Millisecond
	}
	return &WalkSource{
		start:      time.Now(),
		now:        time.Now,
		stepPeriod: stepPeriod,
		pulseG:     pulseG,
		noiseG:     noiseG,
		rng:        rand.New(rand.NewSource(1)),
	}
}

func (w *WalkSource) Read() (Sample, error) {
	elapsed := w.now().Sub(w.start)
	phase := float64(elapsed%w.stepPeriod) / float64(w.stepPeriod)

	// impact occupies the first fifth of each stride
	var pulse float64
	if phase < 0.2 {
		pulse = w.pulseG * math.Sin(phase/0.2*math.Pi)
	}

	return Sample{
		X: walkSwayG*math.Sin(2*math.Pi*phase) + w.noise(),
		Y: walkSwayG*math.Cos(2*math.Pi*phase) + w.noise(),
		Z: 1 + pulse + w.noise(),
	}, nil
}

func (w *WalkSource) noise() float64 {
	if w.noiseG == 0 {
		return 0
	}
	return w.rng.NormFloat64() * w.noiseG
}
