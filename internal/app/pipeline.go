// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relabs-tech/step_counter/internal/metrics"
	"github.com/relabs-tech/step_counter/internal/motion"
	"github.com/relabs-tech/step_counter/internal/notify"
	"github.com/relabs-tech/step_counter/internal/step"
)

// Snapshot is the latest pipeline state served by /api/steps.
type Snapshot struct {
	Steps         uint64     `json:"steps"`
	Policy        string     `json:"policy"`
	BaselineG     float64    `json:"baseline_g"`
	MagnitudeG    float64    `json:"magnitude_g"`
	Degraded      bool       `json:"degraded"`
	LastStep      *time.Time `json:"last_step,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Ticks         uint64     `json:"ticks"`
	DegradedTicks uint64     `json:"degraded_ticks"`
}

// Pipeline runs the per-tick read → detect → publish sequence. Tick is
// called from a single goroutine; Snapshot may be called concurrently.
type Pipeline struct {
	src       motion.Source
	axes      motion.Axes
	detector  step.Detector
	publisher *notify.Publisher
	metrics   *metrics.Collector
	log       *slog.Logger

	mu   sync.RWMutex
	snap Snapshot
}

// NewPipeline wires a source, detector and publisher. baseline is only
// reported in snapshots.
func NewPipeline(src motion.Source, axes motion.Axes, detector step.Detector, baseline float64,
	publisher *notify.Publisher, collector *metrics.Collector, logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		src:       src,
		axes:      axes,
		detector:  detector,
		publisher: publisher,
		metrics:   collector,
		log:       logger,
		snap: Snapshot{
			Policy:    detector.Policy().String(),
			BaselineG: baseline,
		},
	}
}

// Tick processes one sample taken at now and reports whether a step was
// counted. A failed read skips detection for this tick but the current
// count is still published.
func (p *Pipeline) Tick(now time.Time) bool {
	start := time.Now()
	defer func() { p.metrics.ObserveTick(time.Since(start)) }()

	var (
		stepped  bool
		degraded bool
		mag      float64
	)

	sample, err := p.src.Read()
	if err != nil {
		degraded = true
		p.metrics.ObserveReadFailure()
		p.log.Warn("sensor read failed, skipping detection this tick", slog.Any("error", err))
	} else {
		mag = motion.Magnitude(sample, p.axes)
		stepped = p.detector.Update(mag, now)
	}

	count := p.detector.Count()
	if stepped {
		p.metrics.ObserveStep(count)
		p.log.Debug("step detected",
			slog.Uint64("steps", count),
			slog.Float64("magnitude_g", mag))
	}

	if err := p.publisher.Publish(count); err != nil {
		p.log.Warn("step publish failed", slog.Any("error", err))
	}

	p.mu.Lock()
	p.snap.Steps = count
	p.snap.Degraded = degraded
	if !degraded {
		p.snap.MagnitudeG = mag
	}
	if st := p.detector.State(); st.HasStepped {
		last := st.LastStep
		p.snap.LastStep = &last
	}
	p.snap.UpdatedAt = now
	p.snap.Ticks++
	if degraded {
		p.snap.DegradedTicks++
	}
	p.mu.Unlock()

	return stepped
}

// Snapshot returns a copy of the latest state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Run ticks every interval until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			p.Tick(t)
		}
	}
}
