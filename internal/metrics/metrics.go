// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes Prometheus instrumentation for the step pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the pipeline metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Steps         prometheus.Gauge
	StepsDetected prometheus.Counter
	ReadFailures  prometheus.Counter
	DegradedTicks prometheus.Counter
	Publishes     *prometheus.CounterVec
	Baseline      prometheus.Gauge
	TickDuration  prometheus.Histogram
}

// NewCollector registers the metrics against reg (the default registerer
// when nil). Registering twice against the same registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stepcounter_steps",
		Help: "Current step count since start.",
	}), "stepcounter_steps")
	if err != nil {
		return nil, err
	}

	detected, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepcounter_steps_detected_total",
		Help: "Step events emitted by the detector.",
	}), "stepcounter_steps_detected_total")
	if err != nil {
		return nil, err
	}

	readFailures, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepcounter_sensor_read_failures_total",
		Help: "Sensor reads that failed after exhausting the retry budget.",
	}), "stepcounter_sensor_read_failures_total")
	if err != nil {
		return nil, err
	}

	degraded, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepcounter_degraded_ticks_total",
		Help: "Sampling ticks skipped by the detector because no fresh sample was available.",
	}), "stepcounter_degraded_ticks_total")
	if err != nil {
		return nil, err
	}

	publishes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stepcounter_publish_total",
		Help: "Step count publish attempts by outcome.",
	}, []string{"outcome"}), "stepcounter_publish_total")
	if err != nil {
		return nil, err
	}

	baseline, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stepcounter_baseline_g",
		Help: "Resting acceleration magnitude measured at calibration, in g.",
	}), "stepcounter_baseline_g")
	if err != nil {
		return nil, err
	}

	tick, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stepcounter_tick_duration_seconds",
		Help:    "Time spent reading, detecting and publishing in one sampling tick.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5},
	}), "stepcounter_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		Steps:         steps,
		StepsDetected: detected,
		ReadFailures:  readFailures,
		DegradedTicks: degraded,
		Publishes:     publishes,
		Baseline:      baseline,
		TickDuration:  tick,
	}, nil
}

// Gatherer returns the gatherer the metrics are registered with.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveStep records a detected step and the new count.
func (c *Collector) ObserveStep(count uint64) {
	if c == nil {
		return
	}
	c.StepsDetected.Inc()
	c.Steps.Set(float64(count))
}

// ObserveReadFailure records a tick whose sample could not be read.
func (c *Collector) ObserveReadFailure() {
	if c == nil {
		return
	}
	c.ReadFailures.Inc()
	c.DegradedTicks.Inc()
}

// ObservePublish records a publish outcome.
func (c *Collector) ObservePublish(outcome string) {
	if c == nil {
		return
	}
	c.Publishes.WithLabelValues(outcome).Inc()
}

// SetBaseline records the calibrated baseline.
func (c *Collector) SetBaseline(g float64) {
	if c == nil {
		return
	}
	c.Baseline.Set(g)
}

// ObserveTick records how long one tick took.
func (c *Collector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
