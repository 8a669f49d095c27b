// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/step_counter/internal/calibrate"
	"github.com/relabs-tech/step_counter/internal/config"
	"github.com/relabs-tech/step_counter/internal/metrics"
	"github.com/relabs-tech/step_counter/internal/motion"
	"github.com/relabs-tech/step_counter/internal/notify"
	"github.com/relabs-tech/step_counter/internal/sensors"
	"github.com/relabs-tech/step_counter/internal/step"
)

// sinkSet is the notification fan-out plus what has to be torn down.
type sinkSet struct {
	sinks    notify.MultiSink
	hub      *notify.WebSocketHub
	cleanups []func()
}

func (s *sinkSet) close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}

// RunStepCounter calibrates the sensor, then samples it every
// cfg.SampleInterval, counting steps and publishing the running total until
// ctx is cancelled.
func RunStepCounter(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("starting step counter",
		slog.String("preset", cfg.Preset),
		slog.String("policy", cfg.Policy.String()),
		slog.String("sensor", cfg.Sensor),
		slog.Duration("interval", cfg.SampleInterval))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Web listener before the sinks so a taken port drops only /ws ---
	var webLn net.Listener
	if cfg.WebServerPort > 0 {
		addr := ":" + strconv.Itoa(cfg.WebServerPort)
		if webLn, err = net.Listen("tcp", addr); err != nil {
			logger.Warn("web server disabled", slog.String("addr", addr), slog.Any("error", err))
			webLn = nil
		} else {
			defer webLn.Close()
		}
	}

	// --- Sinks first so the display can show calibration progress ---
	sinks := openSinks(cfg, webLn != nil, logger)
	defer sinks.close()
	if len(sinks.sinks) == 0 {
		logger.Warn("no notification sinks configured, step counts are only logged")
	}

	// --- Sensor ---
	src, closer, err := sensors.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("open sensor: %w", err)
	}
	defer closer.Close()

	// --- Baseline ---
	baseline, err := resolveBaseline(ctx, cfg, src, logger)
	if err != nil {
		return err
	}
	collector.SetBaseline(baseline)

	detector, err := step.New(cfg.StepConfig(baseline))
	if err != nil {
		return err
	}

	publisher := notify.NewPublisher(sinks.sinks, notify.PublisherOptions{
		Cadence:  cfg.PublishCadence,
		Format:   cfg.PayloadFormat,
		Logger:   logger,
		Recorder: collector,
	})
	pipeline := NewPipeline(src, cfg.Axes, detector, baseline, publisher, collector, logger)

	g, gctx := errgroup.WithContext(ctx)
	if webLn != nil {
		handler := NewWebHandler(pipeline, sinks.hub, reg, logger)
		g.Go(func() error {
			if err := serveWeb(gctx, webLn, handler, logger); err != nil {
				logger.Error("web server stopped", slog.Any("error", err))
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("sampling started", slog.String("publish_cadence", cfg.PublishCadence.String()))
		return pipeline.Run(gctx, cfg.SampleInterval)
	})

	err = g.Wait()
	logger.Info("step counter stopped", slog.Uint64("steps", detector.Count()))
	return err
}

// resolveBaseline calibrates when the deviation detector needs a baseline
// and none was configured.
func resolveBaseline(ctx context.Context, cfg *config.Config, src motion.Source, logger *slog.Logger) (float64, error) {
	if cfg.Policy != step.PolicyDeviation {
		return 0, nil
	}
	if cfg.HasBaselineG {
		logger.Info("using configured baseline, skipping calibration", slog.Float64("baseline_g", cfg.BaselineG))
		return cfg.BaselineG, nil
	}

	b, err := calibrate.Run(ctx, src, calibrate.Options{
		Samples:                cfg.CalibrationSamples,
		Delay:                  cfg.CalibrationDelay,
		Axes:                   cfg.Axes,
		MaxConsecutiveFailures: cfg.CalibrationMaxFailures,
		StillnessLimit:         cfg.CalibrationStillnessG,
		Logger:                 logger,
	})
	if err != nil {
		return 0, fmt.Errorf("calibration: %w", err)
	}
	return b.Magnitude, nil
}

// openSinks builds every configured sink. A sink that cannot be opened is
// logged and left out; the counter keeps running without it.
func openSinks(cfg *config.Config, web bool, logger *slog.Logger) *sinkSet {
	set := &sinkSet{}

	if cfg.MQTTBroker != "" {
		client := notify.ConnectMQTT(notify.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
		}, logger)
		set.sinks = append(set.sinks, notify.NewMQTTSink(client, cfg.TopicSteps, cfg.MQTTRetain))
		set.cleanups = append(set.cleanups, func() { client.Disconnect(250) })
		logger.Info("mqtt sink enabled", slog.String("broker", cfg.MQTTBroker), slog.String("topic", cfg.TopicSteps))
	}

	if web {
		set.hub = notify.NewWebSocketHub(logger)
		set.sinks = append(set.sinks, set.hub)
		hub := set.hub
		set.cleanups = append(set.cleanups, func() { hub.Close() })
	}

	if cfg.SerialPort != "" {
		serialSink, err := notify.OpenSerialSink(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			logger.Warn("serial sink disabled", slog.Any("error", err))
		} else {
			set.sinks = append(set.sinks, serialSink)
			set.cleanups = append(set.cleanups, func() { serialSink.Close() })
			logger.Info("serial sink enabled", slog.String("port", cfg.SerialPort), slog.Uint64("baud", uint64(cfg.SerialBaudRate)))
		}
	}

	if cfg.DisplayEnabled {
		display, closeBus, err := notify.OpenDisplaySink(cfg.DisplayI2CBus, "Step counter")
		if err != nil {
			logger.Warn("display sink disabled", slog.Any("error", err))
		} else {
			set.sinks = append(set.sinks, display)
			set.cleanups = append(set.cleanups, func() {
				if err := closeBus(); err != nil {
					logger.Debug("display bus close", slog.Any("error", err))
				}
			})
		}
	}

	return set
}
