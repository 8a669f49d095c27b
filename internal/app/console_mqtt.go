// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/step_counter/internal/config"
	"github.com/relabs-tech/step_counter/internal/notify"
)

// stepPrinter writes a line for every change of the step count. It is a
// notify.Sink so it can also sit directly behind a Publisher.
type stepPrinter struct {
	w io.Writer

	mu   sync.Mutex
	last uint64
	have bool
}

func newStepPrinter(w io.Writer) *stepPrinter {
	return &stepPrinter{w: w}
}

func (p *stepPrinter) Notify(payload []byte) error {
	count, err := notify.ParsePayload(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.have && count == p.last {
		return nil
	}
	switch {
	case !p.have:
		_, err = fmt.Fprintf(p.w, "[STEPS] total=%6d\n", count)
	case count > p.last:
		_, err = fmt.Fprintf(p.w, "[STEPS] total=%6d  +%d\n", count, count-p.last)
	default:
		// producer restarted
		_, err = fmt.Fprintf(p.w, "[STEPS] total=%6d  (reset)\n", count)
	}
	p.last = count
	p.have = true
	return err
}

// RunStepConsole subscribes to the step topic and prints every change until
// ctx is cancelled.
func RunStepConsole(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer) error {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	logger.Info("console: connected to MQTT broker", slog.String("broker", cfg.MQTTBroker))

	printer := newStepPrinter(w)
	token := client.Subscribe(cfg.TopicSteps, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := printer.Notify(msg.Payload()); err != nil {
			logger.Warn("console: bad step payload", slog.String("topic", msg.Topic()), slog.Any("error", err))
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	logger.Info("console: subscribed", slog.String("topic", cfg.TopicSteps))

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}
