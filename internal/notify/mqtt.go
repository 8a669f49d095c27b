// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/step_counter/internal/logging"
)

const defaultPublishTimeout = 250 * time.Millisecond

// mqttPublisher is the part of mqtt.Client the sink needs.
type mqttPublisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes step updates to a broker topic. While the broker
// connection is down the update is dropped with ErrNoSubscriber; the paho
// client reconnects in the background.
type MQTTSink struct {
	client  mqttPublisher
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
}

// NewMQTTSink wraps a connected (or reconnecting) client. With retain set the
// broker keeps the latest count for observers that subscribe later.
func NewMQTTSink(client mqttPublisher, topic string, retain bool) *MQTTSink {
	return &MQTTSink{
		client:  client,
		topic:   topic,
		retain:  retain,
		timeout: defaultPublishTimeout,
	}
}

func (s *MQTTSink) Notify(payload []byte) error {
	if !s.client.IsConnectionOpen() {
		return ErrNoSubscriber
	}

	// QoS 0 is fire-and-forget; the wait is bounded so a stalled broker
	// cannot hold up the sampling loop.
	token := s.client.Publish(s.topic, s.qos, s.retain, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("mqtt publish to %s: timed out after %v", s.topic, s.timeout)
	}
	if err := token.Error(); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			return ErrNoSubscriber
		}
		return fmt.Errorf("mqtt publish to %s: %w", s.topic, err)
	}
	return nil
}

// MQTTOptions describe a broker connection.
type MQTTOptions struct {
	Broker         string
	ClientID       string
	ConnectTimeout time.Duration
}

// ConnectMQTT creates a client that keeps retrying in the background. It
// waits up to ConnectTimeout for the first connection but never fails on a
// missing broker; publishes are dropped until the link comes up.
func ConnectMQTT(opts MQTTOptions, logger *slog.Logger) mqtt.Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	mqtt.ERROR = logging.StdLogger(logger, slog.LevelError)
	mqtt.CRITICAL = logging.StdLogger(logger, slog.LevelError)
	mqtt.WARN = logging.StdLogger(logger, slog.LevelWarn)

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("mqtt connected", slog.String("broker", opts.Broker))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost, step updates will be dropped until reconnect",
				slog.String("broker", opts.Broker),
				slog.Any("error", err))
		})

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		logger.Warn("mqtt broker not reachable yet, retrying in background",
			slog.String("broker", opts.Broker))
	} else if err := token.Error(); err != nil {
		logger.Warn("mqtt connect error, retrying in background",
			slog.String("broker", opts.Broker),
			slog.Any("error", err))
	}
	return client
}
