// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package notify pushes step counts to remote observers with best-effort,
// at-most-once delivery: no acknowledgement, no queue, no retry, and no
// backfill of counts missed while nobody was listening.
package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ErrNoSubscriber is returned by a Sink when nobody is currently listening.
// Publisher treats it as a silent drop, never as a failure.
var ErrNoSubscriber = errors.New("no subscriber connected")

// Sink delivers an opaque payload to whoever is subscribed right now.
type Sink interface {
	Notify(payload []byte) error
}

// Cadence controls when the publisher forwards a count to the sink.
type Cadence int

const (
	// CadenceEveryTick pushes the current count on every call.
	CadenceEveryTick Cadence = iota
	// CadenceOnChange pushes only when the count differs from the last
	// attempted publish (the first call always pushes).
	CadenceOnChange
)

// ParseCadence parses "every_tick" or "on_change".
func ParseCadence(s string) (Cadence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "every_tick", "":
		return CadenceEveryTick, nil
	case "on_change":
		return CadenceOnChange, nil
	default:
		return 0, fmt.Errorf("unknown publish cadence %q", s)
	}
}

func (c Cadence) String() string {
	if c == CadenceOnChange {
		return "on_change"
	}
	return "every_tick"
}

// Format selects the payload encoding.
type Format int

const (
	FormatDecimal Format = iota // "42"
	FormatLabeled               // "Steps: 42"
)

// ParseFormat parses "decimal" or "labeled".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "decimal", "":
		return FormatDecimal, nil
	case "labeled":
		return FormatLabeled, nil
	default:
		return 0, fmt.Errorf("unknown payload format %q", s)
	}
}

// Encode renders count in the given format.
func (f Format) Encode(count uint64) []byte {
	if f == FormatLabeled {
		return []byte("Steps: " + strconv.FormatUint(count, 10))
	}
	return strconv.AppendUint(nil, count, 10)
}

// ParsePayload decodes a payload produced by either format.
func ParsePayload(payload []byte) (uint64, error) {
	text := strings.TrimSpace(string(payload))
	text = strings.TrimSpace(strings.TrimPrefix(text, "Steps:"))
	count, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid step payload %q: %w", payload, err)
	}
	return count, nil
}

// Publish outcomes reported to a Recorder.
const (
	OutcomeDelivered    = "delivered"
	OutcomeNoSubscriber = "no_subscriber"
	OutcomeError        = "error"
	OutcomeSkipped      = "skipped"
)

// Recorder observes publish outcomes (metrics).
type Recorder interface {
	ObservePublish(outcome string)
}

// PublisherOptions configure a Publisher.
type PublisherOptions struct {
	Cadence  Cadence
	Format   Format
	Logger   *slog.Logger
	Recorder Recorder
}

// Publisher formats step counts and forwards them to a Sink.
type Publisher struct {
	sink Sink
	opts PublisherOptions
	log  *slog.Logger

	last     uint64
	haveLast bool
}

// NewPublisher returns a publisher writing to sink.
func NewPublisher(sink Sink, opts PublisherOptions) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{sink: sink, opts: opts, log: logger}
}

// Publish forwards count to the sink according to the configured cadence.
// A missing subscriber is not an error. Other sink errors are returned so
// the caller can log them; nothing is retried or buffered.
func (p *Publisher) Publish(count uint64) error {
	if p.opts.Cadence == CadenceOnChange && p.haveLast && count == p.last {
		p.record(OutcomeSkipped)
		return nil
	}
	p.last = count
	p.haveLast = true

	err := p.sink.Notify(p.opts.Format.Encode(count))
	switch {
	case err == nil:
		p.record(OutcomeDelivered)
		return nil
	case errors.Is(err, ErrNoSubscriber):
		p.record(OutcomeNoSubscriber)
		p.log.Debug("step update dropped, no subscriber", slog.Uint64("steps", count))
		return nil
	default:
		p.record(OutcomeError)
		return fmt.Errorf("publish %d steps: %w", count, err)
	}
}

func (p *Publisher) record(outcome string) {
	if p.opts.Recorder != nil {
		p.opts.Recorder.ObservePublish(outcome)
	}
}

// MultiSink fans a payload out to several sinks. It reports ErrNoSubscriber
// only when every child did, and joins any other errors.
type MultiSink []Sink

func (m MultiSink) Notify(payload []byte) error {
	if len(m) == 0 {
		return ErrNoSubscriber
	}

	var errs []error
	absent := 0
	for _, s := range m {
		err := s.Notify(payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoSubscriber):
			absent++
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if absent == len(m) {
		return ErrNoSubscriber
	}
	return nil
}
