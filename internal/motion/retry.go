// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrReadExhausted is returned by RetrySource when every attempt failed.
// The sample returned alongside it is the last good one (or zero).
var ErrReadExhausted = errors.New("sensor read retries exhausted")

const (
	DefaultReadAttempts = 3
	DefaultReadBackoff  = 40 * time.Millisecond
)

// RetrySource wraps a Source with a fixed, bounded retry budget.
type RetrySource struct {
	src      Source
	attempts int
	backoff  time.Duration
	log      *slog.Logger
	sleep    func(time.Duration)

	last     Sample
	haveLast bool
}

// NewRetrySource wraps src. attempts < 1 falls back to DefaultReadAttempts and a
// negative backoff to DefaultReadBackoff.
func NewRetrySource(src Source, attempts int, backoff time.Duration, logger *slog.Logger) *RetrySource {
	if attempts < 1 {
		attempts = DefaultReadAttempts
	}
	if backoff < 0 {
		backoff = DefaultReadBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrySource{
		src:      src,
		attempts: attempts,
		backoff:  backoff,
		log:      logger,
		sleep:    time.Sleep,
	}
}

// Read tries the wrapped source up to the configured number of attempts.
func (r *RetrySource) Read() (Sample, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		s, err := r.src.Read()
		if err == nil {
			r.last = s
			r.haveLast = true
			return s, nil
		}
		lastErr = err
		r.log.Debug("sensor read failed",
			slog.Int("attempt", attempt),
			slog.Int("attempts", r.attempts),
			slog.Any("error", err))
		if attempt < r.attempts && r.backoff > 0 {
			r.sleep(r.backoff)
		}
	}
	return r.last, fmt.Errorf("%w after %d attempts: %w", ErrReadExhausted, r.attempts, lastErr)
}

// LastGood reports the most recent successful sample, if any.
func (r *RetrySource) LastGood() (Sample, bool) {
	return r.last, r.haveLast
}
