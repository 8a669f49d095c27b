// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"fmt"
	"io"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
)

// SerialSink writes one newline-terminated payload per update to a serial
// line, e.g. a BLE UART bridge module. After a write error the port is
// closed and further updates are dropped as having no subscriber.
type SerialSink struct {
	mu   sync.Mutex
	port io.WriteCloser
	name string
}

// OpenSerialSink opens portName at baud (8N1).
func OpenSerialSink(portName string, baud uint) (*SerialSink, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 100,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	return NewSerialSink(portName, port), nil
}

// NewSerialSink wraps an already open port.
func NewSerialSink(name string, port io.WriteCloser) *SerialSink {
	return &SerialSink{port: port, name: name}
}

func (s *SerialSink) Notify(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return ErrNoSubscriber
	}
	line := make([]byte, 0, len(payload)+1)
	line = append(append(line, payload...), '\n')
	if _, err := s.port.Write(line); err != nil {
		s.port.Close()
		s.port = nil
		return fmt.Errorf("serial write to %s: %w", s.name, err)
	}
	return nil
}

// Close releases the port.
func (s *SerialSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
