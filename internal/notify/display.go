// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

const (
	displayW = 128
	displayH = 64
)

// panel is the part of *ssd1306.Dev the sink draws on.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// DisplaySink renders the latest payload on a 128x64 SSD1306 OLED. The
// panel is local, so it is always "subscribed".
type DisplaySink struct {
	dev   panel
	title string
	last  string
}

// OpenDisplaySink opens the I2C bus (empty name = first bus) and the panel
// on it, then shows a splash screen.
func OpenDisplaySink(busName, title string) (*DisplaySink, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("display: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("display: open I2C bus %q: %w", busName, err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("display: init SSD1306: %w", err)
	}

	s := NewDisplaySink(dev, title)
	if err := s.dev.Draw(s.dev.Bounds(), renderLines(title, "Calibrating..."), image.Point{}); err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("display: splash: %w", err)
	}
	return s, bus.Close, nil
}

// NewDisplaySink draws on an already initialised panel.
func NewDisplaySink(dev panel, title string) *DisplaySink {
	if title == "" {
		title = "Step counter"
	}
	return &DisplaySink{dev: dev, title: title}
}

// Notify redraws the panel only when the payload changed since the last
// frame.
func (s *DisplaySink) Notify(payload []byte) error {
	text := string(payload)
	if text == s.last {
		return nil
	}
	if err := s.dev.Draw(s.dev.Bounds(), renderLines(s.title, text), image.Point{}); err != nil {
		return fmt.Errorf("display: draw: %w", err)
	}
	s.last = text
	return nil
}

// renderLines draws up to four 13 px text lines in basicfont 7x13.
func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i >= 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1)+i*2)
		drawer.DrawString(line)
	}
	return img
}
