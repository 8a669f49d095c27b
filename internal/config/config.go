// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/step_counter/internal/motion"
	"github.com/relabs-tech/step_counter/internal/notify"
	"github.com/relabs-tech/step_counter/internal/step"
)

// Sensor kinds.
const (
	SensorMock    = "mock"
	SensorLSM6DSO = "lsm6dso"
	SensorMPU9250 = "mpu9250"
)

// Presets.
const (
	PresetWalking50Hz = "walking_50hz"
	PresetRaw2Hz      = "raw_2hz"
)

// Config holds all application configuration values.
type Config struct {
	Preset string

	// Sampling
	SampleInterval   time.Duration
	Sensor           string
	Axes             motion.Axes
	ReadRetries      int
	ReadRetryBackoff time.Duration

	// Sensor hardware
	I2CBus            string
	LSM6DSOAddr       uint16
	MPU9250SPIDevice  string
	MPU9250CSPin      string
	MPU9250AccelRange byte

	// Mock sensor
	MockStepPeriod time.Duration
	MockPulseG     float64
	MockNoiseG     float64

	// Detection
	Policy          step.Policy
	Threshold       float64 // deviation from baseline, g
	HighThreshold   float64 // g
	LowThreshold    float64 // g
	MinStepInterval time.Duration

	// Calibration
	CalibrationSamples     int
	CalibrationDelay       time.Duration
	CalibrationMaxFailures int
	CalibrationStillnessG  float64
	// BaselineG, when set, replaces calibration with a known resting magnitude.
	BaselineG    float64
	HasBaselineG bool

	// Publishing
	PublishCadence notify.Cadence
	PayloadFormat  notify.Format

	// MQTT
	MQTTBroker          string
	MQTTClientID        string
	MQTTClientIDConsole string
	TopicSteps          string
	MQTTRetain          bool

	// Web server (HTTP API, WebSocket, metrics); 0 disables it
	WebServerPort int

	// Serial line sink; empty port disables it
	SerialPort     string
	SerialBaudRate uint

	// OLED display sink
	DisplayEnabled bool
	DisplayI2CBus  string

	LogLevel slog.Level
}

// Default returns the configuration used when a key is absent.
func Default() *Config {
	c := &Config{
		Sensor:           SensorMock,
		Axes:             motion.AllAxes,
		ReadRetries:      motion.DefaultReadAttempts,
		ReadRetryBackoff: motion.DefaultReadBackoff,

		LSM6DSOAddr:      0x6B,
		MPU9250CSPin:     "18",
		MPU9250SPIDevice: "/dev/spidev0.0",

		MockStepPeriod: 600 * time.Millisecond,
		MockPulseG:     0.6,
		MockNoiseG:     0.02,

		CalibrationMaxFailures: 5,
		CalibrationStillnessG:  0.05,

		MQTTClientID:        "stepcounter",
		MQTTClientIDConsole: "stepcounter-console",
		TopicSteps:          "steps/count",
		MQTTRetain:          true,

		WebServerPort:  8080,
		SerialBaudRate: 115200,

		LogLevel: slog.LevelInfo,
	}
	if err := c.applyPreset(PresetWalking50Hz); err != nil {
		panic(err)
	}
	return c
}

// applyPreset sets the sampling and detection values of a named preset.
func (c *Config) applyPreset(name string) error {
	switch name {
	case PresetWalking50Hz:
		c.SampleInterval = 20 * time.Millisecond
		c.Policy = step.PolicyDeviation
		c.Threshold = 0.3
		c.MinStepInterval = 300 * time.Millisecond
		c.CalibrationSamples = 100
		c.CalibrationDelay = 10 * time.Millisecond
	case PresetRaw2Hz:
		c.SampleInterval = 500 * time.Millisecond
		c.Policy = step.PolicyDualThreshold
		c.HighThreshold = 1.3
		c.LowThreshold = 1.0
		c.MinStepInterval = 0
	default:
		return fmt.Errorf("unknown PRESET %q (want %s or %s)", name, PresetWalking50Hz, PresetRaw2Hz)
	}
	c.Preset = name
	return nil
}

// Load reads the configuration file and returns a validated Config.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

type entry struct {
	line  int
	key   string
	value string
}

// Parse reads KEY=VALUE lines. PRESET is applied first wherever it appears,
// so explicit keys always override the preset.
func Parse(r io.Reader) (*Config, error) {
	var entries []entry
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		entries = append(entries, entry{
			line:  lineNum,
			key:   strings.TrimSpace(parts[0]),
			value: strings.TrimSpace(parts[1]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := Default()
	for _, e := range entries {
		if e.key == "PRESET" {
			if err := cfg.applyPreset(e.value); err != nil {
				return nil, fmt.Errorf("config line %d: %w", e.line, err)
			}
		}
	}
	for _, e := range entries {
		if e.key == "PRESET" {
			continue
		}
		if err := cfg.setValue(e.key, e.value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", e.line, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Sampling
	case "SAMPLE_INTERVAL_MS":
		c.SampleInterval, err = parseMillis(key, value)
	case "SENSOR":
		c.Sensor = strings.ToLower(value)
	case "AXES":
		c.Axes, err = motion.ParseAxes(value)
	case "READ_RETRIES":
		c.ReadRetries, err = parseInt(key, value)
	case "READ_RETRY_BACKOFF_MS":
		c.ReadRetryBackoff, err = parseMillis(key, value)

	// Sensor hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "LSM6DSO_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid LSM6DSO_ADDR %q: %w", value, perr)
		}
		c.LSM6DSOAddr = uint16(addr)
	case "MPU9250_SPI_DEVICE":
		c.MPU9250SPIDevice = value
	case "MPU9250_CS_PIN":
		c.MPU9250CSPin = value
	case "MPU9250_ACCEL_RANGE":
		rangeVal, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid MPU9250_ACCEL_RANGE %q: %w", value, perr)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("MPU9250_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.MPU9250AccelRange = byte(rangeVal)

	// Mock sensor
	case "MOCK_STEP_PERIOD_MS":
		c.MockStepPeriod, err = parseMillis(key, value)
	case "MOCK_PULSE_G":
		c.MockPulseG, err = parseFloat(key, value)
	case "MOCK_NOISE_G":
		c.MockNoiseG, err = parseFloat(key, value)

	// Detection
	case "POLICY":
		c.Policy, err = step.ParsePolicy(value)
	case "THRESHOLD_G":
		c.Threshold, err = parseFloat(key, value)
	case "HIGH_THRESHOLD_G":
		c.HighThreshold, err = parseFloat(key, value)
	case "LOW_THRESHOLD_G":
		c.LowThreshold, err = parseFloat(key, value)
	case "MIN_STEP_INTERVAL_MS":
		c.MinStepInterval, err = parseMillis(key, value)

	// Calibration
	case "CALIBRATION_SAMPLES":
		c.CalibrationSamples, err = parseInt(key, value)
	case "CALIBRATION_DELAY_MS":
		c.CalibrationDelay, err = parseMillis(key, value)
	case "CALIBRATION_MAX_FAILURES":
		c.CalibrationMaxFailures, err = parseInt(key, value)
	case "CALIBRATION_STILLNESS_G":
		c.CalibrationStillnessG, err = parseFloat(key, value)
	case "BASELINE_G":
		c.BaselineG, err = parseFloat(key, value)
		c.HasBaselineG = err == nil

	// Publishing
	case "PUBLISH_CADENCE":
		c.PublishCadence, err = notify.ParseCadence(value)
	case "PAYLOAD_FORMAT":
		c.PayloadFormat, err = notify.ParseFormat(value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_STEPS":
		c.TopicSteps = value
	case "MQTT_RETAIN":
		c.MQTTRetain, err = parseBool(key, value)

	// Web server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		baud, perr := strconv.ParseUint(value, 10, 32)
		if perr != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, perr)
		}
		c.SerialBaudRate = uint(baud)

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = parseBool(key, value)
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value

	case "LOG_LEVEL":
		if perr := c.LogLevel.UnmarshalText([]byte(value)); perr != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", value, perr)
		}

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// Validate checks cross-field constraints. Detection thresholds are checked
// by the step package itself so both places agree.
func (c *Config) Validate() error {
	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL_MS must be > 0")
	}
	switch c.Sensor {
	case SensorMock, SensorLSM6DSO:
	case SensorMPU9250:
		if c.MPU9250SPIDevice == "" {
			return fmt.Errorf("MPU9250_SPI_DEVICE is required for SENSOR=%s", SensorMPU9250)
		}
		if c.MPU9250CSPin == "" {
			return fmt.Errorf("MPU9250_CS_PIN is required for SENSOR=%s", SensorMPU9250)
		}
	default:
		return fmt.Errorf("unknown SENSOR %q (want %s, %s or %s)", c.Sensor, SensorMock, SensorLSM6DSO, SensorMPU9250)
	}
	if c.ReadRetries < 1 {
		return fmt.Errorf("READ_RETRIES must be >= 1, got %d", c.ReadRetries)
	}
	if c.ReadRetryBackoff < 0 {
		return fmt.Errorf("READ_RETRY_BACKOFF_MS must be >= 0")
	}

	// Probe the detector config with a nominal 1 g baseline; the real one is
	// only known after calibration.
	probe := c.StepConfig(1)
	if c.HasBaselineG {
		probe.Baseline = c.BaselineG
	}
	if err := probe.Validate(); err != nil {
		return err
	}

	if c.NeedsCalibration() {
		if c.CalibrationSamples <= 0 {
			return fmt.Errorf("CALIBRATION_SAMPLES must be > 0, got %d", c.CalibrationSamples)
		}
		if c.CalibrationDelay < 0 {
			return fmt.Errorf("CALIBRATION_DELAY_MS must be >= 0")
		}
		if c.CalibrationMaxFailures < 1 {
			return fmt.Errorf("CALIBRATION_MAX_FAILURES must be >= 1, got %d", c.CalibrationMaxFailures)
		}
	}

	if c.MQTTBroker != "" && c.TopicSteps == "" {
		return fmt.Errorf("TOPIC_STEPS is required when MQTT_BROKER is set")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", c.WebServerPort)
	}
	if c.SerialPort != "" && c.SerialBaudRate == 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE is required when SERIAL_PORT is set")
	}
	return nil
}

// NeedsCalibration reports whether startup must measure a baseline.
func (c *Config) NeedsCalibration() bool {
	return c.Policy == step.PolicyDeviation && !c.HasBaselineG
}

// StepConfig builds the detector configuration around baseline.
func (c *Config) StepConfig(baseline float64) step.Config {
	return step.Config{
		Policy:      c.Policy,
		Baseline:    baseline,
		Threshold:   c.Threshold,
		MinInterval: c.MinStepInterval,
		High:        c.HighThreshold,
		Low:         c.LowThreshold,
	}
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s %q: must be finite", key, value)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// parseMillis parses a non-negative integer number of milliseconds.
func parseMillis(key, value string) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ms < 0 {
		return 0, fmt.Errorf("%s must be >= 0, got %d", key, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
