// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/relabs-tech/step_counter/internal/config"
	"github.com/relabs-tech/step_counter/internal/logging"
	"github.com/relabs-tech/step_counter/internal/sensors"
)

func main() {
	configPath := flag.String("config", "./stepcounter_config.txt", "path to configuration file")
	asJSON := flag.Bool("json", false, "print the register dump as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup(slog.LevelInfo).Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)
	logger.Info("starting LSM6DSO register debug tool")

	dev, err := sensors.OpenLSM6DSO(cfg.I2CBus, cfg.LSM6DSOAddr, logger)
	if err != nil {
		logger.Error("failed to open LSM6DSO", slog.Any("error", err))
		os.Exit(1)
	}
	defer dev.Close()

	dump, err := dev.DumpRegisters()
	if err != nil {
		logger.Error("register dump failed", slog.Any("error", err))
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dump); err != nil {
			logger.Error("json encode error", slog.Any("error", err))
		}
		return
	}

	for _, r := range dump {
		fmt.Printf("0x%02X %-10s = 0x%02X  %08b  %s\n", r.Address, r.Name, r.Value, r.Value, r.Description)
		for _, f := range r.BitFields {
			v, err := f.Extract(r.Value)
			if err != nil {
				continue
			}
			fmt.Printf("       [%s] %-10s = %d  %s\n", f.Bits, f.Name, v, f.Values)
		}
	}
}
