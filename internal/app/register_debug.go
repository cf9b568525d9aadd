// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/relabs-tech/gyro_odometer/internal/config"
	"github.com/relabs-tech/gyro_odometer/internal/gyro"
	"github.com/relabs-tech/gyro_odometer/internal/irq"
)

// RunRegisterDebug serves the register debug tool until the server fails.
func RunRegisterDebug() error {
	log.Println("starting gyro register debug tool")

	cfg := config.Get()
	hw, err := OpenHardware(cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	dev := gyro.New(hw.Transport, irq.NewFlags(), gyro.Options{Timeout: cfg.BusTimeout, Retries: cfg.BusRetries})
	if err := dev.Init(context.Background()); err != nil {
		log.Printf("Warning: gyro initialization failed: %v", err)
		log.Println("Continuing anyway - registers can still be inspected")
	}

	rd := NewRegisterDebug(dev, cfg.RegisterDebugWritable)
	addr := fmt.Sprintf(":%d", cfg.RegisterDebugPort)
	log.Printf("register_debug: listening on %s (ws at /ws, sample at /api/sample)", addr)
	return http.ListenAndServe(addr, rd.Handler())
}
