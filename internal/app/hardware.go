// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gyro_odometer/internal/bus"
	"github.com/relabs-tech/gyro_odometer/internal/config"
	"github.com/relabs-tech/gyro_odometer/internal/gyro"
	"github.com/relabs-tech/gyro_odometer/internal/irq"
)

// Hardware is the set of resources the gyro needs: the bus, the data-ready
// line and, when present, the start button.
type Hardware struct {
	Transport bus.Transport
	DataReady irq.Line
	// Start is nil when the start trigger comes from the terminal.
	Start irq.Line
	// Sim is set in simulate mode.
	Sim *gyro.Simulator

	closers []func() error
}

// Close releases the opened ports.
func (h *Hardware) Close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			log.Printf("hardware: close: %v", err)
		}
	}
	h.closers = nil
}

// OpenHardware opens the gyro's SPI port and GPIO lines, or an in-process
// simulator when cfg.Simulate is set.
func OpenHardware(cfg *config.Config) (*Hardware, error) {
	if cfg.Simulate {
		sim := gyro.NewSimulator()
		log.Println("hardware: using simulated gyro")
		return &Hardware{Transport: sim, DataReady: sim.Line(), Sim: sim}, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gyro: periph host init: %w", err)
	}

	port, err := spireg.Open(cfg.GyroSPIDevice)
	if err != nil {
		return nil, fmt.Errorf("gyro: open SPI port %s: %w", cfg.GyroSPIDevice, err)
	}
	hw := &Hardware{closers: []func() error{port.Close}}

	speed := physic.Frequency(cfg.GyroSPISpeedHz) * physic.Hertz
	tr, err := bus.NewSPI(port, speed)
	if err != nil {
		hw.Close()
		return nil, fmt.Errorf("gyro: SPI transport (%s): %w", cfg.GyroSPIDevice, err)
	}
	hw.Transport = tr
	log.Printf("gyro: SPI %s at %s, mode 3", cfg.GyroSPIDevice, speed)

	drdy := gpioreg.ByName(cfg.GyroDRDYPin)
	if drdy == nil {
		hw.Close()
		return nil, fmt.Errorf("gyro: data-ready pin %q not found", cfg.GyroDRDYPin)
	}
	hw.DataReady = drdy

	if cfg.StartButtonPin != "" {
		btn := gpioreg.ByName(cfg.StartButtonPin)
		if btn == nil {
			hw.Close()
			return nil, fmt.Errorf("start button pin %q not found", cfg.StartButtonPin)
		}
		hw.Start = btn
	}
	return hw, nil
}
