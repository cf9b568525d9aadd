// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gyro_odometer/internal/config"
	"github.com/relabs-tech/gyro_odometer/internal/display"
	"github.com/relabs-tech/gyro_odometer/internal/gyro"
	"github.com/relabs-tech/gyro_odometer/internal/irq"
	"github.com/relabs-tech/gyro_odometer/internal/session"
	"github.com/relabs-tech/gyro_odometer/internal/timeutil"
)

// buttonDebounce is the minimum spacing between accepted start edges.
const buttonDebounce = 50 * time.Millisecond

// RunOdometer runs capture sessions until SIGINT or SIGTERM.
func RunOdometer() error {
	log.Println("starting gyro odometer")

	cfg := config.Get()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hw, err := OpenHardware(cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	flags := irq.NewFlags()
	dev := gyro.New(hw.Transport, flags, gyro.Options{Timeout: cfg.BusTimeout, Retries: cfg.BusRetries})
	if hw.Sim != nil {
		go hw.Sim.Run(ctx)
	}

	if err := dev.Init(ctx); err != nil {
		return err
	}
	if err := dev.ArmDataReady(ctx, hw.DataReady); err != nil {
		return fmt.Errorf("gyro: %w", err)
	}

	clock := timeutil.RealClock{}
	if hw.Start != nil {
		trigger := debounce(clock, buttonDebounce, func() { flags.Set(irq.StartTrigger) })
		if err := irq.Watch(ctx, "start-button", hw.Start, gpio.PullDown, trigger); err != nil {
			return err
		}
		log.Printf("odometer: press the button on %s to start a session", cfg.StartButtonPin)
	} else {
		go triggerOnEnter(os.Stdin, flags)
		log.Println("odometer: press ENTER to start a session")
	}

	sink, closeSink, err := openSink(cfg, clock)
	if err != nil {
		return err
	}
	defer closeSink()

	m := session.New(sessionConfig(cfg), clock, flags, dev, sink)
	err = m.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Println("odometer: shutting down")
		return nil
	}
	return err
}

// sessionConfig applies the configured timing to the standard session.
func sessionConfig(cfg *config.Config) session.Config {
	sc := session.DefaultConfig()
	sc.Countdown = cfg.Countdown
	sc.SampleTimeout = cfg.SampleTimeout
	sc.ResultHold = cfg.ResultHold
	return sc
}

// openSink returns the configured display.
func openSink(cfg *config.Config, clock timeutil.Clock) (session.Sink, func(), error) {
	switch cfg.Display {
	case "oled":
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("display: periph host init: %w", err)
		}
		b, err := i2creg.Open(cfg.DisplayI2CBus)
		if err != nil {
			return nil, nil, fmt.Errorf("display: open I2C bus %q: %w", cfg.DisplayI2CBus, err)
		}
		oled, err := display.OpenOLED(b, clock, cfg.DisplayUpdateInterval)
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		return oled, func() { b.Close() }, nil
	default:
		return display.NewConsole(os.Stdout, clock, cfg.DisplayUpdateInterval), func() {}, nil
	}
}

// triggerOnEnter raises StartTrigger for every line read from r.
func triggerOnEnter(r io.Reader, flags *irq.Flags) {
	in := bufio.NewReader(r)
	for {
		if _, err := in.ReadString('\n'); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("odometer: stdin: %v", err)
			}
			return
		}
		flags.Set(irq.StartTrigger)
	}
}

// debounce drops calls to fn that follow an accepted call within window.
func debounce(clock timeutil.Clock, window time.Duration, fn func()) func() {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func() {
		mu.Lock()
		now := clock.Now()
		if !last.IsZero() && now.Sub(last) < window {
			mu.Unlock()
			return
		}
		last = now
		mu.Unlock()
		fn()
	}
}
