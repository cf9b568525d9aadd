// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gyro drives an L3GD20-family three-axis gyroscope over an
// asynchronous register bus.
package gyro

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/gyro_odometer/internal/bus"
	"github.com/relabs-tech/gyro_odometer/internal/irq"
)

var (
	// ErrIdentityMismatch means WHO_AM_I did not return a supported device.
	ErrIdentityMismatch = errors.New("gyro: unexpected device identity")
	// ErrTransportStall means a bus exchange never completed, even after retries.
	ErrTransportStall = errors.New("gyro: bus transfer stalled")
	// ErrShortRead means a sample response was shorter than PayloadLen.
	ErrShortRead = errors.New("gyro: short sample read")
)

// Options tune how the driver waits on the bus.
type Options struct {
	// Timeout bounds each wait for transfer completion.
	Timeout time.Duration
	// Retries is how many more times a stalled exchange is attempted.
	Retries int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{Timeout: 50 * time.Millisecond, Retries: 3}
}

// completion is the status of one exchange, tagged with its sequence number.
type completion struct {
	seq uint64
	err error
}

// Device is an initialized-or-not gyro on a bus.
type Device struct {
	tr    bus.Transport
	flags *irq.Flags
	opts  Options

	seq  atomic.Uint64
	last atomic.Pointer[completion]
}

// New returns a driver bound to tr. Completion of every exchange is
// reported through flags (irq.TransferDone).
func New(tr bus.Transport, flags *irq.Flags, opts Options) *Device {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Device{tr: tr, flags: flags, opts: opts}
}

// Init checks the device identity and writes the streaming configuration.
func (d *Device) Init(ctx context.Context) error {
	id, err := d.ReadRegister(ctx, RegWhoAmI)
	if err != nil {
		return fmt.Errorf("gyro: read WHO_AM_I: %w", err)
	}
	if id != WhoAmIL3GD20 && id != WhoAmII3G4250D {
		return fmt.Errorf("%w: WHO_AM_I = 0x%02X (expected 0x%02X or 0x%02X)",
			ErrIdentityMismatch, id, WhoAmIL3GD20, WhoAmII3G4250D)
	}
	log.Printf("gyro: WHO_AM_I = 0x%02X", id)

	for _, w := range []struct {
		reg, val byte
		name     string
	}{
		{RegCtrl1, Ctrl1Config, "CTRL_REG1"},
		{RegCtrl4, Ctrl4Config, "CTRL_REG4"},
		{RegCtrl3, Ctrl3Config, "CTRL_REG3"},
	} {
		if err := d.WriteRegister(ctx, w.reg, w.val); err != nil {
			return fmt.Errorf("gyro: write %s: %w", w.name, err)
		}
		log.Printf("gyro: %s set to 0x%02X", w.name, w.val)
	}
	log.Printf("gyro: streaming at %d Hz, ±500 dps", dataRate(Ctrl1Config))
	return nil
}

// ReadSample reads X, Y and Z in one auto-incrementing transaction.
func (d *Device) ReadSample(ctx context.Context) (RawSample, error) {
	w := make([]byte, PayloadLen)
	w[0] = RegOutXL | readBit | autoIncBit
	r, err := d.transfer(ctx, w)
	if err != nil {
		return RawSample{}, fmt.Errorf("gyro: read sample: %w", err)
	}
	return Decode(r)
}

// ReadRegister reads a single register.
func (d *Device) ReadRegister(ctx context.Context, reg byte) (byte, error) {
	r, err := d.transfer(ctx, []byte{(reg & addressMask) | readBit, 0})
	if err != nil {
		return 0, err
	}
	if len(r) < 2 {
		return 0, ErrShortRead
	}
	return r[1], nil
}

// WriteRegister writes a single register.
func (d *Device) WriteRegister(ctx context.Context, reg, val byte) error {
	_, err := d.transfer(ctx, []byte{reg & addressMask, val})
	return err
}

// ReadAllRegisters reads every register in RegisterMap.
func (d *Device) ReadAllRegisters(ctx context.Context) (map[byte]byte, error) {
	regs := make(map[byte]byte)
	for _, info := range RegisterMap() {
		v, err := d.ReadRegister(ctx, info.Address)
		if err != nil {
			return nil, fmt.Errorf("gyro: read %s: %w", info.Name, err)
		}
		regs[info.Address] = v
	}
	return regs, nil
}

// ArmDataReady starts watching the data-ready line. If the line is already
// high once the watcher is armed (the sensor was streaming before this
// process started), no edge will follow until a sample is read, so the
// SampleReady flag is raised here.
func (d *Device) ArmDataReady(ctx context.Context, line irq.Line) error {
	if err := irq.Watch(ctx, "data-ready", line, gpio.PullNoChange, func() {
		d.flags.Set(irq.SampleReady)
	}); err != nil {
		return err
	}
	if line.Read() == gpio.High {
		log.Printf("gyro: data-ready already asserted, forcing first sample")
		d.flags.Set(irq.SampleReady)
	}
	return nil
}

// transfer issues one exchange and waits for it, retrying stalled attempts
// with fresh buffers. Completions of abandoned attempts are ignored.
func (d *Device) transfer(ctx context.Context, w []byte) ([]byte, error) {
	for attempt := 0; attempt <= d.opts.Retries; attempt++ {
		r := make([]byte, len(w))
		seq := d.seq.Add(1)
		d.flags.Clear(irq.TransferDone)
		d.tr.Exchange(w, r, func(err error) {
			d.complete(&completion{seq: seq, err: err})
		})

		err := d.await(ctx, seq)
		if err == nil {
			return r, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Printf("gyro: bus transfer timed out after %s (attempt %d/%d)",
			d.opts.Timeout, attempt+1, d.opts.Retries+1)
	}
	return nil, ErrTransportStall
}

// complete records c unless a newer exchange already completed, then
// raises TransferDone. It runs in the transport's completion context.
func (d *Device) complete(c *completion) {
	for {
		old := d.last.Load()
		if old != nil && old.seq > c.seq {
			return
		}
		if d.last.CompareAndSwap(old, c) {
			break
		}
	}
	d.flags.Set(irq.TransferDone)
}

// await blocks until the exchange numbered seq completes or the per-wait
// timeout expires.
func (d *Device) await(ctx context.Context, seq uint64) error {
	wctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()
	for {
		if _, err := d.flags.Wait(wctx, irq.TransferDone); err != nil {
			return err
		}
		if c := d.last.Load(); c != nil && c.seq == seq {
			return c.err
		}
		// stale completion from an abandoned attempt
	}
}
