// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import (
	"context"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/gyro_odometer/internal/irq"
)

// Simulator is an in-process gyro: a register file behind an asynchronous
// bus.Transport and a data-ready line that rises at the configured ODR and
// falls when the output registers are read.
//
// The Z axis follows a walking-gait pattern (a sine whose sign reverses every
// half step), X and Y carry a small wobble.
type Simulator struct {
	start time.Time

	// ZAmplitude is the peak Z rate in raw counts.
	ZAmplitude float64
	// StepHz is the gait frequency.
	StepHz float64

	mu   sync.Mutex
	regs [addressMask + 1]byte

	line *simLine
}

// NewSimulator returns a powered-down L3GD20 with its reset values.
func NewSimulator() *Simulator {
	s := &Simulator{
		start:      time.Now(),
		ZAmplitude: 6000,
		StepHz:     1,
		line:       &simLine{edges: make(chan struct{}, 1)},
	}
	s.regs[RegWhoAmI] = WhoAmIL3GD20
	s.regs[RegCtrl1] = 0x07
	return s
}

// SetIdentity overrides the WHO_AM_I value.
func (s *Simulator) SetIdentity(id byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[RegWhoAmI] = id
}

// Register returns the current value of reg.
func (s *Simulator) Register(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg&addressMask]
}

// DataReady returns the simulated data-ready line.
func (s *Simulator) DataReady() gpio.Level {
	return s.line.Read()
}

// Line returns the simulated data-ready line for ArmDataReady.
func (s *Simulator) Line() irq.Line {
	return s.line
}

// AssertDataReady raises the data-ready line as the sensor does when a new
// sample lands.
func (s *Simulator) AssertDataReady() {
	s.line.raise()
}

// Exchange implements bus.Transport. It completes on a separate goroutine.
func (s *Simulator) Exchange(w, r []byte, done func(err error)) {
	go func() {
		s.mu.Lock()
		s.apply(w, r)
		s.mu.Unlock()
		done(nil)
	}()
}

// Run raises the data-ready line at the output data rate in CTRL_REG1 until
// ctx ends.
func (s *Simulator) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		odr := dataRate(s.regs[RegCtrl1])
		drdy := s.regs[RegCtrl3]&Ctrl3Config != 0
		s.mu.Unlock()

		period := 100 * time.Millisecond
		if odr > 0 {
			period = time.Second / time.Duration(odr)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(period):
		}
		if odr > 0 && drdy {
			s.line.raise()
		}
	}
}

// apply runs one bus exchange against the register file. Callers hold s.mu.
func (s *Simulator) apply(w, r []byte) {
	if len(w) == 0 {
		return
	}
	addr := w[0] & addressMask
	read := w[0]&readBit != 0
	inc := w[0]&autoIncBit != 0
	if len(r) > 0 {
		r[0] = w[0]
	}

	if !read {
		for _, v := range w[1:] {
			if addr != RegWhoAmI {
				s.regs[addr] = v
			}
			if inc {
				addr = (addr + 1) & addressMask
			}
		}
		return
	}

	if addr >= RegOutXL && addr <= RegOutZH {
		s.latch(time.Since(s.start))
		s.line.lower()
	}
	for i := 1; i < len(r) && i < len(w); i++ {
		r[i] = s.regs[addr]
		if inc {
			addr = (addr + 1) & addressMask
		}
	}
}

// latch writes the waveform value at t into the output registers.
func (s *Simulator) latch(t time.Duration) {
	phase := 2 * math.Pi * s.StepHz * t.Seconds()
	sample := RawSample{
		X: int16(300 * math.Sin(phase*0.5)),
		Y: int16(200 * math.Cos(phase*0.5)),
		Z: int16(s.ZAmplitude * math.Sin(phase)),
	}
	copy(s.regs[RegOutXL:RegOutZH+1], Encode(0, sample)[1:])
	s.regs[RegStatus] = 0x0F
}

// simLine is the simulated data-ready output.
type simLine struct {
	mu    sync.Mutex
	level gpio.Level
	edges chan struct{}
}

func (l *simLine) In(pull gpio.Pull, edge gpio.Edge) error { return nil }

func (l *simLine) Read() gpio.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *simLine) WaitForEdge(timeout time.Duration) bool {
	select {
	case <-l.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (l *simLine) raise() {
	l.mu.Lock()
	rising := l.level == gpio.Low
	l.level = gpio.High
	l.mu.Unlock()
	if rising {
		select {
		case l.edges <- struct{}{}:
		default:
		}
	}
}

func (l *simLine) lower() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = gpio.Low
}
