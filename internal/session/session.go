// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session runs the capture cycle: wait for the start trigger, count
// down, record for a fixed duration, estimate distance, show the result.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/gyro_odometer/internal/capture"
	"github.com/relabs-tech/gyro_odometer/internal/distance"
	"github.com/relabs-tech/gyro_odometer/internal/gyro"
	"github.com/relabs-tech/gyro_odometer/internal/irq"
	"github.com/relabs-tech/gyro_odometer/internal/timeutil"
)

// Capture constants.
const (
	Window         = 500 * time.Millisecond
	RecordDuration = 20 * time.Second
	SampleInterval = 100 * time.Millisecond
	Radius         = 0.19 // metres
	Capacity       = 300
)

// ErrSampleTimeout means the data-ready line did not fire in time.
var ErrSampleTimeout = errors.New("session: timed out waiting for sample")

// State is the phase of the capture cycle.
type State int

const (
	Idle State = iota
	Countdown
	Recording
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Countdown:
		return "countdown"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds session timing.
type Config struct {
	// Countdown is the lead-in between the trigger and recording.
	Countdown time.Duration
	// SampleTimeout bounds each wait for the data-ready signal.
	SampleTimeout time.Duration
	// ResultHold is how long a result is shown before returning to idle.
	ResultHold time.Duration

	Window         time.Duration
	RecordDuration time.Duration
	SampleInterval time.Duration
	Radius         float64
	Capacity       int
}

// DefaultConfig returns the standard capture timing.
func DefaultConfig() Config {
	return Config{
		Countdown:      3 * time.Second,
		SampleTimeout:  time.Second,
		ResultHold:     5 * time.Second,
		Window:         Window,
		RecordDuration: RecordDuration,
		SampleInterval: SampleInterval,
		Radius:         Radius,
		Capacity:       Capacity,
	}
}

// Sampler reads one gyro sample. *gyro.Device implements it.
type Sampler interface {
	ReadSample(ctx context.Context) (gyro.RawSample, error)
}

// Sink receives everything the operator sees. Calls come from the machine's
// goroutine and must not block for long.
type Sink interface {
	Status(msg string)
	Readout(r gyro.Rates)
	Result(r Result)
}

// Result is the outcome of one session.
type Result struct {
	// Distance is the estimated path length in metres.
	Distance float64
	// PerWindow holds the distance of each window.
	PerWindow []float64
	Samples   int
	Windows   int
	// Dropped counts samples rejected because the series was full.
	Dropped int
	Elapsed time.Duration
	// Fault is set when the session was aborted.
	Fault error
}

// Machine is the capture state machine. It is driven by a single goroutine.
type Machine struct {
	cfg     Config
	clock   timeutil.Clock
	flags   *irq.Flags
	sampler Sampler
	sink    Sink

	state State
	agg   *capture.Aggregator

	countdownLeft time.Duration
	started       time.Time
	n             int
	elapsed       time.Duration
}

// New returns a machine in Idle. Zero fields of cfg take their defaults.
func New(cfg Config, clock timeutil.Clock, flags *irq.Flags, sampler Sampler, sink Sink) *Machine {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.RecordDuration <= 0 {
		cfg.RecordDuration = def.RecordDuration
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = def.SampleInterval
	}
	if cfg.Radius <= 0 {
		cfg.Radius = def.Radius
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.SampleTimeout <= 0 {
		cfg.SampleTimeout = def.SampleTimeout
	}
	maxWindows := int(cfg.RecordDuration / cfg.Window)
	return &Machine{
		cfg:     cfg,
		clock:   clock,
		flags:   flags,
		sampler: sampler,
		sink:    sink,
		state:   Idle,
		agg:     capture.NewAggregator(capture.NewSeries(cfg.Capacity), cfg.Window, maxWindows),
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Run steps the machine until ctx ends.
func (m *Machine) Run(ctx context.Context) error {
	m.sink.Status("Press start")
	for {
		if err := m.Step(ctx); err != nil {
			return err
		}
	}
}

// Step performs one unit of work for the current state. It returns an error
// only when ctx ends; session faults are reported to the sink.
func (m *Machine) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch m.state {
	case Idle:
		return m.stepIdle(ctx)
	case Countdown:
		m.stepCountdown()
	case Recording:
		return m.stepRecording(ctx)
	case Processing:
		m.stepProcessing()
	}
	return nil
}

func (m *Machine) stepIdle(ctx context.Context) error {
	if _, err := m.flags.Wait(ctx, irq.StartTrigger); err != nil {
		return err
	}
	m.agg.Reset()
	m.n = 0
	m.started = time.Time{}
	m.elapsed = 0
	m.countdownLeft = m.cfg.Countdown
	log.Printf("session: start trigger, counting down %v", m.cfg.Countdown)
	m.transition(Countdown)
	return nil
}

func (m *Machine) stepCountdown() {
	m.ignoreTrigger()
	if m.countdownLeft > 0 {
		secs := int((m.countdownLeft + time.Second - 1) / time.Second)
		m.sink.Status(fmt.Sprintf("Starting in %d", secs))
		d := min(m.countdownLeft, time.Second)
		m.clock.Sleep(d)
		m.countdownLeft -= d
		return
	}
	m.sink.Status("Recording")
	m.started = m.clock.Now()
	m.transition(Recording)
}

func (m *Machine) stepRecording(ctx context.Context) error {
	m.ignoreTrigger()

	next := m.started.Add(time.Duration(m.n) * m.cfg.SampleInterval)
	if d := m.clock.Until(next); d > 0 {
		m.clock.Sleep(d)
	}

	wctx, cancel := context.WithTimeout(ctx, m.cfg.SampleTimeout)
	_, err := m.flags.Wait(wctx, irq.SampleReady)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.abort(fmt.Errorf("%w after %v", ErrSampleTimeout, m.cfg.SampleTimeout))
		return nil
	}

	s, err := m.sampler.ReadSample(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.abort(err)
		return nil
	}
	m.n++
	if !m.agg.Add(s.Z) && m.agg.Series().Dropped() == 1 {
		log.Printf("session: series full at %d samples, dropping", m.agg.Series().Cap())
	}
	m.sink.Readout(s.Rates())

	m.elapsed = m.clock.Since(m.started)
	m.agg.Tick(m.elapsed)
	if m.elapsed >= m.cfg.RecordDuration {
		m.transition(Processing)
	}
	return nil
}

func (m *Machine) stepProcessing() {
	samples, windows := m.agg.Series().Samples(), m.agg.Windows()
	res := m.result()
	res.Distance = distance.Estimate(samples, windows, m.cfg.SampleInterval, m.cfg.Radius)
	res.PerWindow = distance.Windows(samples, windows, m.cfg.SampleInterval, m.cfg.Radius)
	log.Printf("session: %.3f m from %d samples in %d windows (%d dropped)",
		res.Distance, res.Samples, res.Windows, res.Dropped)
	m.finish(res)
}

// abort ends the running session with a fault.
func (m *Machine) abort(err error) {
	log.Printf("session: aborted in %s: %v", m.state, err)
	res := m.result()
	res.Fault = err
	m.finish(res)
}

func (m *Machine) result() Result {
	series := m.agg.Series()
	return Result{
		Samples: series.Len(),
		Windows: len(m.agg.Windows()),
		Dropped: series.Dropped(),
		Elapsed: m.elapsed,
	}
}

// finish shows res, holds it, and returns to Idle.
func (m *Machine) finish(res Result) {
	m.sink.Result(res)
	if m.cfg.ResultHold > 0 {
		m.clock.Sleep(m.cfg.ResultHold)
	}
	m.flags.Clear(irq.StartTrigger)
	m.started = time.Time{}
	m.elapsed = 0
	m.transition(Idle)
	m.sink.Status("Press start")
}

// ignoreTrigger discards a start edge outside Idle.
func (m *Machine) ignoreTrigger() {
	if m.flags.Take(irq.StartTrigger) != 0 {
		log.Printf("session: start trigger ignored in %s", m.state)
	}
}

func (m *Machine) transition(to State) {
	log.Printf("session: %s -> %s", m.state, to)
	m.state = to
}
