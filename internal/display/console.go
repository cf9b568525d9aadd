// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display renders session output for the operator, on a terminal or
// on an SSD1306 OLED.
package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/relabs-tech/gyro_odometer/internal/gyro"
	"github.com/relabs-tech/gyro_odometer/internal/session"
	"github.com/relabs-tech/gyro_odometer/internal/timeutil"
)

// throttle lets a readout through at most once per interval.
type throttle struct {
	clock    timeutil.Clock
	interval time.Duration
	last     time.Time
}

func (t *throttle) allow() bool {
	if t.interval <= 0 {
		return true
	}
	now := t.clock.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

func (t *throttle) reset() { t.last = time.Time{} }

// Console writes session output as text lines.
type Console struct {
	mu sync.Mutex
	w  io.Writer
	th throttle
}

// NewConsole writes to w, showing at most one readout per interval.
func NewConsole(w io.Writer, clock timeutil.Clock, interval time.Duration) *Console {
	return &Console{w: w, th: throttle{clock: clock, interval: interval}}
}

func (c *Console) Status(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.th.reset()
	fmt.Fprintf(c.w, "== %s\n", msg)
}

func (c *Console) Readout(r gyro.Rates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.th.allow() {
		return
	}
	fmt.Fprintf(c.w, "gx=%+7.3f gy=%+7.3f gz=%+7.3f rad/s\n", r.X, r.Y, r.Z)
}

func (c *Console) Result(r session.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.Fault != nil {
		fmt.Fprintf(c.w, "!! session aborted after %d samples: %v\n", r.Samples, r.Fault)
		return
	}
	fmt.Fprintf(c.w, "distance: %.2f m (%d samples, %d windows", r.Distance, r.Samples, r.Windows)
	if r.Dropped > 0 {
		fmt.Fprintf(c.w, ", %d dropped", r.Dropped)
	}
	fmt.Fprintln(c.w, ")")
}
