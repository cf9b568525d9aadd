// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package irq

import (
	"context"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// edgePoll bounds how long a watcher blocks in WaitForEdge before it
// rechecks its context.
const edgePoll = 100 * time.Millisecond

// Line is the subset of gpio.PinIn used for edge-triggered inputs.
type Line interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
}

// Watch arms rising-edge detection on line and calls fn on every edge
// until ctx ends. The line is armed before Watch returns, so a caller can
// sample the line level right after without missing an edge.
//
// fn runs on the watcher goroutine and must not block.
func Watch(ctx context.Context, name string, line Line, pull gpio.Pull, fn func()) error {
	if err := line.In(pull, gpio.RisingEdge); err != nil {
		return fmt.Errorf("irq: arm %s: %w", name, err)
	}
	go func() {
		for ctx.Err() == nil {
			if line.WaitForEdge(edgePoll) {
				fn()
			}
		}
		log.Printf("irq: %s watcher stopped", name)
	}()
	return nil
}
