// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package irq bridges asynchronous hardware events (bus completion, GPIO
// edges) and the single control loop through a set of sticky flags.
package irq

import (
	"context"
	"strings"
	"sync/atomic"
)

// Flag is one bit of a Flags set.
type Flag uint32

const (
	// TransferDone is set when a bus exchange completes.
	TransferDone Flag = 1 << iota
	// SampleReady is set on a rising edge of the sensor data-ready line.
	SampleReady
	// StartTrigger is set on a start button edge.
	StartTrigger
)

func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, n := range []struct {
		bit  Flag
		name string
	}{
		{TransferDone, "transfer-done"},
		{SampleReady, "sample-ready"},
		{StartTrigger, "start-trigger"},
	} {
		if f&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Flags is a bitset written by event callbacks and consumed by one waiter.
//
// A bit stays set until it is consumed by Wait or Take, which observe and
// clear it in the same atomic step. Set never blocks, so it is safe to call
// from edge and completion callbacks.
type Flags struct {
	bits atomic.Uint32
	wake chan struct{}
}

// NewFlags returns an empty flag set.
func NewFlags() *Flags {
	return &Flags{wake: make(chan struct{}, 1)}
}

// Set raises every bit in mask and wakes the waiter.
func (f *Flags) Set(mask Flag) {
	f.bits.Or(uint32(mask))
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Take clears and returns the bits of mask that are currently set,
// without blocking. It returns 0 if none are set.
func (f *Flags) Take(mask Flag) Flag {
	for {
		old := f.bits.Load()
		got := old & uint32(mask)
		if got == 0 {
			return 0
		}
		if f.bits.CompareAndSwap(old, old&^got) {
			return Flag(got)
		}
	}
}

// Wait blocks until at least one bit of mask is set, clears the bits of
// mask that were observed, and returns them. It returns ctx.Err() if the
// context ends first; no bit is cleared in that case.
func (f *Flags) Wait(ctx context.Context, mask Flag) (Flag, error) {
	for {
		if got := f.Take(mask); got != 0 {
			return got, nil
		}
		select {
		case <-f.wake:
		case <-ctx.Done():
			// A Set may have raced with cancellation.
			if got := f.Take(mask); got != 0 {
				return got, nil
			}
			return 0, ctx.Err()
		}
	}
}

// Clear discards the bits of mask without reporting them.
func (f *Flags) Clear(mask Flag) {
	f.bits.And(^uint32(mask))
}
