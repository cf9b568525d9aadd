// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package capture

import "time"

// Aggregator appends samples to a Series and, as session time passes,
// closes fixed-duration windows by recording the index of the last sample
// that arrived before each window's deadline.
//
// Windows are bounded by time, not by count: a window may hold no sample,
// in which case its index equals the previous one (or -1 for a leading
// empty window).
type Aggregator struct {
	series     *Series
	window     time.Duration
	maxWindows int

	count    int
	boundary time.Duration
	index    []int
}

// NewAggregator partitions series into windows of the given duration, at
// most maxWindows of them.
func NewAggregator(series *Series, window time.Duration, maxWindows int) *Aggregator {
	if maxWindows < 0 {
		maxWindows = 0
	}
	a := &Aggregator{
		series:     series,
		window:     window,
		maxWindows: maxWindows,
		index:      make([]int, 0, maxWindows),
	}
	a.Reset()
	return a
}

// Add records one sample. It returns false if the series was full and the
// sample was dropped; dropped samples are not counted.
func (a *Aggregator) Add(v int16) bool {
	if !a.series.Append(v) {
		return false
	}
	a.count++
	return true
}

// Tick closes every window whose boundary elapsed has reached and returns
// how many were closed. Once maxWindows are closed, Tick does nothing.
func (a *Aggregator) Tick(elapsed time.Duration) int {
	closed := 0
	for elapsed >= a.boundary && len(a.index) < a.maxWindows {
		a.index = append(a.index, a.count-1)
		a.boundary += a.window
		closed++
	}
	return closed
}

// Windows returns the last-sample index of each closed window. The slice
// aliases the aggregator and must not be modified.
func (a *Aggregator) Windows() []int { return a.index }

// Count returns the number of accepted samples.
func (a *Aggregator) Count() int { return a.count }

// Boundary returns the elapsed time at which the next window closes.
func (a *Aggregator) Boundary() time.Duration { return a.boundary }

// Series returns the underlying series.
func (a *Aggregator) Series() *Series { return a.series }

// Reset returns the aggregator and its series to their initial state.
func (a *Aggregator) Reset() {
	a.series.Reset()
	a.count = 0
	a.boundary = a.window
	a.index = a.index[:0]
}
