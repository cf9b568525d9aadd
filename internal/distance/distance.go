// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package distance turns a windowed z-axis rate series into travelled path
// length.
//
// Each window is integrated with the composite trapezoidal rule over the
// absolute scaled rate, so direction reversals add up instead of cancelling,
// and the resulting angle is multiplied by the wheel or limb radius.
package distance

import (
	"math"
	"time"

	"github.com/relabs-tech/gyro_odometer/internal/gyro"
)

// Estimate returns the total distance in metres for samples partitioned by
// windows, where windows[i] is the index of the last sample of window i.
func Estimate(samples []int16, windows []int, dt time.Duration, radius float64) float64 {
	total := 0.0
	for _, d := range Windows(samples, windows, dt, radius) {
		total += d
	}
	return total
}

// Windows returns the distance contributed by each window.
//
// Window i spans [windows[i-1]+1, windows[i]] (starting at 0 for the first).
// An empty range contributes 0; the upper bound is clamped to the series.
func Windows(samples []int16, windows []int, dt time.Duration, radius float64) []float64 {
	out := make([]float64, len(windows))
	lower := 0
	for i, upper := range windows {
		if upper > len(samples)-1 {
			upper = len(samples) - 1
		}
		out[i] = trapezoid(samples, lower, upper, dt.Seconds()) * radius
		if windows[i]+1 > lower {
			lower = windows[i] + 1
		}
	}
	return out
}

// trapezoid integrates |rate| over samples[lower..upper] inclusive.
func trapezoid(samples []int16, lower, upper int, dt float64) float64 {
	if lower > upper || lower < 0 {
		return 0
	}
	sum := math.Abs(gyro.Scale(samples[lower])) + math.Abs(gyro.Scale(samples[upper]))
	for k := lower + 1; k < upper; k++ {
		sum += 2 * math.Abs(gyro.Scale(samples[k]))
	}
	return dt / 2 * sum
}
