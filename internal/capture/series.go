// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package capture holds the recorded z-axis series of a session and the
// per-window index that partitions it by wall-clock time.
package capture

// Series is an append-only, fixed-capacity sequence of raw samples.
//
// When full, new samples are dropped and counted; the samples already
// recorded are never overwritten.
type Series struct {
	samples []int16
	dropped int
}

// NewSeries returns an empty series that holds at most capacity samples.
func NewSeries(capacity int) *Series {
	if capacity < 0 {
		capacity = 0
	}
	return &Series{samples: make([]int16, 0, capacity)}
}

// Append records v. It returns false, and counts the sample as dropped, if
// the series is full.
func (s *Series) Append(v int16) bool {
	if len(s.samples) == cap(s.samples) {
		s.dropped++
		return false
	}
	s.samples = append(s.samples, v)
	return true
}

// Len returns the number of recorded samples.
func (s *Series) Len() int { return len(s.samples) }

// Cap returns the fixed capacity.
func (s *Series) Cap() int { return cap(s.samples) }

// Dropped returns how many samples were rejected since the last Reset.
func (s *Series) Dropped() int { return s.dropped }

// Samples returns the recorded samples. The slice aliases the series and
// must not be modified.
func (s *Series) Samples() []int16 { return s.samples }

// Reset empties the series without releasing its storage.
func (s *Series) Reset() {
	s.samples = s.samples[:0]
	s.dropped = 0
}
