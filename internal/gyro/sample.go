// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SensitivityRadPerLSB converts raw counts to rad/s at ±500 dps
// (17.50 mdps per digit).
const SensitivityRadPerLSB = 17.50e-3 * math.Pi / 180

// PayloadLen is the size of a sample read: echoed address + 6 data bytes.
const PayloadLen = 7

// RawSample is one angular-rate reading in raw counts.
type RawSample struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

// Rates is a sample scaled to rad/s.
type Rates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Scale converts a raw count to rad/s.
func Scale(v int16) float64 {
	return float64(v) * SensitivityRadPerLSB
}

// Rates returns the sample scaled to rad/s.
func (s RawSample) Rates() Rates {
	return Rates{X: Scale(s.X), Y: Scale(s.Y), Z: Scale(s.Z)}
}

// Decode parses a sample read response. Byte 0 is the echoed address and
// is skipped; bytes 1-6 hold X, Y, Z as little-endian int16.
func Decode(buf []byte) (RawSample, error) {
	if len(buf) < PayloadLen {
		return RawSample{}, fmt.Errorf("%w: got %d bytes, want %d", ErrShortRead, len(buf), PayloadLen)
	}
	return RawSample{
		X: int16(binary.LittleEndian.Uint16(buf[1:3])),
		Y: int16(binary.LittleEndian.Uint16(buf[3:5])),
		Z: int16(binary.LittleEndian.Uint16(buf[5:7])),
	}, nil
}

// Encode is the inverse of Decode, with addr in byte 0.
func Encode(addr byte, s RawSample) []byte {
	buf := make([]byte, PayloadLen)
	buf[0] = addr
	binary.LittleEndian.PutUint16(buf[1:3], uint16(s.X))
	binary.LittleEndian.PutUint16(buf[3:5], uint16(s.Y))
	binary.LittleEndian.PutUint16(buf[5:7], uint16(s.Z))
	return buf
}
