// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus provides the asynchronous register-bus transport the gyro
// driver talks through.
package bus

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Transport performs one full-duplex exchange of len(w) bytes into r and
// calls done exactly once when the exchange finishes. Exchange itself
// never blocks on the transfer.
type Transport interface {
	Exchange(w, r []byte, done func(err error))
}

// SPI is a Transport over a periph SPI connection.
type SPI struct {
	conn spi.Conn
}

// NewSPI connects to port in mode 3 with 8-bit words, which is what the
// L3GD20 family expects.
func NewSPI(port spi.Port, speed physic.Frequency) (*SPI, error) {
	conn, err := port.Connect(speed, spi.Mode3, 8)
	if err != nil {
		return nil, fmt.Errorf("bus: spi connect at %s: %w", speed, err)
	}
	return &SPI{conn: conn}, nil
}

// Exchange runs the transfer on its own goroutine and signals completion
// through done.
func (s *SPI) Exchange(w, r []byte, done func(err error)) {
	go func() {
		done(s.conn.Tx(w, r))
	}()
}
