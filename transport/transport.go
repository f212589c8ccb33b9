// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package transport defines the byte-level channel the meter client talks
// through. Two implementations exist: a serial port (transport/serial) and a
// transparent TCP byte tunnel (transport/tcp). Both carry the exact same
// bytes with no extra envelope.
package transport

import "time"

// Transport is a half-duplex byte channel. One request is fully written
// before a response is awaited, so implementations need no locking for the
// client's use; a Transport belongs to exactly one client.
type Transport interface {
	// Write sends p and returns the number of bytes written.
	Write(p []byte) (int, error)

	// Read blocks until max bytes are collected or the deadline passes,
	// then returns whatever arrived, possibly nothing. It never blocks past
	// the deadline.
	Read(max int, deadline time.Time) ([]byte, error)

	// Available reports, best effort, how many bytes can be read without
	// blocking. Stream-backed implementations drain the socket into their
	// receive buffer first.
	Available() (int, error)

	// DiscardInput drops buffered input and anything immediately readable,
	// so one exchange's stray bytes cannot leak into the next.
	DiscardInput() error

	// Close releases the underlying port or connection. A second Close must
	// not panic.
	Close() error
}
