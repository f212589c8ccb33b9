// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package serial adapts a local serial device to transport.Transport.
// Byte framing is fixed 8N1; only the baud rate is configurable.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	gxserial "github.com/grid-x/serial"

	"github.com/ffutop/mercury-poller/transport"
)

const (
	// pollTimeout is the port-level read timeout. Read loops on it until
	// the caller's deadline, so it only bounds the reaction latency.
	pollTimeout = 50 * time.Millisecond

	readChunk = 256

	defaultBaudRate = 9600
)

// Config selects the port and line speed.
type Config struct {
	Device   string
	BaudRate int
}

// Port is a transport.Transport over a serial device.
type Port struct {
	port io.ReadWriteCloser
	rx   []byte
}

var _ transport.Transport = (*Port)(nil)

// Open opens the device at the configured baud rate.
func Open(cfg Config) (*Port, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial: device is required")
	}
	baud := cfg.BaudRate
	if baud == 0 {
		baud = defaultBaudRate
	}

	port, err := gxserial.Open(&gxserial.Config{
		Address:  cfg.Device,
		BaudRate: baud,
		DataBits: 8,
		Parity:   "N",
		StopBits: 1,
		Timeout:  pollTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: could not open %s: %w", cfg.Device, err)
	}
	return &Port{port: port}, nil
}

// Write sends p down the line.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Read collects up to max bytes, first from the receive buffer and then
// from the port, until the deadline passes.
func (p *Port) Read(max int, deadline time.Time) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}

	out := make([]byte, 0, max)
	buf := make([]byte, readChunk)

	for len(out) < max {
		if len(p.rx) > 0 {
			take := max - len(out)
			if take > len(p.rx) {
				take = len(p.rx)
			}
			out = append(out, p.rx[:take]...)
			p.rx = p.rx[take:]
			continue
		}

		if !time.Now().Before(deadline) {
			break
		}
		n, err := p.port.Read(buf)
		if n > 0 {
			p.rx = append(p.rx, buf[:n]...)
			continue
		}
		if err != nil && !isTimeout(err) {
			return out, err
		}
		// Zero-byte read: a port-timeout tick, loop back to the deadline
		// check.
	}

	return out, nil
}

// Available reports how many bytes a single port-timeout bounded read can
// deliver. The UART receive count is not exposed portably, so one short
// opportunistic read stands in for it.
func (p *Port) Available() (int, error) {
	buf := make([]byte, readChunk)
	n, err := p.port.Read(buf)
	if n > 0 {
		p.rx = append(p.rx, buf[:n]...)
	}
	if err != nil && !isTimeout(err) {
		return len(p.rx), err
	}
	return len(p.rx), nil
}

// DiscardInput throws away buffered input and keeps reading until the line
// goes quiet for one port timeout.
func (p *Port) DiscardInput() error {
	p.rx = p.rx[:0]
	buf := make([]byte, readChunk)
	for {
		n, err := p.port.Read(buf)
		if n > 0 {
			continue
		}
		if err != nil && !isTimeout(err) {
			return err
		}
		return nil
	}
}

// Close releases the port. Safe to call twice.
func (p *Port) Close() error {
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, gxserial.ErrTimeout) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
