// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package tcp implements the transparent tunnel transport: RTU frames pass
// through a connected stream socket unmodified, with no MBAP header and no
// length prefix.
package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ffutop/mercury-poller/transport"
)

const (
	readChunk = 4096

	// drainPoll bounds each non-blocking sweep of the socket.
	drainPoll = 5 * time.Millisecond
)

// Tunnel is a transport.Transport over one TCP connection.
type Tunnel struct {
	conn net.Conn
	rx   []byte
}

var _ transport.Transport = (*Tunnel)(nil)

// Dial connects to addr ("host:port") within timeout.
func Dial(addr string, timeout time.Duration) (*Tunnel, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("tcp: connect %s: %w", addr, err)
	}
	return &Tunnel{conn: conn}, nil
}

// Write sends p over the socket.
func (t *Tunnel) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

// Read collects up to max bytes, first from the receive buffer and then
// from the socket, until the deadline passes.
func (t *Tunnel) Read(max int, deadline time.Time) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}

	out := make([]byte, 0, max)
	buf := make([]byte, readChunk)

	for len(out) < max {
		if len(t.rx) > 0 {
			take := max - len(out)
			if take > len(t.rx) {
				take = len(t.rx)
			}
			out = append(out, t.rx[:take]...)
			t.rx = t.rx[take:]
			continue
		}

		if !time.Now().Before(deadline) {
			break
		}
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return out, err
		}
		n, err := t.conn.Read(buf)
		if n > 0 {
			t.rx = append(t.rx, buf[:n]...)
			continue
		}
		if err != nil {
			if isTimeout(err) || errors.Is(err, io.EOF) {
				break
			}
			return out, err
		}
	}

	return out, nil
}

// Available drains the socket into the receive buffer and reports its size.
func (t *Tunnel) Available() (int, error) {
	t.drain()
	return len(t.rx), nil
}

// DiscardInput throws away buffered input plus anything the peer has
// already sent.
func (t *Tunnel) DiscardInput() error {
	t.rx = t.rx[:0]
	t.drain()
	t.rx = t.rx[:0]
	return nil
}

// Close shuts the connection. Safe to call twice.
func (t *Tunnel) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// drain moves everything immediately readable from the socket into the
// receive buffer, waiting at most drainPoll per sweep.
func (t *Tunnel) drain() {
	buf := make([]byte, readChunk)
	for {
		if err := t.conn.SetReadDeadline(time.Now().Add(drainPoll)); err != nil {
			return
		}
		n, err := t.conn.Read(buf)
		if n > 0 {
			t.rx = append(t.rx, buf[:n]...)
		}
		if err != nil {
			return
		}
		if n < len(buf) {
			// A short read means the socket buffer is empty; do not pay
			// another drainPoll for nothing.
			return
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
