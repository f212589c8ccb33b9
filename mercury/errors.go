// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mercury

import (
	"fmt"
)

// InvalidArgumentError reports malformed input to a public operation: an
// address or month out of range, a password of the wrong length. It is
// surfaced immediately and never retried.
type InvalidArgumentError struct {
	msg string
}

func (e *InvalidArgumentError) Error() string { return "mercury: " + e.msg }

func newInvalidArgument(format string, args ...any) error {
	return &InvalidArgumentError{msg: fmt.Sprintf(format, args...)}
}

// ProtocolError reports a received frame that fails validation: bad
// checksum, wrong address, or a payload too short for the command. The
// exchange engine retries it; on the final attempt it surfaces wrapped in a
// TransportError.
type ProtocolError struct {
	msg string
}

func (e *ProtocolError) Error() string { return "mercury: " + e.msg }

func newProtocolError(format string, args ...any) error {
	return &ProtocolError{msg: fmt.Sprintf(format, args...)}
}

// TransportError reports an I/O failure or a final-attempt protocol error.
// Raw carries the received bytes so a field engineer can diagnose firmware
// mismatches from the log alone.
type TransportError struct {
	Command byte
	Raw     []byte
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case len(e.Raw) == 0 && e.Err != nil:
		return fmt.Sprintf("mercury: transport failure for command 0x%02X: %v", e.Command, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("mercury: invalid response for command 0x%02X: % x (%v)", e.Command, e.Raw, e.Err)
	default:
		return fmt.Sprintf("mercury: invalid response for command 0x%02X: % x", e.Command, e.Raw)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// NoResponseError reports silence on the line: fewer bytes than a minimal
// frame on every attempt. Kept distinct from TransportError so wiring,
// addressing and device-power faults can be told apart from garbled
// responses.
type NoResponseError struct {
	Address  byte
	Command  byte
	Attempts int
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("mercury: no response from meter address %d for command 0x%02X after %d attempt(s)",
		e.Address, e.Command, e.Attempts)
}
