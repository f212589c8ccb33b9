// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mercury

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/mercury-poller/transport"
)

// Protocol commands.
const (
	cmdTestLink    = 0x00
	cmdOpenSession = 0x01
	cmdReadEnergy  = 0x05
	cmdReadParams  = 0x08
)

// Sub-commands of cmdReadParams.
const (
	paramInfoBlock      = 0x00
	paramTransformRatio = 0x02
	paramVersion        = 0x03
	paramNetworkAddress = 0x05
	paramUnlockArchive  = 0x12
)

// Access levels for OpenSession. The factory-default password for a level
// is six copies of the level byte.
const (
	AccessUser  byte = 0x01
	AccessAdmin byte = 0x02
)

const (
	DefaultTimeout = time.Second
	DefaultRetries = 1

	passwordLen = 6

	// monthGroupBase offsets the monthly archive register groups:
	// 0x31..0x3C for January..December.
	monthGroupBase = 0x30
)

// DefaultPassword returns the factory password for an access level.
func DefaultPassword(level byte) []byte {
	return bytes.Repeat([]byte{level}, passwordLen)
}

// Config carries the client's polling parameters.
type Config struct {
	// Address is the device's network address on the bus.
	Address byte
	// Timeout is the per-read deadline, re-armed on every read call. A slow
	// meter can legitimately consume it twice per exchange: once for the
	// minimal frame, again for the opportunistic tail.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first.
	Retries int
}

// Client polls one Mercury-230 meter over a half-duplex transport. It owns
// the transport exclusively and releases it in Close; a caller polling
// several meters uses one client per device. Operations are synchronous and
// must not be called concurrently.
type Client struct {
	address byte
	timeout time.Duration
	retries int
	tr      transport.Transport
}

// NewClient wraps an open transport.
func NewClient(tr transport.Transport, cfg Config) (*Client, error) {
	if tr == nil {
		return nil, newInvalidArgument("transport must not be nil")
	}
	if cfg.Retries < 0 {
		return nil, newInvalidArgument("retries must be >= 0")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		address: cfg.Address,
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		tr:      tr,
	}, nil
}

// Address returns the configured device address.
func (c *Client) Address() byte { return c.address }

// Close releases the transport.
func (c *Client) Close() error { return c.tr.Close() }

// exchange performs one logical request: discard stale input, transmit,
// receive, validate, with bounded retry. minResponse is how many bytes to
// wait for before grabbing whatever else the transport has buffered;
// variable-length responses ride in that opportunistic tail.
//
// A validation failure is retried; an I/O failure is not, since a broken
// channel will not heal between attempts.
func (c *Client) exchange(ctx context.Context, command byte, data []byte, minResponse int) (byte, []byte, error) {
	tx := BuildFrame(c.address, command, data)

	var lastRx []byte
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, &TransportError{Command: command, Err: err}
		}

		if err := c.tr.DiscardInput(); err != nil {
			return 0, nil, &TransportError{Command: command, Err: fmt.Errorf("discard input: %w", err)}
		}

		slog.Debug("send to meter", "address", c.address, "request", hex.EncodeToString(tx))
		if _, err := c.tr.Write(tx); err != nil {
			return 0, nil, &TransportError{Command: command, Err: fmt.Errorf("write: %w", err)}
		}

		rx, err := c.tr.Read(minResponse, c.deadline(ctx))
		if err != nil {
			return 0, nil, &TransportError{Command: command, Raw: rx, Err: fmt.Errorf("read: %w", err)}
		}
		if n, availErr := c.tr.Available(); availErr == nil && n > 0 {
			tail, tailErr := c.tr.Read(n, c.deadline(ctx))
			if tailErr != nil {
				return 0, nil, &TransportError{Command: command, Raw: rx, Err: fmt.Errorf("read: %w", tailErr)}
			}
			rx = append(rx, tail...)
		}
		slog.Debug("recv from meter", "address", c.address, "response", hex.EncodeToString(rx))
		lastRx = rx

		if len(rx) < frameMinSize {
			continue
		}

		_, responseCmd, payload, parseErr := ParseFrame(rx, &c.address)
		if parseErr != nil {
			lastErr = parseErr
			continue
		}
		return responseCmd, payload, nil
	}

	if len(lastRx) < frameMinSize {
		return 0, nil, &NoResponseError{Address: c.address, Command: command, Attempts: c.retries + 1}
	}
	// Bytes were present but never parsed; lastErr may be nil only on a
	// path that should not occur, and the raw bytes still get reported.
	return 0, nil, &TransportError{Command: command, Raw: lastRx, Err: lastErr}
}

// deadline arms the configured timeout, capped by the context deadline.
func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// TestLink checks the device answers with a validly framed response
// (command 0x00). The payload content is ignored.
func (c *Client) TestLink(ctx context.Context) error {
	_, _, err := c.exchange(ctx, cmdTestLink, nil, frameMinSize)
	return err
}

// OpenSession unlocks the device at the given access level (command 0x01).
// The password must be exactly six bytes.
func (c *Client) OpenSession(ctx context.Context, accessLevel byte, password []byte) error {
	if len(password) != passwordLen {
		return newInvalidArgument("password must contain exactly %d bytes", passwordLen)
	}
	data := make([]byte, 0, passwordLen+1)
	data = append(data, accessLevel)
	data = append(data, password...)
	_, _, err := c.exchange(ctx, cmdOpenSession, data, frameMinSize)
	return err
}

// ReadNetworkAddress returns the address the device believes it has
// (0x08/0x05).
func (c *Client) ReadNetworkAddress(ctx context.Context) (byte, error) {
	_, payload, err := c.exchange(ctx, cmdReadParams, []byte{paramNetworkAddress}, frameMinSize)
	if err != nil {
		return 0, err
	}
	if len(payload) == 0 {
		return 0, newProtocolError("empty payload for network address")
	}
	return payload[0], nil
}

// ReadInfoBlock returns the raw serial/build-date block (0x08/0x00)
// together with the response command byte, which takes part in the serial
// number rendering.
func (c *Client) ReadInfoBlock(ctx context.Context) (byte, []byte, error) {
	return c.exchange(ctx, cmdReadParams, []byte{paramInfoBlock}, frameMinSize)
}

// ReadSoftwareVersion reads the firmware triple (0x08/0x03). Some revisions
// answer with only two payload bytes and put the first digit in the
// response command. A nil result means the shape was not recognized.
func (c *Client) ReadSoftwareVersion(ctx context.Context) (*Version, error) {
	responseCmd, payload, err := c.exchange(ctx, cmdReadParams, []byte{paramVersion}, frameMinSize)
	if err != nil {
		return nil, err
	}
	switch {
	case len(payload) >= 3:
		return &Version{payload[0], payload[1], payload[2]}, nil
	case len(payload) == 2:
		return &Version{responseCmd, payload[0], payload[1]}, nil
	default:
		return nil, nil
	}
}

// ReadTransformRatios reads the voltage and current transformation ratios
// (0x08/0x02): voltage is the little-endian uint16 of the first two payload
// bytes, current the third. The raw payload is returned even when the
// ratios are undetermined.
func (c *Client) ReadTransformRatios(ctx context.Context) (*uint16, *byte, []byte, error) {
	_, payload, err := c.exchange(ctx, cmdReadParams, []byte{paramTransformRatio}, frameMinSize)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(payload) < 3 {
		return nil, nil, payload, nil
	}
	voltage := binary.LittleEndian.Uint16(payload[0:2])
	current := payload[2]
	return &voltage, &current, payload, nil
}

// ReadPassport runs the passport polling sequence: link test, admin
// session, then the identity reads. Any failed exchange aborts the whole
// sequence; a half-read passport is not a meaningful result.
func (c *Client) ReadPassport(ctx context.Context) (*PassportData, error) {
	if err := c.TestLink(ctx); err != nil {
		return nil, err
	}
	if err := c.OpenSession(ctx, AccessAdmin, DefaultPassword(AccessAdmin)); err != nil {
		return nil, err
	}

	addr, err := c.ReadNetworkAddress(ctx)
	if err != nil {
		return nil, err
	}
	infoCmd, info, err := c.ReadInfoBlock(ctx)
	if err != nil {
		return nil, err
	}
	version, err := c.ReadSoftwareVersion(ctx)
	if err != nil {
		return nil, err
	}
	voltageRatio, currentRatio, ratiosRaw, err := c.ReadTransformRatios(ctx)
	if err != nil {
		return nil, err
	}

	passport := &PassportData{
		Address:      addr,
		SerialNumber: serialDecimal(infoCmd, info),
		Version:      version,
		VoltageRatio: voltageRatio,
		CurrentRatio: currentRatio,
		RawInfoBlock: info,
		RawRatios:    ratiosRaw,
	}
	if len(info) >= 3 {
		// The last three info bytes are the build date; the rest is the
		// serial identifier.
		passport.SerialRaw = info[:len(info)-3]
	}
	if date, ok := parseBuildDate(info); ok {
		passport.BuildDate = &date
	}
	return passport, nil
}

// prepareEnergySession unlocks the energy archive: user-level session, then
// 0x08/0x12. Required before any energy register read.
func (c *Client) prepareEnergySession(ctx context.Context) error {
	if err := c.OpenSession(ctx, AccessUser, DefaultPassword(AccessUser)); err != nil {
		return err
	}
	_, _, err := c.exchange(ctx, cmdReadParams, []byte{paramUnlockArchive}, frameMinSize)
	return err
}

// readEnergyRegister reads one group/index register (command 0x05). The
// active-energy block sits at payload[0:4], the reactive block at
// payload[8:12].
func (c *Client) readEnergyRegister(ctx context.Context, group, index byte) (activeWh, reactiveVarh int64, payload []byte, err error) {
	responseCmd, payload, err := c.exchange(ctx, cmdReadEnergy, []byte{group, index}, frameMinSize)
	if err != nil {
		return 0, 0, nil, err
	}
	if len(payload) < 12 {
		return 0, 0, nil, newProtocolError("short energy payload for group/index %02X/%02X: % x", group, index, payload)
	}

	activeWh, err = DecodeEnergyValue(responseCmd, payload[0:4])
	if err != nil {
		return 0, 0, nil, err
	}
	reactiveVarh, err = DecodeEnergyValue(responseCmd, payload[8:12])
	if err != nil {
		return 0, 0, nil, err
	}
	return activeWh, reactiveVarh, payload, nil
}

// readEnergyGroup reads the six tariff registers of one group in fixed
// index order.
func (c *Client) readEnergyGroup(ctx context.Context, group byte) (*EnergyFromReset, error) {
	out := &EnergyFromReset{
		ActiveWh:     make(map[Tariff]int64, len(tariffOrder)),
		ReactiveVarh: make(map[Tariff]int64, len(tariffOrder)),
		Raw:          make(map[Tariff][]byte, len(tariffOrder)),
	}
	for idx, tariff := range tariffOrder {
		active, reactive, payload, err := c.readEnergyRegister(ctx, group, byte(idx))
		if err != nil {
			return nil, err
		}
		out.ActiveWh[tariff] = active
		out.ReactiveVarh[tariff] = reactive
		out.Raw[tariff] = payload
	}
	return out, nil
}

// ReadEnergyFromReset reads cumulative energy since the last reset
// (group 0x00).
func (c *Client) ReadEnergyFromReset(ctx context.Context) (*EnergyFromReset, error) {
	if err := c.prepareEnergySession(ctx); err != nil {
		return nil, err
	}
	return c.readEnergyGroup(ctx, 0x00)
}

// ReadEnergyForMonth reads one monthly archive (groups 0x31..0x3C for
// January..December).
func (c *Client) ReadEnergyForMonth(ctx context.Context, month int) (*EnergyFromReset, error) {
	if month < 1 || month > 12 {
		return nil, newInvalidArgument("month must be in range 1..12")
	}
	if err := c.prepareEnergySession(ctx); err != nil {
		return nil, err
	}
	return c.readEnergyGroup(ctx, byte(monthGroupBase+month))
}

// ReadEnergyAllMonths reads all twelve monthly archives. The archive is
// unlocked once for the whole batch; re-preparing per month would both
// waste exchanges and invalidate the session some firmwares hold open.
func (c *Client) ReadEnergyAllMonths(ctx context.Context) (map[int]*EnergyFromReset, error) {
	if err := c.prepareEnergySession(ctx); err != nil {
		return nil, err
	}
	out := make(map[int]*EnergyFromReset, 12)
	for month := 1; month <= 12; month++ {
		energy, err := c.readEnergyGroup(ctx, byte(monthGroupBase+month))
		if err != nil {
			return nil, err
		}
		out[month] = energy
	}
	return out, nil
}
