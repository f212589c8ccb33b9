// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package poller drives periodic reads of one meter. Each poller owns one
// client and therefore one transport; meters never share a channel, so
// pollers run independently of each other.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/ffutop/mercury-poller/mercury"
)

const defaultInterval = 30 * time.Second

// Meter is the slice of the client the poller needs. *mercury.Client
// satisfies it.
type Meter interface {
	ReadPassport(ctx context.Context) (*mercury.PassportData, error)
	ReadEnergyFromReset(ctx context.Context) (*mercury.EnergyFromReset, error)
	Close() error
}

// Poller reads the passport once at startup and energy totals on a fixed
// interval.
type Poller struct {
	Name     string
	Interval time.Duration

	meter Meter
}

// New creates a poller for one meter.
func New(name string, interval time.Duration, meter Meter) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{Name: name, Interval: interval, meter: meter}
}

// Run polls until ctx is cancelled. The meter's transport is released on
// the way out on every path.
func (p *Poller) Run(ctx context.Context) error {
	defer p.meter.Close()

	if passport, err := p.meter.ReadPassport(ctx); err != nil {
		// Not fatal: a meter that answers energy reads but stumbles on the
		// passport sequence is still worth polling.
		slog.Warn("passport read failed", "meter", p.Name, "err", err)
	} else {
		slog.Info("meter passport",
			"meter", p.Name,
			"serial", passport.SerialNumber,
			"version", versionString(passport.Version),
		)
	}

	p.pollOnce(ctx)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	energy, err := p.meter.ReadEnergyFromReset(ctx)
	if err != nil {
		slog.Error("energy read failed", "meter", p.Name, "err", err)
		return
	}
	slog.Info("energy from reset",
		"meter", p.Name,
		"active_kwh", float64(energy.ActiveWh[mercury.TariffSum])/1000,
		"reactive_kvarh", float64(energy.ReactiveVarh[mercury.TariffSum])/1000,
	)
}

func versionString(v *mercury.Version) string {
	if v == nil {
		return "unknown"
	}
	return v.String()
}
