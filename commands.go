// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffutop/mercury-poller/internal/config"
	"github.com/ffutop/mercury-poller/internal/poller"
	"github.com/ffutop/mercury-poller/mercury"
	"github.com/ffutop/mercury-poller/transport"
	serialtransport "github.com/ffutop/mercury-poller/transport/serial"
	tcptransport "github.com/ffutop/mercury-poller/transport/tcp"
)

// One-shot command flags.
var (
	transportKind string
	serialDevice  string
	baudRate      int
	tcpAddress    string
	meterAddress  string
	timeout       time.Duration
	retries       int
	debugLog      bool
)

// Watch command flags.
var configFile string

func init() {
	for _, cmd := range []*cobra.Command{passportCmd, energyCmd, monthsCmd} {
		cmd.Flags().StringVar(&transportKind, "transport", "serial", "Transport kind (serial, tcp)")
		cmd.Flags().StringVar(&serialDevice, "device", "", "Serial device (e.g. /dev/ttyUSB0)")
		cmd.Flags().IntVar(&baudRate, "baud", 9600, "Serial baud rate")
		cmd.Flags().StringVar(&tcpAddress, "tcp", "", "Tunnel endpoint (host:port)")
		cmd.Flags().StringVar(&meterAddress, "address", "", "Meter address, decimal 0..255")
		cmd.Flags().DurationVar(&timeout, "timeout", mercury.DefaultTimeout, "Per-read timeout")
		cmd.Flags().IntVar(&retries, "retries", mercury.DefaultRetries, "Extra attempts per exchange")
		cmd.Flags().BoolVar(&debugLog, "debug", false, "Log frame traffic to stderr")
	}

	watchCmd.Flags().StringVar(&configFile, "config", "", "Path to config file")
}

var passportCmd = &cobra.Command{
	Use:   "passport",
	Short: "Read the meter passport (serial, build date, firmware, ratios)",
	Example: `  # Over a serial adapter
  mercury-poller passport --device /dev/ttyUSB0 --address 47

  # Over a transparent TCP tunnel
  mercury-poller passport --transport tcp --tcp 10.0.31.202:2222 --address 47`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		passport, err := client.ReadPassport(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(passportMap(passport))
	},
}

var energyCmd = &cobra.Command{
	Use:   "energy",
	Short: "Read cumulative energy since reset, per tariff",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		energy, err := client.ReadEnergyFromReset(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(energyMap(energy))
	},
}

var monthsCmd = &cobra.Command{
	Use:   "months [month]",
	Short: "Read monthly archive energy (one month, or all twelve)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient()
		if err != nil {
			return err
		}
		defer client.Close()

		if len(args) == 1 {
			month, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("month must be a number: %w", err)
			}
			energy, err := client.ReadEnergyForMonth(cmd.Context(), month)
			if err != nil {
				return err
			}
			return printJSON(energyMap(energy))
		}

		all, err := client.ReadEnergyAllMonths(cmd.Context())
		if err != nil {
			return err
		}
		out := make(map[string]any, len(all))
		for month, energy := range all {
			out[strconv.Itoa(month)] = energyMap(energy)
		}
		return printJSON(out)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll all configured meters until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		setupLogger(cfg.Log)
		slog.Info("Starting Mercury poller...")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		var wg sync.WaitGroup
		for _, meterCfg := range cfg.Meters {
			client, err := openMeter(meterCfg)
			if err != nil {
				slog.Error("Failed to open meter", "meter", meterCfg.Name, "err", err)
				continue
			}

			p := poller.New(meterCfg.Name, cfg.PollInterval, client)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := p.Run(ctx); err != nil && ctx.Err() == nil {
					slog.Error("Poller stopped with error", "meter", p.Name, "err", err)
				}
			}()
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		slog.Info("Shutting down...")
		cancel()
		wg.Wait()
		slog.Info("Goodbye.")
		return nil
	},
}

// openClient builds a client from the one-shot flags.
func openClient() (*mercury.Client, error) {
	if debugLog {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	addr, err := mercury.ParseAddress(meterAddress)
	if err != nil {
		return nil, err
	}

	var tr transport.Transport
	switch transportKind {
	case "serial":
		tr, err = serialtransport.Open(serialtransport.Config{Device: serialDevice, BaudRate: baudRate})
	case "tcp":
		tr, err = tcptransport.Dial(tcpAddress, timeout)
	default:
		return nil, fmt.Errorf("transport must be 'serial' or 'tcp', got %q", transportKind)
	}
	if err != nil {
		return nil, err
	}

	client, err := mercury.NewClient(tr, mercury.Config{Address: addr, Timeout: timeout, Retries: retries})
	if err != nil {
		tr.Close()
		return nil, err
	}
	return client, nil
}

// openMeter builds a client from one config entry.
func openMeter(m config.MeterConfig) (*mercury.Client, error) {
	addr, err := m.DeviceAddress()
	if err != nil {
		return nil, err
	}

	var tr transport.Transport
	switch m.Transport {
	case "serial":
		tr, err = serialtransport.Open(serialtransport.Config{Device: m.Serial.Device, BaudRate: m.Serial.BaudRate})
	case "tcp":
		tr, err = tcptransport.Dial(m.Tcp.Address, m.Timeout)
	default:
		return nil, fmt.Errorf("unknown transport %q", m.Transport)
	}
	if err != nil {
		return nil, err
	}

	client, err := mercury.NewClient(tr, mercury.Config{Address: addr, Timeout: m.Timeout, Retries: m.RetryCount()})
	if err != nil {
		tr.Close()
		return nil, err
	}
	return client, nil
}

func passportMap(p *mercury.PassportData) map[string]any {
	out := map[string]any{
		"address":                 p.Address,
		"serial_number_decimal":   nil,
		"build_date":              nil,
		"software_version":        nil,
		"voltage_transform_ratio": nil,
		"current_transform_ratio": nil,
		"raw": map[string]string{
			"info_block": hex.EncodeToString(p.RawInfoBlock),
			"ratios":     hex.EncodeToString(p.RawRatios),
		},
	}
	if p.SerialNumber != "" {
		out["serial_number_decimal"] = p.SerialNumber
	}
	if p.BuildDate != nil {
		out["build_date"] = p.BuildDate.Format("2006-01-02")
	}
	if p.Version != nil {
		out["software_version"] = p.Version.String()
	}
	if p.VoltageRatio != nil {
		out["voltage_transform_ratio"] = *p.VoltageRatio
	}
	if p.CurrentRatio != nil {
		out["current_transform_ratio"] = *p.CurrentRatio
	}
	return out
}

func energyMap(e *mercury.EnergyFromReset) map[string]any {
	toKilo := func(values map[mercury.Tariff]int64) map[string]float64 {
		out := make(map[string]float64, len(values))
		for tariff, v := range values {
			out[string(tariff)] = float64(v) / 1000
		}
		return out
	}
	return map[string]any{
		"active_kwh":     toKilo(e.ActiveWh),
		"reactive_kvarh": toKilo(e.ReactiveVarh),
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
