// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Mercury-poller reads Mercury-230 electricity meters over RS-485 or a
// transparent RTU-over-TCP tunnel.
//
// One-shot commands (passport, energy, months) print JSON to stdout; watch
// polls every meter from a config file until interrupted.
//
// Usage:
//
//	mercury-poller [command] [flags]
//
// See 'mercury-poller --help' for available commands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ffutop/mercury-poller/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mercury-poller",
	Short: "Mercury-230 meter polling utility",
	Long: `Polls Mercury-230 electricity meters over RS-485 or a transparent
RTU-over-TCP tunnel (raw frame bytes over a stream socket, no MBAP).

One-shot commands talk to a single meter given by flags; watch runs a
polling daemon over a config file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(passportCmd)
	rootCmd.AddCommand(energyCmd)
	rootCmd.AddCommand(monthsCmd)
	rootCmd.AddCommand(watchCmd)
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
