// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pel/lib/cli"
	"github.com/bureau-foundation/pel/lib/clock"
	"github.com/bureau-foundation/pel/lib/config"
	"github.com/bureau-foundation/pel/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "peld: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("peld", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to peld.yaml (default: $PEL_CONFIG)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("peld %s\n", version.Full())
		return nil
	}

	level, err := cli.ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	logger := cli.NewLogger(level)

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(cfg, clock.Real(), logger)
	if err != nil {
		return err
	}
	logger.Info("peld starting",
		"version", version.Info(),
		"root", cfg.Paths.Root,
		"pels", d.repository.Count(),
	)
	err = d.run(ctx)
	logger.Info("peld stopped")
	return err
}
