// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/pel/lib/cli"
	"github.com/bureau-foundation/pel/lib/version"
)

func main() {
	a := &app{
		stdout: os.Stdout,
		styled: cli.IsTerminal(os.Stdout),
	}
	if err := a.rootCommand().Execute(os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "peltool: %v\n", err)
		os.Exit(1)
	}
}

// app carries the output settings shared by every command.
type app struct {
	stdout io.Writer

	// styled enables lipgloss colouring of severities.
	styled bool
}

func (a *app) rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "peltool",
		Summary: "Inspect and manage platform event logs",
		Subcommands: []*cli.Command{
			a.decodeCommand(),
			a.archiveCommand(),
			a.statusCommand(),
			a.listCommand(),
			a.showCommand(),
			a.createCommand(),
			a.addRawCommand(),
			a.eraseCommand(),
			a.hostAckCommand(),
			a.hostRejectCommand(),
			a.hostStateCommand(),
			a.pruneCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func([]string) error {
					fmt.Fprintf(a.stdout, "peltool %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
