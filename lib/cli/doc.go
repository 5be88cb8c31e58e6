// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds the command-line plumbing shared by peld and
// peltool: a small subcommand tree with pflag flag sets, the
// terminal-aware slog logger, and JSON output helpers.
//
// A command tree is a root [Command] with Subcommands. Execute
// dispatches on the first positional argument, parses the leaf's
// flags, and calls its Run function:
//
//	root := &cli.Command{
//	    Name: "peltool",
//	    Subcommands: []*cli.Command{listCommand(), decodeCommand()},
//	}
//	if err := root.Execute(os.Args[1:]); err != nil { ... }
package cli
