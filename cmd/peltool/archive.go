// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pel/lib/archive"
	"github.com/bureau-foundation/pel/lib/cli"
	"github.com/bureau-foundation/pel/lib/pel"
)

const defaultArchiveDirectory = "/var/lib/pel/archive"

func (a *app) archiveCommand() *cli.Command {
	var directory string
	addDirectoryFlag := func(flagSet *pflag.FlagSet) {
		flagSet.StringVar(&directory, "dir", defaultArchiveDirectory, "archive directory")
	}
	open := func() (*archive.Archive, error) {
		if _, err := os.Stat(directory); err != nil {
			return nil, err
		}
		// Reading only: compression and cap are unused.
		return archive.New(directory, archive.CompressionNone, 0, slog.New(slog.DiscardHandler))
	}

	var output cli.JSONOutput
	list := &cli.Command{
		Name:    "list",
		Summary: "List archived PELs, oldest first",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			addDirectoryFlag(flagSet)
			flagSet.BoolVar(&output.OutputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			pelArchive, err := open()
			if err != nil {
				return err
			}
			names, err := pelArchive.List()
			if err != nil {
				return err
			}
			if done, err := output.EmitJSON(a.stdout, names); done {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		},
	}

	var outputPath string
	var decodeOutput cli.JSONOutput
	extract := &cli.Command{
		Name:    "extract",
		Summary: "Decompress an archived PEL",
		Description: `Decompress an archived PEL. With --output the flattened PEL is
written to a file; otherwise it is decoded and printed.`,
		Usage: "peltool archive extract [flags] <name>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("extract", pflag.ContinueOnError)
			addDirectoryFlag(flagSet)
			flagSet.StringVarP(&outputPath, "output", "o", "", "write the flattened PEL here")
			flagSet.BoolVar(&decodeOutput.OutputJSON, "json", false, "print the decoded PEL as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: peltool archive extract [flags] <name>")
			}
			pelArchive, err := open()
			if err != nil {
				return err
			}
			data, err := pelArchive.Read(args[0])
			if err != nil {
				return err
			}
			if outputPath != "" {
				return os.WriteFile(outputPath, data, 0o644)
			}
			return a.printPEL(pel.Unflatten(data), &decodeOutput)
		},
	}

	return &cli.Command{
		Name:        "archive",
		Summary:     "Inspect a repository's archive of removed PELs",
		Subcommands: []*cli.Command{list, extract},
	}
}
