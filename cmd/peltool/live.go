// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pel/lib/cli"
	"github.com/bureau-foundation/pel/lib/control"
	"github.com/bureau-foundation/pel/lib/pel"
)

func (a *app) statusCommand() *cli.Command {
	var (
		conn   connection
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "status",
		Summary: "Show repository and host notification state",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.BoolVar(&output.OutputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			var status control.StatusResponse
			if err := conn.call(control.ActionStatus, nil, &status); err != nil {
				return err
			}
			if done, err := output.EmitJSON(a.stdout, status); done {
				return err
			}
			w := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Version\t%s\n", status.Version)
			fmt.Fprintf(w, "PELs\t%d of %d\n", status.Count, status.MaxCount)
			fmt.Fprintf(w, "Size\t%d of %d bytes\n", status.Sizes.Total, status.MaxSize)
			fmt.Fprintf(w, "  BMC\t%d serviceable, %d informational\n", status.Sizes.BMCServiceable, status.Sizes.BMCInfo)
			fmt.Fprintf(w, "  Other\t%d serviceable, %d informational\n", status.Sizes.NonBMCServiceable, status.Sizes.NonBMCInfo)
			fmt.Fprintf(w, "Size warning\t%t\n", status.SizeWarning)
			fmt.Fprintf(w, "Host up\t%t\n", status.HostUp)
			fmt.Fprintf(w, "Host full\t%t\n", status.HostFull)
			fmt.Fprintf(w, "Queued\t%d\n", status.QueueSize)
			fmt.Fprintf(w, "Awaiting ack\t%d\n", status.SentCount)
			if status.InProgress != 0 {
				fmt.Fprintf(w, "In progress\t0x%08X (retry %d)\n", status.InProgress, status.RetryCount)
			}
			return w.Flush()
		},
	}
}

func (a *app) listCommand() *cli.Command {
	var (
		conn          connection
		output        cli.JSONOutput
		serviceable   bool
		includeHidden bool
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List stored PELs",
		Description: `List stored PELs, oldest first. Hidden PELs are left out unless
--hidden is given.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.BoolVar(&output.OutputJSON, "json", false, "output as JSON")
			flagSet.BoolVar(&serviceable, "serviceable", false, "only serviceable PELs")
			flagSet.BoolVar(&includeHidden, "hidden", false, "include hidden PELs")
			return flagSet
		},
		Run: func(args []string) error {
			var list control.ListResponse
			if err := conn.call(control.ActionList, nil, &list); err != nil {
				return err
			}
			pels := list.PELs[:0]
			for _, attributes := range list.PELs {
				if serviceable && !attributes.IsServiceable() {
					continue
				}
				if !includeHidden && attributes.Hidden() {
					continue
				}
				pels = append(pels, attributes)
			}
			if done, err := output.EmitJSON(a.stdout, pels); done {
				return err
			}

			w := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(w, "PEL ID\tOBMC ID\tCREATOR\tHOST\tHMC\tSIZE\tSEVERITY\n")
			for _, attributes := range pels {
				fmt.Fprintf(w, "0x%08X\t%d\t%s\t%s\t%s\t%d\t%s\n",
					attributes.PELID, attributes.OBMCID, attributes.Creator,
					attributes.HostState, attributes.HMCState, attributes.Size,
					a.renderSeverity(attributes.Severity, attributes.IsServiceable()))
			}
			return w.Flush()
		},
	}
}

func (a *app) showCommand() *cli.Command {
	var (
		conn   connection
		output cli.JSONOutput
		byOBMC bool
		raw    string
	)
	return &cli.Command{
		Name:    "show",
		Summary: "Fetch and decode a stored PEL",
		Usage:   "peltool show [flags] <id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.BoolVar(&output.OutputJSON, "json", false, "output as JSON")
			flagSet.BoolVar(&byOBMC, "obmc", false, "the ID is an OBMC event log ID")
			flagSet.StringVar(&raw, "raw", "", "also write the flattened PEL to this file")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: peltool show [flags] <id>")
			}
			fields, err := logIDFields(args[0], byOBMC)
			if err != nil {
				return err
			}
			var response control.GetResponse
			if err := conn.call(control.ActionGet, fields, &response); err != nil {
				return err
			}
			if raw != "" {
				if err := os.WriteFile(raw, response.Data, 0o644); err != nil {
					return err
				}
			}
			return a.printPEL(pel.Unflatten(response.Data), &output)
		},
	}
}

func (a *app) createCommand() *cli.Command {
	var (
		conn   connection
		level  string
		fields []string
	)
	return &cli.Command{
		Name:    "create",
		Summary: "Create a BMC PEL from a message registry entry",
		Usage:   "peltool create [flags] <message>",
		Examples: []cli.Example{
			{
				Description: "Report a fan fault with its inventory callout",
				Command: "peltool create xyz.openbmc_project.Fan.Error.Fault --level error " +
					"--data CALLOUT_INVENTORY_PATH=/xyz/openbmc_project/inventory/system/chassis/fan0",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&level, "level", "error", "event level: emergency through debug")
			flagSet.StringArrayVar(&fields, "data", nil, "additional data as KEY=VALUE (repeatable)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: peltool create [flags] <message>")
			}
			additionalData := make(map[string]string, len(fields))
			for _, field := range fields {
				key, value, ok := strings.Cut(field, "=")
				if !ok || key == "" {
					return fmt.Errorf("invalid --data %q: want KEY=VALUE", field)
				}
				additionalData[key] = value
			}
			var created control.CreateResponse
			err := conn.call(control.ActionCreate, map[string]any{
				"message":         args[0],
				"level":           level,
				"additional_data": additionalData,
			}, &created)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "created PEL 0x%08X (OBMC ID %d)\n", created.PELID, created.OBMCID)
			return nil
		},
	}
}

func (a *app) addRawCommand() *cli.Command {
	var (
		conn   connection
		obmcID uint32
	)
	return &cli.Command{
		Name:    "add-raw",
		Summary: "Hand peld a PEL file created elsewhere",
		Usage:   "peltool add-raw [flags] <file>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("add-raw", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.Uint32Var(&obmcID, "obmc-id", 0, "OBMC event log ID to assign (default: next)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: peltool add-raw [flags] <file>")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var created control.CreateResponse
			if err := conn.call(control.ActionAddRaw, map[string]any{"data": data, "obmc_id": obmcID}, &created); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "added PEL 0x%08X (OBMC ID %d)\n", created.PELID, created.OBMCID)
			return nil
		},
	}
}

func (a *app) eraseCommand() *cli.Command {
	var (
		conn   connection
		byOBMC bool
	)
	return &cli.Command{
		Name:    "erase",
		Summary: "Remove a stored PEL",
		Usage:   "peltool erase [flags] <id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("erase", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.BoolVar(&byOBMC, "obmc", false, "the ID is an OBMC event log ID")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: peltool erase [flags] <id>")
			}
			fields, err := logIDFields(args[0], byOBMC)
			if err != nil {
				return err
			}
			var erased control.EraseResponse
			if err := conn.call(control.ActionErase, fields, &erased); err != nil {
				return err
			}
			if !erased.Removed {
				fmt.Fprintf(a.stdout, "no PEL %s\n", args[0])
				return &cli.ExitError{Code: 1}
			}
			fmt.Fprintf(a.stdout, "erased %s\n", args[0])
			return nil
		},
	}
}

func (a *app) hostAckCommand() *cli.Command {
	var conn connection
	return &cli.Command{
		Name:    "host-ack",
		Summary: "Record that the host acknowledged a PEL",
		Usage:   "peltool host-ack [flags] <pel-id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("host-ack", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: peltool host-ack [flags] <pel-id>")
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return conn.call(control.ActionHostAck, map[string]any{"pel_id": id}, nil)
		},
	}
}

func (a *app) hostRejectCommand() *cli.Command {
	var (
		conn   connection
		reason string
	)
	return &cli.Command{
		Name:    "host-reject",
		Summary: "Record that the host refused a PEL",
		Usage:   "peltool host-reject --reason full|bad [flags] <pel-id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("host-reject", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&reason, "reason", "", "full (host has no room) or bad (malformed PEL)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 || reason == "" {
				return fmt.Errorf("usage: peltool host-reject --reason full|bad [flags] <pel-id>")
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return conn.call(control.ActionHostReject, map[string]any{"pel_id": id, "reason": reason}, nil)
		},
	}
}

func (a *app) hostStateCommand() *cli.Command {
	var conn connection
	return &cli.Command{
		Name:    "host-state",
		Summary: "Report a host power transition",
		Usage:   "peltool host-state [flags] up|down",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("host-state", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 || (args[0] != "up" && args[0] != "down") {
				return fmt.Errorf("usage: peltool host-state [flags] up|down")
			}
			return conn.call(control.ActionHostState, map[string]any{"up": args[0] == "up"}, nil)
		},
	}
}

func (a *app) pruneCommand() *cli.Command {
	var (
		conn   connection
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "prune",
		Summary: "Run repository pruning now",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("prune", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.BoolVar(&output.OutputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			var pruned control.PruneResponse
			if err := conn.call(control.ActionPrune, nil, &pruned); err != nil {
				return err
			}
			if done, err := output.EmitJSON(a.stdout, pruned.Removed); done {
				return err
			}
			fmt.Fprintf(a.stdout, "removed %d PELs\n", len(pruned.Removed))
			return nil
		},
	}
}
