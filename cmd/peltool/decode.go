// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pel/lib/cli"
	"github.com/bureau-foundation/pel/lib/codec"
	"github.com/bureau-foundation/pel/lib/pel"
)

func (a *app) decodeCommand() *cli.Command {
	var output cli.JSONOutput
	return &cli.Command{
		Name:    "decode",
		Summary: "Decode a PEL file",
		Description: `Decode a flattened PEL from a file and print its sections. Invalid
PELs are printed as far as they decode, and the command exits 2.`,
		Usage: "peltool decode [flags] <file>",
		Examples: []cli.Example{
			{Description: "Decode a stored PEL", Command: "peltool decode /var/lib/pel/logs/2026031409265300_50000001"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("decode", pflag.ContinueOnError)
			flagSet.BoolVar(&output.OutputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: peltool decode [flags] <file>")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			decoded := pel.Unflatten(data)
			if err := a.printPEL(decoded, &output); err != nil {
				return err
			}
			if !decoded.Valid() {
				return &cli.ExitError{Code: 2}
			}
			return nil
		},
	}
}

// decodedPEL is the --json form of a PEL: the summary plus readable
// User Data.
type decodedPEL struct {
	pel.Summary
	UserData []userDataView `json:"user_data,omitempty"`
}

type userDataView struct {
	Subtype     uint8  `json:"subtype"`
	ComponentID string `json:"component_id"`
	Format      string `json:"format"`
	Content     string `json:"content"`
}

func (a *app) printPEL(p *pel.PEL, output *cli.JSONOutput) error {
	summary := p.Summarize()
	userData := userDataViews(p)
	if done, err := output.EmitJSON(a.stdout, decodedPEL{Summary: summary, UserData: userData}); done {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PEL\t%s\n", summary.ID)
	fmt.Fprintf(w, "Valid\t%t\n", summary.Valid)
	fmt.Fprintf(w, "OBMC ID\t%d\n", summary.OBMCID)
	fmt.Fprintf(w, "PLID\t%s\n", summary.PLID)
	fmt.Fprintf(w, "Creator\t%s\n", summary.Creator)
	fmt.Fprintf(w, "Committed\t%s\n", summary.CommitTime)
	serviceable := ""
	if summary.Serviceable {
		serviceable = " (serviceable)"
	}
	fmt.Fprintf(w, "Severity\t%s%s\n", a.renderSeverity(summary.Severity, summary.Serviceable), serviceable)
	if len(summary.ActionFlags) > 0 {
		fmt.Fprintf(w, "Action flags\t%s\n", strings.Join(summary.ActionFlags, ", "))
	}
	fmt.Fprintf(w, "Host state\t%s\n", summary.HostState)
	fmt.Fprintf(w, "HMC state\t%s\n", summary.HMCState)
	if summary.Subsystem != "" {
		fmt.Fprintf(w, "Subsystem\t%s\n", summary.Subsystem)
		fmt.Fprintf(w, "Event type\t%s\n", summary.EventType)
	}
	if summary.ReferenceCode != "" {
		fmt.Fprintf(w, "Reference code\t%s\n", summary.ReferenceCode)
		fmt.Fprintf(w, "Hex words\t%s\n", strings.Join(summary.HexWords, " "))
	}
	if summary.SymptomID != "" {
		fmt.Fprintf(w, "Symptom ID\t%s\n", summary.SymptomID)
	}
	fmt.Fprintf(w, "Size\t%d\n", summary.Size)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(summary.Callouts) > 0 {
		fmt.Fprintf(a.stdout, "\nCallouts:\n")
		w = tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
		for _, callout := range summary.Callouts {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", callout.Priority, callout.LocationCode,
				callout.Kind, callout.PartNumber, callout.CCIN)
		}
		w.Flush()
	}

	fmt.Fprintf(a.stdout, "\nSections:\n")
	w = tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
	for _, section := range summary.Sections {
		valid := ""
		if !section.Valid {
			valid = "invalid"
		}
		fmt.Fprintf(w, "  %s\t%d bytes\tv%d\tsubtype %d\tcomponent %s\t%s\n",
			section.ID, section.Size, section.Version, section.Subtype, section.ComponentID, valid)
	}
	w.Flush()

	for _, view := range userData {
		fmt.Fprintf(a.stdout, "\nUser Data (%s, component %s):\n", view.Format, view.ComponentID)
		printIndented(a.stdout, view.Content)
	}
	return nil
}

// userDataViews renders each User Data section by its subtype. Content
// that fails to parse is shown as hex.
func userDataViews(p *pel.PEL) []userDataView {
	var views []userDataView
	for _, section := range p.Sections() {
		userData, ok := section.(*pel.UserData)
		if !ok {
			continue
		}
		header := userData.Header()
		view := userDataView{
			Subtype:     header.Subtype,
			ComponentID: fmt.Sprintf("0x%04X", header.ComponentID),
		}
		view.Format, view.Content = renderUserData(header.Subtype, userData.Data)
		views = append(views, view)
	}
	return views
}

func renderUserData(subtype uint8, data []byte) (format, content string) {
	switch subtype {
	case pel.UserDataJSON:
		var indented bytes.Buffer
		if err := json.Indent(&indented, bytes.TrimRight(data, "\x00"), "", "  "); err == nil {
			return "json", indented.String()
		}
	case pel.UserDataCBOR:
		if diagnostic, err := codec.Diagnose(data); err == nil {
			return "cbor", diagnostic
		}
	case pel.UserDataText:
		return "text", strings.TrimRight(string(data), "\x00")
	}
	return "hex", hexDump(data)
}

func hexDump(data []byte) string {
	var builder strings.Builder
	for offset := 0; offset < len(data); offset += 16 {
		end := min(offset+16, len(data))
		fmt.Fprintf(&builder, "%08X  % X\n", offset, data[offset:end])
	}
	return strings.TrimSuffix(builder.String(), "\n")
}

func printIndented(w io.Writer, text string) {
	for line := range strings.Lines(text) {
		fmt.Fprintf(w, "  %s", line)
	}
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(w)
	}
}
