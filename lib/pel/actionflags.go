// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import (
	"fmt"
	"strings"
)

// ActionFlags is the 16-bit User Header action flags bitset.
type ActionFlags uint16

const (
	ActionServiceAction       ActionFlags = 0x8000
	ActionHidden              ActionFlags = 0x4000
	ActionReport              ActionFlags = 0x2000
	ActionDontReportToHost    ActionFlags = 0x1000
	ActionCallHome            ActionFlags = 0x0800
	ActionIsolationIncomplete ActionFlags = 0x0400
	ActionSPCallHome          ActionFlags = 0x0100
	ActionOSSWError           ActionFlags = 0x0080
	ActionOSHWError           ActionFlags = 0x0040
	ActionHeartbeatCall       ActionFlags = 0x0020
	ActionTerminateFW         ActionFlags = 0x0010
)

var actionFlagNames = []struct {
	flag ActionFlags
	name string
}{
	{ActionServiceAction, "service_action"},
	{ActionHidden, "hidden"},
	{ActionReport, "report"},
	{ActionDontReportToHost, "dont_report"},
	{ActionCallHome, "call_home"},
	{ActionIsolationIncomplete, "isolation_incomplete"},
	{ActionSPCallHome, "sp_call_home"},
	{ActionOSSWError, "os_sw_error"},
	{ActionOSHWError, "os_hw_error"},
	{ActionHeartbeatCall, "heartbeat_call"},
	{ActionTerminateFW, "termination"},
}

// Has reports whether every bit of flag is set.
func (f ActionFlags) Has(flag ActionFlags) bool {
	return f&flag == flag
}

// Names returns the registry names of the set flags, high bit first.
// Unnamed bits are not reported.
func (f ActionFlags) Names() []string {
	var names []string
	for _, entry := range actionFlagNames {
		if f.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	return names
}

func (f ActionFlags) String() string {
	return fmt.Sprintf("0x%04X", uint16(f))
}

// ParseActionFlags ORs together the flags named in names.
func ParseActionFlags(names []string) (ActionFlags, error) {
	var flags ActionFlags
	for _, name := range names {
		found := false
		for _, entry := range actionFlagNames {
			if entry.name == name {
				flags |= entry.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown action flag %q (known: %s)", name, knownActionFlags())
		}
	}
	return flags, nil
}

func knownActionFlags() string {
	names := make([]string, len(actionFlagNames))
	for i, entry := range actionFlagNames {
		names[i] = entry.name
	}
	return strings.Join(names, ", ")
}

// DefaultActionFlags returns the flags a BMC-created PEL gets when its
// registry entry does not list any.
func DefaultActionFlags(severity Severity) ActionFlags {
	switch severity.Type() {
	case SeverityNonError:
		return ActionHidden
	case SeverityRecovered:
		return ActionHidden
	case SeveritySymptom:
		return ActionReport | ActionHidden
	default:
		return ActionServiceAction | ActionReport | ActionCallHome
	}
}
