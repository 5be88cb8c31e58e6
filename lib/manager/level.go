// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"fmt"

	"github.com/bureau-foundation/pel/lib/pel"
)

// Level is the syslog-style level of the event a PEL is created for.
type Level int

const (
	LevelEmergency Level = iota
	LevelAlert
	LevelCritical
	LevelError
	LevelWarning
	LevelNotice
	LevelInformational
	LevelDebug
)

var levelNames = [...]string{
	LevelEmergency:     "emergency",
	LevelAlert:         "alert",
	LevelCritical:      "critical",
	LevelError:         "error",
	LevelWarning:       "warning",
	LevelNotice:        "notice",
	LevelInformational: "informational",
	LevelDebug:         "debug",
}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel parses a level name. "info" and "warn" are accepted as
// short forms.
func ParseLevel(name string) (Level, error) {
	switch name {
	case "info":
		return LevelInformational, nil
	case "warn":
		return LevelWarning, nil
	}
	for level, levelName := range levelNames {
		if levelName == name {
			return Level(level), nil
		}
	}
	return 0, fmt.Errorf("unknown event level %q", name)
}

// Severity returns the PEL severity used when a registry entry does not
// set one.
func (l Level) Severity() pel.Severity {
	switch l {
	case LevelEmergency, LevelAlert, LevelCritical:
		return pel.SeverityCritical
	case LevelError:
		return pel.SeverityUnrecoverable
	case LevelWarning:
		return pel.SeverityPredictive
	default:
		return pel.SeverityNonError
	}
}

// RejectReason is why the host refused a PEL.
type RejectReason string

const (
	// RejectHostFull means the host had no room; the PEL is resent
	// later.
	RejectHostFull RejectReason = "full"

	// RejectBadPEL means the host could not parse the PEL; it is never
	// resent.
	RejectBadPEL RejectReason = "bad"
)

// ParseRejectReason validates a reject reason.
func ParseRejectReason(text string) (RejectReason, error) {
	switch reason := RejectReason(text); reason {
	case RejectHostFull, RejectBadPEL:
		return reason, nil
	}
	return "", fmt.Errorf("unknown reject reason %q (want %q or %q)", text, RejectHostFull, RejectBadPEL)
}
