// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import "fmt"

// TransmissionState tracks delivery of a PEL to one destination (the
// host or the HMC). new -> sent -> acked, with badPEL reachable from
// sent. A power cycle can move sent back to new.
type TransmissionState uint8

const (
	TransmissionNew    TransmissionState = 0
	TransmissionSent   TransmissionState = 1
	TransmissionAcked  TransmissionState = 2
	TransmissionBadPEL TransmissionState = 3
)

var transmissionNames = [...]string{"new", "sent", "acked", "bad_pel"}

func (s TransmissionState) String() string {
	if int(s) < len(transmissionNames) {
		return transmissionNames[s]
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// MarshalText encodes the state as its name.
func (s TransmissionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by String.
func (s *TransmissionState) UnmarshalText(text []byte) error {
	for i, name := range transmissionNames {
		if string(text) == name {
			*s = TransmissionState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown transmission state %q", text)
}
