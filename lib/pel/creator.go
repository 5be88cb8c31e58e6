// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import "fmt"

// CreatorID identifies the subsystem that created a PEL. Only the
// BMC/non-BMC distinction matters to storage.
type CreatorID uint8

const (
	CreatorBMC         CreatorID = 'O'
	CreatorHostboot    CreatorID = 'B'
	CreatorHypervisor  CreatorID = 'H'
	CreatorPartitionFW CreatorID = 'L'
	CreatorSBE         CreatorID = 'S'
	CreatorHMC         CreatorID = 'C'
	CreatorOPAL        CreatorID = 'K'
	CreatorPowerNV     CreatorID = 'P'
)

var creatorNames = map[CreatorID]string{
	CreatorBMC:         "BMC",
	CreatorHostboot:    "Hostboot",
	CreatorHypervisor:  "PHYP",
	CreatorPartitionFW: "Partition FW",
	CreatorSBE:         "SBE",
	CreatorHMC:         "HMC",
	CreatorOPAL:        "OPAL",
	CreatorPowerNV:     "POWERNV",
}

// IsBMC reports whether the PEL was created by this BMC.
func (c CreatorID) IsBMC() bool {
	return c == CreatorBMC
}

func (c CreatorID) String() string {
	if name, ok := creatorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint8(c))
}
