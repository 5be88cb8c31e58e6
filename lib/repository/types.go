// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/pel/lib/pel"
)

// LogID identifies a stored PEL by its PEL ID, its OBMC ID, or both.
type LogID struct {
	PELID  uint32 `json:"pel_id"`
	OBMCID uint32 `json:"obmc_id"`
}

func (id LogID) String() string {
	return fmt.Sprintf("{pel_id: 0x%08X, obmc_id: %d}", id.PELID, id.OBMCID)
}

// Attributes is the cached summary of one stored PEL.
type Attributes struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int    `json:"size"`
	DiskSize uint64 `json:"disk_size"`

	PELID       uint32                `json:"pel_id"`
	OBMCID      uint32                `json:"obmc_id"`
	PLID        uint32                `json:"plid"`
	Creator     pel.CreatorID         `json:"creator"`
	LogType     uint8                 `json:"log_type"`
	Severity    pel.Severity          `json:"severity"`
	ActionFlags pel.ActionFlags       `json:"action_flags"`
	HostState   pel.TransmissionState `json:"host_state"`
	HMCState    pel.TransmissionState `json:"hmc_state"`
}

// IsBMC reports whether this BMC created the PEL.
func (a *Attributes) IsBMC() bool {
	return a.Creator.IsBMC()
}

// IsServiceable reports whether the PEL counts against a serviceable
// pruning category.
func (a *Attributes) IsServiceable() bool {
	return pel.IsServiceable(a.Severity, a.ActionFlags)
}

// Hidden reports whether the hidden action flag is set.
func (a *Attributes) Hidden() bool {
	return a.ActionFlags.Has(pel.ActionHidden)
}

// SizeStats totals the on-disk bytes of stored PELs.
// Total == BMC + NonBMC, BMC == BMCServiceable + BMCInfo, and likewise
// for NonBMC.
type SizeStats struct {
	Total             uint64 `json:"total"`
	BMC               uint64 `json:"bmc"`
	NonBMC            uint64 `json:"non_bmc"`
	BMCServiceable    uint64 `json:"bmc_serviceable"`
	BMCInfo           uint64 `json:"bmc_info"`
	NonBMCServiceable uint64 `json:"non_bmc_serviceable"`
	NonBMCInfo        uint64 `json:"non_bmc_info"`
}

func (s *SizeStats) add(attributes *Attributes) {
	size := attributes.DiskSize
	s.Total += size
	switch {
	case attributes.IsBMC() && attributes.IsServiceable():
		s.BMC += size
		s.BMCServiceable += size
	case attributes.IsBMC():
		s.BMC += size
		s.BMCInfo += size
	case attributes.IsServiceable():
		s.NonBMC += size
		s.NonBMCServiceable += size
	default:
		s.NonBMC += size
		s.NonBMCInfo += size
	}
}

func (s *SizeStats) subtract(attributes *Attributes) {
	size := attributes.DiskSize
	s.Total -= size
	switch {
	case attributes.IsBMC() && attributes.IsServiceable():
		s.BMC -= size
		s.BMCServiceable -= size
	case attributes.IsBMC():
		s.BMC -= size
		s.BMCInfo -= size
	case attributes.IsServiceable():
		s.NonBMC -= size
		s.NonBMCServiceable -= size
	default:
		s.NonBMC -= size
		s.NonBMCInfo -= size
	}
}

// FileError reports a failed file operation on the backing store.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ErrNotFound is returned when a LogID matches no stored PEL.
var ErrNotFound = errors.New("PEL not found")

type addSubscriber struct {
	name     string
	callback func(*pel.PEL)
}

type deleteSubscriber struct {
	name     string
	callback func(pelID uint32)
}

func pelIDAttr(id uint32) any {
	return fmt.Sprintf("0x%08X", id)
}
