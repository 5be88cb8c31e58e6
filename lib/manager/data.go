// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bureau-foundation/pel/lib/config"
	"github.com/bureau-foundation/pel/lib/notifier"
	"github.com/bureau-foundation/pel/lib/pel"
)

// ErrUnknownInventoryPath is returned by HardwareCallout for a path the
// inventory does not hold.
var ErrUnknownInventoryPath = errors.New("unknown inventory path")

// HardwareFRU is the inventory description of a replaceable part.
type HardwareFRU struct {
	LocationCode string
	PartNumber   string
	CCIN         string
	SerialNumber string
}

// DataInterface supplies system information to PEL creation and the
// notifier.
type DataInterface interface {
	notifier.SystemState

	MachineTypeModel() string
	SerialNumber() string
	ServerFWVersion() string
	SubsystemFWVersion() string
	MotherboardCCIN() string

	// SystemNames returns the compatible system names used to select
	// registry callouts, most specific first.
	SystemNames() ([]string, error)

	// HardwareCallout resolves an inventory object path to its FRU.
	HardwareCallout(inventoryPath string) (HardwareFRU, error)
}

// DeviceCalloutResolver maps a device path from an event's additional
// data to callouts.
type DeviceCalloutResolver interface {
	Callouts(devicePath string, systemNames []string) ([]*pel.Callout, error)
}

// StaticData is a DataInterface answered from configuration. Host
// power state is set by whoever observes it.
type StaticData struct {
	system         config.SystemConfig
	hostPELEnabled bool
	hmcManaged     bool
	hostUp         bool
}

var (
	_ DataInterface         = (*StaticData)(nil)
	_ DeviceCalloutResolver = (*StaticData)(nil)
)

// NewStaticData creates a StaticData with the host down.
func NewStaticData(system config.SystemConfig, host config.HostConfig) *StaticData {
	return &StaticData{
		system:         system,
		hostPELEnabled: host.PELReporting,
		hmcManaged:     host.HMCManaged,
	}
}

// SetHostUp records the host power state.
func (d *StaticData) SetHostUp(up bool) { d.hostUp = up }

func (d *StaticData) HostUp() bool               { return d.hostUp }
func (d *StaticData) HMCManaged() bool           { return d.hmcManaged }
func (d *StaticData) HostPELEnabled() bool       { return d.hostPELEnabled }
func (d *StaticData) MachineTypeModel() string   { return d.system.MachineTypeModel }
func (d *StaticData) SerialNumber() string       { return d.system.SerialNumber }
func (d *StaticData) ServerFWVersion() string    { return d.system.ServerFWVersion }
func (d *StaticData) SubsystemFWVersion() string { return d.system.SubsystemFWVersion }
func (d *StaticData) MotherboardCCIN() string    { return d.system.MotherboardCCIN }

func (d *StaticData) SystemNames() ([]string, error) {
	return slices.Clone(d.system.SystemNames), nil
}

func (d *StaticData) HardwareCallout(inventoryPath string) (HardwareFRU, error) {
	item, ok := d.system.Inventory[inventoryPath]
	if !ok {
		return HardwareFRU{}, fmt.Errorf("%w: %s", ErrUnknownInventoryPath, inventoryPath)
	}
	return HardwareFRU{
		LocationCode: item.LocationCode,
		PartNumber:   item.PartNumber,
		CCIN:         item.CCIN,
		SerialNumber: item.SerialNumber,
	}, nil
}

// Callouts resolves a device path through the configured device map:
// the first inventory path is called out high, the rest medium.
func (d *StaticData) Callouts(devicePath string, systemNames []string) ([]*pel.Callout, error) {
	inventoryPaths, ok := d.system.Devices[devicePath]
	if !ok {
		return nil, fmt.Errorf("no callouts configured for device %s", devicePath)
	}
	callouts := make([]*pel.Callout, 0, len(inventoryPaths))
	for i, path := range inventoryPaths {
		fru, err := d.HardwareCallout(path)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", devicePath, err)
		}
		priority := pel.PriorityMedium
		if i == 0 {
			priority = pel.PriorityHigh
		}
		callouts = append(callouts, pel.NewHardwareCallout(priority,
			fru.LocationCode, fru.PartNumber, fru.CCIN, fru.SerialNumber))
	}
	return callouts, nil
}
