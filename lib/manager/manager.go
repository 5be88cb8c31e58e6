// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"strconv"

	"github.com/bureau-foundation/pel/lib/atomicfile"
	"github.com/bureau-foundation/pel/lib/eventloop"
	"github.com/bureau-foundation/pel/lib/notifier"
	"github.com/bureau-foundation/pel/lib/pel"
	"github.com/bureau-foundation/pel/lib/registry"
	"github.com/bureau-foundation/pel/lib/repository"
	"github.com/bureau-foundation/pel/lib/version"
)

// Additional-data keys the manager interprets.
const (
	// KeyInventoryPath names an inventory object to call out.
	KeyInventoryPath = "CALLOUT_INVENTORY_PATH"

	// KeyDevicePath names a device path for the DeviceCalloutResolver.
	KeyDevicePath = "CALLOUT_DEVICE_PATH"

	// KeyErrorName is added when the default registry entry stands in
	// for an unknown message.
	KeyErrorName = "ERROR_NAME"
)

// BadPELFileName is the quarantine file for undecodable raw PELs,
// relative to the root.
const BadPELFileName = "badPEL"

var (
	// ErrInvalidPEL is returned by AddRaw for bytes that do not decode
	// to a valid PEL.
	ErrInvalidPEL = errors.New("invalid PEL")

	// ErrUnknownMessage is returned by Create when neither the message
	// nor the default entry is in the registry.
	ErrUnknownMessage = errors.New("message not in registry")
)

// Config holds the collaborators of a Manager.
type Config struct {
	Loop       *eventloop.Loop
	Root       string
	Repository *repository.Repository
	Registry   *registry.Registry
	Data       DataInterface
	Host       notifier.HostInterface

	// Devices is optional; without it device-path callouts are skipped.
	Devices DeviceCalloutResolver

	// OnPruned, if set, receives the OBMC IDs removed by each prune.
	OnPruned func(obmcIDs []uint32)

	Logger *slog.Logger
}

// Manager is the explicit context for one PEL subsystem instance.
type Manager struct {
	loop       *eventloop.Loop
	root       string
	repository *repository.Repository
	registry   *registry.Registry
	data       DataInterface
	devices    DeviceCalloutResolver
	notifier   *notifier.Notifier
	onPruned   func([]uint32)
	logger     *slog.Logger

	lastOBMCID     uint32
	pruneScheduled bool

	systemNames       []string
	systemNamesCached bool
}

// New creates a Manager and its notifier. Must be called on the loop.
func New(config Config) *Manager {
	m := &Manager{
		loop:       config.Loop,
		root:       config.Root,
		repository: config.Repository,
		registry:   config.Registry,
		data:       config.Data,
		devices:    config.Devices,
		onPruned:   config.OnPruned,
		logger:     config.Logger,
	}
	for _, attributes := range m.repository.List() {
		m.lastOBMCID = max(m.lastOBMCID, attributes.OBMCID)
	}
	m.notifier = notifier.New(notifier.Config{
		Loop:       config.Loop,
		Repository: config.Repository,
		System:     config.Data,
		Host:       config.Host,
		Logger:     config.Logger.With("component", "notifier"),
	})
	if m.repository.SizeWarning() {
		m.schedulePrune()
	}
	return m
}

// Close stops the notifier.
func (m *Manager) Close() {
	m.notifier.Close()
}

// Repository returns the managed repository.
func (m *Manager) Repository() *repository.Repository { return m.repository }

// Notifier returns the host notifier.
func (m *Manager) Notifier() *notifier.Notifier { return m.notifier }

// Registry returns the message registry.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// --- Creation ---

// Create builds and stores a BMC PEL for message. An unknown message
// uses the registry's default entry. Returns the new PEL ID.
func (m *Manager) Create(message string, level Level, additionalData map[string]string) (uint32, error) {
	return m.create(message, level, additionalData, 0)
}

// CreateWithOBMCID is Create with a caller-assigned OBMC ID.
func (m *Manager) CreateWithOBMCID(obmcID uint32, message string, level Level, additionalData map[string]string) (uint32, error) {
	return m.create(message, level, additionalData, obmcID)
}

func (m *Manager) create(message string, level Level, additionalData map[string]string, obmcID uint32) (uint32, error) {
	data := maps.Clone(additionalData)
	if data == nil {
		data = make(map[string]string)
	}

	entry, ok := m.registry.Lookup(message)
	if !ok {
		entry, ok = m.registry.Lookup(registry.DefaultEntry)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownMessage, message)
		}
		m.logger.Warn("message not in registry, using default entry", "message", message)
		data[KeyErrorName] = message
	}

	pelID, err := m.repository.NextPELID()
	if err != nil {
		return 0, err
	}
	obmcID = m.assignOBMCID(obmcID)

	now := pel.BCDTimeFromTime(m.loop.Clock().Now())
	privateHeader := pel.NewPrivateHeader(pel.CreatorBMC, pelID, obmcID, now, version.CreatorVersion())

	severity := level.Severity()
	if entry.Severity != nil {
		severity = *entry.Severity
	}
	flags, ok := entry.Flags()
	if !ok {
		flags = pel.DefaultActionFlags(severity)
	}
	userHeader := pel.NewUserHeader(entry.Subsystem, entry.EventScope, severity, entry.EventType, flags)

	var srcFlags uint8
	if entry.SRC.PowerFault {
		srcFlags |= pel.SRCFlagPowerFault
	}
	src := pel.NewSRC(pel.SRCOptions{
		Type:            entry.SRC.Type,
		ReasonCode:      entry.SRC.ReasonCode,
		Flags:           srcFlags,
		MotherboardCCIN: m.data.MotherboardCCIN(),
		UserWords:       entry.SRC.Words,
		AdditionalData:  data,
		Callouts:        m.callouts(entry, data),
	}, m.logger)

	extended := pel.NewExtendedUserHeader(
		m.data.MachineTypeModel(),
		m.data.SerialNumber(),
		m.data.ServerFWVersion(),
		m.data.SubsystemFWVersion(),
		now,
		symptomID(src),
	)

	sections := []pel.Section{src, extended}
	if len(data) > 0 {
		encoded, err := json.Marshal(data)
		if err != nil {
			return 0, fmt.Errorf("encoding additional data: %w", err)
		}
		sections = append(sections, pel.NewUserData(pel.UserDataJSON, entry.ComponentID, encoded))
	}

	created := pel.New(privateHeader, userHeader, sections...)
	if err := m.repository.Add(created); err != nil {
		return 0, err
	}
	m.logger.Info("created PEL",
		"pel_id", pelIDAttr(pelID),
		"obmc_id", obmcID,
		"message", message,
		"severity", severity.String(),
		"reference_code", src.ReferenceCode(),
	)
	m.afterAdd()
	return pelID, nil
}

// callouts collects callouts in a fixed order: the inventory path,
// then the device path, then the registry entry.
func (m *Manager) callouts(entry *registry.Entry, data map[string]string) []*pel.Callout {
	var callouts []*pel.Callout

	if path, ok := data[KeyInventoryPath]; ok {
		fru, err := m.data.HardwareCallout(path)
		if err != nil {
			m.logger.Warn("skipping inventory callout", "inventory_path", path, "error", err)
		} else {
			callouts = append(callouts, pel.NewHardwareCallout(pel.PriorityHigh,
				fru.LocationCode, fru.PartNumber, fru.CCIN, fru.SerialNumber))
		}
	}

	systemNames := m.getSystemNames()

	if path, ok := data[KeyDevicePath]; ok && m.devices != nil {
		deviceCallouts, err := m.devices.Callouts(path, systemNames)
		if err != nil {
			m.logger.Warn("skipping device path callouts", "device_path", path, "error", err)
		} else {
			callouts = append(callouts, deviceCallouts...)
		}
	}

	return append(callouts, entry.CalloutsFor(systemNames)...)
}

// getSystemNames returns the cached system names, fetching them on
// first use. A failed fetch is not cached.
func (m *Manager) getSystemNames() []string {
	if m.systemNamesCached {
		return m.systemNames
	}
	names, err := m.data.SystemNames()
	if err != nil {
		m.logger.Warn("reading system names", "error", err)
		return nil
	}
	m.systemNames = names
	m.systemNamesCached = true
	return names
}

func symptomID(src *pel.SRC) string {
	return fmt.Sprintf("%s_%08X", src.ReferenceCode(), src.Word(3))
}

func (m *Manager) assignOBMCID(requested uint32) uint32 {
	if requested == 0 {
		m.lastOBMCID++
		return m.lastOBMCID
	}
	m.lastOBMCID = max(m.lastOBMCID, requested)
	return requested
}

// --- Raw intake ---

// AddRaw stores a flattened PEL created elsewhere. The PEL keeps the
// PEL ID and commit time its creator gave it; only the OBMC ID is set,
// and an obmcID of zero assigns one. A stored PEL with the same PEL ID
// is replaced. Invalid data is written to the badPEL file, recorded
// with a BadHostPEL PEL when the registry has that entry, and rejected
// with ErrInvalidPEL.
func (m *Manager) AddRaw(data []byte, obmcID uint32) (uint32, error) {
	decoded := pel.Unflatten(data)
	if !decoded.Valid() {
		m.quarantine(data, decoded, obmcID)
		return 0, fmt.Errorf("%w: %d bytes from OBMC log %d", ErrInvalidPEL, len(data), obmcID)
	}

	pelID := decoded.ID()
	if previous, ok := m.repository.OBMCIDFor(pelID); ok {
		m.logger.Warn("replacing stored PEL with the same PEL ID",
			"pel_id", pelIDAttr(pelID),
			"previous_obmc_id", previous,
		)
	}
	decoded.SetOBMCID(m.assignOBMCID(obmcID))

	if err := m.repository.Add(decoded); err != nil {
		return 0, err
	}
	m.logger.Info("added PEL",
		"pel_id", pelIDAttr(pelID),
		"obmc_id", decoded.OBMCID(),
		"creator", decoded.Creator().String(),
	)
	m.afterAdd()
	return pelID, nil
}

func (m *Manager) quarantine(data []byte, decoded *pel.PEL, obmcID uint32) {
	path := filepath.Join(m.root, BadPELFileName)
	if err := atomicfile.Write(path, data, 0o644); err != nil {
		m.logger.Error("writing bad PEL quarantine file", "path", path, "error", err)
	}
	m.logger.Error("received invalid PEL",
		"size", len(data),
		"obmc_id", obmcID,
		"quarantine", path,
	)

	if _, ok := m.registry.Lookup(registry.BadHostPELEntry); !ok {
		return
	}
	details := map[string]string{
		"PEL_SIZE":    strconv.Itoa(len(data)),
		"OBMC_LOG_ID": strconv.FormatUint(uint64(obmcID), 10),
	}
	if header := decoded.PrivateHeader(); header != nil {
		details["PLID"] = fmt.Sprintf("0x%08X", header.PLID)
	}
	if _, err := m.Create(registry.BadHostPELEntry, LevelError, details); err != nil {
		m.logger.Error("creating bad host PEL record", "error", err)
	}
}

// --- Pruning ---

func (m *Manager) afterAdd() {
	if m.repository.SizeWarning() {
		m.schedulePrune()
	}
}

func (m *Manager) schedulePrune() {
	if m.pruneScheduled {
		return
	}
	m.pruneScheduled = true
	m.loop.Post(func() {
		m.pruneScheduled = false
		m.Prune()
	})
}

// Prune runs the repository prune now and reports the removed OBMC IDs
// to OnPruned.
func (m *Manager) Prune() []uint32 {
	removed := m.repository.Prune()
	if len(removed) == 0 {
		return nil
	}
	m.logger.Info("pruned PEL repository",
		"removed", len(removed),
		"count", m.repository.Count(),
		"total_size", m.repository.Sizes().Total,
	)
	if m.onPruned != nil {
		m.onPruned(removed)
	}
	return removed
}

// --- Host and lookup operations ---

// Erase removes the PEL with the given OBMC ID. Returns false if there
// was none.
func (m *Manager) Erase(obmcID uint32) bool {
	_, ok := m.repository.Remove(repository.LogID{OBMCID: obmcID})
	return ok
}

// HostAck records the host's acknowledgment of a PEL.
func (m *Manager) HostAck(pelID uint32) error {
	if !m.repository.HasPEL(repository.LogID{PELID: pelID}) {
		return fmt.Errorf("host ack for 0x%08X: %w", pelID, repository.ErrNotFound)
	}
	m.notifier.AckPEL(pelID)
	return nil
}

// HostReject records that the host refused a PEL.
func (m *Manager) HostReject(pelID uint32, reason RejectReason) error {
	if !m.repository.HasPEL(repository.LogID{PELID: pelID}) {
		return fmt.Errorf("host reject for 0x%08X: %w", pelID, repository.ErrNotFound)
	}
	switch reason {
	case RejectHostFull:
		m.notifier.SetHostFull(pelID)
	case RejectBadPEL:
		m.notifier.SetBadPEL(pelID)
	default:
		return fmt.Errorf("unknown reject reason %q", reason)
	}
	return nil
}

// HostStateChanged forwards a host power edge to the notifier. The
// DataInterface must already report the new state.
func (m *Manager) HostStateChanged(up bool) {
	m.notifier.HostStateChanged(up)
}

// PELIDFromOBMCID maps an OBMC ID to its PEL ID.
func (m *Manager) PELIDFromOBMCID(obmcID uint32) (uint32, bool) {
	return m.repository.PELIDFor(obmcID)
}

// OBMCIDFromPELID maps a PEL ID to its OBMC ID.
func (m *Manager) OBMCIDFromPELID(pelID uint32) (uint32, bool) {
	return m.repository.OBMCIDFor(pelID)
}

func pelIDAttr(id uint32) string {
	return fmt.Sprintf("0x%08X", id)
}
