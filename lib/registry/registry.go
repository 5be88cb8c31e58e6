// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry loads the message registry: one entry per error
// message name, describing the PEL the BMC creates for it.
package registry

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/pel/lib/pel"
)

// Entry names with special meaning to the daemon.
const (
	// DefaultEntry is used for messages the registry does not list.
	DefaultEntry = "org.open_power.Logging.Error.Default"

	// BadHostPELEntry is used to record that a PEL received from the
	// host could not be decoded.
	BadHostPELEntry = "org.open_power.Logging.Error.BadHostPEL"
)

// defaultSRCType is the SRC type for BMC-detected errors.
const defaultSRCType = 0xBD

// Registry is an immutable set of entries keyed by message name.
type Registry struct {
	entries map[string]*Entry
}

type file struct {
	Entries []*Entry `yaml:"entries"`
}

// Entry describes the PEL for one message.
type Entry struct {
	Name string `yaml:"name"`

	Subsystem uint8 `yaml:"subsystem"`

	// Severity, when nil, is derived from the event level at creation.
	Severity *pel.Severity `yaml:"severity"`

	EventType  uint8 `yaml:"event_type"`
	EventScope uint8 `yaml:"event_scope"`

	// ActionFlags, when empty, default from the severity.
	ActionFlags []string `yaml:"action_flags"`

	ComponentID uint16 `yaml:"component_id"`

	SRC SRC `yaml:"src"`

	// Callouts are grouped by system name; see CalloutsFor.
	Callouts []CalloutGroup `yaml:"callouts"`

	// Message is a human-readable description for tooling.
	Message string `yaml:"message"`

	actionFlags pel.ActionFlags
}

// SRC describes the primary SRC of an entry.
type SRC struct {
	Type       uint8  `yaml:"type"`
	ReasonCode uint16 `yaml:"reason_code"`

	// Words maps hex word numbers to additional-data keys. Only words 6
	// through 9 are honoured; others are skipped when the SRC is built.
	Words map[int]string `yaml:"words"`

	PowerFault bool `yaml:"power_fault"`
}

// CalloutGroup is a list of callouts that applies to the named systems,
// or to every system when Systems is empty.
type CalloutGroup struct {
	Systems  []string      `yaml:"systems"`
	Callouts []CalloutSpec `yaml:"list"`
}

// CalloutSpec is one registry callout. Exactly one of Procedure,
// SymbolicFRU and PartNumber is set.
type CalloutSpec struct {
	Priority        string `yaml:"priority"`
	LocationCode    string `yaml:"location_code"`
	Procedure       string `yaml:"procedure"`
	SymbolicFRU     string `yaml:"symbolic_fru"`
	TrustedLocation bool   `yaml:"trusted_location"`
	PartNumber      string `yaml:"part_number"`
	CCIN            string `yaml:"ccin"`
	SerialNumber    string `yaml:"serial_number"`

	priority pel.Priority
}

// Load reads and validates a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	registry, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return registry, nil
}

// Parse decodes and validates registry YAML. Every problem found is
// reported, joined.
func Parse(data []byte) (*Registry, error) {
	var contents file
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	registry := &Registry{entries: make(map[string]*Entry, len(contents.Entries))}
	var errs []error
	for i, entry := range contents.Entries {
		if entry == nil {
			errs = append(errs, fmt.Errorf("entry %d is empty", i))
			continue
		}
		if err := entry.validate(); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i, entry.Name, err))
			continue
		}
		if _, exists := registry.entries[entry.Name]; exists {
			errs = append(errs, fmt.Errorf("entry %d: duplicate name %s", i, entry.Name))
			continue
		}
		registry.entries[entry.Name] = entry
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return registry, nil
}

func (e *Entry) validate() error {
	var errs []error
	if e.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if e.SRC.Type == 0 {
		e.SRC.Type = defaultSRCType
	}
	if e.SRC.ReasonCode == 0 {
		errs = append(errs, errors.New("src.reason_code is required"))
	}
	if e.ComponentID == 0 {
		e.ComponentID = pel.BMCComponentID
	}

	flags, err := pel.ParseActionFlags(e.ActionFlags)
	if err != nil {
		errs = append(errs, err)
	}
	e.actionFlags = flags

	for groupIndex := range e.Callouts {
		group := &e.Callouts[groupIndex]
		for calloutIndex := range group.Callouts {
			if err := group.Callouts[calloutIndex].validate(); err != nil {
				errs = append(errs, fmt.Errorf("callout group %d callout %d: %w", groupIndex, calloutIndex, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (c *CalloutSpec) validate() error {
	set := 0
	for _, field := range []string{c.Procedure, c.SymbolicFRU, c.PartNumber} {
		if field != "" {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of procedure, symbolic_fru and part_number is required")
	}
	priority, err := pel.ParsePriority(c.Priority)
	if err != nil {
		return err
	}
	c.priority = priority
	return nil
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	entry, ok := r.entries[name]
	return entry, ok
}

// Names returns every entry name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Flags returns the entry's action flags, or ok false if it lists
// none and the caller should use severity defaults.
func (e *Entry) Flags() (flags pel.ActionFlags, ok bool) {
	return e.actionFlags, len(e.ActionFlags) > 0
}

// CalloutsFor returns the callouts for a system. The first group naming
// any of systemNames wins; otherwise the first group with no systems.
// Order within the group is preserved.
func (e *Entry) CalloutsFor(systemNames []string) []*pel.Callout {
	var chosen *CalloutGroup
	for i := range e.Callouts {
		group := &e.Callouts[i]
		if len(group.Systems) == 0 {
			if chosen == nil {
				chosen = group
			}
			continue
		}
		for _, system := range group.Systems {
			if slices.Contains(systemNames, system) {
				chosen = group
				break
			}
		}
		if chosen == group {
			break
		}
	}
	if chosen == nil {
		return nil
	}

	callouts := make([]*pel.Callout, 0, len(chosen.Callouts))
	for _, spec := range chosen.Callouts {
		callouts = append(callouts, spec.Callout())
	}
	return callouts
}

// Callout builds the PEL callout for this spec.
func (c *CalloutSpec) Callout() *pel.Callout {
	switch {
	case c.Procedure != "":
		return pel.NewProcedureCallout(c.priority, c.Procedure)
	case c.SymbolicFRU != "":
		return pel.NewSymbolicCallout(c.priority, c.LocationCode, c.SymbolicFRU, c.TrustedLocation)
	default:
		return pel.NewHardwareCallout(c.priority, c.LocationCode, c.PartNumber, c.CCIN, c.SerialNumber)
	}
}
