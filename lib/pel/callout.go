// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import (
	"errors"
	"fmt"
	"strings"
)

// MaxCallouts is the most callouts one SRC can carry.
const MaxCallouts = 10

// maxLocationCodeSize bounds the padded location code field.
const maxLocationCodeSize = 80

const (
	calloutsSubsectionID    = 0xC0
	calloutsSubsectionFlags = 0x03
	calloutsHeaderSize      = 4

	calloutFixedSize = 4

	// CalloutFlagFRUIdentity marks a callout that carries a FRU
	// identity substructure.
	CalloutFlagFRUIdentity = 0x08
)

// Priority is the ASCII service priority of a callout.
type Priority uint8

const (
	PriorityHigh         Priority = 'H'
	PriorityMedium       Priority = 'M'
	PriorityMediumGroupA Priority = 'A'
	PriorityMediumGroupB Priority = 'B'
	PriorityMediumGroupC Priority = 'C'
	PriorityLow          Priority = 'L'
)

// ParsePriority accepts "high", "medium", "medium_group_a" and the
// like, or the single priority letter.
func ParsePriority(text string) (Priority, error) {
	switch strings.ToLower(text) {
	case "high", "h":
		return PriorityHigh, nil
	case "medium", "m":
		return PriorityMedium, nil
	case "medium_group_a", "a":
		return PriorityMediumGroupA, nil
	case "medium_group_b", "b":
		return PriorityMediumGroupB, nil
	case "medium_group_c", "c":
		return PriorityMediumGroupC, nil
	case "low", "l":
		return PriorityLow, nil
	}
	return 0, fmt.Errorf("unknown callout priority %q", text)
}

func (p Priority) String() string {
	return string(rune(p))
}

// Callout points from the error to the part or procedure believed
// responsible.
type Callout struct {
	Flags        uint8
	Priority     Priority
	LocationCode FixedString

	// FRU is set when Flags has CalloutFlagFRUIdentity.
	FRU *FRUIdentity

	// Extra holds bytes inside the declared callout size that follow
	// the known fields, kept verbatim.
	Extra []byte

	// locationCodeSize is the padded field width as read, so decode
	// and re-encode agree even for unusual padding.
	locationCodeSize uint8
}

// NewHardwareCallout calls out a replaceable part.
func NewHardwareCallout(priority Priority, locationCode, partNumber, ccin, serialNumber string) *Callout {
	return newCallout(priority, locationCode,
		newFRUIdentity(FRUHardware, partNumber, ccin, serialNumber))
}

// NewSymbolicCallout calls out a named placeholder for a part that has
// no inventory identity. A trusted location code is only honoured when
// locationCode is non-empty; otherwise the callout is a plain symbolic
// FRU.
func NewSymbolicCallout(priority Priority, locationCode, symbolicFRU string, trustedLocation bool) *Callout {
	variant := FRUSymbolic
	if trustedLocation && locationCode != "" {
		variant = FRUSymbolicTrusted
	}
	return newCallout(priority, locationCode, newFRUIdentity(variant, symbolicFRU, "", ""))
}

// NewProcedureCallout calls out a maintenance procedure.
func NewProcedureCallout(priority Priority, procedure string) *Callout {
	return newCallout(priority, "", newFRUIdentity(FRUProcedure, procedure, "", ""))
}

func newCallout(priority Priority, locationCode string, fru *FRUIdentity) *Callout {
	if len(locationCode) >= maxLocationCodeSize {
		locationCode = locationCode[:maxLocationCodeSize-1]
	}
	size := paddedStringSize(locationCode)
	callout := &Callout{
		Priority:         priority,
		LocationCode:     newFixedString(locationCode, int(size)),
		FRU:              fru,
		locationCodeSize: size,
	}
	if fru != nil {
		callout.Flags |= CalloutFlagFRUIdentity
	}
	return callout
}

// paddedStringSize returns the field width for s plus a NUL, rounded up
// to a multiple of 4. The empty string takes no space.
func paddedStringSize(s string) uint8 {
	if s == "" {
		return 0
	}
	return uint8((len(s) + 1 + 3) &^ 3)
}

func parseCallout(r *reader) (*Callout, error) {
	start := r.offset
	size := int(r.u8())
	callout := &Callout{}
	callout.Flags = r.u8()
	callout.Priority = Priority(r.u8())
	callout.locationCodeSize = r.u8()
	if r.err != nil {
		return nil, r.err
	}
	if size < calloutFixedSize {
		return nil, fmt.Errorf("callout size %d smaller than its fixed fields", size)
	}
	if size > len(r.data)-start {
		return nil, fmt.Errorf("callout size %d exceeds the %d bytes left", size, len(r.data)-start)
	}

	// Everything else is read from a reader bounded by this callout.
	body := newReader(r.data[start+calloutFixedSize : start+size])
	r.offset = start + size

	callout.LocationCode = readFixedString(body, int(callout.locationCodeSize))
	if callout.Flags&CalloutFlagFRUIdentity != 0 {
		fru, err := parseFRUIdentity(body)
		if err != nil {
			return nil, fmt.Errorf("FRU identity: %w", err)
		}
		callout.FRU = fru
	}
	if body.err != nil {
		return nil, body.err
	}
	if body.remaining() > 0 {
		callout.Extra = body.bytes(body.remaining())
	}
	return callout, nil
}

// FlattenedSize returns the callout's total encoded size.
func (c *Callout) FlattenedSize() int {
	size := calloutFixedSize + int(c.locationCodeSize) + len(c.Extra)
	if c.FRU != nil && c.Flags&CalloutFlagFRUIdentity != 0 {
		size += c.FRU.FlattenedSize()
	}
	return size
}

func (c *Callout) write(w *writer) {
	w.u8(uint8(c.FlattenedSize()))
	w.u8(c.Flags)
	w.u8(uint8(c.Priority))
	w.u8(c.locationCodeSize)
	c.LocationCode.write(w, int(c.locationCodeSize))
	if c.FRU != nil && c.Flags&CalloutFlagFRUIdentity != 0 {
		c.FRU.write(w)
	}
	w.bytes(c.Extra)
}

// Callouts is the sub-section of an SRC holding its callout list.
type Callouts struct {
	Callouts []*Callout

	flags uint8
}

// NewCallouts wraps up to MaxCallouts callouts; the rest are dropped.
func NewCallouts(callouts []*Callout) *Callouts {
	if len(callouts) > MaxCallouts {
		callouts = callouts[:MaxCallouts]
	}
	return &Callouts{Callouts: callouts, flags: calloutsSubsectionFlags}
}

func parseCallouts(r *reader) (*Callouts, error) {
	start := r.offset
	id := r.u8()
	flags := r.u8()
	length := int(r.u16())
	if r.err != nil {
		return nil, r.err
	}
	if id != calloutsSubsectionID {
		return nil, fmt.Errorf("callouts sub-section ID 0x%02X, want 0x%02X", id, calloutsSubsectionID)
	}
	if length < calloutsHeaderSize || length > len(r.data)-start {
		return nil, fmt.Errorf("callouts length %d out of range", length)
	}

	body := newReader(r.data[start+calloutsHeaderSize : start+length])
	r.offset = start + length

	callouts := &Callouts{flags: flags}
	for body.remaining() > 0 {
		if len(callouts.Callouts) == MaxCallouts {
			return nil, fmt.Errorf("more than %d callouts", MaxCallouts)
		}
		callout, err := parseCallout(body)
		if err != nil {
			return nil, fmt.Errorf("callout %d: %w", len(callouts.Callouts), err)
		}
		callouts.Callouts = append(callouts.Callouts, callout)
	}
	return callouts, nil
}

// FlattenedSize returns the sub-section size including its header.
func (c *Callouts) FlattenedSize() int {
	size := calloutsHeaderSize
	for _, callout := range c.Callouts {
		size += callout.FlattenedSize()
	}
	return size
}

func (c *Callouts) write(w *writer) {
	w.u8(calloutsSubsectionID)
	w.u8(c.flags)
	w.u16(uint16(c.FlattenedSize()))
	for _, callout := range c.Callouts {
		callout.write(w)
	}
}

// FRUVariant is the high nibble of the FRU identity flags.
type FRUVariant uint8

const (
	FRUHardware        FRUVariant = 0x00
	FRUSymbolic        FRUVariant = 0x20
	FRUSymbolicTrusted FRUVariant = 0x30
	FRUProcedure       FRUVariant = 0x40
)

func (v FRUVariant) String() string {
	switch v {
	case FRUHardware:
		return "hardware"
	case FRUSymbolic:
		return "symbolic"
	case FRUSymbolicTrusted:
		return "symbolic_trusted_location"
	case FRUProcedure:
		return "procedure"
	}
	return fmt.Sprintf("0x%02X", uint8(v))
}

// Bits in the low nibble of the FRU identity flags saying which
// fields follow.
const (
	fruHasPartNumber = 0x08
	fruHasCCIN       = 0x04
	fruHasProcedure  = 0x02
	fruHasSerial     = 0x01

	fruIdentityType = 0x4944 // "ID"
	fruHeaderSize   = 4
	fruPartSize     = 8
	fruCCINSize     = 4
	fruSerialSize   = 12
	fruVariantMask  = 0xF0
	fruSuppliedMask = 0x0F
)

// FRUIdentity names the part, symbolic FRU, or procedure a callout
// refers to. For symbolic FRUs PartNumber holds the symbolic name; for
// procedures it holds the procedure ID.
type FRUIdentity struct {
	Flags        uint8
	PartNumber   FixedString
	CCIN         FixedString
	SerialNumber FixedString
}

var errFRUType = errors.New("FRU identity type is not 'ID'")

func newFRUIdentity(variant FRUVariant, partOrProcedure, ccin, serialNumber string) *FRUIdentity {
	fru := &FRUIdentity{Flags: uint8(variant)}
	if partOrProcedure != "" {
		fru.PartNumber = newFixedString(partOrProcedure, fruPartSize)
		if variant == FRUProcedure {
			fru.Flags |= fruHasProcedure
		} else {
			fru.Flags |= fruHasPartNumber
		}
	}
	if variant == FRUHardware {
		if ccin != "" {
			fru.CCIN = newFixedString(ccin, fruCCINSize)
			fru.Flags |= fruHasCCIN
		}
		if serialNumber != "" {
			fru.SerialNumber = newFixedString(serialNumber, fruSerialSize)
			fru.Flags |= fruHasSerial
		}
	}
	return fru
}

// Variant returns the identity kind.
func (f *FRUIdentity) Variant() FRUVariant {
	return FRUVariant(f.Flags & fruVariantMask)
}

func (f *FRUIdentity) hasPartOrProcedure() bool {
	return f.Flags&(fruHasPartNumber|fruHasProcedure) != 0
}

func parseFRUIdentity(r *reader) (*FRUIdentity, error) {
	kind := r.u16()
	size := int(r.u8())
	fru := &FRUIdentity{Flags: r.u8()}
	if r.err != nil {
		return nil, r.err
	}
	if kind != fruIdentityType {
		return nil, errFRUType
	}
	if fru.hasPartOrProcedure() {
		fru.PartNumber = readFixedString(r, fruPartSize)
	}
	if fru.Flags&fruHasCCIN != 0 {
		fru.CCIN = readFixedString(r, fruCCINSize)
	}
	if fru.Flags&fruHasSerial != 0 {
		fru.SerialNumber = readFixedString(r, fruSerialSize)
	}
	if r.err != nil {
		return nil, r.err
	}
	if size != fru.FlattenedSize() {
		return nil, fmt.Errorf("FRU identity size %d, fields need %d", size, fru.FlattenedSize())
	}
	return fru, nil
}

// FlattenedSize returns the identity size including its 4-byte header.
func (f *FRUIdentity) FlattenedSize() int {
	size := fruHeaderSize
	if f.hasPartOrProcedure() {
		size += fruPartSize
	}
	if f.Flags&fruHasCCIN != 0 {
		size += fruCCINSize
	}
	if f.Flags&fruHasSerial != 0 {
		size += fruSerialSize
	}
	return size
}

func (f *FRUIdentity) write(w *writer) {
	w.u16(fruIdentityType)
	w.u8(uint8(f.FlattenedSize()))
	w.u8(f.Flags)
	if f.hasPartOrProcedure() {
		f.PartNumber.write(w, fruPartSize)
	}
	if f.Flags&fruHasCCIN != 0 {
		f.CCIN.write(w, fruCCINSize)
	}
	if f.Flags&fruHasSerial != 0 {
		f.SerialNumber.write(w, fruSerialSize)
	}
}
