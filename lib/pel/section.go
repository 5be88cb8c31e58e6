// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import "fmt"

// SectionID is the two-character identifier at the start of every
// section header.
type SectionID uint16

const (
	SectionPrivateHeader      SectionID = 0x5048 // "PH"
	SectionUserHeader         SectionID = 0x5548 // "UH"
	SectionPrimarySRC         SectionID = 0x5053 // "PS"
	SectionSecondarySRC       SectionID = 0x5353 // "SS"
	SectionExtendedUserHeader SectionID = 0x4548 // "EH"
	SectionUserData           SectionID = 0x5544 // "UD"
)

// String returns the two ASCII characters of the ID, or its hex value
// when they are not printable.
func (id SectionID) String() string {
	high, low := byte(id>>8), byte(id)
	if high >= 0x20 && high < 0x7F && low >= 0x20 && low < 0x7F {
		return string([]byte{high, low})
	}
	return fmt.Sprintf("0x%04X", uint16(id))
}

// SectionHeaderSize is the size of the header every section starts
// with.
const SectionHeaderSize = 8

// BMCComponentID is the component ID stamped on sections this BMC
// creates.
const BMCComponentID uint16 = 0x2000

// SectionHeader is the common 8-byte header. Size counts the header
// itself.
type SectionHeader struct {
	ID          SectionID
	Size        uint16
	Version     uint8
	Subtype     uint8
	ComponentID uint16
}

func (h *SectionHeader) read(r *reader) {
	h.ID = SectionID(r.u16())
	h.Size = r.u16()
	h.Version = r.u8()
	h.Subtype = r.u8()
	h.ComponentID = r.u16()
}

func (h *SectionHeader) write(w *writer) {
	w.u16(uint16(h.ID))
	w.u16(h.Size)
	w.u8(h.Version)
	w.u8(h.Subtype)
	w.u16(h.ComponentID)
}

// Section is one section of a PEL. The set of implementations is
// closed: *PrivateHeader, *UserHeader, *SRC, *ExtendedUserHeader,
// *UserData, and *Generic for everything else.
type Section interface {
	// Header returns the section header as decoded or constructed.
	Header() SectionHeader

	// Flatten returns the section's wire bytes, header included.
	Flatten() []byte

	// FlattenedSize returns len(Flatten()).
	FlattenedSize() int

	// Valid reports whether the section is internally consistent:
	// known sections check their ID, size and version, Generic
	// sections check that the declared size matches the bytes held.
	Valid() bool

	sealed()
}

func flattenWith(header SectionHeader, body func(*writer)) []byte {
	w := &writer{buffer: make([]byte, 0, header.Size)}
	header.write(w)
	body(w)
	return w.buffer
}
