// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

// Generic carries a section the codec does not interpret: an unknown
// section ID, a known section whose body failed to parse, or trailing
// bytes too short to hold a section header. Flatten reproduces the
// original bytes exactly.
type Generic struct {
	header SectionHeader

	Data []byte

	// headerless marks trailing bytes with no section header; Data is
	// then the whole section.
	headerless bool

	// malformed marks a section whose body failed to parse or whose
	// declared size disagrees with the bytes present.
	malformed bool
}

// NewGeneric returns a well-formed section of an uninterpreted type.
func NewGeneric(id SectionID, version, subtype uint8, componentID uint16, data []byte) *Generic {
	return &Generic{
		header: SectionHeader{
			ID:          id,
			Size:        uint16(SectionHeaderSize + len(data)),
			Version:     version,
			Subtype:     subtype,
			ComponentID: componentID,
		},
		Data: data,
	}
}

// Headerless reports whether this holds trailing bytes rather than a
// section.
func (g *Generic) Headerless() bool { return g.headerless }

func (g *Generic) Header() SectionHeader { return g.header }

func (g *Generic) FlattenedSize() int {
	if g.headerless {
		return len(g.Data)
	}
	return SectionHeaderSize + len(g.Data)
}

func (g *Generic) Flatten() []byte {
	if g.headerless {
		return append([]byte(nil), g.Data...)
	}
	return flattenWith(g.header, func(w *writer) { w.bytes(g.Data) })
}

func (g *Generic) Valid() bool {
	return !g.headerless && !g.malformed &&
		int(g.header.Size) == g.FlattenedSize()
}

func (*Generic) sealed() {}
