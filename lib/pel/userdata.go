// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

// User Data subtypes understood by the tooling. The creating component
// may use any other value.
const (
	UserDataJSON uint8 = 0x01
	UserDataCBOR uint8 = 0x02
	UserDataText uint8 = 0x03
)

// UserData is an opaque payload; the header subtype says how to read
// it.
type UserData struct {
	header SectionHeader

	Data []byte
}

// NewUserData wraps data in a version 1 User Data section.
func NewUserData(subtype uint8, componentID uint16, data []byte) *UserData {
	return &UserData{
		header: SectionHeader{
			ID:          SectionUserData,
			Size:        uint16(SectionHeaderSize + len(data)),
			Version:     1,
			Subtype:     subtype,
			ComponentID: componentID,
		},
		Data: data,
	}
}

func parseUserData(header SectionHeader, r *reader) (*UserData, error) {
	return &UserData{header: header, Data: r.bytes(r.remaining())}, nil
}

func (u *UserData) Header() SectionHeader { return u.header }

func (u *UserData) FlattenedSize() int { return SectionHeaderSize + len(u.Data) }

func (u *UserData) Flatten() []byte {
	return flattenWith(u.header, func(w *writer) { w.bytes(u.Data) })
}

func (u *UserData) Valid() bool {
	return u.header.ID == SectionUserData &&
		int(u.header.Size) == u.FlattenedSize()
}

func (*UserData) sealed() {}
