// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

// UserHeaderSize is the fixed size of the User Header section.
const UserHeaderSize = 24

// UserHeader is the second section of every PEL: classification of
// the event and its transmission states.
type UserHeader struct {
	header SectionHeader

	Subsystem     uint8
	Scope         uint8
	Severity      Severity
	EventType     uint8
	Reserved      uint32
	ProblemDomain uint8
	ProblemVector uint8
	ActionFlags   ActionFlags

	// States packs the host transmission state in the low byte and
	// the HMC transmission state in the next byte. The upper bytes are
	// preserved as read.
	States uint32
}

// NewUserHeader returns a version 1 User Header with both
// transmission states new.
func NewUserHeader(subsystem, scope uint8, severity Severity, eventType uint8, flags ActionFlags) *UserHeader {
	return &UserHeader{
		header: SectionHeader{
			ID:          SectionUserHeader,
			Size:        UserHeaderSize,
			Version:     1,
			ComponentID: BMCComponentID,
		},
		Subsystem:   subsystem,
		Scope:       scope,
		Severity:    severity,
		EventType:   eventType,
		ActionFlags: flags,
	}
}

func parseUserHeader(header SectionHeader, r *reader) (*UserHeader, error) {
	section := &UserHeader{header: header}
	section.Subsystem = r.u8()
	section.Scope = r.u8()
	section.Severity = Severity(r.u8())
	section.EventType = r.u8()
	section.Reserved = r.u32()
	section.ProblemDomain = r.u8()
	section.ProblemVector = r.u8()
	section.ActionFlags = ActionFlags(r.u16())
	section.States = r.u32()
	if err := r.finish(); err != nil {
		return nil, err
	}
	return section, nil
}

// HostState returns the host transmission state.
func (u *UserHeader) HostState() TransmissionState {
	return TransmissionState(u.States & 0xFF)
}

// SetHostState replaces the host transmission state.
func (u *UserHeader) SetHostState(state TransmissionState) {
	u.States = u.States&^0xFF | uint32(state)
}

// HMCState returns the HMC transmission state.
func (u *UserHeader) HMCState() TransmissionState {
	return TransmissionState(u.States >> 8 & 0xFF)
}

// SetHMCState replaces the HMC transmission state.
func (u *UserHeader) SetHMCState(state TransmissionState) {
	u.States = u.States&^0xFF00 | uint32(state)<<8
}

func (u *UserHeader) Header() SectionHeader { return u.header }

func (u *UserHeader) FlattenedSize() int { return UserHeaderSize }

func (u *UserHeader) Flatten() []byte {
	return flattenWith(u.header, func(w *writer) {
		w.u8(u.Subsystem)
		w.u8(u.Scope)
		w.u8(uint8(u.Severity))
		w.u8(u.EventType)
		w.u32(u.Reserved)
		w.u8(u.ProblemDomain)
		w.u8(u.ProblemVector)
		w.u16(uint16(u.ActionFlags))
		w.u32(u.States)
	})
}

func (u *UserHeader) Valid() bool {
	return u.header.ID == SectionUserHeader &&
		u.header.Size == UserHeaderSize &&
		u.header.Version == 1
}

func (*UserHeader) sealed() {}
