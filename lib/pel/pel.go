// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import "fmt"

// PEL is a decoded Platform Event Log: an ordered list of sections,
// the Private Header first and the User Header second.
type PEL struct {
	sections []Section
}

// New assembles a PEL and sets the Private Header's section count.
func New(privateHeader *PrivateHeader, userHeader *UserHeader, optional ...Section) *PEL {
	sections := make([]Section, 0, 2+len(optional))
	sections = append(sections, privateHeader, userHeader)
	sections = append(sections, optional...)
	privateHeader.SectionCount = uint8(len(sections))
	return &PEL{sections: sections}
}

// Unflatten decodes data. It never fails: whatever cannot be decoded
// is kept as Generic sections, and Valid reports whether the result is
// a well-formed PEL.
func Unflatten(data []byte) *PEL {
	p := &PEL{}
	offset := 0
	for offset < len(data) {
		section, consumed := unflattenSection(data[offset:], len(p.sections))
		p.sections = append(p.sections, section)
		offset += consumed
	}
	return p
}

// unflattenSection decodes the section at the start of data, which is
// the index'th section of its PEL, and returns it with the number of
// bytes it consumed.
func unflattenSection(data []byte, index int) (Section, int) {
	if len(data) < SectionHeaderSize {
		return &Generic{Data: append([]byte(nil), data...), headerless: true}, len(data)
	}

	var header SectionHeader
	header.read(newReader(data[:SectionHeaderSize]))

	size := int(header.Size)
	if size < SectionHeaderSize {
		// There is no trustworthy boundary, so the rest of the stream
		// becomes this one invalid section.
		return &Generic{
			header:    header,
			Data:      append([]byte(nil), data[SectionHeaderSize:]...),
			malformed: true,
		}, len(data)
	}
	truncated := size > len(data)
	if truncated {
		size = len(data)
	}
	payload := data[SectionHeaderSize:size]

	var parse func(SectionHeader, *reader) (Section, error)
	switch {
	case index == 0 && header.ID == SectionPrivateHeader:
		parse = func(h SectionHeader, r *reader) (Section, error) { return parsePrivateHeader(h, r) }
	case index == 1 && header.ID == SectionUserHeader:
		parse = func(h SectionHeader, r *reader) (Section, error) { return parseUserHeader(h, r) }
	case index >= 2 && (header.ID == SectionPrimarySRC || header.ID == SectionSecondarySRC):
		parse = func(h SectionHeader, r *reader) (Section, error) { return parseSRC(h, r) }
	case index >= 2 && header.ID == SectionExtendedUserHeader:
		parse = func(h SectionHeader, r *reader) (Section, error) { return parseExtendedUserHeader(h, r) }
	case index >= 2 && header.ID == SectionUserData:
		parse = func(h SectionHeader, r *reader) (Section, error) { return parseUserData(h, r) }
	}

	generic := &Generic{
		header:    header,
		Data:      append([]byte(nil), payload...),
		malformed: truncated,
	}
	if parse == nil || truncated {
		return generic, size
	}
	section, err := parse(header, newReader(payload))
	if err != nil {
		generic.malformed = true
		return generic, size
	}
	return section, size
}

// Sections returns the sections in order. The slice is shared.
func (p *PEL) Sections() []Section {
	return p.sections
}

// Flatten encodes the PEL.
func (p *PEL) Flatten() []byte {
	data := make([]byte, 0, p.Size())
	for _, section := range p.sections {
		data = append(data, section.Flatten()...)
	}
	return data
}

// Size returns the flattened size in bytes.
func (p *PEL) Size() int {
	size := 0
	for _, section := range p.sections {
		size += section.FlattenedSize()
	}
	return size
}

// Valid reports whether both mandatory sections are present and valid,
// every section is internally consistent, and the section count in the
// Private Header matches.
func (p *PEL) Valid() bool {
	privateHeader := p.PrivateHeader()
	if privateHeader == nil || p.UserHeader() == nil {
		return false
	}
	for _, section := range p.sections {
		if !section.Valid() {
			return false
		}
	}
	return int(privateHeader.SectionCount) == len(p.sections)
}

// PrivateHeader returns the first section if it decoded as a Private
// Header, else nil.
func (p *PEL) PrivateHeader() *PrivateHeader {
	if len(p.sections) < 1 {
		return nil
	}
	privateHeader, _ := p.sections[0].(*PrivateHeader)
	return privateHeader
}

// UserHeader returns the second section if it decoded as a User
// Header, else nil.
func (p *PEL) UserHeader() *UserHeader {
	if len(p.sections) < 2 {
		return nil
	}
	userHeader, _ := p.sections[1].(*UserHeader)
	return userHeader
}

// PrimarySRC returns the first SRC section with the primary ID.
func (p *PEL) PrimarySRC() *SRC {
	for _, section := range p.sections {
		if src, ok := section.(*SRC); ok && src.header.ID == SectionPrimarySRC {
			return src
		}
	}
	return nil
}

// ExtendedUserHeader returns the Extended User Header, if present.
func (p *PEL) ExtendedUserHeader() *ExtendedUserHeader {
	for _, section := range p.sections {
		if header, ok := section.(*ExtendedUserHeader); ok {
			return header
		}
	}
	return nil
}

// The accessors below return zero values when the mandatory section
// they read is missing, and the setters do nothing.

func (p *PEL) ID() uint32 {
	if privateHeader := p.PrivateHeader(); privateHeader != nil {
		return privateHeader.ID
	}
	return 0
}

// SetID sets the PEL ID. The PLID follows when it was equal to the old
// ID, which is the case for every PEL that is its own platform log.
func (p *PEL) SetID(id uint32) {
	if privateHeader := p.PrivateHeader(); privateHeader != nil {
		if privateHeader.PLID == privateHeader.ID {
			privateHeader.PLID = id
		}
		privateHeader.ID = id
	}
}

func (p *PEL) OBMCID() uint32 {
	if privateHeader := p.PrivateHeader(); privateHeader != nil {
		return privateHeader.OBMCID
	}
	return 0
}

func (p *PEL) SetOBMCID(id uint32) {
	if privateHeader := p.PrivateHeader(); privateHeader != nil {
		privateHeader.OBMCID = id
	}
}

func (p *PEL) PLID() uint32 {
	if privateHeader := p.PrivateHeader(); privateHeader != nil {
		return privateHeader.PLID
	}
	return 0
}

func (p *PEL) Creator() CreatorID {
	if privateHeader := p.PrivateHeader(); privateHeader != nil {
		return privateHeader.Creator
	}
	return 0
}

func (p *PEL) LogType() uint8 {
	if privateHeader := p.PrivateHeader(); privateHeader != nil {
		return privateHeader.LogType
	}
	return 0
}

func (p *PEL) CommitTime() BCDTime {
	if privateHeader := p.PrivateHeader(); privateHeader != nil {
		return privateHeader.CommitTime
	}
	return BCDTime{}
}

func (p *PEL) SetCommitTime(commitTime BCDTime) {
	if privateHeader := p.PrivateHeader(); privateHeader != nil {
		privateHeader.CommitTime = commitTime
	}
}

func (p *PEL) Severity() Severity {
	if userHeader := p.UserHeader(); userHeader != nil {
		return userHeader.Severity
	}
	return 0
}

func (p *PEL) ActionFlags() ActionFlags {
	if userHeader := p.UserHeader(); userHeader != nil {
		return userHeader.ActionFlags
	}
	return 0
}

func (p *PEL) HostState() TransmissionState {
	if userHeader := p.UserHeader(); userHeader != nil {
		return userHeader.HostState()
	}
	return TransmissionNew
}

func (p *PEL) SetHostState(state TransmissionState) {
	if userHeader := p.UserHeader(); userHeader != nil {
		userHeader.SetHostState(state)
	}
}

func (p *PEL) HMCState() TransmissionState {
	if userHeader := p.UserHeader(); userHeader != nil {
		return userHeader.HMCState()
	}
	return TransmissionNew
}

func (p *PEL) SetHMCState(state TransmissionState) {
	if userHeader := p.UserHeader(); userHeader != nil {
		userHeader.SetHMCState(state)
	}
}

// FileName returns the repository file name: the commit timestamp as
// 16 hex digits, an underscore, and the PEL ID as 8 uppercase hex
// digits. Names sort chronologically.
func (p *PEL) FileName() string {
	return FileName(p.CommitTime(), p.ID())
}

// FileName formats a repository file name.
func FileName(commitTime BCDTime, id uint32) string {
	return fmt.Sprintf("%s_%08X", commitTime.Hex(), id)
}
