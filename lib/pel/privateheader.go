// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

// PrivateHeaderSize is the fixed size of the Private Header section.
const PrivateHeaderSize = 48

// PrivateHeader is the first section of every PEL: creation metadata,
// the commit timestamp, and the dual IDs.
type PrivateHeader struct {
	header SectionHeader

	CreateTime     BCDTime
	CommitTime     BCDTime
	Creator        CreatorID
	LogType        uint8
	Reserved       uint8
	SectionCount   uint8
	OBMCID         uint32
	CreatorVersion [8]byte
	PLID           uint32
	ID             uint32
}

// NewPrivateHeader returns a version 1 Private Header. SectionCount is
// set by New when the PEL is assembled.
func NewPrivateHeader(creator CreatorID, id, obmcID uint32, createTime BCDTime, creatorVersion [8]byte) *PrivateHeader {
	return &PrivateHeader{
		header: SectionHeader{
			ID:          SectionPrivateHeader,
			Size:        PrivateHeaderSize,
			Version:     1,
			ComponentID: BMCComponentID,
		},
		CreateTime:     createTime,
		CommitTime:     createTime,
		Creator:        creator,
		OBMCID:         obmcID,
		CreatorVersion: creatorVersion,
		PLID:           id,
		ID:             id,
	}
}

func parsePrivateHeader(header SectionHeader, r *reader) (*PrivateHeader, error) {
	section := &PrivateHeader{header: header}
	section.CreateTime.read(r)
	section.CommitTime.read(r)
	section.Creator = CreatorID(r.u8())
	section.LogType = r.u8()
	section.Reserved = r.u8()
	section.SectionCount = r.u8()
	section.OBMCID = r.u32()
	r.fill(section.CreatorVersion[:])
	section.PLID = r.u32()
	section.ID = r.u32()
	if err := r.finish(); err != nil {
		return nil, err
	}
	return section, nil
}

func (p *PrivateHeader) Header() SectionHeader { return p.header }

func (p *PrivateHeader) FlattenedSize() int { return PrivateHeaderSize }

func (p *PrivateHeader) Flatten() []byte {
	return flattenWith(p.header, func(w *writer) {
		p.CreateTime.write(w)
		p.CommitTime.write(w)
		w.u8(uint8(p.Creator))
		w.u8(p.LogType)
		w.u8(p.Reserved)
		w.u8(p.SectionCount)
		w.u32(p.OBMCID)
		w.bytes(p.CreatorVersion[:])
		w.u32(p.PLID)
		w.u32(p.ID)
	})
}

func (p *PrivateHeader) Valid() bool {
	return p.header.ID == SectionPrivateHeader &&
		p.header.Size == PrivateHeaderSize &&
		p.header.Version == 1 &&
		p.SectionCount >= 2
}

func (*PrivateHeader) sealed() {}
