// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

const (
	ehMachineTypeModelSize = 8
	ehSerialNumberSize     = 12
	ehFirmwareVersionSize  = 16
	ehFixedSize            = SectionHeaderSize + ehMachineTypeModelSize + ehSerialNumberSize +
		2*ehFirmwareVersionSize + 4 + 8 + 3 + 1 // 76
	ehMaxSymptomIDSize = 80
)

// ExtendedUserHeader carries system identity and firmware levels at the
// time of the error, plus the symptom ID.
type ExtendedUserHeader struct {
	header SectionHeader

	MachineTypeModel   FixedString
	SerialNumber       FixedString
	ServerFWVersion    FixedString
	SubsystemFWVersion FixedString
	Reserved1          uint32
	ReferenceTime      BCDTime
	Reserved2          [3]byte
	SymptomID          FixedString

	symptomIDSize uint8
}

// NewExtendedUserHeader builds the section. The symptom ID is
// truncated to fit its field.
func NewExtendedUserHeader(machineTypeModel, serialNumber, serverFW, subsystemFW string, referenceTime BCDTime, symptomID string) *ExtendedUserHeader {
	if len(symptomID) >= ehMaxSymptomIDSize {
		symptomID = symptomID[:ehMaxSymptomIDSize-1]
	}
	symptomIDSize := paddedStringSize(symptomID)
	section := &ExtendedUserHeader{
		header: SectionHeader{
			ID:          SectionExtendedUserHeader,
			Version:     1,
			ComponentID: BMCComponentID,
		},
		MachineTypeModel:   newFixedString(machineTypeModel, ehMachineTypeModelSize),
		SerialNumber:       newFixedString(serialNumber, ehSerialNumberSize),
		ServerFWVersion:    newFixedString(serverFW, ehFirmwareVersionSize),
		SubsystemFWVersion: newFixedString(subsystemFW, ehFirmwareVersionSize),
		ReferenceTime:      referenceTime,
		SymptomID:          newFixedString(symptomID, int(symptomIDSize)),
		symptomIDSize:      symptomIDSize,
	}
	section.header.Size = uint16(section.FlattenedSize())
	return section
}

func parseExtendedUserHeader(header SectionHeader, r *reader) (*ExtendedUserHeader, error) {
	section := &ExtendedUserHeader{header: header}
	section.MachineTypeModel = readFixedString(r, ehMachineTypeModelSize)
	section.SerialNumber = readFixedString(r, ehSerialNumberSize)
	section.ServerFWVersion = readFixedString(r, ehFirmwareVersionSize)
	section.SubsystemFWVersion = readFixedString(r, ehFirmwareVersionSize)
	section.Reserved1 = r.u32()
	section.ReferenceTime.read(r)
	r.fill(section.Reserved2[:])
	section.symptomIDSize = r.u8()
	section.SymptomID = readFixedString(r, int(section.symptomIDSize))
	if err := r.finish(); err != nil {
		return nil, err
	}
	return section, nil
}

func (e *ExtendedUserHeader) Header() SectionHeader { return e.header }

func (e *ExtendedUserHeader) FlattenedSize() int {
	return ehFixedSize + int(e.symptomIDSize)
}

func (e *ExtendedUserHeader) Flatten() []byte {
	return flattenWith(e.header, func(w *writer) {
		e.MachineTypeModel.write(w, ehMachineTypeModelSize)
		e.SerialNumber.write(w, ehSerialNumberSize)
		e.ServerFWVersion.write(w, ehFirmwareVersionSize)
		e.SubsystemFWVersion.write(w, ehFirmwareVersionSize)
		w.u32(e.Reserved1)
		e.ReferenceTime.write(w)
		w.bytes(e.Reserved2[:])
		w.u8(e.symptomIDSize)
		e.SymptomID.write(w, int(e.symptomIDSize))
	})
}

func (e *ExtendedUserHeader) Valid() bool {
	return e.header.ID == SectionExtendedUserHeader &&
		int(e.header.Size) == e.FlattenedSize() &&
		e.header.Version == 1
}

func (*ExtendedUserHeader) sealed() {}
