// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const (
	srcVersion         = 0x02
	srcWordCount       = 9
	srcHexWords        = 8
	srcASCIISize       = 32
	srcBaseSize        = 8 + srcHexWords*4 + srcASCIISize // 72
	srcSectionVersion  = 1
	srcBMCFormat       = 0x55000000
	srcFirstUserWord   = 6
	srcLastUserWord    = 9
	srcFirstHexWordNum = 2
)

// SRC flag bits.
const (
	SRCFlagAdditionalSections = 0x01
	SRCFlagVirtualProgress    = 0x04
	SRCFlagHypDumpInitiated   = 0x08
	SRCFlagPowerFault         = 0x20
)

// SRC is the System Reference Code section: the reference code, eight
// hex diagnostic words, and the callouts.
type SRC struct {
	header SectionHeader

	Version   uint8
	Flags     uint8
	Reserved1 uint8
	WordCount uint8
	Reserved2 uint16
	Size      uint16

	// Words holds hex words 2 through 9; Words[0] is word 2.
	Words [srcHexWords]uint32

	ASCII [srcASCIISize]byte

	// Callouts is present exactly when Flags has
	// SRCFlagAdditionalSections.
	Callouts *Callouts
}

// SRCOptions describe an SRC built for a BMC-created PEL.
type SRCOptions struct {
	// Type is the two-hex-digit SRC type, 0xBD for BMC errors.
	Type uint8

	// ReasonCode is the four-hex-digit reason code.
	ReasonCode uint16

	// Flags are ORed into the SRC flags byte. SRCFlagAdditionalSections
	// is managed by NewSRC.
	Flags uint8

	// MotherboardCCIN is placed in word 3 when it is exactly four hex
	// digits and silently dropped otherwise.
	MotherboardCCIN string

	// UserWords maps a hex word number (6 through 9) to the
	// additional-data key whose numeric value fills it.
	UserWords map[int]string

	AdditionalData map[string]string

	// Callouts in the order they should appear. Anything past
	// MaxCallouts is dropped.
	Callouts []*Callout
}

// NewSRC builds a primary SRC. Bad word mappings and values are logged
// and skipped; they never fail the PEL.
func NewSRC(options SRCOptions, logger *slog.Logger) *SRC {
	src := &SRC{
		header: SectionHeader{
			ID:          SectionPrimarySRC,
			Version:     srcSectionVersion,
			ComponentID: BMCComponentID,
		},
		Version:   srcVersion,
		Flags:     options.Flags &^ SRCFlagAdditionalSections,
		WordCount: srcWordCount,
	}

	src.setWord(2, srcBMCFormat)
	if ccin, ok := parseCCIN(options.MotherboardCCIN); ok {
		src.setWord(3, src.Word(3)|uint32(ccin)<<16)
	}

	for wordNumber, key := range options.UserWords {
		if wordNumber < srcFirstUserWord || wordNumber > srcLastUserWord {
			logger.Debug("skipping SRC word mapping outside the user-defined range",
				"word", wordNumber,
				"key", key,
			)
			continue
		}
		value, ok := options.AdditionalData[key]
		if !ok {
			continue
		}
		number, err := strconv.ParseUint(strings.TrimSpace(value), 0, 32)
		if err != nil {
			logger.Warn("additional data value for SRC word is not a number",
				"word", wordNumber,
				"key", key,
				"value", value,
			)
			continue
		}
		src.setWord(wordNumber, uint32(number))
	}

	ascii := fmt.Sprintf("%02X%04X", options.Type, options.ReasonCode)
	copy(src.ASCII[:], ascii+strings.Repeat(" ", srcASCIISize-len(ascii)))

	if len(options.Callouts) > MaxCallouts {
		logger.Warn("dropping callouts beyond the SRC limit",
			"callouts", len(options.Callouts),
			"limit", MaxCallouts,
		)
	}
	if len(options.Callouts) > 0 {
		src.Callouts = NewCallouts(options.Callouts)
		src.Flags |= SRCFlagAdditionalSections
	}

	src.Size = uint16(src.bodySize())
	src.header.Size = uint16(src.FlattenedSize())
	return src
}

// parseCCIN accepts exactly four hex digits.
func parseCCIN(text string) (uint16, bool) {
	if len(text) != 4 {
		return 0, false
	}
	value, err := strconv.ParseUint(text, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(value), true
}

func parseSRC(header SectionHeader, r *reader) (*SRC, error) {
	src := &SRC{header: header}
	src.Version = r.u8()
	src.Flags = r.u8()
	src.Reserved1 = r.u8()
	src.WordCount = r.u8()
	src.Reserved2 = r.u16()
	src.Size = r.u16()
	for i := range src.Words {
		src.Words[i] = r.u32()
	}
	r.fill(src.ASCII[:])
	if r.err != nil {
		return nil, r.err
	}
	if src.Flags&SRCFlagAdditionalSections != 0 {
		callouts, err := parseCallouts(r)
		if err != nil {
			return nil, fmt.Errorf("callouts: %w", err)
		}
		src.Callouts = callouts
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return src, nil
}

// Word returns hex word n, for n from 2 through 9. Other values
// return 0.
func (s *SRC) Word(n int) uint32 {
	if n < srcFirstHexWordNum || n > srcFirstHexWordNum+srcHexWords-1 {
		return 0
	}
	return s.Words[n-srcFirstHexWordNum]
}

func (s *SRC) setWord(n int, value uint32) {
	s.Words[n-srcFirstHexWordNum] = value
}

// ReferenceCode returns the ASCII string with its space padding
// removed, for example "BD8D1002".
func (s *SRC) ReferenceCode() string {
	return strings.TrimRight(cString(s.ASCII[:]), " ")
}

// CalloutList returns the callouts, or nil.
func (s *SRC) CalloutList() []*Callout {
	if s.Callouts == nil {
		return nil
	}
	return s.Callouts.Callouts
}

func (s *SRC) bodySize() int {
	size := srcBaseSize
	if s.Callouts != nil {
		size += s.Callouts.FlattenedSize()
	}
	return size
}

func (s *SRC) Header() SectionHeader { return s.header }

func (s *SRC) FlattenedSize() int { return SectionHeaderSize + s.bodySize() }

func (s *SRC) Flatten() []byte {
	return flattenWith(s.header, func(w *writer) {
		w.u8(s.Version)
		w.u8(s.Flags)
		w.u8(s.Reserved1)
		w.u8(s.WordCount)
		w.u16(s.Reserved2)
		w.u16(s.Size)
		for _, word := range s.Words {
			w.u32(word)
		}
		w.bytes(s.ASCII[:])
		if s.Callouts != nil {
			s.Callouts.write(w)
		}
	})
}

func (s *SRC) Valid() bool {
	return (s.header.ID == SectionPrimarySRC || s.header.ID == SectionSecondarySRC) &&
		int(s.header.Size) == s.FlattenedSize() &&
		s.Version == srcVersion &&
		(s.Callouts != nil) == (s.Flags&SRCFlagAdditionalSections != 0)
}

func (*SRC) sealed() {}
