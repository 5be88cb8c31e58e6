// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import "fmt"

// Summary is a flat, printable view of a PEL for tooling and the
// control socket.
type Summary struct {
	ID            string            `json:"pel_id"`
	OBMCID        uint32            `json:"obmc_id"`
	PLID          string            `json:"plid"`
	Valid         bool              `json:"valid"`
	Creator       string            `json:"creator"`
	CommitTime    string            `json:"commit_time"`
	Severity      Severity          `json:"severity"`
	Serviceable   bool              `json:"serviceable"`
	ActionFlags   []string          `json:"action_flags,omitempty"`
	HostState     TransmissionState `json:"host_state"`
	HMCState      TransmissionState `json:"hmc_state"`
	Subsystem     string            `json:"subsystem"`
	EventType     string            `json:"event_type"`
	ReferenceCode string            `json:"reference_code,omitempty"`
	HexWords      []string          `json:"hex_words,omitempty"`
	Callouts      []CalloutSummary  `json:"callouts,omitempty"`
	SymptomID     string            `json:"symptom_id,omitempty"`
	Sections      []SectionSummary  `json:"sections"`
	Size          int               `json:"size"`
}

// CalloutSummary describes one callout.
type CalloutSummary struct {
	Priority     string `json:"priority"`
	LocationCode string `json:"location_code,omitempty"`
	Kind         string `json:"kind,omitempty"`
	PartNumber   string `json:"part_number,omitempty"`
	CCIN         string `json:"ccin,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// SectionSummary describes one section header.
type SectionSummary struct {
	ID          string `json:"id"`
	Size        int    `json:"size"`
	Version     uint8  `json:"version"`
	Subtype     uint8  `json:"subtype"`
	ComponentID string `json:"component_id"`
	Valid       bool   `json:"valid"`
}

// Summarize builds a Summary. It works on invalid PELs too, reporting
// whatever could be decoded.
func (p *PEL) Summarize() Summary {
	summary := Summary{
		ID:          fmt.Sprintf("0x%08X", p.ID()),
		OBMCID:      p.OBMCID(),
		PLID:        fmt.Sprintf("0x%08X", p.PLID()),
		Valid:       p.Valid(),
		Creator:     p.Creator().String(),
		CommitTime:  p.CommitTime().String(),
		Severity:    p.Severity(),
		Serviceable: IsServiceable(p.Severity(), p.ActionFlags()),
		ActionFlags: p.ActionFlags().Names(),
		HostState:   p.HostState(),
		HMCState:    p.HMCState(),
		Size:        p.Size(),
	}
	if userHeader := p.UserHeader(); userHeader != nil {
		summary.Subsystem = fmt.Sprintf("0x%02X", userHeader.Subsystem)
		summary.EventType = fmt.Sprintf("0x%02X", userHeader.EventType)
	}
	if src := p.PrimarySRC(); src != nil {
		summary.ReferenceCode = src.ReferenceCode()
		for n := 2; n <= 9; n++ {
			summary.HexWords = append(summary.HexWords, fmt.Sprintf("%08X", src.Word(n)))
		}
		for _, callout := range src.CalloutList() {
			calloutSummary := CalloutSummary{
				Priority:     callout.Priority.String(),
				LocationCode: callout.LocationCode.String(),
			}
			if callout.FRU != nil {
				calloutSummary.Kind = callout.FRU.Variant().String()
				calloutSummary.PartNumber = callout.FRU.PartNumber.String()
				calloutSummary.CCIN = callout.FRU.CCIN.String()
				calloutSummary.SerialNumber = callout.FRU.SerialNumber.String()
			}
			summary.Callouts = append(summary.Callouts, calloutSummary)
		}
	}
	if extended := p.ExtendedUserHeader(); extended != nil {
		summary.SymptomID = extended.SymptomID.String()
	}
	for _, section := range p.sections {
		header := section.Header()
		sectionSummary := SectionSummary{
			ID:          header.ID.String(),
			Size:        section.FlattenedSize(),
			Version:     header.Version,
			Subtype:     header.Subtype,
			ComponentID: fmt.Sprintf("0x%04X", header.ComponentID),
			Valid:       section.Valid(),
		}
		if generic, ok := section.(*Generic); ok && generic.Headerless() {
			sectionSummary.ID = "trailing"
		}
		summary.Sections = append(summary.Sections, sectionSummary)
	}
	return summary
}
