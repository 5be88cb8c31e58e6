// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import "testing"

func TestIsServiceable(t *testing.T) {
	tests := []struct {
		severity Severity
		hidden   bool
		want     bool
	}{
		{SeverityNonError, false, false},
		{SeverityNonError, true, false},
		{SeverityRecovered, false, true},
		{SeverityRecovered, true, false},
		{SeverityPredictive, false, true},
		{SeverityPredictiveRedundancyLoss, true, true},
		{SeverityUnrecoverable, false, true},
		{SeverityUnrecoverableLossOfFunction, true, true},
		{SeverityCritical, false, true},
		{SeverityCriticalFunctionLoss, true, true},
		{SeverityDiagnosticError, false, false},
		{SeverityResourceError, false, false},
		{SeveritySymptom, false, false},
		{SeveritySymptomRecovered, false, true},
		{SeveritySymptomRecovered, true, false},
		{SeveritySymptomPredictive, true, true},
		{SeveritySymptomUnrecoverable, true, true},
		{SeveritySymptomCritical, true, true},
		{SeveritySymptomDiagnostic, false, false},
		// Undefined low nibbles still classify by type.
		{Severity(0x2F), false, true},
		{Severity(0x1F), false, true},
		{Severity(0x1F), true, false},
	}
	for _, test := range tests {
		flags := ActionReport
		if test.hidden {
			flags |= ActionHidden
		}
		if got := IsServiceable(test.severity, flags); got != test.want {
			t.Errorf("IsServiceable(%v, hidden=%v) = %v, want %v", test.severity, test.hidden, got, test.want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		text    string
		want    Severity
		wantErr bool
	}{
		{"predictive_degraded", SeverityPredictiveDegraded, false},
		{"symptom_recovered", SeveritySymptomRecovered, false},
		{"0x45", SeverityUnrecoverableRedundancyLossDegraded, false},
		{"0X10", SeverityRecovered, false},
		{"catastrophic", 0, true},
		{"0x123", 0, true},
	}
	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			got, err := ParseSeverity(test.text)
			if (err != nil) != test.wantErr {
				t.Fatalf("ParseSeverity(%q) error = %v, wantErr %v", test.text, err, test.wantErr)
			}
			if got != test.want {
				t.Errorf("ParseSeverity(%q) = %v, want %v", test.text, got, test.want)
			}
		})
	}
}

func TestSeverityNamesRoundTrip(t *testing.T) {
	for severity, name := range severityNames {
		parsed, err := ParseSeverity(name)
		if err != nil || parsed != severity {
			t.Errorf("ParseSeverity(%q) = %v, %v; want %v", name, parsed, err, severity)
		}
	}
}

func TestActionFlags(t *testing.T) {
	flags, err := ParseActionFlags([]string{"service_action", "report", "call_home"})
	if err != nil {
		t.Fatalf("ParseActionFlags: %v", err)
	}
	if flags != 0xA800 {
		t.Errorf("flags = %v, want 0xA800", flags)
	}
	names := flags.Names()
	if len(names) != 3 || names[0] != "service_action" || names[2] != "call_home" {
		t.Errorf("Names() = %v", names)
	}
	if _, err := ParseActionFlags([]string{"page_operator"}); err == nil {
		t.Error("ParseActionFlags accepted an unknown flag")
	}
}

func TestTransmissionStateText(t *testing.T) {
	for _, state := range []TransmissionState{TransmissionNew, TransmissionSent, TransmissionAcked, TransmissionBadPEL} {
		text, err := state.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		var decoded TransmissionState
		if err := decoded.UnmarshalText(text); err != nil || decoded != state {
			t.Errorf("round trip of %v gave %v, %v", state, decoded, err)
		}
	}
	if err := new(TransmissionState).UnmarshalText([]byte("lost")); err == nil {
		t.Error("UnmarshalText accepted an unknown state")
	}
}
