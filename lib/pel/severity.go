// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import (
	"fmt"
	"strings"
)

// Severity is the User Header severity byte. The high nibble is the
// severity type; the low nibble refines it.
type Severity uint8

const (
	SeverityNonError  Severity = 0x00
	SeverityRecovered Severity = 0x10

	SeverityPredictive                    Severity = 0x20
	SeverityPredictiveDegraded            Severity = 0x21
	SeverityPredictiveCorrectable         Severity = 0x22
	SeverityPredictiveCorrectableDegraded Severity = 0x23
	SeverityPredictiveRedundancyLoss      Severity = 0x24

	SeverityUnrecoverable                       Severity = 0x40
	SeverityUnrecoverableDegraded               Severity = 0x41
	SeverityUnrecoverableRedundancyLoss         Severity = 0x44
	SeverityUnrecoverableRedundancyLossDegraded Severity = 0x45
	SeverityUnrecoverableLossOfFunction         Severity = 0x48

	SeverityCritical                     Severity = 0x50
	SeverityCriticalSystemTermination    Severity = 0x51
	SeverityCriticalFunctionLossImminent Severity = 0x52
	SeverityCriticalFunctionLoss         Severity = 0x53

	SeverityDiagnosticError Severity = 0x60
	SeverityResourceError   Severity = 0x61

	SeveritySymptom              Severity = 0x70
	SeveritySymptomRecovered     Severity = 0x71
	SeveritySymptomPredictive    Severity = 0x72
	SeveritySymptomUnrecoverable Severity = 0x74
	SeveritySymptomCritical      Severity = 0x75
	SeveritySymptomDiagnostic    Severity = 0x76
)

// severityNames maps each defined severity to its registry name.
var severityNames = map[Severity]string{
	SeverityNonError:  "non_error",
	SeverityRecovered: "recovered",

	SeverityPredictive:                    "predictive",
	SeverityPredictiveDegraded:            "predictive_degraded",
	SeverityPredictiveCorrectable:         "predictive_correctable",
	SeverityPredictiveCorrectableDegraded: "predictive_correctable_degraded",
	SeverityPredictiveRedundancyLoss:      "predictive_redundancy_loss",

	SeverityUnrecoverable:                       "unrecoverable",
	SeverityUnrecoverableDegraded:               "unrecoverable_degraded",
	SeverityUnrecoverableRedundancyLoss:         "unrecoverable_redundancy_loss",
	SeverityUnrecoverableRedundancyLossDegraded: "unrecoverable_redundancy_loss_degraded",
	SeverityUnrecoverableLossOfFunction:         "unrecoverable_loss_of_function",

	SeverityCritical:                     "critical",
	SeverityCriticalSystemTermination:    "critical_system_term",
	SeverityCriticalFunctionLossImminent: "critical_imminent_failure",
	SeverityCriticalFunctionLoss:         "critical_function_loss",

	SeverityDiagnosticError: "diagnostic_error",
	SeverityResourceError:   "resource_error",

	SeveritySymptom:              "symptom",
	SeveritySymptomRecovered:     "symptom_recovered",
	SeveritySymptomPredictive:    "symptom_predictive",
	SeveritySymptomUnrecoverable: "symptom_unrecoverable",
	SeveritySymptomCritical:      "symptom_critical",
	SeveritySymptomDiagnostic:    "symptom_diag_err",
}

// Type returns the high nibble: the severity class.
func (s Severity) Type() Severity {
	return s & 0xF0
}

// Name returns the registry name, or "" for an undefined value.
func (s Severity) Name() string {
	return severityNames[s]
}

// String returns the registry name, falling back to hex.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint8(s))
}

// MarshalText encodes the severity as its registry name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a registry name or a 0x-prefixed hex byte.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity accepts a registry name ("predictive_degraded") or a
// 0x-prefixed hex byte.
func ParseSeverity(text string) (Severity, error) {
	for severity, name := range severityNames {
		if name == text {
			return severity, nil
		}
	}
	var value uint8
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		if _, err := fmt.Sscanf(text[2:], "%x", &value); err == nil && len(text) <= 4 {
			return Severity(value), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", text)
}

// IsServiceable reports whether a PEL with this severity and these
// action flags belongs to a serviceable pruning category rather than
// an informational one.
func IsServiceable(severity Severity, flags ActionFlags) bool {
	switch severity.Type() {
	case SeverityPredictive, SeverityUnrecoverable, SeverityCritical:
		return true
	}

	name := severity.Name()
	if (severity.Type() == SeverityRecovered || name == "symptom_recovered") &&
		!flags.Has(ActionHidden) {
		return true
	}

	switch name {
	case "symptom_predictive", "symptom_unrecoverable", "symptom_critical":
		return true
	}
	return false
}
