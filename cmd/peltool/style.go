// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/pel/lib/pel"
)

var (
	criticalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	serviceableStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	informationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// renderSeverity returns the severity name, coloured by how urgently
// it needs service when styling is enabled.
func (a *app) renderSeverity(severity pel.Severity, serviceable bool) string {
	name := severity.String()
	if !a.styled {
		return name
	}
	switch {
	case severity.Type() == pel.SeverityCritical:
		return criticalStyle.Render(name)
	case serviceable:
		return serviceableStyle.Render(name)
	default:
		return informationStyle.Render(name)
	}
}
