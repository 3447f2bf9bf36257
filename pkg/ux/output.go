// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the webscan CLI: the
// scan banner, streamed progress lines, and the findings report.
package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Severity colors follow the conventional
// red/orange/gold/blue ramp so reports read at a glance.
var (
	ColorPrimary = lipgloss.Color("#2CD7C7")
	ColorMuted   = lipgloss.Color("#2C4A54")

	ColorCritical = lipgloss.Color("#E74C3C")
	ColorHigh     = lipgloss.Color("#E67E22")
	ColorMedium   = lipgloss.Color("#F4D03F")
	ColorLow      = lipgloss.Color("#5DADE2")
	ColorInfo     = lipgloss.Color("#85929E")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	Banner lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
	Subtitle: lipgloss.NewStyle().Foreground(ColorPrimary),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorMuted),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),

	Banner: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(0, 1),
}

// severityStyles maps finding severities to their display styles.
var severityStyles = map[string]lipgloss.Style{
	"CRITICAL": lipgloss.NewStyle().Bold(true).Foreground(ColorCritical),
	"HIGH":     lipgloss.NewStyle().Foreground(ColorHigh),
	"MEDIUM":   lipgloss.NewStyle().Foreground(ColorMedium),
	"LOW":      lipgloss.NewStyle().Foreground(ColorLow),
	"INFO":     lipgloss.NewStyle().Foreground(ColorInfo),
}

// SeverityBadge renders a fixed-width, severity-colored label.
func SeverityBadge(severity string) string {
	style, ok := severityStyles[severity]
	if !ok {
		style = Styles.Muted
	}
	return style.Render(fmt.Sprintf("%-8s", severity))
}

// Banner renders the boxed scan header.
func Banner(text string) string {
	return Styles.Banner.Render(text)
}

// EventLine renders one streamed progress event.
func EventLine(level, phase, message string) string {
	marker := Styles.Muted.Render("•")
	switch level {
	case "SUCCESS":
		marker = Styles.Success.Render("✓")
	case "WARNING":
		marker = Styles.Warning.Render("⚠")
	case "ERROR":
		marker = Styles.Error.Render("✗")
	}
	if phase != "" {
		return fmt.Sprintf("%s %s %s", marker, Styles.Muted.Render(strings.ToLower(phase)), message)
	}
	return fmt.Sprintf("%s %s", marker, message)
}

// FindingLine renders one finding row of the report.
func FindingLine(severity, name, location string) string {
	return fmt.Sprintf("  %s %s  %s",
		SeverityBadge(severity), Styles.Bold.Render(name), Styles.Muted.Render(location))
}

// ScoreLine renders the score summary row.
func ScoreLine(score, grade, riskBand string) string {
	gradeStyle := Styles.Success
	switch riskBand {
	case "MEDIUM":
		gradeStyle = Styles.Warning
	case "HIGH", "CRITICAL":
		gradeStyle = Styles.Error
	}
	return fmt.Sprintf("%s %s  %s %s  %s %s",
		Styles.Subtitle.Render("Score"), Styles.Bold.Render(score),
		Styles.Subtitle.Render("Grade"), gradeStyle.Render(grade),
		Styles.Subtitle.Render("Risk"), gradeStyle.Render(riskBand))
}

// StatusLine renders a terminal status with its reason.
func StatusLine(status, reason string) string {
	style := Styles.Success
	if status == "FAILED" {
		style = Styles.Error
	}
	if reason == "" {
		return style.Render(status)
	}
	return fmt.Sprintf("%s %s", style.Render(status), Styles.Muted.Render(reason))
}
