// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"strings"

	"github.com/noldarim/taskfeed/internal/taskevents"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Color palette
	PrimaryColor   = lipgloss.Color("#7C3AED")
	SecondaryColor = lipgloss.Color("#A78BFA")
	AccentColor    = lipgloss.Color("#10B981")
	TextColor      = lipgloss.Color("#F3F4F6")
	MutedColor     = lipgloss.Color("#9CA3AF")
	BorderColor    = lipgloss.Color("#4B5563")
	ErrorColor     = lipgloss.Color("#EF4444")
	WarningColor   = lipgloss.Color("#F59E0B")
	InfoColor      = lipgloss.Color("75")
)

var (
	// Header styles
	HeaderStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(PrimaryColor).
			Bold(true).
			PaddingLeft(1).
			PaddingRight(1)

	BreadcrumbStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Connection indicator
	ConnectedStyle = lipgloss.NewStyle().
			Foreground(AccentColor).
			Bold(true)

	DisconnectedStyle = lipgloss.NewStyle().
				Foreground(MutedColor)

	StatsStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	FooterStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(BorderColor).
			PaddingLeft(1).
			PaddingRight(1)

	HelpTextStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)
)

// LevelStyle returns the foreground style for an event severity.
func LevelStyle(level taskevents.Level) lipgloss.Style {
	switch level {
	case taskevents.LevelSuccess:
		return lipgloss.NewStyle().Foreground(AccentColor)
	case taskevents.LevelWarning:
		return lipgloss.NewStyle().Foreground(WarningColor)
	case taskevents.LevelError:
		return lipgloss.NewStyle().Foreground(ErrorColor)
	default:
		return lipgloss.NewStyle().Foreground(InfoColor)
	}
}

// HelpEntry renders "key label" for the footer.
func HelpEntry(key, label string) string {
	return HelpKeyStyle.Render(key) + " " + HelpTextStyle.Render(label)
}

// GetDivider returns a horizontal divider of the specified width
func GetDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(BorderColor).
		Render(strings.Repeat("─", width))
}
