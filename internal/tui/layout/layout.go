// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	// MinimumWidth is the minimum terminal width required
	MinimumWidth = 40
	// MinimumHeight fits header, footer and a few feed lines
	MinimumHeight = 8
)

// HelpItem represents a single help entry
type HelpItem struct {
	Key         string
	Description string
}

// Frame is one screen: a header with status, a stats line, a body and a
// help footer.
type Frame struct {
	Title       string
	Breadcrumbs []string
	Status      []string
	Stats       string
	Body        string
	Help        []HelpItem
}

func (f Frame) header(width int) string {
	parts := []string{HeaderStyle.Render(f.Title)}
	if len(f.Breadcrumbs) > 0 {
		parts = append(parts, BreadcrumbStyle.Render(strings.Join(f.Breadcrumbs, " / ")))
	}
	parts = append(parts, f.Status...)

	return strings.Join([]string{
		strings.Join(parts, " "),
		StatsStyle.Render(f.Stats),
		GetDivider(width),
	}, "\n")
}

func (f Frame) footer(width int) string {
	help := make([]string, 0, len(f.Help))
	for _, item := range f.Help {
		help = append(help, HelpEntry(item.Key, item.Description))
	}
	style := FooterStyle
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(strings.Join(help, "  "))
}

// BodyHeight returns the lines left for the body at the given size. It is
// at least 1.
func (f Frame) BodyHeight(width, height int) int {
	h := height - lipgloss.Height(f.header(width)) - lipgloss.Height(f.footer(width))
	if h < 1 {
		return 1
	}
	return h
}

// Render lays the frame out in width x height. A zero size renders the
// parts stacked without sizing; a size below the minimum renders a notice.
func (f Frame) Render(width, height int) string {
	header := f.header(width)
	footer := f.footer(width)

	if width == 0 || height == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, f.Body, footer)
	}
	if width < MinimumWidth || height < MinimumHeight {
		return renderSpaceError(width, height)
	}

	// MaxHeight enforces the ceiling, Height pads short bodies.
	bodyHeight := f.BodyHeight(width, height)
	body := lipgloss.NewStyle().
		Width(width).
		MaxHeight(bodyHeight).
		Height(bodyHeight).
		Align(lipgloss.Left, lipgloss.Top).
		Render(f.Body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// renderSpaceError renders an error message when terminal is too small
func renderSpaceError(width, height int) string {
	style := lipgloss.NewStyle().
		Foreground(ErrorColor).
		Bold(true).
		Align(lipgloss.Center, lipgloss.Center).
		Width(width).
		Height(height)

	return style.Render(strings.Join([]string{
		"Terminal too small",
		fmt.Sprintf("Current: %dx%d", width, height),
		fmt.Sprintf("Minimum: %dx%d", MinimumWidth, MinimumHeight),
	}, "\n"))
}
