package ui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorPrimary = lipgloss.Color("#7C3AED") // Purple
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorDanger  = lipgloss.Color("#EF4444") // Red
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorWarning = lipgloss.Color("#F59E0B") // Amber
)

// Shared styles for command output. None of them pad, so plain-text output
// stays line-for-line identical when color is unavailable.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	passStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSuccess)

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDanger)

	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWarning)

	// Secondary info: details, paths, hints.
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	nameStyle = lipgloss.NewStyle().
			Bold(true)
)
