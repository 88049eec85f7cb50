package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette, trimmed from hydraidectl's observe TUI palette.
// errorColor is defined but not used by any style.
var (
	primaryColor   = lipgloss.Color("#7D56F4")
	secondaryColor = lipgloss.Color("#5A9CF7")
	successColor   = lipgloss.Color("#73F59F")
	errorColor     = lipgloss.Color("#FF6B6B")
	mutedColor     = lipgloss.Color("#626262")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(secondaryColor).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Padding(0, 2)

	eventRowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(12)

	durationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			Width(10).
			Align(lipgloss.Right)

	reasonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor).
			Width(10)

	collectedStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Width(10).
			Align(lipgloss.Right)

	statLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	statValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFE066")).
			Background(lipgloss.Color("#3d3d00")).
			Padding(0, 1)

	liveStyle = lipgloss.NewStyle().
			Foreground(successColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)
