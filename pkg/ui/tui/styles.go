package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Palette matching the game's dark theme
	gold      = lipgloss.Color("#F5C542")
	teal      = lipgloss.Color("#4BC0C0")
	coral     = lipgloss.Color("#FF6384")
	green     = lipgloss.Color("#39D98A")
	orange    = lipgloss.Color("#FF9F40")
	gray700   = lipgloss.Color("#374151")
	gray300   = lipgloss.Color("#D1D5DB")
	dimGray   = lipgloss.Color("#6B7280")
	panelBack = lipgloss.Color("#111827")

	titleStyle = lipgloss.NewStyle().
			Background(gold).
			Foreground(panelBack).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(gray700).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(gray300)

	valueStyle = lipgloss.NewStyle().
			Foreground(gold).
			Bold(true)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(dimGray).
				Italic(true)

	historyLineStyle = lipgloss.NewStyle().
				Foreground(teal)

	soldLineStyle = lipgloss.NewStyle().
			Foreground(coral)

	errorStyle = lipgloss.NewStyle().
			Foreground(coral).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(orange)

	successStyle = lipgloss.NewStyle().
			Foreground(green)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(dimGray)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			Padding(1, 0, 0, 1)
)

// levelStyle picks the log line style for a level
func levelStyle(level string) lipgloss.Style {
	switch level {
	case "ERROR":
		return errorStyle
	case "WARN":
		return warningStyle
	case "SUCCESS":
		return successStyle
	default:
		return labelStyle
	}
}
