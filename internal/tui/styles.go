package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	greenColor   = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")
	surfaceColor = lipgloss.Color("#1F2937")
	textColor    = lipgloss.Color("#F9FAFB")
	borderColor  = lipgloss.Color("#6B7280")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(borderColor).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	panelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	leafStyle     = lipgloss.NewStyle().Foreground(greenColor)
	stateStyle    = lipgloss.NewStyle().Foreground(textColor).Bold(true)
	wildcardStyle = lipgloss.NewStyle().Foreground(warningColor)
	faultStyle    = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle    = lipgloss.NewStyle().Foreground(mutedColor)

	statusBar = lipgloss.NewStyle().
			Foreground(textColor).
			Background(surfaceColor).
			Padding(0, 1)

	helpBar = lipgloss.NewStyle().
		Foreground(mutedColor).
		MarginTop(1)

	helpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(greenColor)
)
