package chatui

import "github.com/charmbracelet/lipgloss"

// Palette shared by every chat view element.
var (
	salmonPink  = lipgloss.Color("#FFB3BA")
	coralPink   = lipgloss.Color("#FFCCCB")
	mintGreen   = lipgloss.Color("#A8E6CF")
	mutedGray   = lipgloss.Color("#6B7280")
	brightWhite = lipgloss.Color("#F9FAFB")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	tipsStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	userStyle = lipgloss.NewStyle().
			Foreground(coralPink).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Bold(true)

	replyStyle = lipgloss.NewStyle().
			Foreground(brightWhite)

	thinkingStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)
)
