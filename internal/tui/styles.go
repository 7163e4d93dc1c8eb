package tui

import "github.com/charmbracelet/lipgloss"

var (
	purple  = lipgloss.Color("#CBA6F7")
	blue    = lipgloss.Color("#89B4FA")
	green   = lipgloss.Color("#A6E3A1")
	red     = lipgloss.Color("#F38BA8")
	yellow  = lipgloss.Color("#F9E2AF")
	txtClr  = lipgloss.Color("#CDD6F4")
	subtext = lipgloss.Color("#A6ADC8")
	overlay = lipgloss.Color("#6C7086")
	surface = lipgloss.Color("#313244")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(purple).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(subtext)

	userMsgStyle = lipgloss.NewStyle().
			Foreground(blue).
			Bold(true)

	assistantMsgStyle = lipgloss.NewStyle().
				Foreground(txtClr)

	errorStyle = lipgloss.NewStyle().
			Foreground(red)

	dimStyle = lipgloss.NewStyle().
			Foreground(overlay)

	labelStyle = lipgloss.NewStyle().
			Foreground(yellow)

	unreadStyle = lipgloss.NewStyle().
			Foreground(green).
			Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(surface).
			Padding(0, 1)

	confirmTitleStyle = lipgloss.NewStyle().
				Foreground(yellow).
				Bold(true)

	selectedChoiceStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1E1E2E")).
				Background(yellow).
				Bold(true).
				Padding(0, 1)

	unselectedChoiceStyle = lipgloss.NewStyle().
				Foreground(subtext).
				Background(surface).
				Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(overlay)
)
