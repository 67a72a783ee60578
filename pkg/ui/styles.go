package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	userLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	aiLabelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	bubbleStyle    = lipgloss.NewStyle().PaddingLeft(2)

	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")).PaddingLeft(2)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Align(lipgloss.Center)
)
