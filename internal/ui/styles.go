package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)

	queryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

	pendingStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)
