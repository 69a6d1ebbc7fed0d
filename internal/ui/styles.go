package ui

import "github.com/charmbracelet/lipgloss"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#25A065"))

	RuleStyle = lipgloss.NewStyle().
			Foreground(subtle)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Italic(true)

	KeyStyle = lipgloss.NewStyle().
			Foreground(highlight)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)
