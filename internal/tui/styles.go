package tui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	bearingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	controlStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	entryStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color("39"))
)
