package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#5A56E0")).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5A56E0")).Bold(true)
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	modeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	inspectStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
)
