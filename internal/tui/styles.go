package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	BorderColor   = lipgloss.Color("#5A5A5A")
	AccentColor   = lipgloss.Color("#00D7FF")
	SelectedColor = lipgloss.Color("#FF6B6B")
	TextColor     = lipgloss.Color("#FFFFFF")
	SubtleColor   = lipgloss.Color("#888888")
	ErrorColor    = lipgloss.Color("#FF5555")
	TypeColor     = lipgloss.Color("#FFB86C")
)

var (
	ActivePaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(AccentColor).
			Padding(0, 1).
			Margin(0, 1)

	TitleBarStyle = lipgloss.NewStyle().
			Padding(0, 2)

	SelectedItemStyle = lipgloss.NewStyle().
				Background(SelectedColor).
				Foreground(TextColor).
				Bold(true)

	ItemStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	SubtleItemStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	SearchBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(AccentColor).
			Padding(0, 1).
			Margin(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
			Background(BorderColor).
			Foreground(TextColor).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(AccentColor).
			Bold(true)

	DataTypeStyle = lipgloss.NewStyle().
			Foreground(TypeColor).
			Italic(true)

	SelectedHeaderStyle = lipgloss.NewStyle().
				Background(AccentColor).
				Foreground(lipgloss.Color("#000000")).
				Bold(true)

	SelectedRowStyle = lipgloss.NewStyle().
				Background(BorderColor).
				Foreground(TextColor)
)
