package ui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Normal   lipgloss.Style
	Selected lipgloss.Style
	Today    lipgloss.Style
	Weekend  lipgloss.Style
	Header   lipgloss.Style
	Event    lipgloss.Style
	Closed   lipgloss.Style
	Error    lipgloss.Style
	Help     lipgloss.Style
	Message  lipgloss.Style
	Border   lipgloss.Style
	Label    lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("235")).
			Background(lipgloss.Color("220")).
			Bold(true),
		Today: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true),
		Weekend: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")),
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true).
			Underline(true),
		Event: lipgloss.NewStyle().
			Foreground(lipgloss.Color("40")),
		Closed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Strikethrough(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Message: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("117")).
			Bold(true),
	}
}
