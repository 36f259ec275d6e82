package styles

import (
	"github.com/allbin/sergw/internal/bridge"
	"github.com/charmbracelet/lipgloss"
)

// Catppuccin Mocha palette
var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Surface2 = lipgloss.Color("#585b70")
	Overlay0 = lipgloss.Color("#6c7086")
	Subtext0 = lipgloss.Color("#a6adc8")
	Subtext1 = lipgloss.Color("#bac2de")
	Text     = lipgloss.Color("#cdd6f4")

	Blue   = lipgloss.Color("#89b4fa")
	Sky    = lipgloss.Color("#89dceb")
	Teal   = lipgloss.Color("#94e2d5")
	Green  = lipgloss.Color("#a6e3a1")
	Yellow = lipgloss.Color("#f9e2af")
	Peach  = lipgloss.Color("#fab387")
	Red    = lipgloss.Color("#f38ba8")
	Mauve  = lipgloss.Color("#cba6f7")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Mauve).
			Background(Surface0).
			Padding(0, 1)

	ActiveTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Base).
			Background(Mauve).
			Padding(0, 1)

	InactiveTabStyle = lipgloss.NewStyle().
				Foreground(Subtext0).
				Background(Surface0).
				Padding(0, 1)

	// Bordered panel with a title rendered by PanelTitleStyle
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Surface2).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Blue)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(Surface1)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Surface2).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Surface2).
			Padding(1, 2).
			Margin(1, 0)

	MutedStyle = lipgloss.NewStyle().Foreground(Overlay0)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Red)

	StatusConnectedStyle = lipgloss.NewStyle().
				Foreground(Green).
				Bold(true)

	StatusDisconnectedStyle = lipgloss.NewStyle().
				Foreground(Red).
				Bold(true)

	StatusConnectingStyle = lipgloss.NewStyle().
				Foreground(Yellow).
				Bold(true)
)

// LinkStyle colors a serial link state
func LinkStyle(status bridge.LinkStatus) lipgloss.Style {
	switch status {
	case bridge.Connected:
		return StatusConnectedStyle
	case bridge.Opening:
		return StatusConnectingStyle
	default:
		return StatusDisconnectedStyle
	}
}

// LinkIndicator is the single-glyph form of a link state
func LinkIndicator(status bridge.LinkStatus) string {
	switch status {
	case bridge.Connected:
		return LinkStyle(status).Render("●")
	case bridge.Failed:
		return LinkStyle(status).Render("✗")
	default:
		return LinkStyle(status).Render("○")
	}
}
