package components

import (
	"github.com/allbin/sergw/internal/bridge"
	"github.com/allbin/sergw/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

type StatusBar struct {
	target  string
	status  bridge.LinkStatus
	err     error
	details string
	width   int
}

// NewStatusBar renders target (a device path or a bridge address) on the left
func NewStatusBar(target string) *StatusBar {
	return &StatusBar{target: target}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetTarget(target string) {
	sb.target = target
}

func (sb *StatusBar) SetLink(status bridge.LinkStatus, err error) {
	sb.status = status
	sb.err = err
}

// SetDetails sets the right-hand info section, e.g. "115200 8N1 → 127.0.0.1:5656"
func (sb *StatusBar) SetDetails(details string) {
	sb.details = details
}

func (sb *StatusBar) Link() bridge.LinkStatus { return sb.status }

func (sb *StatusBar) Err() error { return sb.err }

// Render draws a full-width bar: mode, target, link indicator, hint | details | timestamp
func (sb *StatusBar) Render(mode, hint, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	modeBg := styles.Blue
	if mode == "INSERT" {
		modeBg = styles.Green
	}
	modeView := lipgloss.NewStyle().
		Foreground(styles.Base).
		Background(modeBg).
		Bold(true).
		Padding(0, 1).
		Render(mode)

	target := lipgloss.NewStyle().
		Foreground(styles.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.target)

	indicator := styles.LinkIndicator(sb.status)

	divider := lipgloss.NewStyle().
		Foreground(styles.Surface2).
		Padding(0, 1).
		Render("│")

	parts := []string{modeView, target, indicator}
	if hint != "" {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(styles.Peach).
			Bold(true).
			Padding(0, 1).
			Render(hint))
	}
	parts = append(parts, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, parts...)

	details := "⚡ " + sb.status.String()
	if sb.details != "" {
		details = "⚡ " + sb.details
	}
	detailsView := lipgloss.NewStyle().
		Foreground(styles.Subtext0).
		Padding(0, 1).
		Render(details)
	timeView := lipgloss.NewStyle().
		Foreground(styles.Subtext1).
		Padding(0, 1).
		Render(timestamp)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, detailsView, divider, timeView)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(styles.Text).
		Background(styles.Surface0).
		Width(terminalWidth).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
