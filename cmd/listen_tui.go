/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/allbin/sergw/internal/bridge"
	"github.com/allbin/sergw/internal/metrics"
	"github.com/allbin/sergw/internal/tui/components"
	"github.com/allbin/sergw/internal/tui/keys"
	"github.com/allbin/sergw/internal/tui/models"
	"github.com/allbin/sergw/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const listenRefresh = 250 * time.Millisecond

type listenTab int

const (
	tabOverview listenTab = iota
	tabInspector
)

type bridgeEventMsg bridge.Event

type listenTickMsg time.Time

func listenTick() tea.Cmd {
	return tea.Tick(listenRefresh, func(t time.Time) tea.Msg { return listenTickMsg(t) })
}

// listenModel represents the Bubble Tea model for the listen command
type listenModel struct {
	*models.BridgeModel
	b         *bridge.Bridge
	tab       listenTab
	eventLog  *components.Terminal
	inspector *components.Terminal
	clients   *components.ConnectionsTable
	statusBar *components.StatusBar
	help      help.Model
	keys      keys.ListenKeys
	width     int
	height    int
	ready     bool
}

func newListenModel(b *bridge.Bridge) *listenModel {
	cfg := b.Config()
	m := &listenModel{
		BridgeModel: models.NewBridgeModel(cfg.Device, cfg.Serial.String(), cfg.Listen),
		b:           b,
		eventLog:    components.NewTerminal(80, 10),
		inspector:   components.NewTerminal(80, 20),
		clients:     components.NewConnectionsTable(),
		statusBar:   components.NewStatusBar(cfg.Device),
		help:        help.New(),
		keys:        keys.NewListenKeys(),
	}
	m.SetLink(b.LinkState())
	return m
}

func runListenTUI(ctx context.Context, b *bridge.Bridge, sub *bridge.Subscription) error {
	defer sub.Close()

	m := newListenModel(b)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Quit()
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				p.Send(bridgeEventMsg(ev))
			}
		}
	}()

	_, err := p.Run()
	return err
}

func (m *listenModel) Init() tea.Cmd {
	return listenTick()
}

func (m *listenModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()

	case bridgeEventMsg:
		m.Apply(bridge.Event(msg))

	case listenTickMsg:
		now := time.Time(msg)
		m.SetLink(m.b.LinkState())
		if addr := m.b.Addr(); addr != nil {
			m.SetListen(addr.String())
		}
		m.SetClients(m.b.Clients())
		m.Tick(now)
		m.refresh(now)
		return m, listenTick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.layout()

		case key.Matches(msg, m.keys.NextTab):
			if m.tab == tabOverview {
				m.tab = tabInspector
			} else {
				m.tab = tabOverview
			}
			m.refresh(time.Now())

		case key.Matches(msg, m.keys.Format):
			m.CycleFormat()
			m.refresh(time.Now())

		case key.Matches(msg, m.keys.Pause):
			m.TogglePause()

		case key.Matches(msg, m.keys.PrevDevice):
			m.PrevSource()
			m.refresh(time.Now())

		case key.Matches(msg, m.keys.NextDevice):
			m.NextSource()
			m.refresh(time.Now())

		case key.Matches(msg, m.keys.Clear):
			if m.tab == tabInspector {
				m.ClearCapture()
				m.inspector.Clear()
			} else {
				m.ClearEvents()
				m.eventLog.Clear()
			}

		case key.Matches(msg, m.keys.Up):
			m.activeLog().ScrollUp(1)

		case key.Matches(msg, m.keys.Down):
			m.activeLog().ScrollDown(1)

		case key.Matches(msg, m.keys.GotoBottom):
			m.activeLog().Follow()
		}
	}

	return m, nil
}

func (m *listenModel) activeLog() *components.Terminal {
	if m.tab == tabInspector {
		return m.inspector
	}
	return m.eventLog
}

// Fixed rows: tab bar, content border, status bar
const listenChromeHeight = 3

// Overview rows above the event log: summary panel, table, log title
const (
	summaryHeight = 6
	tableHeight   = 8
)

func (m *listenModel) layout() {
	if !m.ready {
		return
	}
	body := m.height - listenChromeHeight
	if m.help.ShowAll {
		body -= lipgloss.Height(m.helpView())
	}

	m.statusBar.SetWidth(m.width)
	m.help.Width = m.width
	m.clients.SetSize(m.width, tableHeight)
	m.eventLog.SetSize(m.width, max(body-summaryHeight-tableHeight-1, 1))
	m.inspector.SetSize(m.width, max(body-1, 1))
}

// refresh re-renders the line views from the model. Only the visible tab
// is formatted.
func (m *listenModel) refresh(now time.Time) {
	m.clients.SetClients(m.Clients(), now)

	if m.tab == tabInspector {
		m.inspector.SetLines(m.FormattedCapture())
		return
	}

	entries := m.EventLog()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = formatLogEntry(e)
	}
	m.eventLog.SetLines(lines)
}

func formatLogEntry(e models.LogEntry) string {
	ts := styles.MutedStyle.Render(e.Time.Format("15:04:05"))
	text := lipgloss.NewStyle().Foreground(styles.Text)
	switch e.Level {
	case models.LogWarn:
		text = text.Foreground(styles.Yellow)
	case models.LogError:
		text = text.Foreground(styles.Red)
	}
	return ts + " " + text.Render(e.Text)
}

func (m *listenModel) tabBar() string {
	names := []string{"Overview", "Inspector"}
	tabs := make([]string, len(names))
	for i, name := range names {
		if listenTab(i) == m.tab {
			tabs[i] = styles.ActiveTabStyle.Render(name)
		} else {
			tabs[i] = styles.InactiveTabStyle.Render(name)
		}
	}
	title := styles.TitleStyle.Render("sergw")
	return lipgloss.JoinHorizontal(lipgloss.Left, append([]string{title, " "}, tabs...)...)
}

func (m *listenModel) summary() string {
	link := m.Link()
	in, out := m.Throughput()
	label := styles.MutedStyle.Width(12)

	rows := []string{
		label.Render("Serial") + styles.LinkIndicator(link.Status) + " " +
			styles.LinkStyle(link.Status).Render(link.String()),
		label.Render("Device") + m.Device() + "  " + styles.MutedStyle.Render(m.Line()),
		label.Render("Listening") + m.Listen() + "  " +
			styles.MutedStyle.Render(fmt.Sprintf("%d client(s)", len(m.Clients()))),
		label.Render("Throughput") + fmt.Sprintf("↗ %s  ↙ %s",
			metrics.FormatRate(in), metrics.FormatRate(out)),
	}

	width := m.width - 2
	if width < 20 {
		width = 20
	}
	return styles.PanelStyle.Width(width).Render(strings.Join(rows, "\n"))
}

func (m *listenModel) overview() string {
	title := styles.PanelTitleStyle.Render("Events")
	return lipgloss.JoinVertical(lipgloss.Left,
		m.summary(),
		m.clients.View(),
		title,
		m.eventLog.View(),
	)
}

func (m *listenModel) inspectorView() string {
	state := "live"
	if m.Paused() {
		state = styles.StatusConnectingStyle.Render("paused")
	}
	header := fmt.Sprintf("%s %s  %s %s  %s %s  %s",
		styles.PanelTitleStyle.Render("format"), m.Format(),
		styles.PanelTitleStyle.Render("source"), m.SelectedLabel(),
		styles.PanelTitleStyle.Render("captured"), humanize.Comma(int64(len(m.Capture()))),
		state)
	return lipgloss.JoinVertical(lipgloss.Left, header, m.inspector.View())
}

func (m *listenModel) helpView() string {
	return styles.HelpStyle.Render(m.help.View(m.keys))
}

func (m *listenModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var content string
	if m.tab == tabInspector {
		content = m.inspectorView()
	} else {
		content = m.overview()
	}

	link := m.Link()
	m.statusBar.SetLink(link.Status, link.Err)
	m.statusBar.SetDetails(fmt.Sprintf("%s → %s", m.Line(), m.Listen()))
	mode := "OVERVIEW"
	if m.tab == tabInspector {
		mode = "INSPECT"
	}
	statusBar := m.statusBar.Render(mode, "", time.Now().Format("15:04:05"))

	parts := []string{m.tabBar(), styles.ContentBorderStyle.Render(content)}
	if m.help.ShowAll {
		parts = append(parts, m.helpView())
	}
	parts = append(parts, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
