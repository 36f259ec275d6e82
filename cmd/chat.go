/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
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
	"github.com/spf13/cobra"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to a running bridge interactively",
	Long: `Connect to a running sergw bridge as a TCP client.

Bytes from the serial device are shown as they arrive, and typed lines are
sent to the device, either as ASCII terminated by a newline or as hex.
When the bridge drops the connection, chat reconnects automatically.

Example usage:
  sergw chat
  sergw chat --host 192.168.1.20:5656`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := settings(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runChatTUI(ctx, v.GetString("host"))
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("host", "H", bridge.DefaultListen, "Bridge address to connect to")
}

var errNotConnected = errors.New("not connected to the bridge")

const (
	chatDialTimeout  = 5 * time.Second
	chatWriteTimeout = 5 * time.Second
	chatRetryMin     = 250 * time.Millisecond
	chatRetryMax     = 5 * time.Second
)

type chatStatusMsg struct {
	status  bridge.LinkStatus
	attempt int
	err     error
}

type chatDataMsg struct {
	at   time.Time
	data []byte
}

type chatSentMsg struct {
	at   time.Time
	data []byte
	err  error
}

type chatTickMsg time.Time

// chatConn keeps one connection to the bridge alive
type chatConn struct {
	addr string

	mu sync.Mutex
	nc net.Conn
}

func newChatConn(addr string) *chatConn {
	return &chatConn{addr: addr}
}

func (c *chatConn) set(nc net.Conn) {
	c.mu.Lock()
	c.nc = nc
	c.mu.Unlock()
}

func (c *chatConn) write(p []byte) error {
	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()
	if nc == nil {
		return errNotConnected
	}
	nc.SetWriteDeadline(time.Now().Add(chatWriteTimeout))
	_, err := nc.Write(p)
	return err
}

// run dials, reads until the connection drops, and redials with capped
// exponential backoff until ctx is done
func (c *chatConn) run(ctx context.Context, send func(tea.Msg)) {
	dialer := net.Dialer{Timeout: chatDialTimeout}
	backoff := chatRetryMin
	attempt := 0

	for ctx.Err() == nil {
		attempt++
		nc, err := dialer.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			send(chatStatusMsg{status: bridge.Opening, attempt: attempt, err: err})
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, chatRetryMax)
			continue
		}

		attempt = 0
		backoff = chatRetryMin
		c.set(nc)
		send(chatStatusMsg{status: bridge.Connected})

		stop := context.AfterFunc(ctx, func() { nc.Close() })
		err = c.readLoop(nc, send)
		stop()
		nc.Close()
		c.set(nil)

		if ctx.Err() != nil {
			return
		}
		send(chatStatusMsg{status: bridge.Disconnected, err: err})
	}
}

func (c *chatConn) readLoop(nc net.Conn, send func(tea.Msg)) error {
	buf := make([]byte, bridge.DefaultReadSize)
	for {
		n, err := nc.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			send(chatDataMsg{at: time.Now(), data: data})
		}
		if err != nil {
			return err
		}
	}
}

// chatModel represents the Bubble Tea model for the chat command
type chatModel struct {
	*models.ChatModel
	conn      *chatConn
	terminal  *components.Terminal
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.ChatKeys
	notice    string
	ready     bool
}

func newChatModel(conn *chatConn) *chatModel {
	m := &chatModel{
		ChatModel: models.NewChatModel(conn.addr),
		conn:      conn,
		terminal:  components.NewTerminal(0, 0),
		statusBar: components.NewStatusBar(conn.addr),
		input:     components.NewInput(),
		help:      help.New(),
		keys:      keys.NewChatKeys(),
	}
	m.input.Blur()
	return m
}

func runChatTUI(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := newChatConn(addr)
	m := newChatModel(conn)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go conn.run(ctx, p.Send)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	return err
}

func chatTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return chatTickMsg(t) })
}

func (m *chatModel) Init() tea.Cmd {
	return chatTick()
}

func (m *chatModel) send(data []byte) tea.Cmd {
	return func() tea.Msg {
		err := m.conn.write(data)
		return chatSentMsg{at: time.Now(), data: data, err: err}
	}
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// input box is three lines, plus content border and status bar
		verticalMarginHeight := 3 + 2
		m.terminal.SetSize(msg.Width, max(msg.Height-verticalMarginHeight, 1))
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.ready = true

	case chatStatusMsg:
		switch msg.status {
		case bridge.Connected:
			m.SetConnected()
			m.notice = ""
		case bridge.Opening:
			m.SetConnecting(msg.attempt, msg.err)
		default:
			m.SetDisconnected(msg.err)
		}

	case chatDataMsg:
		m.Received(msg.at, msg.data)
		m.terminal.SetLines(m.FormattedTranscript())

	case chatSentMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("send failed: %v", msg.err)
			break
		}
		m.Sent(msg.at, msg.data)
		m.terminal.SetLines(m.FormattedTranscript())

	case chatTickMsg:
		m.Tick(time.Time(msg))
		return m, chatTick()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.IsInInsertMode() {
			switch {
			case key.Matches(msg, m.keys.Escape):
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, nil

			case key.Matches(msg, m.keys.Enter):
				data, err := m.input.Encode()
				if err != nil {
					m.notice = err.Error()
					return m, nil
				}
				m.notice = ""
				m.input.AddToHistory(m.input.Value())
				m.input.SetValue("")
				return m, m.send(data)

			case key.Matches(msg, m.keys.Up):
				m.input.NavigateHistoryUp()
				return m, nil

			case key.Matches(msg, m.keys.Down):
				m.input.NavigateHistoryDown()
				return m, nil

			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()
				return m, nil
			}

			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.InsertMode):
			m.SetInputMode(models.InputModeInsert)
			m.input.Focus()

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll

		case key.Matches(msg, m.keys.Clear):
			m.Clear()
			m.terminal.Clear()

		case key.Matches(msg, m.keys.Format):
			m.CycleFormat()
			m.terminal.SetLines(m.FormattedTranscript())

		case key.Matches(msg, m.keys.ToggleSendMode):
			m.input.ToggleSendingMode()

		case key.Matches(msg, m.keys.Up):
			m.terminal.ScrollUp(1)

		case key.Matches(msg, m.keys.Down):
			m.terminal.ScrollDown(1)

		case key.Matches(msg, m.keys.GotoBottom):
			m.terminal.Follow()
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *chatModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	content := styles.ContentBorderStyle.Render(m.terminal.View())
	input := m.input.View(m.IsInInsertMode())

	in, out := m.Throughput()
	m.statusBar.SetLink(m.Status(), m.Err())
	details := fmt.Sprintf("↙ %s ↗ %s · %s", metrics.FormatRate(in), metrics.FormatRate(out), m.Format())
	switch {
	case m.notice != "":
		details = m.notice
	case m.Status() == bridge.Opening && m.Err() != nil:
		details = fmt.Sprintf("connecting (attempt %d): %v", m.Attempt(), m.Err())
	case m.Status() == bridge.Disconnected:
		details = "disconnected"
	}
	m.statusBar.SetDetails(details)

	var hint string
	if m.IsInInsertMode() {
		hint = fmt.Sprintf("[%s] Tab to toggle", m.input.SendingMode())
	}
	statusBar := m.statusBar.Render(m.InputMode().String(), hint, time.Now().Format("15:04:05"))

	parts := []string{content, input}
	if m.help.ShowAll {
		parts = append(parts, styles.HelpStyle.Render(m.help.View(m.keys)))
	}
	parts = append(parts, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
