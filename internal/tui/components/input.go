package components

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/allbin/sergw/internal/tui/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type SendingMode int

const (
	SendingModeASCII SendingMode = iota
	SendingModeHex
)

func (s SendingMode) String() string {
	if s == SendingModeHex {
		return "HEX"
	}
	return "ASCII"
}

const historyLimit = 100

type Input struct {
	textInput     textinput.Model
	sendingMode   SendingMode
	history       []string
	historyIndex  int
	currentInput  string // what was typed before history navigation started
	terminalWidth int
}

func NewInput() *Input {
	ti := textinput.New()
	ti.CharLimit = 1024
	ti.Prompt = ""
	ti.Placeholder = "Type a line and press Enter to send..."
	ti.Focus()

	return &Input{
		textInput:    ti,
		sendingMode:  SendingModeASCII,
		historyIndex: -1,
	}
}

func (i *Input) SetWidth(width int) {
	i.terminalWidth = width
	// border(2) + padding(2) + prompt(1) + space(1)
	usableWidth := width - 6
	if usableWidth < 20 {
		usableWidth = 20
	}
	i.textInput.Width = usableWidth
}

func (i *Input) Focus() { i.textInput.Focus() }

func (i *Input) Blur() { i.textInput.Blur() }

func (i *Input) Value() string { return i.textInput.Value() }

func (i *Input) SetValue(value string) { i.textInput.SetValue(value) }

func (i *Input) ToggleSendingMode() {
	switch i.sendingMode {
	case SendingModeASCII:
		i.sendingMode = SendingModeHex
		i.textInput.Placeholder = "Enter hex (e.g. 41540d0a or 41 54 0d 0a)..."
	case SendingModeHex:
		i.sendingMode = SendingModeASCII
		i.textInput.Placeholder = "Type a line and press Enter to send..."
	}
}

func (i *Input) SendingMode() SendingMode {
	return i.sendingMode
}

// Encode turns the current value into the bytes to send
func (i *Input) Encode() ([]byte, error) {
	return Encode(i.textInput.Value(), i.sendingMode)
}

// Encode converts typed text to wire bytes. ASCII lines get a trailing
// newline; hex accepts optional whitespace between byte pairs.
func Encode(text string, mode SendingMode) ([]byte, error) {
	if mode == SendingModeASCII {
		return []byte(text + "\n"), nil
	}

	compact := strings.Join(strings.Fields(text), "")
	if compact == "" {
		return nil, fmt.Errorf("empty hex input")
	}
	data, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

func (i *Input) View(focused bool) string {
	promptSymbol := ">"
	promptStyle := lipgloss.NewStyle().Foreground(styles.Green).Bold(true)
	if i.sendingMode == SendingModeHex {
		promptSymbol = "#"
		promptStyle = promptStyle.Foreground(styles.Yellow)
	}
	prompt := promptStyle.Render(promptSymbol)

	var content string
	if focused {
		content = lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", i.textInput.View())
	} else {
		content = lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ",
			styles.MutedStyle.Render("Press 'i' to type"))
	}

	// RoundedBorder and horizontal padding take four columns
	adjustedWidth := i.terminalWidth - 4
	if adjustedWidth < 10 {
		adjustedWidth = 10
	}
	style := styles.InputStyle.
		Width(adjustedWidth).
		AlignHorizontal(lipgloss.Left)
	if focused {
		style = style.BorderForeground(styles.Green)
	}
	return style.Render(content)
}

// AddToHistory records a sent line, skipping blanks and immediate repeats
func (i *Input) AddToHistory(command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	if len(i.history) > 0 && i.history[len(i.history)-1] == command {
		return
	}

	i.history = append(i.history, command)
	if len(i.history) > historyLimit {
		i.history = i.history[1:]
	}

	i.historyIndex = -1
	i.currentInput = ""
}

func (i *Input) NavigateHistoryUp() {
	if len(i.history) == 0 {
		return
	}

	if i.historyIndex == -1 {
		i.currentInput = i.textInput.Value()
		i.historyIndex = len(i.history) - 1
	} else if i.historyIndex > 0 {
		i.historyIndex--
	}

	i.textInput.SetValue(i.history[i.historyIndex])
}

func (i *Input) NavigateHistoryDown() {
	if len(i.history) == 0 || i.historyIndex == -1 {
		return
	}

	if i.historyIndex < len(i.history)-1 {
		i.historyIndex++
		i.textInput.SetValue(i.history[i.historyIndex])
		return
	}

	i.historyIndex = -1
	i.textInput.SetValue(i.currentInput)
	i.currentInput = ""
}
