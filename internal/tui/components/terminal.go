package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
)

// Terminal is a scrolling line view that follows the newest line until the
// user scrolls up.
type Terminal struct {
	viewport viewport.Model
	lines    []string
	follow   bool
}

func NewTerminal(width, height int) *Terminal {
	return &Terminal{
		viewport: viewport.New(width, height),
		follow:   true,
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
	t.refresh()
}

// SetLines replaces the content
func (t *Terminal) SetLines(lines []string) {
	t.lines = lines
	t.refresh()
}

func (t *Terminal) AddLine(line string) {
	t.lines = append(t.lines, line)
	t.refresh()
}

func (t *Terminal) Clear() {
	t.lines = nil
	t.follow = true
	t.viewport.SetContent("")
}

func (t *Terminal) ScrollUp(n int) {
	t.viewport.LineUp(n)
	t.follow = t.viewport.AtBottom()
}

func (t *Terminal) ScrollDown(n int) {
	t.viewport.LineDown(n)
	t.follow = t.viewport.AtBottom()
}

// Follow jumps to the newest line and keeps following
func (t *Terminal) Follow() {
	t.follow = true
	t.viewport.GotoBottom()
}

func (t *Terminal) Following() bool { return t.follow }

func (t *Terminal) refresh() {
	t.viewport.SetContent(strings.Join(t.lines, "\n"))
	if t.follow {
		t.viewport.GotoBottom()
	}
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
