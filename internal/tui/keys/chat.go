package keys

import "github.com/charmbracelet/bubbles/key"

// ChatKeys drive the chat client. Input is modal like the editor it imitates.
type ChatKeys struct {
	CommonKeys
	ScrollKeys
	InsertMode     key.Binding
	Escape         key.Binding
	Enter          key.Binding
	ToggleSendMode key.Binding
	Format         key.Binding
	Clear          key.Binding
}

func NewChatKeys() ChatKeys {
	return ChatKeys{
		CommonKeys: NewCommonKeys(),
		ScrollKeys: NewScrollKeys(),
		InsertMode: key.NewBinding(
			key.WithKeys("i", "I"),
			key.WithHelp("i", "insert mode"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "normal mode"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send line"),
		),
		ToggleSendMode: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "ascii/hex input"),
		),
		Format: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "hex/ascii/dec"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
	}
}

func (k ChatKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.InsertMode, k.Enter, k.Quit}
}

func (k ChatKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.InsertMode, k.Escape, k.Enter, k.ToggleSendMode},
		{k.Format, k.Clear, k.Up, k.Down, k.GotoBottom},
		{k.Help, k.Quit},
	}
}
