package keys

import "github.com/charmbracelet/bubbles/key"

// ListenKeys drive the overview and inspector tabs of the bridge UI
type ListenKeys struct {
	CommonKeys
	ScrollKeys
	NextTab    key.Binding
	Format     key.Binding
	Pause      key.Binding
	PrevDevice key.Binding
	NextDevice key.Binding
	Clear      key.Binding
}

func NewListenKeys() ListenKeys {
	return ListenKeys{
		CommonKeys: NewCommonKeys(),
		ScrollKeys: NewScrollKeys(),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch tab"),
		),
		Format: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "hex/ascii/dec"),
		),
		Pause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "pause capture"),
		),
		PrevDevice: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "previous source"),
		),
		NextDevice: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "next source"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
	}
}

func (k ListenKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Format, k.Pause, k.Help, k.Quit}
}

func (k ListenKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextTab, k.Format, k.Pause, k.Clear},
		{k.PrevDevice, k.NextDevice, k.Up, k.Down, k.GotoBottom},
		{k.Help, k.Quit},
	}
}
