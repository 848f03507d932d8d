package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the TUI key bindings.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Open        key.Binding
	MarkRead    key.Binding
	MarkAllRead key.Binding
	TogglePanel key.Binding
	ToastOpen   key.Binding
	ToastClose  key.Binding
	ToggleSound key.Binding
	ToggleInApp key.Binding
	ToggleBadge key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		MarkRead:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "mark read")),
		MarkAllRead: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "mark all read")),
		TogglePanel: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "inbox")),
		ToastOpen:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "open toast")),
		ToastClose:  key.NewBinding(key.WithKeys("x", "esc"), key.WithHelp("x", "dismiss toast")),
		ToggleSound: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sound")),
		ToggleInApp: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "in-app")),
		ToggleBadge: key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "badge")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.MarkRead, k.TogglePanel, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.MarkRead, k.MarkAllRead},
		{k.TogglePanel, k.ToastOpen, k.ToastClose},
		{k.ToggleSound, k.ToggleInApp, k.ToggleBadge},
		{k.Help, k.Quit},
	}
}
