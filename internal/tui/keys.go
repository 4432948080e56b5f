package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Quit     key.Binding
	Record   key.Binding
	Save     key.Binding
	Previous key.Binding
	Skip     key.Binding
	Edit     key.Binding
	Copy     key.Binding
	Reset    key.Binding
	Cancel   key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+k"),
		key.WithHelp("up/C-k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+j"),
		key.WithHelp("dn/C-j", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "load"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "quit"),
	),
	Record: key.NewBinding(
		key.WithKeys(" ", "r"),
		key.WithHelp("space/r", "record/stop"),
	),
	Save: key.NewBinding(
		key.WithKeys("enter", "s"),
		key.WithHelp("enter/s", "save"),
	),
	Previous: key.NewBinding(
		key.WithKeys("left", "p"),
		key.WithHelp("left/p", "previous"),
	),
	Skip: key.NewBinding(
		key.WithKeys("right", "n"),
		key.WithHelp("right/n", "skip"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy"),
	),
	Reset: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "reset"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}
