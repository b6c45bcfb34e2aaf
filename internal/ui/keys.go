package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/sadopc/duscope/internal/ui/components"
)

// KeyMap holds all key bindings. It satisfies help.KeyMap.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Enter    key.Binding
	Back     key.Binding

	SortSize   key.Binding
	SortName   key.Binding
	SortItems  key.Binding
	SortMtime  key.Binding
	Reverse    key.Binding
	DirsFirst  key.Binding
	Apparent   key.Binding
	Hidden     key.Binding
	Treemap    key.Binding
	Delete     key.Binding
	Export     key.Binding
	Rescan     key.Binding
	RescanRoot key.Binding

	Help      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding

	ConfirmYes key.Binding
	ConfirmNo  key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "first entry")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "last entry")),
		Enter:    key.NewBinding(key.WithKeys("enter", "l", "right"), key.WithHelp("enter/l/→", "open dir")),
		Back:     key.NewBinding(key.WithKeys("h", "left", "backspace"), key.WithHelp("h/←/bksp", "parent")),

		SortSize:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort by size")),
		SortName:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "sort by name")),
		SortItems:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "sort by items")),
		SortMtime:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "sort by mtime")),
		Reverse:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reverse order")),
		DirsFirst:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "dirs first")),
		Apparent:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "apparent/disk")),
		Hidden:     key.NewBinding(key.WithKeys("."), key.WithHelp(".", "hidden files")),
		Treemap:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "treemap")),
		Delete:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Export:     key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "export JSON")),
		Rescan:     key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "rescan dir")),
		RescanRoot: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "rescan all")),

		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "back/quit")),
		ForceQuit: key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),

		ConfirmYes: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
		ConfirmNo:  key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n/esc", "no")),
	}
}

// ShortHelp is the hint line under the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Enter, k.Back, k.SortSize, k.Delete, k.Rescan, k.Quit}
}

// FullHelp groups every binding for the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	sections := k.sections()
	out := make([][]key.Binding, len(sections))
	for i, s := range sections {
		out[i] = s.Bindings
	}
	return out
}

func (k KeyMap) sections() []components.HelpSection {
	return []components.HelpSection{
		{Name: "Navigation", Bindings: []key.Binding{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom, k.Enter, k.Back}},
		{Name: "Sorting & display", Bindings: []key.Binding{k.SortSize, k.SortName, k.SortItems, k.SortMtime, k.Reverse, k.DirsFirst, k.Apparent, k.Hidden, k.Treemap}},
		{Name: "Actions", Bindings: []key.Binding{k.Delete, k.Export, k.Rescan, k.RescanRoot}},
		{Name: "General", Bindings: []key.Binding{k.Help, k.Quit, k.ForceQuit}},
	}
}
