package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the player.
type keyMap struct {
	playPause key.Binding
	next      key.Binding
	prev      key.Binding
	seekBack  key.Binding
	seekFwd   key.Binding
	volUp     key.Binding
	volDown   key.Binding
	mute      key.Binding
	shuffle   key.Binding
	repeat    key.Binding
	filter    key.Binding
	enter     key.Binding
	back      key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		playPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		seekBack:  key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "seek -10s")),
		seekFwd:   key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "seek +10s")),
		volUp:     key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "volume up")),
		volDown:   key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "volume down")),
		mute:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		shuffle:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		repeat:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repeat")),
		filter:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.playPause, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.playPause, k.next, k.prev},
		{k.seekBack, k.seekFwd, k.volUp, k.volDown},
		{k.mute, k.shuffle, k.repeat},
		{k.filter, k.enter, k.back, k.quit},
	}
}
