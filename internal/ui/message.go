package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/soundwave/internal/player"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgState MsgKind = iota
	MsgVisualTick
	MsgToastExpired
)

// stateMsg is the constructor for [MsgState], carrying a session snapshot
// pushed by the playback controller.
func stateMsg(update player.StateUpdate) Msg {
	return Msg{kind: MsgState, data: update}
}

// visualTickMsg is the constructor for [MsgVisualTick]
func visualTickMsg() Msg {
	return Msg{kind: MsgVisualTick}
}

// toastExpiredMsg is the constructor for [MsgToastExpired]. The sequence
// number guards against an old timer clearing a newer toast.
func toastExpiredMsg(seq int) Msg {
	return Msg{kind: MsgToastExpired, data: seq}
}
