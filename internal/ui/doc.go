// Package ui implements the interactive player interface using bubbletea's Elm architecture.
//
// The TUI is a two-view player:
//  1. [PlaylistView] : Pick a playlist (My Music, Spotify Tracks, or All Songs)
//  2. [TrackView] : Browse tracks, filter with /, and drive playback
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern,
// receiving messages via the Msg union type. Playback state flows in through the
// controller's update channel; key presses dispatch controller commands and count
// as the interaction grant required before audio may start.
//
// A now-playing pane with a progress gauge, volume/shuffle/repeat indicators and a
// cosmetic visualizer is rendered under whichever list is active. One-line status
// toasts expire after a few seconds.
package ui
