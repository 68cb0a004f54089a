package ui

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/soundwave/internal/models"
	"github.com/desertthunder/soundwave/internal/player"
	"github.com/desertthunder/soundwave/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistView ViewState = iota
	TrackView
)

const (
	visualTickInterval = 150 * time.Millisecond
	toastTTL           = 4 * time.Second
	seekStep           = 10.0
	volumeStep         = 0.05
	barCount           = 16
)

// Player is the slice of the playback controller the TUI drives.
type Player interface {
	Updates() <-chan player.StateUpdate
	Session() player.Session
	GrantInteraction()
	SetTracks(tracks []models.Track)
	Select(index int)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, delta float64) error
	SetVolume(ctx context.Context, v float64)
	ToggleMute(ctx context.Context)
	ToggleShuffle()
	CycleRepeat()
}

// Catalog is the slice of the library the TUI browses.
type Catalog interface {
	Playlists() []models.Playlist
	Tracks() []models.Track
	Filter(source, query string) []models.Track
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	controller Player
	catalog    Catalog
	width      int
	height     int

	playlistList list.Model
	trackList    list.Model
	tracks       []models.Track
	source       string

	search    textinput.Model
	filtering bool

	session  player.Session
	toast    string
	toastSeq int
	bars     []int
	ticking  bool
	rng      *rand.Rand

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, controller Player, catalog Catalog) *Model {
	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "filter by title, artist or album"

	m := &Model{
		ctx:        ctx,
		view:       PlaylistView,
		controller: controller,
		catalog:    catalog,
		source:     "all",
		search:     search,
		session:    controller.Session(),
		bars:       make([]int, barCount),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		help:       help.New(),
		keys:       newKeyMap(),
	}
	for i := range m.bars {
		m.bars[i] = 1
	}
	m.buildPlaylistList()
	m.setVisible("all", "")
	return m
}

func (m *Model) buildPlaylistList() {
	all := m.catalog.Tracks()
	playlists := m.catalog.Playlists()

	items := make([]list.Item, 0, len(playlists)+1)
	items = append(items, playlistItem{
		playlist: models.Playlist{Name: "All Songs", Description: "Everything in your library"},
		count:    len(all),
	})
	for _, pl := range playlists {
		count := 0
		for _, t := range all {
			if t.PlaylistID == pl.ID {
				count++
			}
		}
		items = append(items, playlistItem{playlist: pl, count: count})
	}

	m.playlistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.playlistList.Title = "Playlists"
	m.playlistList.SetShowHelp(false)
	m.playlistList.SetFilteringEnabled(false)
}

// setVisible re-projects the catalog through the active source and query,
// hands the projection to the controller, and rebuilds the track list.
func (m *Model) setVisible(source, query string) {
	m.source = source
	m.tracks = m.catalog.Filter(source, query)
	m.controller.SetTracks(m.tracks)

	items := make([]list.Item, len(m.tracks))
	for i, track := range m.tracks {
		items[i] = trackItem{track: track}
	}
	m.trackList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.trackList.Title = m.trackListTitle(query)
	m.trackList.SetShowHelp(false)
	m.trackList.SetFilteringEnabled(false)
	if m.width > 0 {
		m.trackList.SetSize(m.width-4, m.listHeight())
	}
}

func (m *Model) trackListTitle(query string) string {
	title := "All Songs"
	switch m.source {
	case "local":
		title = models.DefaultPlaylistName
	case "spotify":
		title = models.SpotifyPlaylistName
	}
	if query != "" {
		title = fmt.Sprintf("%s • '%s'", title, query)
	}
	return title
}

// listHeight leaves room for the now-playing pane under the list.
func (m *Model) listHeight() int {
	h := m.height - 10
	if h < 4 {
		h = 4
	}
	return h
}

// Init begins consuming controller state updates.
func (m *Model) Init() tea.Cmd {
	return m.waitForState()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, m.listHeight())
		m.trackList.SetSize(msg.Width-4, m.listHeight())
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgState:
		update := msg.data.(player.StateUpdate)
		m.session = update.Session
		cmds := []tea.Cmd{m.waitForState()}
		if update.Message != "" {
			m.toast = update.Message
			m.toastSeq++
			cmds = append(cmds, m.expireToast(m.toastSeq))
		}
		if m.session.Playing && !m.ticking {
			m.ticking = true
			cmds = append(cmds, m.visualTick())
		}
		return m, tea.Batch(cmds...)

	case MsgVisualTick:
		if !m.session.Playing {
			m.ticking = false
			return m, nil
		}
		for i := range m.bars {
			m.bars[i] = m.rng.Intn(8) + 1
		}
		return m, m.visualTick()

	case MsgToastExpired:
		if seq := msg.data.(int); seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Any key press satisfies the interaction gate.
	m.controller.GrantInteraction()

	if m.filtering {
		return m.handleFilterKeys(msg)
	}

	switch m.view {
	case PlaylistView:
		return m.handlePlaylistKeys(msg)
	case TrackView:
		return m.handleTrackKeys(msg)
	}
	return m, nil
}

func (m *Model) handlePlaylistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		selected := m.playlistList.SelectedItem()
		if selected != nil {
			if pl, ok := selected.(playlistItem); ok {
				m.setVisible(sourceForPlaylist(pl.playlist.ID), "")
				m.view = TrackView
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pressed := msg.String()

	if len(pressed) == 1 && pressed[0] >= '0' && pressed[0] <= '9' {
		level := float64(pressed[0]-'0') / 10
		return m, m.dispatch(func(ctx context.Context) {
			m.controller.SetVolume(ctx, level)
		})
	}

	switch pressed {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = PlaylistView
		return m, nil
	case "/":
		m.filtering = true
		m.search.SetValue("")
		return m, m.search.Focus()
	case "enter":
		index := m.trackList.Index()
		if index >= 0 && index < len(m.tracks) {
			m.controller.Select(index)
			return m, m.dispatch(func(ctx context.Context) {
				_ = m.controller.Play(ctx)
			})
		}
		return m, nil
	case " ":
		playing := m.session.Playing
		return m, m.dispatch(func(ctx context.Context) {
			if playing {
				_ = m.controller.Pause(ctx)
			} else {
				_ = m.controller.Play(ctx)
			}
		})
	case "n":
		return m, m.dispatch(func(ctx context.Context) {
			_ = m.controller.Next(ctx)
		})
	case "p":
		return m, m.dispatch(func(ctx context.Context) {
			_ = m.controller.Previous(ctx)
		})
	case "left":
		return m, m.dispatch(func(ctx context.Context) {
			_ = m.controller.Seek(ctx, -seekStep)
		})
	case "right":
		return m, m.dispatch(func(ctx context.Context) {
			_ = m.controller.Seek(ctx, seekStep)
		})
	case "up":
		level := m.session.Volume + volumeStep
		return m, m.dispatch(func(ctx context.Context) {
			m.controller.SetVolume(ctx, level)
		})
	case "down":
		level := m.session.Volume - volumeStep
		return m, m.dispatch(func(ctx context.Context) {
			m.controller.SetVolume(ctx, level)
		})
	case "m":
		return m, m.dispatch(func(ctx context.Context) {
			m.controller.ToggleMute(ctx)
		})
	case "s":
		m.controller.ToggleShuffle()
		return m, nil
	case "r":
		m.controller.CycleRepeat()
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.search.Blur()
		m.setVisible(m.source, "")
		return m, nil
	case "enter":
		m.filtering = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.setVisible(m.source, m.search.Value())
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case PlaylistView:
		body = m.playlistList.View()
	case TrackView:
		body = m.trackList.View()
		if m.filtering {
			body = fmt.Sprintf("%s\n%s", body, m.search.View())
		}
	}

	sections := []string{body, m.renderNowPlaying()}
	if m.toast != "" {
		sections = append(sections, styles.warn.Render(m.toast))
	}
	sections = append(sections, m.help.ShortHelpView(m.helpKeys()))
	return strings.Join(sections, "\n\n")
}

func (m *Model) helpKeys() []key.Binding {
	if m.view == PlaylistView {
		return []key.Binding{m.keys.enter, m.keys.quit}
	}
	return []key.Binding{m.keys.playPause, m.keys.next, m.keys.prev, m.keys.filter, m.keys.back, m.keys.quit}
}

func (m *Model) renderNowPlaying() string {
	track := m.session.Track
	if track.Title == "" {
		return styles.help.Render("Nothing playing")
	}

	marker := "⏸"
	if m.session.Playing {
		marker = "▶"
	}
	header := fmt.Sprintf("%s %s", marker, styles.title.Render(track.Title))
	if track.Artist != "" {
		header = fmt.Sprintf("%s %s", header, styles.help.Render(track.Artist))
	}
	if m.session.Remote {
		header = fmt.Sprintf("%s %s", header, styles.ok.Render("[spotify]"))
	} else if m.session.Simulated {
		header = fmt.Sprintf("%s %s", header, styles.warn.Render("[simulated]"))
	}

	gaugeLine := fmt.Sprintf("%s %s %s  %s",
		shared.FormatDuration(m.session.Elapsed),
		gauge(m.session.Elapsed, m.session.Duration, 30),
		shared.FormatDuration(m.session.Duration),
		m.renderIndicators(),
	)

	lines := []string{header, gaugeLine}
	if m.session.Playing {
		lines = append(lines, styles.ok.Render(sparkline(m.bars)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderIndicators() string {
	var parts []string
	if m.session.Muted {
		parts = append(parts, "muted")
	} else {
		parts = append(parts, fmt.Sprintf("vol %d%%", int(m.session.Volume*100)))
	}
	if m.session.Shuffle {
		parts = append(parts, "shuffle")
	}
	if m.session.Repeat != models.RepeatNone {
		parts = append(parts, fmt.Sprintf("repeat %s", m.session.Repeat.String()))
	}
	return styles.help.Render(strings.Join(parts, " • "))
}

func sourceForPlaylist(id string) string {
	switch id {
	case models.DefaultPlaylistID:
		return "local"
	case models.SpotifyPlaylistID:
		return "spotify"
	default:
		return "all"
	}
}

// gauge renders a fixed-width progress bar for the elapsed/duration pair.
func gauge(elapsed, duration float64, width int) string {
	filled := 0
	if duration > 0 {
		filled = int(float64(width) * (elapsed / duration))
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

var sparks = []rune("▁▂▃▄▅▆▇█")

// sparkline maps bar heights in [1,8] onto block glyphs.
func sparkline(bars []int) string {
	var b strings.Builder
	for _, height := range bars {
		if height < 1 {
			height = 1
		}
		if height > len(sparks) {
			height = len(sparks)
		}
		b.WriteRune(sparks[height-1])
	}
	return b.String()
}

func (m *Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.controller.Updates()
		if !ok {
			return nil
		}
		return stateMsg(update)
	}
}

func (m *Model) visualTick() tea.Cmd {
	return tea.Tick(visualTickInterval, func(time.Time) tea.Msg {
		return visualTickMsg()
	})
}

func (m *Model) expireToast(seq int) tea.Cmd {
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return toastExpiredMsg(seq)
	})
}

// dispatch runs a controller command off the render loop. Outcomes surface
// through the state update channel, not through the returned message.
func (m *Model) dispatch(run func(context.Context)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		run(ctx)
		return nil
	}
}
