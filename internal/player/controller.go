package player

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundwave/internal/models"
	"github.com/desertthunder/soundwave/internal/shared"
	"github.com/desertthunder/soundwave/internal/spotify"
)

// restartThreshold is how far into a track the previous command restarts it
// instead of moving to the previous entry.
const restartThreshold = 3.0

// Replay delays after a local index change, matching the original
// player's debounce between load and play.
const (
	nextReplayDelay = 200 * time.Millisecond
	prevReplayDelay = 100 * time.Millisecond
)

// Remote is the controller's view of the remote playback backend.
type Remote interface {
	Ready() bool
	PlayByReference(ctx context.Context, uri string) (bool, error)
	Toggle(ctx context.Context) bool
	Next(ctx context.Context) bool
	Previous(ctx context.Context) bool
	Seek(ctx context.Context, positionMS int) bool
	SetVolume(ctx context.Context, v float64) bool
	QueryState(ctx context.Context) *spotify.PlaybackState
}

// Session is the playback state snapshot owned by the controller.
type Session struct {
	Index    int
	Track    models.Track
	Playing  bool
	Elapsed  float64
	Duration float64

	Volume         float64
	PreviousVolume float64
	Muted          bool

	Shuffle bool
	Repeat  models.RepeatMode

	// Remote marks the remote backend as the active transport for the
	// current track. Simulated marks local playback with no audio device.
	Remote    bool
	Simulated bool

	InteractionGranted bool
}

// StateUpdate is pushed to the presentation layer on every session change.
// Message carries an optional one-line status toast.
type StateUpdate struct {
	Session Session
	Message string
}

// Controller serializes all session mutation behind one mutex and fans state
// out through a buffered update channel.
type Controller struct {
	mu      sync.Mutex
	session Session
	tracks  []models.Track

	engine Engine
	remote Remote
	logger *log.Logger

	// guard is the single-slot in-flight latch for remote transport.
	guard atomic.Bool

	loadedPath string
	loopCancel context.CancelFunc

	updates chan StateUpdate

	// Injected for tests.
	tick      time.Duration
	randIndex func(n int) int
	nextDelay time.Duration
	prevDelay time.Duration
}

// NewController wires a controller over the local engine and remote backend.
// remote may be nil when no backend is configured.
func NewController(engine Engine, remote Remote, volume float64, logger *log.Logger) *Controller {
	return &Controller{
		session: Session{
			Volume:         shared.Clamp(volume, 0, 1),
			PreviousVolume: shared.Clamp(volume, 0, 1),
			Repeat:         models.RepeatNone,
		},
		engine:    engine,
		remote:    remote,
		logger:    logger,
		updates:   make(chan StateUpdate, 32),
		tick:      time.Second,
		randIndex: rand.Intn,
		nextDelay: nextReplayDelay,
		prevDelay: prevReplayDelay,
	}
}

// Updates returns the stream of session snapshots.
func (c *Controller) Updates() <-chan StateUpdate {
	return c.updates
}

// Session returns a copy of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// GrantInteraction marks that the user has interacted with the player.
// Playback refuses to start before this.
func (c *Controller) GrantInteraction() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.InteractionGranted = true
}

// SetTracks replaces the playable view, keeping the active track selected
// when it survives the change.
func (c *Controller) SetTracks(tracks []models.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.session.Track
	c.tracks = tracks
	c.session.Index = 0

	for i, track := range tracks {
		if track.ID != "" && track.ID == current.ID {
			c.session.Index = i
			break
		}
	}

	if len(tracks) > 0 {
		c.session.Track = tracks[c.session.Index]
	} else {
		c.session.Track = models.Track{}
	}

	c.notifyLocked("")
}

// Select jumps to the track at index without starting playback.
func (c *Controller) Select(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.tracks) {
		return
	}

	c.selectLocked(index)
	c.notifyLocked("")
}

// selectLocked moves the session onto the track at index, resetting the
// playhead and loading metadata.
func (c *Controller) selectLocked(index int) {
	c.session.Index = index
	c.session.Track = c.tracks[index]
	c.session.Elapsed = 0
	c.session.Duration = c.tracks[index].Duration
	c.session.Remote = false
	c.session.Simulated = false
}

// Play starts playback of the current track, routing to the remote backend
// for spotify tracks when it is ready and falling back to local otherwise.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()

	if !c.session.InteractionGranted {
		c.notifyLocked("Click anywhere first to enable audio playback")
		c.mu.Unlock()
		return shared.ErrInteractionRequired
	}

	if len(c.tracks) == 0 {
		c.notifyLocked("No songs available to play")
		c.mu.Unlock()
		return shared.ErrNoSongsAvailable
	}

	track := c.tracks[c.session.Index]
	c.session.Track = track
	c.session.Playing = true

	if track.Source == models.SourceSpotify && c.remoteReady() && track.SpotifyURI != "" {
		if !c.guard.CompareAndSwap(false, true) {
			c.mu.Unlock()
			return nil
		}

		// The session lock is dropped for the network call so commands
		// arriving meanwhile hit the guard instead of queueing.
		c.mu.Unlock()
		ok, err := c.remote.PlayByReference(ctx, track.SpotifyURI)
		c.guard.Store(false)
		c.mu.Lock()

		if ok {
			c.session.Remote = true
			c.session.Simulated = false
			c.session.Duration = track.Duration
			c.notifyLocked("Playing: " + track.Title)
			c.startProgressLoopLocked(true)
			c.mu.Unlock()
			return nil
		}

		c.logger.Debug("remote play failed, falling back to local", "error", err)
	}

	c.session.Remote = false
	err := c.playLocalLocked(track)
	c.mu.Unlock()
	return err
}

// playLocalLocked plays the track's local or preview reference. A blocked
// audio device degrades to simulated playback rather than failing.
func (c *Controller) playLocalLocked(track models.Track) error {
	if track.AudioURL == "" {
		c.session.Playing = false
		c.stopProgressLoopLocked()
		c.notifyLocked("No audio source for this song")
		return shared.ErrNoAudioSource
	}

	if c.loadedPath != track.AudioURL {
		duration, err := c.engine.Load(track.AudioURL)
		if err != nil {
			c.logger.Debug("load failed, simulating", "error", err)
			return c.simulateLocked(track)
		}
		c.loadedPath = track.AudioURL
		c.session.Duration = duration
	}

	c.engine.SetVolume(c.session.Volume)
	c.engine.SetMuted(c.session.Muted)

	if err := c.engine.Play(); err != nil {
		if isBlocked(err) {
			return c.simulateLocked(track)
		}
		c.session.Playing = false
		return err
	}

	c.session.Simulated = false
	c.notifyLocked("Now playing: " + track.Title)
	c.startProgressLoopLocked(false)
	return nil
}

// simulateLocked advances the session without audio output, one second per
// tick against the track's known duration.
func (c *Controller) simulateLocked(track models.Track) error {
	c.session.Simulated = true
	c.session.Duration = track.Duration
	c.notifyLocked(fmt.Sprintf("Audio blocked - using simulation for %s", track.Title))
	c.startProgressLoopLocked(false)
	return nil
}

// Pause suspends playback on the active backend. A failed remote toggle
// falls back to pausing the local engine.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()

	c.session.Playing = false

	if c.session.Remote && c.remoteReady() {
		if !c.guard.CompareAndSwap(false, true) {
			c.mu.Unlock()
			return nil
		}

		c.mu.Unlock()
		ok := c.remote.Toggle(ctx)
		c.guard.Store(false)
		c.mu.Lock()

		if !ok {
			c.engine.Pause()
		}
	} else if !c.session.Simulated {
		c.engine.Pause()
	}

	c.stopProgressLoopLocked()
	c.notifyLocked("")
	c.mu.Unlock()
	return nil
}

// Next advances to the next track. When the remote backend is active its own
// queue handles the skip and the session waits for the pushed state change;
// otherwise the index moves locally.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()

	if len(c.tracks) == 0 {
		c.mu.Unlock()
		return nil
	}

	if c.session.Remote && c.remoteReady() {
		if !c.guard.CompareAndSwap(false, true) {
			c.mu.Unlock()
			return nil
		}

		c.mu.Unlock()
		ok := c.remote.Next(ctx)
		c.guard.Store(false)
		if ok {
			// The backend's pushed state change carries the new track.
			return nil
		}
		c.mu.Lock()
	}

	var next int
	if c.session.Shuffle {
		next = c.randIndex(len(c.tracks))
	} else {
		next = (c.session.Index + 1) % len(c.tracks)
	}

	c.selectLocked(next)
	c.notifyLocked("Next track")

	replay := c.session.Playing
	c.mu.Unlock()

	if replay {
		c.scheduleReplay(c.nextDelay)
	}

	return nil
}

// Previous restarts the current track when more than three seconds in,
// otherwise moves to the previous entry. Remote transport is tried first.
func (c *Controller) Previous(ctx context.Context) error {
	c.mu.Lock()

	if len(c.tracks) == 0 {
		c.mu.Unlock()
		return nil
	}

	if c.session.Remote && c.remoteReady() {
		if !c.guard.CompareAndSwap(false, true) {
			c.mu.Unlock()
			return nil
		}

		c.mu.Unlock()
		ok := c.remote.Previous(ctx)
		c.guard.Store(false)
		if ok {
			return nil
		}
		c.mu.Lock()
	}

	if c.session.Elapsed > restartThreshold {
		c.session.Elapsed = 0
		if !c.session.Simulated && !c.session.Remote {
			c.engine.SeekTo(0)
		}
		c.notifyLocked("")
		c.mu.Unlock()
		return nil
	}

	var prev int
	if c.session.Shuffle {
		prev = c.randIndex(len(c.tracks))
	} else {
		prev = (c.session.Index - 1 + len(c.tracks)) % len(c.tracks)
	}

	c.selectLocked(prev)
	c.notifyLocked("Previous track")

	replay := c.session.Playing
	c.mu.Unlock()

	if replay {
		c.scheduleReplay(c.prevDelay)
	}

	return nil
}

// Seek moves the playhead by delta seconds, clamped to the track bounds.
func (c *Controller) Seek(ctx context.Context, delta float64) error {
	c.mu.Lock()

	if c.session.Remote && c.remoteReady() {
		c.mu.Unlock()

		state := c.remote.QueryState(ctx)
		if state == nil {
			return nil
		}

		newPositionMS := int(shared.Clamp(float64(state.PositionMS)+delta*1000, 0, float64(state.DurationMS)))

		if !c.guard.CompareAndSwap(false, true) {
			return nil
		}
		c.remote.Seek(ctx, newPositionMS)
		c.guard.Store(false)

		c.mu.Lock()
		c.session.Elapsed = float64(newPositionMS) / 1000
		c.session.Duration = float64(state.DurationMS) / 1000
		c.notifyLocked("")
		c.mu.Unlock()
		return nil
	}

	c.session.Elapsed = shared.Clamp(c.session.Elapsed+delta, 0, c.session.Duration)
	if !c.session.Simulated {
		c.engine.SeekTo(c.session.Elapsed)
	}
	c.notifyLocked("")
	c.mu.Unlock()
	return nil
}

// SetVolume clamps to [0, 1] and applies the level to both backends. Any
// nonzero level clears mute.
func (c *Controller) SetVolume(ctx context.Context, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	clamped := shared.Clamp(v, 0, 1)

	if c.session.Remote && c.remoteReady() {
		// Fire and forget; remote volume is best effort.
		c.remote.SetVolume(ctx, clamped)
	}

	c.engine.SetVolume(clamped)
	c.session.Volume = clamped

	if clamped > 0 && c.session.Muted {
		c.session.Muted = false
		c.engine.SetMuted(false)
	}

	c.notifyLocked(fmt.Sprintf("Volume: %d%%", int(clamped*100)))
}

// ToggleMute silences playback, restoring the previous level on unmute.
func (c *Controller) ToggleMute(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Muted {
		c.session.Muted = false
		c.session.Volume = c.session.PreviousVolume
		c.engine.SetMuted(false)
		c.engine.SetVolume(c.session.Volume)
		if c.session.Remote && c.remoteReady() {
			c.remote.SetVolume(ctx, c.session.Volume)
		}
		c.notifyLocked(fmt.Sprintf("Volume: %d%%", int(c.session.Volume*100)))
		return
	}

	c.session.PreviousVolume = c.session.Volume
	c.session.Muted = true
	c.session.Volume = 0
	c.engine.SetMuted(true)
	if c.session.Remote && c.remoteReady() {
		c.remote.SetVolume(ctx, 0)
	}
	c.notifyLocked("Muted")
}

// ToggleShuffle flips shuffle mode.
func (c *Controller) ToggleShuffle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Shuffle = !c.session.Shuffle
	if c.session.Shuffle {
		c.notifyLocked("Shuffle ON")
	} else {
		c.notifyLocked("Shuffle OFF")
	}
}

// CycleRepeat advances the repeat mode none → single → all → none.
func (c *Controller) CycleRepeat() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Repeat = c.session.Repeat.Next()
	c.notifyLocked("Repeat: " + c.session.Repeat.String())
}

// HandleRemoteStateChanged overwrites the session from a pushed remote
// snapshot. The snapshot is authoritative; no merging.
//
// Pushes describe whatever device the account is playing on, so they only
// apply while the remote backend is the active transport. A local session is
// never displaced by playback happening elsewhere on the account.
func (c *Controller) HandleRemoteStateChanged(state *spotify.PlaybackState) {
	if state == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Remote {
		return
	}

	c.session.Simulated = false
	c.session.Elapsed = float64(state.PositionMS) / 1000
	c.session.Duration = float64(state.DurationMS) / 1000
	c.session.Playing = !state.Paused

	if state.Track.Title != "" {
		c.session.Track = state.Track
	}

	if c.session.Playing {
		c.startProgressLoopLocked(true)
	} else {
		c.stopProgressLoopLocked()
	}

	c.notifyLocked("")
}

// Watch consumes backend notifications until ctx is done.
func (c *Controller) Watch(ctx context.Context, changes <-chan spotify.StateChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-changes:
			if change.State != nil {
				c.HandleRemoteStateChanged(change.State)
			}
			if change.Err != nil {
				c.mu.Lock()
				c.notifyLocked(notificationFor(change.Err))
				c.mu.Unlock()
			}
		}
	}
}

// handleTrackEnded applies end-of-track policy for local and simulated
// playback. Remote tracks end on the backend's side.
func (c *Controller) handleTrackEnded() {
	c.mu.Lock()

	c.stopProgressLoopLocked()

	switch {
	case c.session.Repeat == models.RepeatSingle:
		c.session.Elapsed = 0
		if !c.session.Simulated {
			c.engine.SeekTo(0)
		}
		c.notifyLocked("")
		c.mu.Unlock()
		c.scheduleReplay(c.prevDelay)

	case c.session.Repeat == models.RepeatAll || c.session.Index < len(c.tracks)-1:
		c.mu.Unlock()
		c.Next(context.Background())

	default:
		c.session.Playing = false
		c.notifyLocked("Playlist ended")
		c.mu.Unlock()
	}
}

// scheduleReplay re-invokes Play after the debounce delay.
func (c *Controller) scheduleReplay(delay time.Duration) {
	time.AfterFunc(delay, func() {
		if err := c.Play(context.Background()); err != nil {
			c.logger.Debug("replay failed", "error", err)
		}
	})
}

// startProgressLoopLocked starts the 1s progress loop, always stopping any
// prior one first so at most one runs.
func (c *Controller) startProgressLoopLocked(remote bool) {
	c.stopProgressLoopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel

	var ended <-chan struct{}
	if !remote && !c.session.Simulated {
		ended = c.engine.Ended()
	}

	go c.progressLoop(ctx, remote, ended)
}

func (c *Controller) stopProgressLoopLocked() {
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
}

// progressLoop ticks once a second, polling the remote backend or reading
// the local playhead. Simulated playback advances one second per tick.
func (c *Controller) progressLoop(ctx context.Context, remote bool, ended <-chan struct{}) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ended:
			c.handleTrackEnded()
			return

		case <-ticker.C:
			if remote {
				if state := c.remote.QueryState(ctx); state != nil {
					c.applyRemoteTick(state)
				}
				continue
			}

			c.mu.Lock()
			if !c.session.Playing {
				c.mu.Unlock()
				continue
			}

			if c.session.Simulated {
				c.session.Elapsed++
			} else {
				c.session.Elapsed = c.engine.Position()
			}

			finished := c.session.Duration > 0 && c.session.Elapsed >= c.session.Duration
			c.notifyLocked("")
			c.mu.Unlock()

			if finished {
				c.handleTrackEnded()
				return
			}
		}
	}
}

// applyRemoteTick updates position and duration from a poll without
// restarting the loop.
func (c *Controller) applyRemoteTick(state *spotify.PlaybackState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Elapsed = float64(state.PositionMS) / 1000
	c.session.Duration = float64(state.DurationMS) / 1000
	c.session.Playing = !state.Paused
	if state.Track.Title != "" {
		c.session.Track = state.Track
	}
	c.notifyLocked("")
}

// Close stops the progress loop and releases the local engine.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.stopProgressLoopLocked()
	c.mu.Unlock()
	return c.engine.Close()
}

func (c *Controller) remoteReady() bool {
	return c.remote != nil && c.remote.Ready()
}

// notifyLocked pushes a snapshot without blocking; stale updates are dropped
// in favor of fresh ones.
func (c *Controller) notifyLocked(message string) {
	update := StateUpdate{Session: c.session, Message: message}

	select {
	case c.updates <- update:
	default:
		select {
		case <-c.updates:
		default:
		}
		select {
		case c.updates <- update:
		default:
		}
	}
}

// notificationFor maps backend errors onto the one-line messages shown to
// the user.
func notificationFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrNotAuthenticated):
		return "Spotify session expired - reconnect to continue"
	case errors.Is(err, shared.ErrSubscriptionRequired):
		return "Spotify Premium is required for remote playback"
	default:
		return "Remote playback error"
	}
}

func isBlocked(err error) bool {
	return errors.Is(err, shared.ErrPlaybackBlocked)
}
