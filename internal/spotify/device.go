package spotify

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundwave/internal/shared"
)

// EventKind classifies device events.
type EventKind int

const (
	EventReady EventKind = iota
	EventNotReady
	EventStateChanged
	EventAuthError
	EventAccountError
	EventPlaybackError
)

// Event is a signal from the connected device watcher.
type Event struct {
	Kind     EventKind
	DeviceID string
	State    *PlaybackState
	Err      error
}

// Device is the connected playback device surface. The production
// implementation polls the Web API; tests inject a fake.
type Device interface {
	// Connect establishes the session and starts the event watcher.
	Connect(ctx context.Context) error
	// TogglePlay flips between playing and paused.
	TogglePlay(ctx context.Context) error
	// Next skips forward in the remote queue.
	Next(ctx context.Context) error
	// Previous skips backward in the remote queue.
	Previous(ctx context.Context) error
	// SetVolume sets device volume in [0, 1].
	SetVolume(ctx context.Context, v float64) error
	// CurrentState returns the playback snapshot, nil when idle.
	CurrentState(ctx context.Context) (*PlaybackState, error)
	// Events returns the stream of device signals.
	Events() <-chan Event
}

// pollInterval is the watcher cadence for device and state changes.
const pollInterval = 2 * time.Second

// connectDevice drives the Web API as a [Device]. A background watcher polls
// for the active device and playback state, emitting ready and not-ready
// transitions and state-changed snapshots.
type connectDevice struct {
	client *Client
	events chan Event
	logger *log.Logger
}

// NewConnectDevice creates the production device over the given client.
func NewConnectDevice(client *Client, logger *log.Logger) Device {
	return &connectDevice{
		client: client,
		events: make(chan Event, 8),
		logger: logger,
	}
}

// Connect verifies API access and starts the watcher. The watcher runs until
// ctx is cancelled.
func (d *connectDevice) Connect(ctx context.Context) error {
	devices, err := d.client.Devices(ctx)
	if err != nil {
		return err
	}

	go d.watch(ctx)

	if active := activeDevice(devices); active != nil {
		d.emit(Event{Kind: EventReady, DeviceID: active.ID})
	}

	return nil
}

// watch polls for device availability and playback state.
func (d *connectDevice) watch(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var ready bool
	var lastDeviceID string

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		devices, err := d.client.Devices(ctx)
		if err != nil {
			if errors.Is(err, shared.ErrNotAuthenticated) {
				d.emit(Event{Kind: EventAuthError, Err: err})
				return
			}
			d.logger.Debug("device poll failed", "error", err)
			continue
		}

		active := activeDevice(devices)
		switch {
		case active != nil && (!ready || active.ID != lastDeviceID):
			ready = true
			lastDeviceID = active.ID
			d.emit(Event{Kind: EventReady, DeviceID: active.ID})
		case active == nil && ready:
			ready = false
			d.emit(Event{Kind: EventNotReady, DeviceID: lastDeviceID})
		}

		if !ready {
			continue
		}

		state, err := d.client.PlayerState(ctx)
		if err != nil {
			d.logger.Debug("state poll failed", "error", err)
			continue
		}
		if state != nil {
			d.emit(Event{Kind: EventStateChanged, State: state})
		}
	}
}

// activeDevice picks the user's active device, if any.
func activeDevice(devices []DeviceInfo) *DeviceInfo {
	for i := range devices {
		if devices[i].IsActive {
			return &devices[i]
		}
	}
	return nil
}

// emit delivers an event without blocking; a full channel drops the oldest
// signal in favor of the new one. A concurrent emitter can steal the freed
// slot, so the retry also refuses to block.
func (d *connectDevice) emit(event Event) {
	select {
	case d.events <- event:
	default:
		select {
		case <-d.events:
		default:
		}
		select {
		case d.events <- event:
		default:
		}
	}
}

func (d *connectDevice) TogglePlay(ctx context.Context) error {
	state, err := d.client.PlayerState(ctx)
	if err != nil {
		return err
	}

	if state == nil || state.Paused {
		return d.client.Resume(ctx)
	}
	return d.client.Pause(ctx)
}

func (d *connectDevice) Next(ctx context.Context) error {
	return d.client.Next(ctx)
}

func (d *connectDevice) Previous(ctx context.Context) error {
	return d.client.Previous(ctx)
}

func (d *connectDevice) SetVolume(ctx context.Context, v float64) error {
	percent := int(shared.Clamp(v, 0, 1) * 100)
	return d.client.SetVolume(ctx, percent)
}

func (d *connectDevice) CurrentState(ctx context.Context) (*PlaybackState, error) {
	return d.client.PlayerState(ctx)
}

func (d *connectDevice) Events() <-chan Event {
	return d.events
}
