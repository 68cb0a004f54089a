package spotify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundwave/internal/shared"
)

// Status is the backend lifecycle state.
type Status int

const (
	Uninitialized Status = iota
	Connecting
	Ready
	NotReady
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case NotReady:
		return "not ready"
	default:
		return "uninitialized"
	}
}

// StateChange is a backend notification for the playback controller.
// Exactly one of State, Err, or a readiness transition is meaningful.
type StateChange struct {
	State *PlaybackState
	Ready bool
	Err   error
}

// TokenValidator reports whether a usable access token is present.
type TokenValidator interface {
	Valid() bool
}

// Backend is the remote playback backend state machine.
//
// Ready is the only state that accepts transport commands. The backend never
// tears down; losing the device flips it to NotReady and a later ready
// signal flips it back.
type Backend struct {
	mu       sync.Mutex
	status   Status
	deviceID string

	client *Client
	device Device
	tokens TokenValidator
	logger *log.Logger

	notifications chan StateChange
}

// NewBackend wires a backend over the given client and device.
func NewBackend(client *Client, device Device, tokens TokenValidator, logger *log.Logger) *Backend {
	return &Backend{
		client:        client,
		device:        device,
		tokens:        tokens,
		logger:        logger,
		notifications: make(chan StateChange, 16),
	}
}

// Status returns the current lifecycle state.
func (b *Backend) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Ready reports whether transport commands are accepted.
func (b *Backend) Ready() bool {
	return b.Status() == Ready
}

// DeviceID returns the connected device's ID, empty until ready.
func (b *Backend) DeviceID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deviceID
}

// Notifications returns the stream of backend state changes.
func (b *Backend) Notifications() <-chan StateChange {
	return b.notifications
}

// Initialize connects the device and waits for its first ready signal.
//
// Requires a valid token. The event watcher keeps running after Initialize
// returns, so a backend that times out waiting can still become ready later.
func (b *Backend) Initialize(ctx context.Context) error {
	if !b.tokens.Valid() {
		return shared.ErrNotAuthenticated
	}

	b.setStatus(Connecting, "")

	if err := b.device.Connect(ctx); err != nil {
		b.setStatus(NotReady, "")
		return fmt.Errorf("%w: %v", shared.ErrSdkError, err)
	}

	readyCh := make(chan string, 1)
	go b.consumeEvents(ctx, readyCh)

	select {
	case deviceID := <-readyCh:
		b.logger.Info("remote playback ready", "device", deviceID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consumeEvents translates device events into backend state and controller
// notifications. The first ready signal is also delivered on readyCh.
func (b *Backend) consumeEvents(ctx context.Context, readyCh chan<- string) {
	var readySignalled bool

	for {
		var event Event
		select {
		case <-ctx.Done():
			return
		case event = <-b.device.Events():
		}

		switch event.Kind {
		case EventReady:
			b.setStatus(Ready, event.DeviceID)
			if !readySignalled {
				readySignalled = true
				readyCh <- event.DeviceID
			}
			b.notify(StateChange{Ready: true})
		case EventNotReady:
			b.setStatus(NotReady, "")
			b.notify(StateChange{Ready: false})
		case EventStateChanged:
			b.notify(StateChange{State: event.State, Ready: true})
		case EventAuthError:
			b.setStatus(NotReady, "")
			b.notify(StateChange{Err: shared.ErrNotAuthenticated})
		case EventAccountError:
			// Non-fatal: playback needs a premium account but the
			// session itself stays up.
			b.notify(StateChange{Err: shared.ErrSubscriptionRequired})
		case EventPlaybackError:
			b.notify(StateChange{Err: event.Err})
		}
	}
}

func (b *Backend) setStatus(status Status, deviceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
	b.deviceID = deviceID
}

// notify pushes a state change without blocking the event loop.
func (b *Backend) notify(change StateChange) {
	select {
	case b.notifications <- change:
	default:
		b.logger.Debug("dropped backend notification")
	}
}

// PlayByReference transfers playback to the connected device and starts the
// given track.
//
// Partial failure is overall failure; a successful transfer followed by a
// failed start is not rolled back. Success requires the start call itself to
// succeed.
func (b *Backend) PlayByReference(ctx context.Context, uri string) (bool, error) {
	b.mu.Lock()
	status, deviceID := b.status, b.deviceID
	b.mu.Unlock()

	if status != Ready {
		return false, shared.ErrNotReady
	}

	if err := b.client.TransferPlayback(ctx, deviceID); err != nil {
		return false, err
	}

	if err := b.client.StartPlayback(ctx, deviceID, uri); err != nil {
		return false, err
	}

	return true, nil
}

// Toggle flips remote play/pause. Reports failure instead of propagating it.
func (b *Backend) Toggle(ctx context.Context) bool {
	return b.transport(ctx, "toggle", b.device.TogglePlay)
}

// Next skips forward in the remote queue.
func (b *Backend) Next(ctx context.Context) bool {
	return b.transport(ctx, "next", b.device.Next)
}

// Previous skips backward in the remote queue.
func (b *Backend) Previous(ctx context.Context) bool {
	return b.transport(ctx, "previous", b.device.Previous)
}

// SetVolume applies volume in [0, 1] to the remote device.
func (b *Backend) SetVolume(ctx context.Context, v float64) bool {
	return b.transport(ctx, "volume", func(ctx context.Context) error {
		return b.device.SetVolume(ctx, v)
	})
}

// Seek jumps to an absolute position in the current remote track.
func (b *Backend) Seek(ctx context.Context, positionMS int) bool {
	return b.transport(ctx, "seek", func(ctx context.Context) error {
		return b.client.Seek(ctx, positionMS)
	})
}

// transport runs a remote command when ready, swallowing errors into a
// boolean result. Transport is best effort; callers fall back locally.
func (b *Backend) transport(ctx context.Context, name string, fn func(context.Context) error) bool {
	if b.Status() != Ready {
		return false
	}

	if err := fn(ctx); err != nil {
		b.logger.Debug("remote transport failed", "command", name, "error", err)
		return false
	}

	return true
}

// QueryState returns the remote playback snapshot, or nil when the backend
// is not ready or the query fails.
func (b *Backend) QueryState(ctx context.Context) *PlaybackState {
	if b.Status() != Ready {
		return nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	state, err := b.device.CurrentState(queryCtx)
	if err != nil {
		b.logger.Debug("state query failed", "error", err)
		return nil
	}

	return state
}
