package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/soundwave/internal/models"
	"github.com/desertthunder/soundwave/internal/shared"
)

// staticTokens is a TokenSource returning a fixed token.
type staticTokens struct {
	token       string
	invalidated bool
}

func (s *staticTokens) AccessToken(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", shared.ErrNotAuthenticated
	}
	return s.token, nil
}

func (s *staticTokens) Invalidate() {
	s.invalidated = true
	s.token = ""
}

func (s *staticTokens) Valid() bool {
	return s.token != ""
}

// testClient points a Client at an httptest server.
func testClient(t *testing.T, handler http.Handler) (*Client, *staticTokens) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	tokens := &staticTokens{token: "test-token"}
	client := NewClient(tokens, shared.NewLogger(nil))
	client.baseURL = ts.URL

	return client, tokens
}

// fakeDevice scripts Device behavior for backend tests.
type fakeDevice struct {
	events     chan Event
	connectErr error
	toggleErr  error
	state      *PlaybackState

	toggleCalls int
	volumeSet   float64
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{events: make(chan Event, 8)}
}

func (d *fakeDevice) Connect(ctx context.Context) error { return d.connectErr }

func (d *fakeDevice) TogglePlay(ctx context.Context) error {
	d.toggleCalls++
	return d.toggleErr
}

func (d *fakeDevice) Next(ctx context.Context) error     { return nil }
func (d *fakeDevice) Previous(ctx context.Context) error { return nil }

func (d *fakeDevice) SetVolume(ctx context.Context, v float64) error {
	d.volumeSet = v
	return nil
}

func (d *fakeDevice) CurrentState(ctx context.Context) (*PlaybackState, error) {
	return d.state, nil
}

func (d *fakeDevice) Events() <-chan Event { return d.events }

func TestClient(t *testing.T) {
	t.Run("Search", func(t *testing.T) {
		var gotPath, gotQuery string
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"tracks":{"items":[
				{"id":"t1","name":"Holocene","uri":"spotify:track:t1","duration_ms":337000,
				 "preview_url":"https://p.scdn.co/t1",
				 "artists":[{"name":"Bon Iver"}],
				 "album":{"name":"Bon Iver, Bon Iver","images":[{"url":"https://i.scdn.co/a1"}]}}
			]}}`)
		}))

		tracks, err := client.Search(context.Background(), "bon iver")
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}

		if gotPath != "/search" {
			t.Errorf("expected /search, got %s", gotPath)
		}
		if gotQuery != "q=bon+iver&type=track&limit=20" {
			t.Errorf("unexpected query: %s", gotQuery)
		}

		if len(tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(tracks))
		}

		track := tracks[0]
		if track.Source != models.SourceSpotify {
			t.Errorf("expected spotify source, got %s", track.Source)
		}
		if track.Artist != "Bon Iver" || track.Duration != 337.0 {
			t.Errorf("track fields not mapped: %+v", track)
		}
		if track.AudioURL == "" {
			t.Error("preview URL should map to the fallback audio reference")
		}
	})

	t.Run("SearchEmptyQuery", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("empty query should not reach the API")
		}))

		if _, err := client.Search(context.Background(), ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("UnauthorizedInvalidatesToken", func(t *testing.T) {
		client, tokens := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, err := client.Search(context.Background(), "anything")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}

		if !tokens.invalidated {
			t.Error("401 should invalidate the stored token")
		}
	})

	t.Run("TransferPlayback", func(t *testing.T) {
		var gotMethod, gotPath, gotBody string
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			buf := make([]byte, r.ContentLength)
			r.Body.Read(buf)
			gotBody = string(buf)
			w.WriteHeader(http.StatusNoContent)
		}))

		if err := client.TransferPlayback(context.Background(), "device-1"); err != nil {
			t.Fatalf("transfer failed: %v", err)
		}

		if gotMethod != http.MethodPut || gotPath != "/me/player" {
			t.Errorf("expected PUT /me/player, got %s %s", gotMethod, gotPath)
		}
		if gotBody != `{"device_ids":["device-1"],"play":false}` {
			t.Errorf("unexpected transfer body: %s", gotBody)
		}
	})

	t.Run("StartPlayback", func(t *testing.T) {
		var gotQuery, gotBody string
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			buf := make([]byte, r.ContentLength)
			r.Body.Read(buf)
			gotBody = string(buf)
			w.WriteHeader(http.StatusNoContent)
		}))

		err := client.StartPlayback(context.Background(), "device-1", "spotify:track:t1")
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}

		if gotQuery != "device_id=device-1" {
			t.Errorf("unexpected query: %s", gotQuery)
		}
		if gotBody != `{"uris":["spotify:track:t1"]}` {
			t.Errorf("unexpected body: %s", gotBody)
		}
	})

	t.Run("Seek", func(t *testing.T) {
		var gotQuery string
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			w.WriteHeader(http.StatusNoContent)
		}))

		if err := client.Seek(context.Background(), 45000); err != nil {
			t.Fatalf("seek failed: %v", err)
		}

		if gotQuery != "position_ms=45000" {
			t.Errorf("unexpected query: %s", gotQuery)
		}
	})

	t.Run("PlayerStateIdle", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		state, err := client.PlayerState(context.Background())
		if err != nil {
			t.Fatalf("player state failed: %v", err)
		}
		if state != nil {
			t.Errorf("expected nil state for idle player, got %+v", state)
		}
	})

	t.Run("PlayerState", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"device":{"id":"device-1"},"progress_ms":12000,"is_playing":true,
				"item":{"id":"t1","name":"Holocene","uri":"spotify:track:t1","duration_ms":337000}}`)
		}))

		state, err := client.PlayerState(context.Background())
		if err != nil {
			t.Fatalf("player state failed: %v", err)
		}

		if state.PositionMS != 12000 || state.DurationMS != 337000 || state.Paused {
			t.Errorf("state not mapped: %+v", state)
		}
		if state.Track.Title != "Holocene" {
			t.Errorf("expected track metadata, got %+v", state.Track)
		}
	})
}

func TestBackend(t *testing.T) {
	t.Run("InitializeRequiresToken", func(t *testing.T) {
		device := newFakeDevice()
		backend := NewBackend(nil, device, &staticTokens{}, shared.NewLogger(nil))

		err := backend.Initialize(context.Background())
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}

		if backend.Status() != Uninitialized {
			t.Errorf("expected uninitialized, got %v", backend.Status())
		}
	})

	t.Run("InitializeConnectFailure", func(t *testing.T) {
		device := newFakeDevice()
		device.connectErr = errors.New("network down")
		backend := NewBackend(nil, device, &staticTokens{token: "t"}, shared.NewLogger(nil))

		err := backend.Initialize(context.Background())
		if !errors.Is(err, shared.ErrSdkError) {
			t.Errorf("expected ErrSdkError, got %v", err)
		}

		if backend.Status() != NotReady {
			t.Errorf("expected not ready, got %v", backend.Status())
		}
	})

	t.Run("InitializeWaitsForReady", func(t *testing.T) {
		device := newFakeDevice()
		backend := NewBackend(nil, device, &staticTokens{token: "t"}, shared.NewLogger(nil))

		device.events <- Event{Kind: EventReady, DeviceID: "device-1"}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := backend.Initialize(ctx); err != nil {
			t.Fatalf("initialize failed: %v", err)
		}

		if backend.Status() != Ready {
			t.Errorf("expected ready, got %v", backend.Status())
		}
		if backend.DeviceID() != "device-1" {
			t.Errorf("expected device-1, got %s", backend.DeviceID())
		}
	})

	t.Run("NotReadyTransition", func(t *testing.T) {
		device := newFakeDevice()
		backend := NewBackend(nil, device, &staticTokens{token: "t"}, shared.NewLogger(nil))

		device.events <- Event{Kind: EventReady, DeviceID: "device-1"}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := backend.Initialize(ctx); err != nil {
			t.Fatalf("initialize failed: %v", err)
		}

		device.events <- Event{Kind: EventNotReady, DeviceID: "device-1"}

		waitFor(t, func() bool { return backend.Status() == NotReady })
	})

	t.Run("AccountErrorIsNonFatal", func(t *testing.T) {
		device := newFakeDevice()
		backend := NewBackend(nil, device, &staticTokens{token: "t"}, shared.NewLogger(nil))

		device.events <- Event{Kind: EventReady, DeviceID: "device-1"}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := backend.Initialize(ctx); err != nil {
			t.Fatalf("initialize failed: %v", err)
		}

		drainNotifications(backend)
		device.events <- Event{Kind: EventAccountError}

		change := nextNotification(t, backend)
		if !errors.Is(change.Err, shared.ErrSubscriptionRequired) {
			t.Errorf("expected ErrSubscriptionRequired, got %v", change.Err)
		}

		if backend.Status() != Ready {
			t.Error("account restriction should not change readiness")
		}
	})

	t.Run("PlayByReferenceNotReady", func(t *testing.T) {
		device := newFakeDevice()
		backend := NewBackend(nil, device, &staticTokens{token: "t"}, shared.NewLogger(nil))

		ok, err := backend.PlayByReference(context.Background(), "spotify:track:t1")
		if ok {
			t.Error("expected failure before ready")
		}
		if !errors.Is(err, shared.ErrNotReady) {
			t.Errorf("expected ErrNotReady, got %v", err)
		}
	})

	t.Run("PlayByReferencePartialFailure", func(t *testing.T) {
		var calls []string
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, r.URL.Path)
			if r.URL.Path == "/me/player/play" {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))

		device := newFakeDevice()
		backend := NewBackend(client, device, &staticTokens{token: "t"}, shared.NewLogger(nil))

		device.events <- Event{Kind: EventReady, DeviceID: "device-1"}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := backend.Initialize(ctx); err != nil {
			t.Fatalf("initialize failed: %v", err)
		}

		ok, err := backend.PlayByReference(context.Background(), "spotify:track:t1")
		if ok || err == nil {
			t.Error("failed start should fail the whole operation")
		}

		if len(calls) != 2 {
			t.Errorf("expected transfer then play with no rollback, got %v", calls)
		}
	})

	t.Run("TransportSwallowsErrors", func(t *testing.T) {
		device := newFakeDevice()
		device.toggleErr = errors.New("device gone")
		backend := NewBackend(nil, device, &staticTokens{token: "t"}, shared.NewLogger(nil))

		device.events <- Event{Kind: EventReady, DeviceID: "device-1"}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := backend.Initialize(ctx); err != nil {
			t.Fatalf("initialize failed: %v", err)
		}

		if backend.Toggle(context.Background()) {
			t.Error("failed toggle should report false")
		}
		if device.toggleCalls != 1 {
			t.Errorf("expected one toggle attempt, got %d", device.toggleCalls)
		}
	})

	t.Run("QueryStateNotReady", func(t *testing.T) {
		device := newFakeDevice()
		device.state = &PlaybackState{PositionMS: 1000}
		backend := NewBackend(nil, device, &staticTokens{token: "t"}, shared.NewLogger(nil))

		if state := backend.QueryState(context.Background()); state != nil {
			t.Errorf("expected nil state before ready, got %+v", state)
		}
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func nextNotification(t *testing.T, backend *Backend) StateChange {
	t.Helper()

	select {
	case change := <-backend.Notifications():
		return change
	case <-time.After(time.Second):
		t.Fatal("no notification received")
		return StateChange{}
	}
}

func drainNotifications(backend *Backend) {
	for {
		select {
		case <-backend.Notifications():
		default:
			return
		}
	}
}

func TestConnectDeviceEmit(t *testing.T) {
	t.Run("FullChannelDropsOldest", func(t *testing.T) {
		device := NewConnectDevice(nil, shared.NewLogger(nil)).(*connectDevice)

		for i := 0; i < cap(device.events); i++ {
			device.emit(Event{Kind: EventStateChanged})
		}
		device.emit(Event{Kind: EventReady, DeviceID: "latest"})

		var last Event
		for {
			select {
			case event := <-device.events:
				last = event
				continue
			default:
			}
			break
		}

		if last.Kind != EventReady || last.DeviceID != "latest" {
			t.Errorf("newest event should survive a full channel, got %+v", last)
		}
	})

	t.Run("NeverBlocksUnderContention", func(t *testing.T) {
		device := NewConnectDevice(nil, shared.NewLogger(nil)).(*connectDevice)

		for i := 0; i < cap(device.events); i++ {
			device.emit(Event{Kind: EventStateChanged})
		}

		done := make(chan struct{})
		go func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 200; j++ {
						device.emit(Event{Kind: EventStateChanged})
					}
				}()
			}
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("emit blocked on a saturated event channel")
		}
	})
}
