package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundwave/internal/player"
	"github.com/desertthunder/soundwave/internal/shared"
	"github.com/desertthunder/soundwave/internal/spotify"
	"github.com/desertthunder/soundwave/internal/ui"
	"github.com/urfave/cli/v3"
)

// connectTimeout bounds the wait for the Spotify device to report ready on
// startup. The watcher keeps running, so a slow device can still come up
// after the player is on screen.
const connectTimeout = 10 * time.Second

// Play launches the interactive player.
//
// The Spotify backend is attached when tokens are stored and --local-only is
// not set; any failure to bring it up degrades to local playback.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	localOnly := cmd.Bool("local-only")

	lib, cleanup, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(filepath.Join(r.stateDir(), "player.log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}

	engine := player.NewBeepEngine(r.config.Audio, fileLogger)

	var remote player.Remote
	var backend *spotify.Backend
	if !localOnly {
		backend = r.connectSpotify(ctx, fileLogger)
		if backend != nil {
			remote = backend
		}
	}

	controller := player.NewController(engine, remote, r.config.Audio.DefaultVolume, fileLogger)
	defer controller.Close()
	controller.SetTracks(lib.Tracks())

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if backend != nil {
		go controller.Watch(watchCtx, backend.Notifications())
	}

	model := ui.NewModel(ctx, controller, lib)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running player: %w", err)
	}

	return nil
}

// connectSpotify brings up the remote backend, returning nil when it cannot
// serve this session. Only a missing or rejected token is terminal; a device
// that is slow to report ready is kept and may connect later.
func (r *Runner) connectSpotify(ctx context.Context, logger *log.Logger) *spotify.Backend {
	flow, err := r.newFlow()
	if err != nil {
		logger.Warn("spotify disabled", "error", err)
		return nil
	}
	if !flow.Tokens().Valid() {
		if _, err := flow.Refresh(ctx); err != nil {
			logger.Warn("spotify disabled, not authenticated", "error", err)
			return nil
		}
	}

	client := spotify.NewClient(flow, logger)
	device := spotify.NewConnectDevice(client, logger)
	backend := spotify.NewBackend(client, device, flow.Tokens(), logger)

	initCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := backend.Initialize(initCtx); err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			logger.Warn("spotify backend rejected token", "error", err)
			return nil
		}
		logger.Warn("spotify device not ready yet", "error", err)
	}

	return backend
}
