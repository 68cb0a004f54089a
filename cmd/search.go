package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/soundwave/internal/shared"
	"github.com/desertthunder/soundwave/internal/spotify"
	"github.com/urfave/cli/v3"
)

// Search queries the Spotify catalog and prints matching tracks. With --add N
// the Nth result is saved to the library's Spotify playlist.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	addIndex := cmd.Int("add")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if query == "" {
		return fmt.Errorf("%w: a search query is required", shared.ErrMissingArgument)
	}

	flow, err := r.newFlow()
	if err != nil {
		return fmt.Errorf("%w: set spotify.client_id in %s", err, r.configPath)
	}

	client := spotify.NewClient(flow, r.logger)

	r.logger.Infof("searching spotify for %q", query)

	tracks, err := client.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if addIndex > 0 {
		if addIndex > len(tracks) {
			return fmt.Errorf("%w: only %d results", shared.ErrInvalidArgument, len(tracks))
		}

		lib, cleanup, err := r.openLibrary()
		if err != nil {
			return err
		}
		defer cleanup()

		added, err := lib.Add(tracks[addIndex-1])
		if err != nil {
			return fmt.Errorf("failed to add track: %w", err)
		}

		r.writePlain("✓ Added to library: %s - %s (%s)\n", added.Artist, added.Title, added.ID)
		return nil
	}

	if useJSON {
		return r.writeJSON(tracks, pretty)
	}

	r.writePlain("Found %d tracks:\n\n", len(tracks))
	for i, track := range tracks {
		r.writePlain("%d. %s - %s\n", i+1, track.Artist, track.Title)
		if track.Album != "" {
			r.writePlain("   Album: %s\n", track.Album)
		}
		if track.Duration > 0 {
			r.writePlain("   Duration: %s\n", shared.FormatDuration(track.Duration))
		}
		if track.AudioURL == "" {
			r.writePlain("   Preview: none\n")
		}
		r.writePlain("\n")
	}

	return nil
}
