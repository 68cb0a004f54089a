package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/soundwave/internal/formatter"
	"github.com/desertthunder/soundwave/internal/models"
	"github.com/desertthunder/soundwave/internal/shared"
	"github.com/urfave/cli/v3"
)

// LibraryList prints the library, optionally filtered by source and query.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	source := cmd.String("source")
	query := cmd.String("query")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	lib, cleanup, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	tracks := lib.Filter(source, query)

	if useJSON {
		return r.writeJSON(tracks, pretty)
	}

	r.writePlainHeader(fmt.Sprintf("Library (%d tracks)", len(tracks)))
	for i, track := range tracks {
		r.writePlain("%d. %s - %s\n", i+1, track.Artist, track.Title)
		if track.Album != "" {
			r.writePlain("   Album: %s\n", track.Album)
		}
		r.writePlain("   ID: %s\n", track.ID)
		r.writePlain("   Source: %s\n", track.Source)
		if track.Duration > 0 {
			r.writePlain("   Duration: %s\n", shared.FormatDuration(track.Duration))
		}
		r.writePlain("\n")
	}

	return nil
}

// LibraryPlaylists prints every playlist with its track count.
func (r *Runner) LibraryPlaylists(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	lib, cleanup, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	playlists := lib.Playlists()

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	counts := make(map[string]int)
	for _, track := range lib.Tracks() {
		counts[track.PlaylistID]++
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
	for i, playlist := range playlists {
		r.writePlain("%d. %s (%s)\n", i+1, playlist.Name, playlist.ID)
		if playlist.Description != "" {
			r.writePlain("   %s\n", playlist.Description)
		}
		r.writePlain("   Tracks: %d\n\n", counts[playlist.ID])
	}

	return nil
}

// LibraryCreate adds a new user playlist.
func (r *Runner) LibraryCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: a playlist name is required", shared.ErrMissingArgument)
	}

	lib, cleanup, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	playlist, err := lib.CreatePlaylist(name, cmd.String("description"))
	if err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}

	r.writePlain("✓ Created playlist: %s\n", playlist.Name)
	r.writePlain("  ID: %s\n", playlist.ID)
	return nil
}

// LibraryAdd ingests a local audio file into the library.
func (r *Runner) LibraryAdd(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: a file path is required", shared.ErrMissingArgument)
	}

	lib, cleanup, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	track, err := lib.AddLocalFile(path)
	if err != nil {
		return fmt.Errorf("failed to add file: %w", err)
	}

	r.writePlain("✓ Added: %s (%s)\n", track.Title, shared.FormatDuration(track.Duration))
	r.writePlain("  ID: %s\n", track.ID)
	return nil
}

// LibraryRemove deletes a track from the library by ID.
func (r *Runner) LibraryRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: a track ID is required", shared.ErrMissingArgument)
	}

	lib, cleanup, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := lib.Remove(id); err != nil {
		return fmt.Errorf("failed to remove track: %w", err)
	}

	r.writePlain("✓ Removed %s\n", id)
	return nil
}

// LibraryExport writes a playlist's tracks to CSV, Markdown or plain text.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("playlist")
	format := strings.ToLower(cmd.String("format"))
	output := cmd.String("output")

	lib, cleanup, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	var playlist models.Playlist
	found := false
	for _, pl := range lib.Playlists() {
		if pl.ID == playlistID {
			playlist = pl
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	var tracks []models.Track
	for _, track := range lib.Tracks() {
		if track.PlaylistID == playlistID {
			tracks = append(tracks, track)
		}
	}

	r.logger.Infof("exporting playlist %v with %v tracks as %v", playlistID, len(tracks), format)

	switch format {
	case "csv":
		result, err := formatter.WriteCSVExport(playlist, tracks, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d tracks\n", len(tracks))
		r.writePlain("  Tracks: %s\n", result.TracksFile)
		r.writePlain("  Metadata: %s\n", result.MetadataFile)
	case "markdown", "md":
		imageURL := ""
		for _, track := range tracks {
			if track.ArtworkURL != "" {
				imageURL = track.ArtworkURL
				break
			}
		}
		result, err := formatter.WriteMarkdownExport(playlist, tracks, output, imageURL)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d tracks to %s\n", len(tracks), result.Directory)
	case "text", "txt":
		path, err := formatter.WriteTextExport(playlist, tracks, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d tracks to %s\n", len(tracks), path)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	return nil
}
