package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/soundwave/internal/models"
	"github.com/desertthunder/soundwave/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// seedPlaylist inserts a playlist tracks can reference
func seedPlaylist(t *testing.T, db *sql.DB, dto models.Playlist) *models.PersistedPlaylist {
	t.Helper()

	repo := NewPlaylistRepository(db)
	playlist := models.NewPersistedPlaylist(0, dto)
	if err := repo.Create(playlist); err != nil {
		t.Fatalf("failed to seed playlist: %v", err)
	}
	return playlist
}

func localTrack(playlistID string) models.Track {
	return models.Track{
		Title:      "Holocene",
		Artist:     "Bon Iver",
		Album:      "Bon Iver, Bon Iver",
		Duration:   337.0,
		Source:     models.SourceLocal,
		AudioURL:   "/tmp/holocene.mp3",
		PlaylistID: playlistID,
	}
}

func spotifyTrack(playlistID string) models.Track {
	return models.Track{
		ID:         "4fbvXwMTXPWaFyaMWUm9CR",
		Title:      "Re: Stacks",
		Artist:     "Bon Iver",
		Album:      "For Emma, Forever Ago",
		Duration:   401.0,
		Source:     models.SourceSpotify,
		SpotifyURI: "spotify:track:4fbvXwMTXPWaFyaMWUm9CR",
		PlaylistID: playlistID,
	}
}

func TestPlaylistRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist := models.NewPersistedPlaylist(0, models.Playlist{Name: "Road Trip"})

		if err := repo.Create(playlist); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		if playlist.ID() == "" {
			t.Error("playlist ID should be set after creation")
		}
	})

	t.Run("CreateKeepsGivenID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		dto := models.DefaultPlaylists()[0]
		playlist := models.NewPersistedPlaylist(0, dto)

		if err := repo.Create(playlist); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		if playlist.ID() != models.DefaultPlaylistID {
			t.Errorf("expected ID %s, got %s", models.DefaultPlaylistID, playlist.ID())
		}
	})

	t.Run("CreateRequiresName", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist := models.NewPersistedPlaylist(0, models.Playlist{})

		if err := repo.Create(playlist); err == nil {
			t.Error("expected validation error for empty name")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		created := seedPlaylist(t, db, models.Playlist{Name: "Road Trip", Description: "Loud songs"})

		retrieved, err := repo.Get(created.ID())
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}

		if retrieved.Playlist().Name != "Road Trip" {
			t.Errorf("expected name Road Trip, got %s", retrieved.Playlist().Name)
		}

		if retrieved.Playlist().Description != "Loud songs" {
			t.Errorf("expected description preserved, got %q", retrieved.Playlist().Description)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)

		_, err := repo.Get("missing")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist := seedPlaylist(t, db, models.Playlist{Name: "Road Trip"})

		dto := playlist.Playlist()
		dto.Name = "Summer Road Trip"
		updated := models.NewPersistedPlaylist(playlist.Sequence(), dto)

		if err := repo.Update(updated); err != nil {
			t.Fatalf("failed to update playlist: %v", err)
		}

		retrieved, err := repo.Get(playlist.ID())
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}

		if retrieved.Playlist().Name != "Summer Road Trip" {
			t.Errorf("expected updated name, got %s", retrieved.Playlist().Name)
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist := models.NewPersistedPlaylist(0, models.Playlist{ID: "missing", Name: "Ghost"})

		err := repo.Update(playlist)
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("DeleteUnsupported", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)

		err := repo.Delete(models.DefaultPlaylistID)
		if !errors.Is(err, shared.ErrNotImplemented) {
			t.Errorf("expected ErrNotImplemented, got %v", err)
		}
	})

	t.Run("ListOrdersByInsertion", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		first := seedPlaylist(t, db, models.Playlist{Name: "First"})
		second := seedPlaylist(t, db, models.Playlist{Name: "Second"})

		playlists, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list playlists: %v", err)
		}

		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}

		if playlists[0].ID() != first.ID() || playlists[1].ID() != second.ID() {
			t.Error("playlists not in insertion order")
		}
	})

	t.Run("ListByName", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		seedPlaylist(t, db, models.Playlist{Name: "First"})
		seedPlaylist(t, db, models.Playlist{Name: "Second"})

		playlists, err := repo.List(map[string]any{"name": "Second"})
		if err != nil {
			t.Fatalf("failed to list playlists: %v", err)
		}

		if len(playlists) != 1 || playlists[0].Playlist().Name != "Second" {
			t.Errorf("expected single match for Second, got %d", len(playlists))
		}
	})
}

func TestTrackRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := seedPlaylist(t, db, models.Playlist{Name: "Road Trip"})
		repo := NewTrackRepository(db)
		track := models.NewPersistedTrack(0, localTrack(playlist.ID()))

		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		if track.ID() == "" {
			t.Error("track ID should be set after creation")
		}
	})

	t.Run("CreateKeepsUpstreamID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := seedPlaylist(t, db, models.Playlist{Name: "Road Trip"})
		repo := NewTrackRepository(db)
		dto := spotifyTrack(playlist.ID())
		track := models.NewPersistedTrack(0, dto)

		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		if track.ID() != dto.ID {
			t.Errorf("expected upstream ID %s, got %s", dto.ID, track.ID())
		}
	})

	t.Run("CreateValidatesSource", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := seedPlaylist(t, db, models.Playlist{Name: "Road Trip"})
		repo := NewTrackRepository(db)

		dto := localTrack(playlist.ID())
		dto.Source = "cassette"
		track := models.NewPersistedTrack(0, dto)

		if err := repo.Create(track); err == nil {
			t.Error("expected validation error for unknown source")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := seedPlaylist(t, db, models.Playlist{Name: "Road Trip"})
		repo := NewTrackRepository(db)
		track := models.NewPersistedTrack(0, spotifyTrack(playlist.ID()))

		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		retrieved, err := repo.Get(track.ID())
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}

		got := retrieved.Track()
		if got.Title != "Re: Stacks" || got.SpotifyURI == "" {
			t.Errorf("track fields not preserved: %+v", got)
		}

		if got.Source != models.SourceSpotify {
			t.Errorf("expected spotify source, got %s", got.Source)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := seedPlaylist(t, db, models.Playlist{Name: "Road Trip"})
		repo := NewTrackRepository(db)
		track := models.NewPersistedTrack(0, localTrack(playlist.ID()))

		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		dto := track.Track()
		dto.Album = "Bon Iver"
		updated := models.NewPersistedTrack(track.Sequence(), dto)
		updated.SetID(track.ID())

		if err := repo.Update(updated); err != nil {
			t.Fatalf("failed to update track: %v", err)
		}

		retrieved, err := repo.Get(track.ID())
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}

		if retrieved.Track().Album != "Bon Iver" {
			t.Errorf("expected updated album, got %s", retrieved.Track().Album)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := seedPlaylist(t, db, models.Playlist{Name: "Road Trip"})
		repo := NewTrackRepository(db)
		track := models.NewPersistedTrack(0, localTrack(playlist.ID()))

		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		if err := repo.Delete(track.ID()); err != nil {
			t.Fatalf("failed to delete track: %v", err)
		}

		_, err := repo.Get(track.ID())
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound after delete, got %v", err)
		}
	})

	t.Run("DeleteNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)

		err := repo.Delete("missing")
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("ListByPlaylist", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		first := seedPlaylist(t, db, models.Playlist{Name: "First"})
		second := seedPlaylist(t, db, models.Playlist{Name: "Second"})
		repo := NewTrackRepository(db)

		if err := repo.Create(models.NewPersistedTrack(0, localTrack(first.ID()))); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		if err := repo.Create(models.NewPersistedTrack(0, spotifyTrack(second.ID()))); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		tracks, err := repo.List(map[string]any{"playlist_id": first.ID()})
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}

		if len(tracks) != 1 || tracks[0].Track().PlaylistID != first.ID() {
			t.Errorf("expected 1 track for playlist %s, got %d", first.ID(), len(tracks))
		}
	})

	t.Run("ListBySource", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := seedPlaylist(t, db, models.Playlist{Name: "Mixed"})
		repo := NewTrackRepository(db)

		if err := repo.Create(models.NewPersistedTrack(0, localTrack(playlist.ID()))); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		if err := repo.Create(models.NewPersistedTrack(0, spotifyTrack(playlist.ID()))); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		tracks, err := repo.List(map[string]any{"source": models.SourceSpotify})
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}

		if len(tracks) != 1 || tracks[0].Track().Source != models.SourceSpotify {
			t.Errorf("expected 1 spotify track, got %d", len(tracks))
		}
	})

	t.Run("ListOrdersByInsertion", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := seedPlaylist(t, db, models.Playlist{Name: "Ordered"})
		repo := NewTrackRepository(db)

		first := models.NewPersistedTrack(0, localTrack(playlist.ID()))
		if err := repo.Create(first); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		second := models.NewPersistedTrack(0, spotifyTrack(playlist.ID()))
		if err := repo.Create(second); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		tracks, err := repo.List(map[string]any{"playlist_id": playlist.ID()})
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}

		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}

		if tracks[0].ID() != first.ID() || tracks[1].ID() != second.ID() {
			t.Error("tracks not in insertion order")
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	first, err := NextSequence(db, "tracks")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}

	second, err := NextSequence(db, "tracks")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}

	if second != first+1 {
		t.Errorf("expected consecutive sequences, got %d then %d", first, second)
	}
}
