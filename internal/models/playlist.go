package models

import (
	"fmt"
	"time"
)

// Default playlists seeded on first run. The default playlist always exists;
// playlist deletion is not supported.
const (
	DefaultPlaylistID        = "my-music"
	SpotifyPlaylistID        = "spotify-tracks"
	DefaultPlaylistName      = "My Music"
	SpotifyPlaylistName      = "Spotify Tracks"
	defaultPlaylistDesc      = "Your uploaded music"
	spotifyTracksDesc        = "Songs from Spotify"
	DefaultPlaylistCreatedBy = "soundwave"
)

// Playlist is a named ordered collection of tracks.
type Playlist struct {
	ID          string
	Name        string
	Description string
	IsDefault   bool
	CreatedAt   time.Time
}

// DefaultPlaylists returns the playlists every library starts with.
func DefaultPlaylists() []Playlist {
	now := time.Now()
	return []Playlist{
		{ID: DefaultPlaylistID, Name: DefaultPlaylistName, Description: defaultPlaylistDesc, IsDefault: true, CreatedAt: now},
		{ID: SpotifyPlaylistID, Name: SpotifyPlaylistName, Description: spotifyTracksDesc, IsDefault: true, CreatedAt: now},
	}
}

// PersistedPlaylist is the database-backed representation of a [Playlist].
type PersistedPlaylist struct {
	id        string
	sequence  int
	playlist  Playlist
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewPersistedPlaylist wraps a playlist DTO for persistence.
func NewPersistedPlaylist(sequence int, playlist Playlist) *PersistedPlaylist {
	now := time.Now()
	if playlist.CreatedAt.IsZero() {
		playlist.CreatedAt = now
	}
	return &PersistedPlaylist{
		id:        playlist.ID,
		sequence:  sequence,
		playlist:  playlist,
		createdAt: playlist.CreatedAt,
		updatedAt: now,
	}
}

func (p *PersistedPlaylist) ID() string            { return p.id }
func (p *PersistedPlaylist) Sequence() int         { return p.sequence }
func (p *PersistedPlaylist) Playlist() Playlist    { return p.playlist }
func (p *PersistedPlaylist) CreatedAt() time.Time  { return p.createdAt }
func (p *PersistedPlaylist) UpdatedAt() time.Time  { return p.updatedAt }
func (p *PersistedPlaylist) DeletedAt() *time.Time { return p.deletedAt }

func (p *PersistedPlaylist) SetID(id string) {
	p.id = id
	p.playlist.ID = id
}
func (p *PersistedPlaylist) SetUpdatedAt(ts time.Time)  { p.updatedAt = ts }
func (p *PersistedPlaylist) SetDeletedAt(ts *time.Time) { p.deletedAt = ts }

// Validate checks the playlist invariants before it is written to the store.
func (p *PersistedPlaylist) Validate() error {
	if p.playlist.Name == "" {
		return fmt.Errorf("playlist name is required")
	}
	return nil
}

// RepeatMode controls end-of-track behavior for the playback session.
type RepeatMode string

const (
	RepeatNone   RepeatMode = "none"
	RepeatSingle RepeatMode = "single"
	RepeatAll    RepeatMode = "all"
)

// Next cycles none → single → all → none.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatSingle
	case RepeatSingle:
		return RepeatAll
	default:
		return RepeatNone
	}
}

func (m RepeatMode) String() string {
	switch m {
	case RepeatSingle:
		return "Single"
	case RepeatAll:
		return "All"
	default:
		return "OFF"
	}
}
