package models

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies which playback backend is authoritative for a track's audio.
type Source string

const (
	SourceLocal   Source = "local"
	SourceSpotify Source = "spotify"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceLocal || s == SourceSpotify
}

// Track represents one playable unit from either source.
//
// Exactly one of AudioURL (local file path or preview URL) and SpotifyURI is
// authoritative for audio output, selected by Source. A spotify-sourced track
// may still carry an AudioURL preview used as the fallback path.
type Track struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	Duration   float64 // seconds
	ArtworkURL string
	Source     Source
	AudioURL   string // local path or preview stream, present iff playable locally
	SpotifyURI string // opaque playback reference, present iff Source == spotify
	PlaylistID string
	AddedAt    time.Time
}

// Playable reports whether the track carries any usable audio reference.
func (t Track) Playable() bool {
	return t.AudioURL != "" || t.SpotifyURI != ""
}

// Matches reports a case-insensitive title+artist match, used for duplicate
// detection when adding tracks to a playlist.
func (t Track) Matches(other Track) bool {
	return strings.EqualFold(t.Title, other.Title) && strings.EqualFold(t.Artist, other.Artist)
}

// PersistedTrack is the database-backed representation of a [Track].
type PersistedTrack struct {
	id        string
	sequence  int
	track     Track
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewPersistedTrack wraps a track DTO for persistence.
func NewPersistedTrack(sequence int, track Track) *PersistedTrack {
	now := time.Now()
	if track.AddedAt.IsZero() {
		track.AddedAt = now
	}
	return &PersistedTrack{
		sequence:  sequence,
		track:     track,
		createdAt: track.AddedAt,
		updatedAt: now,
	}
}

func (t *PersistedTrack) ID() string            { return t.id }
func (t *PersistedTrack) Sequence() int         { return t.sequence }
func (t *PersistedTrack) Track() Track          { return t.track }
func (t *PersistedTrack) CreatedAt() time.Time  { return t.createdAt }
func (t *PersistedTrack) UpdatedAt() time.Time  { return t.updatedAt }
func (t *PersistedTrack) DeletedAt() *time.Time { return t.deletedAt }

func (t *PersistedTrack) SetID(id string) {
	t.id = id
	t.track.ID = id
}
func (t *PersistedTrack) SetUpdatedAt(ts time.Time)  { t.updatedAt = ts }
func (t *PersistedTrack) SetDeletedAt(ts *time.Time) { t.deletedAt = ts }

// Validate checks the track invariants before it is written to the store.
func (t *PersistedTrack) Validate() error {
	if t.track.Title == "" {
		return fmt.Errorf("track title is required")
	}
	if !t.track.Source.Valid() {
		return fmt.Errorf("invalid track source: %q", t.track.Source)
	}
	if t.track.PlaylistID == "" {
		return fmt.Errorf("track playlist membership is required")
	}
	if t.track.Source == SourceSpotify && t.track.SpotifyURI == "" {
		return fmt.Errorf("spotify track missing playback reference")
	}
	if t.track.Source == SourceLocal && t.track.AudioURL == "" {
		return fmt.Errorf("local track missing audio reference")
	}
	return nil
}
