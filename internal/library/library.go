// package library manages the persistent track collection behind the player.
//
// The library fronts the SQLite repositories with an in-memory view. The two
// default playlists are seeded on first run and always exist. Persistence
// failures are downgraded to warnings; the in-memory view keeps working so a
// broken database never blocks playback.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundwave/internal/models"
	"github.com/desertthunder/soundwave/internal/shared"
)

// Library is the track and playlist store.
type Library struct {
	mu sync.Mutex

	playlists models.Repository[*models.PersistedPlaylist]
	tracks    models.Repository[*models.PersistedTrack]

	dir    string
	cache  []models.Track
	logger *log.Logger
}

// NewLibrary opens the library over the given repositories, seeding the
// default playlists when none exist and loading all tracks into memory.
func NewLibrary(
	playlists models.Repository[*models.PersistedPlaylist],
	tracks models.Repository[*models.PersistedTrack],
	dir string,
	logger *log.Logger,
) *Library {
	lib := &Library{
		playlists: playlists,
		tracks:    tracks,
		dir:       dir,
		logger:    logger,
	}

	lib.seed()
	lib.loadCache()

	return lib
}

// seed creates the default playlists when the store is empty.
func (l *Library) seed() {
	existing, err := l.playlists.List(nil)
	if err != nil {
		l.logger.Warn("playlist load failed, using in-memory library", "error", err)
		return
	}

	if len(existing) > 0 {
		return
	}

	for _, dto := range models.DefaultPlaylists() {
		playlist := models.NewPersistedPlaylist(0, dto)
		if err := l.playlists.Create(playlist); err != nil {
			l.logger.Warn("failed to seed playlist", "playlist", dto.ID, "error", err)
		}
	}
}

// loadCache fills the in-memory view from the track store.
func (l *Library) loadCache() {
	persisted, err := l.tracks.List(nil)
	if err != nil {
		l.logger.Warn("track load failed, using in-memory library", "error", err)
		return
	}

	l.cache = make([]models.Track, 0, len(persisted))
	for _, p := range persisted {
		l.cache = append(l.cache, p.Track())
	}
}

// Playlists returns all playlists in insertion order.
func (l *Library) Playlists() []models.Playlist {
	persisted, err := l.playlists.List(nil)
	if err != nil {
		l.logger.Warn("playlist list failed", "error", err)
		return models.DefaultPlaylists()
	}

	playlists := make([]models.Playlist, 0, len(persisted))
	for _, p := range persisted {
		playlists = append(playlists, p.Playlist())
	}

	return playlists
}

// CreatePlaylist stores a new user playlist. The ID is derived from the
// name; names that collide with an existing playlist are rejected.
func (l *Library) CreatePlaylist(name, description string) (models.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Playlist{}, fmt.Errorf("%w: playlist name", shared.ErrInvalidInput)
	}

	id := playlistSlug(name)
	if id == "" {
		id = shared.GenerateID()
	}

	for _, existing := range l.Playlists() {
		if existing.ID == id || strings.EqualFold(existing.Name, name) {
			return models.Playlist{}, fmt.Errorf("%w: %s", shared.ErrDuplicatePlaylist, name)
		}
	}

	playlist := models.Playlist{ID: id, Name: name, Description: description}
	persisted := models.NewPersistedPlaylist(0, playlist)
	if err := l.playlists.Create(persisted); err != nil {
		return models.Playlist{}, fmt.Errorf("failed to create playlist: %w", err)
	}

	return persisted.Playlist(), nil
}

// playlistSlug lowercases the name and keeps alphanumerics, mapping spaces
// to dashes. Names with no usable characters slug to "".
func playlistSlug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Tracks returns a copy of all tracks in insertion order.
func (l *Library) Tracks() []models.Track {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.Track, len(l.cache))
	copy(out, l.cache)
	return out
}

// Filter projects the library by source and a case-insensitive substring
// match on title, artist, or album. An empty or "all" source matches every
// track; an empty query matches everything.
func (l *Library) Filter(source, query string) []models.Track {
	l.mu.Lock()
	defer l.mu.Unlock()

	query = strings.ToLower(strings.TrimSpace(query))

	var out []models.Track
	for _, track := range l.cache {
		if source != "" && source != "all" && string(track.Source) != source {
			continue
		}

		if query != "" {
			haystack := strings.ToLower(track.Title + " " + track.Artist + " " + track.Album)
			if !strings.Contains(haystack, query) {
				continue
			}
		}

		out = append(out, track)
	}

	return out
}

// Add stores a track, assigning it to its source's default playlist when no
// playlist is given. Duplicate title+artist pairs are rejected.
func (l *Library) Add(track models.Track) (models.Track, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.cache {
		if existing.Matches(track) {
			return models.Track{}, fmt.Errorf("%w: %s by %s", shared.ErrDuplicateTrack, track.Title, track.Artist)
		}
	}

	if track.PlaylistID == "" {
		if track.Source == models.SourceSpotify {
			track.PlaylistID = models.SpotifyPlaylistID
		} else {
			track.PlaylistID = models.DefaultPlaylistID
		}
	}

	persisted := models.NewPersistedTrack(0, track)
	if err := l.tracks.Create(persisted); err != nil {
		l.logger.Warn("track persist failed, keeping in memory", "track", track.Title, "error", err)
		if track.ID == "" {
			track.ID = shared.GenerateID()
		}
	} else {
		track = persisted.Track()
	}

	l.cache = append(l.cache, track)
	return track, nil
}

// Get returns the track with the given ID.
func (l *Library) Get(id string) (models.Track, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, track := range l.cache {
		if track.ID == id {
			return track, nil
		}
	}

	return models.Track{}, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
}

// Remove deletes a track by ID. Local files ingested into the library
// directory are deleted from disk along with the record.
func (l *Library) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := -1
	for i, track := range l.cache {
		if track.ID == id {
			index = i
			break
		}
	}

	if index < 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}

	track := l.cache[index]
	l.cache = append(l.cache[:index], l.cache[index+1:]...)

	if err := l.tracks.Delete(id); err != nil {
		l.logger.Warn("track delete failed, removed from memory only", "track", id, "error", err)
	}

	if track.Source == models.SourceLocal && l.owns(track.AudioURL) {
		if err := os.Remove(track.AudioURL); err != nil && !os.IsNotExist(err) {
			l.logger.Warn("failed to remove audio file", "path", track.AudioURL, "error", err)
		}
	}

	return nil
}

// owns reports whether path lives inside the managed library directory.
func (l *Library) owns(path string) bool {
	if l.dir == "" || path == "" {
		return false
	}

	rel, err := filepath.Rel(l.dir, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
