package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/soundwave/internal/models"
	"github.com/desertthunder/soundwave/internal/shared"
)

// TrackRepository implements models.Repository[*models.PersistedTrack]
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new track into the database with generated sequence.
//
// Spotify search results arrive with an upstream ID which is kept; tracks
// ingested from local files get a generated one.
func (r *TrackRepository) Create(track *models.PersistedTrack) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if track.ID() == "" {
		if id := track.Track().ID; id != "" {
			track.SetID(id)
		} else {
			track.SetID(shared.GenerateID())
		}
	}

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	dto := track.Track()
	query := `
		INSERT INTO tracks (id, sequence, playlist_id, title, artist, album, duration,
			artwork_url, source, audio_url, spotify_uri, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		track.ID(),
		sequence,
		dto.PlaylistID,
		dto.Title,
		dto.Artist,
		dto.Album,
		dto.Duration,
		dto.ArtworkURL,
		string(dto.Source),
		dto.AudioURL,
		dto.SpotifyURI,
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.PersistedTrack, error) {
	query := `
		SELECT id, sequence, playlist_id, title, artist, album, duration,
			artwork_url, source, audio_url, spotify_uri, created_at, updated_at, deleted_at
		FROM tracks
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scan(r.db.QueryRow(query, id))
}

// Update modifies an existing track's metadata
func (r *TrackRepository) Update(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	dto := track.Track()
	query := `
		UPDATE tracks
		SET playlist_id = ?, title = ?, artist = ?, album = ?, duration = ?,
			artwork_url = ?, audio_url = ?, spotify_uri = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		dto.PlaylistID,
		dto.Title,
		dto.Artist,
		dto.Album,
		dto.Duration,
		dto.ArtworkURL,
		dto.AudioURL,
		dto.SpotifyURI,
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, track.ID())
	}

	return nil
}

// Delete soft-deletes a track by setting deleted_at
func (r *TrackRepository) Delete(id string) error {
	query := `
		UPDATE tracks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}

	return nil
}

// List retrieves tracks in insertion order, excluding soft-deleted ones.
//
// Supported criteria: "playlist_id" and "source".
func (r *TrackRepository) List(criteria map[string]any) ([]*models.PersistedTrack, error) {
	query := `
		SELECT id, sequence, playlist_id, title, artist, album, duration,
			artwork_url, source, audio_url, spotify_uri, created_at, updated_at, deleted_at
		FROM tracks
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	if source, ok := criteria["source"].(models.Source); ok && source.Valid() {
		query += " AND source = ?"
		args = append(args, string(source))
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.PersistedTrack
	for rows.Next() {
		track, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// scan reads a single track record into a [models.PersistedTrack]
func (r *TrackRepository) scan(row scanner) (*models.PersistedTrack, error) {
	var (
		id         string
		sequence   int
		playlistID string
		title      string
		artist     string
		album      string
		duration   float64
		artworkURL string
		source     string
		audioURL   string
		spotifyURI string
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &playlistID, &title, &artist, &album, &duration,
		&artworkURL, &source, &audioURL, &spotifyURI, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	dto := models.Track{
		ID:         id,
		Title:      title,
		Artist:     artist,
		Album:      album,
		Duration:   duration,
		ArtworkURL: artworkURL,
		Source:     models.Source(source),
		AudioURL:   audioURL,
		SpotifyURI: spotifyURI,
		PlaylistID: playlistID,
		AddedAt:    createdAt,
	}

	track := models.NewPersistedTrack(sequence, dto)
	track.SetID(id)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}

	return track, nil
}
