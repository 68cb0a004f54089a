// Package repositories implements SQLite persistence for the music library.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [PlaylistRepository] : Named playlists, with the two default playlists seeded on first run
//   - [TrackRepository] : Tracks carrying a playlist-membership foreign key and per-source audio references
//
// The session controller never touches this package directly; the library
// service mediates all access and degrades to in-memory state when the
// database is unavailable.
package repositories
