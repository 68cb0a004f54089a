// Package models defines domain entities and persistence interfaces for the soundwave player.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs passed between the
// library, the playback session controller, and the UI:
//   - [Track] : One playable unit, local file or Spotify reference
//   - [Playlist] : Named ordered collection of tracks
//
// 2. Persistent Entities: Database-backed models with full lifecycle management:
//   - [PersistedPlaylist] : Playlists with sequence numbers and soft deletes
//   - [PersistedTrack] : Tracks with playlist membership foreign keys
//
// All persistent entities implement the [Model] interface providing ID
// generation, timestamps, validation, and soft delete support. The
// [Repository] interface defines standard CRUD operations for database access.
//
// [Source] and [RepeatMode] are the enumerations shared by the session
// controller and the presentation layer.
package models
