// package player contains the playback session controller and the local
// audio engine.
//
// The controller owns the session exclusively. It reconciles the local
// engine and the remote backend behind one transport surface: remote is used
// when the current track is spotify-sourced and the backend is ready, and
// every remote failure falls back to local playback of the track's preview
// or file reference. A track with neither reference is unplayable.
//
// Remote transport commands are guarded by a single-slot in-flight latch;
// a command arriving while another is running is dropped silently rather
// than queued. The guard is released on every exit path.
package player
