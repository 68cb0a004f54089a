package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authorization flow errors
	ErrAuthCancelled       = fmt.Errorf("authorization cancelled")
	ErrStateMismatch       = fmt.Errorf("authorization state mismatch")
	ErrMissingVerifier     = fmt.Errorf("missing code verifier")
	ErrTokenExchangeFailed = fmt.Errorf("token exchange failed")
	ErrNotAuthenticated    = fmt.Errorf("not authenticated")
	ErrNoRefreshToken      = fmt.Errorf("no refresh token available")
	ErrRefreshFailed       = fmt.Errorf("token refresh failed")

	// Remote backend errors
	ErrNotReady             = fmt.Errorf("remote player not ready")
	ErrTransferFailed       = fmt.Errorf("playback transfer failed")
	ErrSubscriptionRequired = fmt.Errorf("premium subscription required")
	ErrSdkError             = fmt.Errorf("streaming SDK error")
	ErrAPIRequest           = fmt.Errorf("API request failed")

	// Local backend errors
	ErrNoAudioSource   = fmt.Errorf("no audio source for track")
	ErrPlaybackBlocked = fmt.Errorf("audio playback blocked")

	// Session controller errors
	ErrNoSongsAvailable    = fmt.Errorf("no songs available to play")
	ErrInteractionRequired = fmt.Errorf("user interaction required before playback")

	// Library errors
	ErrPlaylistNotFound  = fmt.Errorf("playlist not found")
	ErrTrackNotFound     = fmt.Errorf("track not found")
	ErrDuplicateTrack    = fmt.Errorf("track already in playlist")
	ErrDuplicatePlaylist = fmt.Errorf("playlist already exists")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
