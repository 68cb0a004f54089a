// Spotify Web API client.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundwave/internal/models"
	"github.com/desertthunder/soundwave/internal/shared"
	"golang.org/x/time/rate"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// searchLimit caps track search results per query.
const searchLimit = 20

// TokenSource supplies bearer tokens and handles their revocation.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Invalidate()
}

type apiImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type apiArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiAlbum struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Images []apiImage `json:"images"`
}

type apiTrack struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Artists    []apiArtist `json:"artists"`
	Album      apiAlbum    `json:"album"`
	DurationMS int         `json:"duration_ms"`
	PreviewURL string      `json:"preview_url"`
	URI        string      `json:"uri"`
}

// toTrack maps an API track onto the domain model. PlaylistID is left for
// the library to assign when the track is added.
func (t apiTrack) toTrack() models.Track {
	track := models.Track{
		ID:         t.ID,
		Title:      t.Name,
		Album:      t.Album.Name,
		Duration:   float64(t.DurationMS) / 1000,
		Source:     models.SourceSpotify,
		AudioURL:   t.PreviewURL,
		SpotifyURI: t.URI,
	}

	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	if len(t.Album.Images) > 0 {
		track.ArtworkURL = t.Album.Images[0].URL
	}

	return track
}

// DeviceInfo describes one of the user's playback devices.
type DeviceInfo struct {
	ID            string `json:"id"`
	IsActive      bool   `json:"is_active"`
	Name          string `json:"name"`
	VolumePercent int    `json:"volume_percent"`
}

type searchResponse struct {
	Tracks struct {
		Items []apiTrack `json:"items"`
	} `json:"tracks"`
}

type devicesResponse struct {
	Devices []DeviceInfo `json:"devices"`
}

type playerStateResponse struct {
	Device     DeviceInfo `json:"device"`
	ProgressMS int       `json:"progress_ms"`
	IsPlaying  bool      `json:"is_playing"`
	Item       *apiTrack `json:"item"`
}

// PlaybackState is a snapshot of remote playback.
type PlaybackState struct {
	Track      models.Track
	PositionMS int
	DurationMS int
	Paused     bool
	DeviceID   string
}

// Client performs authenticated, rate-limited requests against the Web API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a Web API client using the given token source.
func NewClient(tokens TokenSource, logger *log.Logger) *Client {
	return &Client{
		baseURL:    spotifyBaseURL,
		httpClient: http.DefaultClient,
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(10), 1),
		logger:     logger,
	}
}

// do performs an authenticated request. A 401 invalidates the stored token;
// a 204 is a successful empty response and result is left untouched.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return shared.ErrNotAuthenticated
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("api error", "method", method, "endpoint", endpoint, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Search queries the catalog for tracks matching q.
func (c *Client) Search(ctx context.Context, q string) ([]models.Track, error) {
	if q == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(q), searchLimit)

	var response searchResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		tracks = append(tracks, item.toTrack())
	}

	return tracks, nil
}

// TransferPlayback moves the playback session to the given device without
// starting playback.
func (c *Client) TransferPlayback(ctx context.Context, deviceID string) error {
	body := map[string]any{
		"device_ids": []string{deviceID},
		"play":       false,
	}

	if err := c.do(ctx, http.MethodPut, "/me/player", body, nil); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransferFailed, err)
	}

	return nil
}

// StartPlayback begins playing the given track URI on the device.
func (c *Client) StartPlayback(ctx context.Context, deviceID, uri string) error {
	endpoint := "/me/player/play?device_id=" + url.QueryEscape(deviceID)
	body := map[string]any{"uris": []string{uri}}

	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

// Pause pauses remote playback.
func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/me/player/pause", nil, nil)
}

// Resume continues remote playback from the current position.
func (c *Client) Resume(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/me/player/play", nil, nil)
}

// Next skips to the next track in the remote queue.
func (c *Client) Next(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/me/player/next", nil, nil)
}

// Previous skips to the previous track in the remote queue.
func (c *Client) Previous(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/me/player/previous", nil, nil)
}

// Seek jumps to an absolute position in the current track.
func (c *Client) Seek(ctx context.Context, positionMS int) error {
	endpoint := fmt.Sprintf("/me/player/seek?position_ms=%d", positionMS)
	return c.do(ctx, http.MethodPut, endpoint, nil, nil)
}

// SetVolume sets the remote device volume as a percentage.
func (c *Client) SetVolume(ctx context.Context, percent int) error {
	endpoint := fmt.Sprintf("/me/player/volume?volume_percent=%d", percent)
	return c.do(ctx, http.MethodPut, endpoint, nil, nil)
}

// Devices lists the user's available playback devices.
func (c *Client) Devices(ctx context.Context) ([]DeviceInfo, error) {
	var response devicesResponse
	if err := c.do(ctx, http.MethodGet, "/me/player/devices", nil, &response); err != nil {
		return nil, err
	}
	return response.Devices, nil
}

// PlayerState fetches the current playback snapshot. Returns nil when no
// session is active.
func (c *Client) PlayerState(ctx context.Context) (*PlaybackState, error) {
	var response playerStateResponse
	if err := c.do(ctx, http.MethodGet, "/me/player", nil, &response); err != nil {
		return nil, err
	}

	if response.Item == nil {
		return nil, nil
	}

	return &PlaybackState{
		Track:      response.Item.toTrack(),
		PositionMS: response.ProgressMS,
		DurationMS: response.Item.DurationMS,
		Paused:     !response.IsPlaying,
		DeviceID:   response.Device.ID,
	}, nil
}
