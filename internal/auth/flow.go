package auth

import (
	"context"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundwave/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// Scopes required to read the user's identity and drive remote playback.
var scopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-read-playback-state",
	"user-modify-playback-state",
}

// Flow drives the authorization code flow with PKCE. No client secret is
// involved; possession of the code verifier authenticates the exchange.
type Flow struct {
	config    *oauth2.Config
	tokens    *TokenStore
	artifacts *ArtifactStore
	logger    *log.Logger
}

// NewFlow creates a flow for the given Spotify app credentials, persisting
// tokens and pending artifacts under dir.
func NewFlow(cfg shared.SpotifyConfig, dir string, logger *log.Logger) (*Flow, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingConfig)
	}

	config := &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &Flow{
		config:    config,
		tokens:    NewTokenStore(dir),
		artifacts: NewArtifactStore(dir),
		logger:    logger,
	}, nil
}

// Tokens exposes the flow's token store.
func (f *Flow) Tokens() *TokenStore {
	return f.tokens
}

// Begin generates a fresh verifier and state, persists them, and returns the
// authorization URL the user must visit.
func (f *Flow) Begin() (string, error) {
	verifier := oauth2.GenerateVerifier()

	state, err := GenerateState()
	if err != nil {
		return "", err
	}

	if err := f.artifacts.Save(Artifacts{Verifier: verifier, State: state}); err != nil {
		return "", err
	}

	return f.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Complete consumes the authorization callback query and exchanges the code
// for tokens. Once a redirect is recognized, pending artifacts are cleared
// regardless of outcome; a query carrying neither an authorization response
// nor an error is not a redirect and returns (nil, nil) with no side effects.
//
// Error mapping, in order of precedence: a provider error parameter means the
// user cancelled ([shared.ErrAuthCancelled]); a missing verifier means no
// attempt is pending ([shared.ErrMissingVerifier]); a state mismatch aborts
// before any network call ([shared.ErrStateMismatch]); a failed exchange
// surfaces as [shared.ErrTokenExchangeFailed].
func (f *Flow) Complete(ctx context.Context, query url.Values) (*oauth2.Token, error) {
	if query.Get("code") == "" && query.Get("state") == "" && query.Get("error") == "" {
		return nil, nil
	}

	defer f.artifacts.Clear()

	if errParam := query.Get("error"); errParam != "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrAuthCancelled, errParam)
	}

	pending, err := f.artifacts.Load()
	if err != nil {
		return nil, err
	}

	if query.Get("state") != pending.State {
		return nil, shared.ErrStateMismatch
	}

	code := query.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: no authorization code", shared.ErrAuthCancelled)
	}

	token, err := f.config.Exchange(ctx, code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExchangeFailed, err)
	}

	if err := f.tokens.Save(token); err != nil {
		return nil, err
	}

	f.logger.Info("authorization complete", "expires", token.Expiry)
	return token, nil
}

// Refresh exchanges the stored refresh token for a new access token.
func (f *Flow) Refresh(ctx context.Context) (*oauth2.Token, error) {
	current, err := f.tokens.Token()
	if err != nil {
		return nil, err
	}

	if current.RefreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	refreshed, err := f.config.TokenSource(ctx, current).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}

	if err := f.tokens.Save(refreshed); err != nil {
		return nil, err
	}

	return refreshed, nil
}

// AccessToken returns a currently valid access token, refreshing when the
// stored one is expired or about to expire.
func (f *Flow) AccessToken(ctx context.Context) (string, error) {
	if f.tokens.Valid() {
		token, err := f.tokens.Token()
		if err != nil {
			return "", err
		}
		return token.AccessToken, nil
	}

	refreshed, err := f.Refresh(ctx)
	if err != nil {
		return "", err
	}

	return refreshed.AccessToken, nil
}

// Invalidate discards the stored token. Callers use it when the API rejects
// a request with 401 and the session must be re-established.
func (f *Flow) Invalidate() {
	f.tokens.Invalidate()
}
